package api

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruify/internal/ai"
)

type failingCompleter struct{}

func (failingCompleter) Complete(context.Context, ai.ChatRequest) (string, error) {
	return "", errors.New("upstream unavailable")
}

func newAIRouter(service aiService, limiter redisRateCounter, limit int) *gin.Engine {
	h := NewAIHandler(service, limiter, AIOptions{RateLimitPerHour: limit})
	r := gin.New()
	g := r.Group("/v1/ai", asCompany(7))
	g.POST("/generate-jd", h.GenerateJD)
	g.POST("/score-resume", h.ScoreResume)
	return r
}

func postForm(t *testing.T, router http.Handler, path string, fields map[string]string, fileField, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGenerateJDMock(t *testing.T) {
	r := newAIRouter(ai.NewService(nil), nil, 0)

	w := doJSON(t, r, http.MethodPost, "/v1/ai/generate-jd", gin.H{
		"title":     "Platform Engineer",
		"techStack": []string{"Go", "Kubernetes"},
		"location":  "Busan",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var jd ai.GeneratedJD
	decodeData(t, w, &jd)
	assert.Contains(t, jd.Description, "Platform Engineer")
	assert.Contains(t, jd.Description, "Busan")
	assert.Contains(t, jd.Requirements, "Go, Kubernetes")

	w = doJSON(t, r, http.MethodPost, "/v1/ai/generate-jd", gin.H{"experience": "5 years"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Job title is required", errorMessage(t, w))
}

func TestGenerateJDProviderFailure(t *testing.T) {
	r := newAIRouter(ai.NewService(failingCompleter{}), nil, 0)

	w := doJSON(t, r, http.MethodPost, "/v1/ai/generate-jd", gin.H{"title": "Engineer"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to generate job description", errorMessage(t, w))
}

func TestScoreResumeMock(t *testing.T) {
	svc := ai.NewService(nil, ai.WithRand(rand.New(rand.NewPCG(1, 2))))
	r := newAIRouter(svc, nil, 0)

	w := postForm(t, r, "/v1/ai/score-resume", map[string]string{
		"jobDescription": "Build APIs in Go",
		"resumeText":     "Five years of Go",
	}, "", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result ai.ScoringResult
	decodeData(t, w, &result)
	assert.GreaterOrEqual(t, result.TotalScore, 75)
	assert.LessOrEqual(t, result.TotalScore, 94)
	assert.GreaterOrEqual(t, result.CultureScore, 70)
	assert.LessOrEqual(t, result.CultureScore, 89)
	assert.NotEmpty(t, result.Strengths)

	w = postForm(t, r, "/v1/ai/score-resume", map[string]string{"jobDescription": "Build APIs"}, "resume", "cv.txt", []byte("Rust and Go"))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestScoreResumeErrors(t *testing.T) {
	r := newAIRouter(ai.NewService(nil), nil, 0)

	w := postForm(t, r, "/v1/ai/score-resume", map[string]string{"resumeText": "hi"}, "", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Job description is required", errorMessage(t, w))

	w = postForm(t, r, "/v1/ai/score-resume", map[string]string{"jobDescription": "Go"}, "", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Resume content is required", errorMessage(t, w))

	w = postForm(t, r, "/v1/ai/score-resume", map[string]string{"jobDescription": "Go"}, "resume", "cv.pdf", []byte("not really a pdf"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Failed to parse PDF file", errorMessage(t, w))

	failing := newAIRouter(ai.NewService(failingCompleter{}), nil, 0)
	w = postForm(t, failing, "/v1/ai/score-resume", map[string]string{"jobDescription": "Go", "resumeText": "Go"}, "", "", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to score resume", errorMessage(t, w))
}

func TestAIRateLimitPerCompany(t *testing.T) {
	limiter := newFakeRedis()
	r := newAIRouter(ai.NewService(nil), limiter, 2)

	for i := 0; i < 2; i++ {
		w := doJSON(t, r, http.MethodPost, "/v1/ai/generate-jd", gin.H{"title": "Engineer"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := doJSON(t, r, http.MethodPost, "/v1/ai/generate-jd", gin.H{"title": "Engineer"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	limiter.incrErr = errors.New("redis down")
	w = doJSON(t, r, http.MethodPost, "/v1/ai/generate-jd", gin.H{"title": "Engineer"})
	assert.Equal(t, http.StatusOK, w.Code)
}
