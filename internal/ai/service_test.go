package ai

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruify/internal/config"
)

type stubCompleter struct {
	reply string
	err   error
	got   []ChatRequest
}

func (s *stubCompleter) Complete(_ context.Context, req ChatRequest) (string, error) {
	s.got = append(s.got, req)
	return s.reply, s.err
}

func TestGenerateJDRequiresTitle(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.GenerateJD(context.Background(), JDInput{Title: "   "})
	assert.ErrorIs(t, err, ErrTitleRequired)
}

func TestGenerateJDMock(t *testing.T) {
	svc := NewService(nil)
	require.True(t, svc.Mock())

	jd, err := svc.GenerateJD(context.Background(), JDInput{
		Title:     "Backend Engineer",
		TechStack: []string{"Go", "PostgreSQL", "Redis", "Kafka"},
		Location:  "Seoul",
	})
	require.NoError(t, err)
	assert.Contains(t, jd.Description, "talented Backend Engineer")
	assert.Contains(t, jd.Description, "Go, PostgreSQL, Redis, Kafka")
	assert.Contains(t, jd.Description, "This is a full-time position based in Seoul.")
	assert.Contains(t, jd.Requirements, "3+ years of professional experience")
	assert.Contains(t, jd.Requirements, "Strong proficiency in Go, PostgreSQL, Redis\n")
}

func TestGenerateJDMockWithoutStack(t *testing.T) {
	jd, err := NewService(nil).GenerateJD(context.Background(), JDInput{Title: "PM", Experience: "5+ years", EmploymentType: "contract"})
	require.NoError(t, err)
	assert.NotContains(t, jd.Description, "Working with technologies")
	assert.Contains(t, jd.Description, "This is a contract position.")
	assert.Contains(t, jd.Requirements, "5+ years of professional experience")
	assert.Contains(t, jd.Requirements, "Strong technical skills relevant to the role")
}

func TestGenerateJDUsesCompleter(t *testing.T) {
	stub := &stubCompleter{reply: "```json\n{\"description\":\"d\",\"requirements\":\"r\"}\n```"}
	svc := NewService(stub)

	jd, err := svc.GenerateJD(context.Background(), JDInput{Title: "SRE", TechStack: []string{"k8s"}})
	require.NoError(t, err)
	assert.Equal(t, GeneratedJD{Description: "d", Requirements: "r"}, jd)

	require.Len(t, stub.got, 1)
	assert.InDelta(t, 0.7, stub.got[0].Temperature, 1e-9)
	assert.True(t, stub.got[0].JSON)
	assert.Contains(t, stub.got[0].User, "Job Title: SRE")
	assert.Contains(t, stub.got[0].User, "Tech Stack: k8s")
	assert.NotContains(t, stub.got[0].User, "Location:")
}

func TestGenerateJDPropagatesProviderErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	_, err := NewService(&stubCompleter{err: boom}).GenerateJD(context.Background(), JDInput{Title: "x"})
	assert.ErrorIs(t, err, boom)

	_, err = NewService(&stubCompleter{reply: "not json"}).GenerateJD(context.Background(), JDInput{Title: "x"})
	assert.Error(t, err)
}

func TestScoreResumeValidation(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.ScoreResume(context.Background(), ScoreInput{ResumeText: "cv"})
	assert.ErrorIs(t, err, ErrJobDescriptionRequired)

	_, err = svc.ScoreResume(context.Background(), ScoreInput{JobDescription: "jd", ResumeText: " \n"})
	assert.ErrorIs(t, err, ErrResumeRequired)
}

func TestScoreResumeMockRanges(t *testing.T) {
	svc := NewService(nil, WithRand(rand.New(rand.NewPCG(1, 2))))
	for range 50 {
		res, err := svc.ScoreResume(context.Background(), ScoreInput{JobDescription: "jd", ResumeText: "cv"})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.TotalScore, 75)
		assert.LessOrEqual(t, res.TotalScore, 94)
		assert.GreaterOrEqual(t, res.SkillScore, 75)
		assert.LessOrEqual(t, res.SkillScore, 94)
		assert.GreaterOrEqual(t, res.CultureScore, 70)
		assert.LessOrEqual(t, res.CultureScore, 89)
		assert.GreaterOrEqual(t, res.CareerScore, 75)
		assert.LessOrEqual(t, res.CareerScore, 94)
		assert.Len(t, res.Strengths, 3)
		assert.Len(t, res.Risks, 2)
		assert.Len(t, res.RecommendedQuestions, 3)
	}
}

func TestScoreResumeClampsProviderScores(t *testing.T) {
	stub := &stubCompleter{reply: `{"total_score":130,"skill_score":-4,"culture_score":60,"career_score":100,"summary":"ok"}`}
	res, err := NewService(stub).ScoreResume(context.Background(), ScoreInput{JobDescription: "jd", ResumeText: "cv"})
	require.NoError(t, err)

	assert.Equal(t, 100, res.TotalScore)
	assert.Equal(t, 0, res.SkillScore)
	assert.Equal(t, 60, res.CultureScore)
	assert.NotNil(t, res.Strengths)
	assert.NotNil(t, res.RecommendedQuestions)

	require.Len(t, stub.got, 1)
	assert.InDelta(t, 0.3, stub.got[0].Temperature, 1e-9)
	assert.True(t, strings.Contains(stub.got[0].User, "## Requirements\nNot specified"))
}

func TestNewCompleterWithoutKeyIsMock(t *testing.T) {
	c, err := NewCompleter(context.Background(), config.AIConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewCompleter(context.Background(), config.AIConfig{Provider: "openai", OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAICompleter{}, c)
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON("Sure! ```json\n{\"a\":1}\n``` hope this helps"))
	assert.Equal(t, `{"a":1}`, cleanJSON(`{"a":1}`))
}
