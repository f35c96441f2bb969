package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"recruify/internal/ai"
	"recruify/internal/api/middleware"
	"recruify/internal/metrics"
	"recruify/internal/resumetext"
)

type aiService interface {
	GenerateJD(ctx context.Context, in ai.JDInput) (ai.GeneratedJD, error)
	ScoreResume(ctx context.Context, in ai.ScoreInput) (ai.ScoringResult, error)
	Mock() bool
}

// AIOptions 配置 AI 端点的限流与超时。
type AIOptions struct {
	RateLimitPerHour int
	RequestTimeout   time.Duration
	MaxResumeBytes   int64
}

// AIHandler 透传职位描述生成与简历评分请求。
type AIHandler struct {
	service aiService
	limiter redisRateCounter
	opts    AIOptions
}

func NewAIHandler(service aiService, limiter redisRateCounter, opts AIOptions) *AIHandler {
	if opts.MaxResumeBytes <= 0 {
		opts.MaxResumeBytes = resumetext.DefaultMaxBytes
	}
	return &AIHandler{service: service, limiter: limiter, opts: opts}
}

// GenerateJD 根据职位信息生成描述与任职要求。
func (h *AIHandler) GenerateJD(c *gin.Context) {
	if !h.allow(c) {
		return
	}

	var req ai.JDInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	jd, err := h.service.GenerateJD(ctx, req)
	metrics.ObserveAI("generate_jd", h.service.Mock(), err)
	if err != nil {
		if errors.Is(err, ai.ErrTitleRequired) {
			BadRequest(c, "Job title is required")
			return
		}
		middleware.LoggerFromContext(c).Error("generate job description failed", slog.Any("error", err))
		Internal(c, "Failed to generate job description")
		return
	}
	Data(c, http.StatusOK, jd)
}

// ScoreResume 接收 multipart 表单：resume 文件或 resumeText，以及 jobDescription 与 requirements。
func (h *AIHandler) ScoreResume(c *gin.Context) {
	if !h.allow(c) {
		return
	}

	jobDescription := strings.TrimSpace(c.PostForm("jobDescription"))
	if jobDescription == "" {
		BadRequest(c, "Job description is required")
		return
	}

	resumeText := strings.TrimSpace(c.PostForm("resumeText"))
	if resumeText == "" {
		if file, err := c.FormFile("resume"); err == nil {
			text, msg, status := h.extractUpload(c, file)
			if msg != "" {
				Error(c, status, msg)
				return
			}
			resumeText = text
		}
	}
	if resumeText == "" {
		BadRequest(c, "Resume content is required")
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.service.ScoreResume(ctx, ai.ScoreInput{
		JobDescription: jobDescription,
		Requirements:   c.PostForm("requirements"),
		ResumeText:     resumeText,
	})
	metrics.ObserveAI("score_resume", h.service.Mock(), err)
	if err != nil {
		switch {
		case errors.Is(err, ai.ErrJobDescriptionRequired):
			BadRequest(c, "Job description is required")
		case errors.Is(err, ai.ErrResumeRequired):
			BadRequest(c, "Resume content is required")
		default:
			middleware.LoggerFromContext(c).Error("score resume failed", slog.Any("error", err))
			Internal(c, "Failed to score resume")
		}
		return
	}
	Data(c, http.StatusOK, result)
}

// extractUpload returns the resume text, or an error message with its status.
func (h *AIHandler) extractUpload(c *gin.Context, file *multipart.FileHeader) (string, string, int) {
	filename, contentType := file.Filename, file.Header.Get("Content-Type")
	f, err := file.Open()
	if err != nil {
		return "", "failed to open file", http.StatusInternalServerError
	}
	defer f.Close()

	text, err := resumetext.Extract(f, filename, contentType, h.opts.MaxResumeBytes)
	if err == nil {
		return text, "", 0
	}
	switch {
	case errors.Is(err, resumetext.ErrTooLarge):
		return "", "Resume file is too large", http.StatusRequestEntityTooLarge
	case errors.Is(err, resumetext.ErrUnsupported):
		return "", "Unsupported resume format", http.StatusBadRequest
	case errors.Is(err, resumetext.ErrEmpty):
		return "", "Resume content is required", http.StatusBadRequest
	default:
		middleware.LoggerFromContext(c).Info("resume parse failed", slog.String("filename", filename), slog.Any("error", err))
		if resumetext.IsPDF(filename, contentType) {
			return "", "Failed to parse PDF file", http.StatusBadRequest
		}
		return "", "Failed to parse resume file", http.StatusBadRequest
	}
}

// allow 按公司做每小时限流，Redis 不可用时放行。
func (h *AIHandler) allow(c *gin.Context) bool {
	companyID, ok := companyIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return false
	}
	if h.limiter == nil || h.opts.RateLimitPerHour <= 0 {
		return true
	}

	key := fmt.Sprintf("rate:ai:%d:%s", companyID, time.Now().UTC().Format("2006010215"))
	count, err := incrWithTTL(c.Request.Context(), h.limiter, key, time.Hour)
	if err != nil {
		middleware.LoggerFromContext(c).Warn("ai rate counter unavailable", slog.Any("error", err))
		return true
	}
	if count > int64(h.opts.RateLimitPerHour) {
		TooManyRequests(c, "AI rate limit exceeded")
		return false
	}
	return true
}

func (h *AIHandler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.opts.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.opts.RequestTimeout)
}
