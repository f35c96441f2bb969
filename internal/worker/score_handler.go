package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"recruify/internal/ai"
	"recruify/internal/database"
	"recruify/internal/errcode"
	"recruify/internal/notify"
	"recruify/internal/recruit"
	"recruify/internal/resumetext"
	"recruify/internal/storage"
	"recruify/internal/tasks"
)

type objectReader interface {
	ReadObject(ctx context.Context, objectKey string, maxBytes int64) ([]byte, string, error)
}

type resumeScorer interface {
	ScoreResume(ctx context.Context, in ai.ScoreInput) (ai.ScoringResult, error)
}

// ScoreTaskHandler 负责消费候选人简历评分任务。
type ScoreTaskHandler struct {
	db       *gorm.DB
	objects  objectReader
	scorer   resumeScorer
	notifier notify.Publisher
	logger   *slog.Logger
	maxBytes int64
}

// NewScoreTaskHandler 创建任务处理器。
func NewScoreTaskHandler(
	db *gorm.DB,
	objects objectReader,
	scorer resumeScorer,
	notifier notify.Publisher,
	logger *slog.Logger,
	maxBytes int64,
) *ScoreTaskHandler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoreTaskHandler{
		db:       db,
		objects:  objects,
		scorer:   scorer,
		notifier: notifier,
		logger:   logger,
		maxBytes: maxBytes,
	}
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct {
	code int
	err  error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// ProcessTask 实现 asynq.Handler。
func (h *ScoreTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	payload, err := tasks.ParseApplicantScorePayload(t)
	if err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("applicant_id", uint64(payload.ApplicantID)),
		slog.Uint64("company_id", uint64(payload.CompanyID)),
	)
	log.Info("starting resume scoring task")

	applicant, err := database.FindApplicant(h.db.WithContext(ctx), payload.CompanyID, payload.ApplicantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("applicant not found, skipping task")
			return nil
		}
		log.Error("query applicant failed", slog.Any("error", err))
		return err
	}

	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		h.markFailed(ctx, log, payload, errcode.SystemError, retErr)
	}()

	result, err := h.score(ctx, applicant)
	if err != nil {
		var perm *permanentError
		if errors.As(err, &perm) {
			log.Warn("resume cannot be scored", slog.Any("error", err))
			h.markFailed(ctx, log, payload, perm.code, perm.err)
			return nil
		}
		log.Error("score resume failed", slog.Any("error", err))
		return err
	}

	updates := map[string]any{
		"total_score":           result.TotalScore,
		"skill_score":           result.SkillScore,
		"culture_score":         result.CultureScore,
		"career_score":          result.CareerScore,
		"strengths":             datatypes.JSONSlice[string](result.Strengths),
		"risks":                 datatypes.JSONSlice[string](result.Risks),
		"recommended_questions": datatypes.JSONSlice[string](result.RecommendedQuestions),
		"summary":               result.Summary,
		"scoring_status":        recruit.ScoringCompleted,
	}
	if err := h.db.WithContext(ctx).Model(&database.Applicant{}).Where("id = ?", applicant.ID).Updates(updates).Error; err != nil {
		log.Error("update applicant scores failed", slog.Any("error", err))
		return err
	}

	msg := notify.Message{
		Type:          notify.TypeScoringCompleted,
		ApplicantID:   applicant.ID,
		Status:        recruit.ScoringCompleted,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if err := h.notifier.Publish(ctx, payload.CompanyID, msg); err != nil {
		log.Warn("publish scoring notification failed", slog.Any("error", err))
	}

	log.Info("resume scoring task completed", slog.Int("total_score", result.TotalScore))
	return nil
}

func (h *ScoreTaskHandler) score(ctx context.Context, applicant database.Applicant) (ai.ScoringResult, error) {
	key := strings.TrimSpace(applicant.ResumeObjectKey)
	if key == "" {
		return ai.ScoringResult{}, &permanentError{errcode.ResourceMissing, errors.New("applicant has no resume")}
	}

	data, contentType, err := h.objects.ReadObject(ctx, key, h.maxBytes)
	if err != nil {
		if storage.IsNoSuchKey(err) || errors.Is(err, storage.ErrObjectTooLarge) {
			return ai.ScoringResult{}, &permanentError{errcode.ResourceMissing, err}
		}
		return ai.ScoringResult{}, fmt.Errorf("read resume: %w", err)
	}

	text, err := resumetext.Extract(bytes.NewReader(data), key, contentType, h.maxBytes)
	if err != nil {
		return ai.ScoringResult{}, &permanentError{errcode.InvalidResume, err}
	}

	posting := applicant.Posting
	description := deref(posting.Description)
	if strings.TrimSpace(description) == "" {
		description = posting.Title
	}

	result, err := h.scorer.ScoreResume(ctx, ai.ScoreInput{
		JobDescription: description,
		Requirements:   deref(posting.Requirements),
		ResumeText:     text,
	})
	if err != nil {
		return ai.ScoringResult{}, fmt.Errorf("score resume: %w", err)
	}
	return result, nil
}

func (h *ScoreTaskHandler) markFailed(ctx context.Context, log *slog.Logger, payload tasks.ApplicantScorePayload, code int, cause error) {
	if err := h.db.WithContext(ctx).Model(&database.Applicant{}).
		Where("id = ?", payload.ApplicantID).
		Update("scoring_status", recruit.ScoringFailed).Error; err != nil {
		log.Error("mark scoring failed", slog.Any("error", err))
	}

	msg := notify.Message{
		Type:          notify.TypeScoringFailed,
		ApplicantID:   payload.ApplicantID,
		Status:        recruit.ScoringFailed,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     code,
		ErrorMessage:  strings.TrimSpace(cause.Error()),
	}
	if err := h.notifier.Publish(ctx, payload.CompanyID, msg); err != nil {
		log.Error("publish scoring failure notification failed", slog.Any("error", err))
	}
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
