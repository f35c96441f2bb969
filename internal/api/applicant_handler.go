package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"recruify/internal/ai"
	"recruify/internal/api/middleware"
	"recruify/internal/database"
	"recruify/internal/pipeline"
	"recruify/internal/recruit"
	"recruify/internal/resumetext"
	"recruify/internal/scan"
	"recruify/internal/storage"
	"recruify/internal/tasks"
)

const (
	applicantNotFound = "Applicant not found"
	resumeURLTTL      = 15 * time.Minute
)

// resumeStore 是候选人简历用到的对象存储操作。
type resumeStore interface {
	prefixRemover
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	DeleteObject(ctx context.Context, objectKey string) error
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration, filename string) (string, error)
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// taskInspector 用于查看占用任务 ID 的旧任务；asynq.Inspector 满足该接口。
type taskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

// ApplicantOptions 配置简历上传与后台评分。
type ApplicantOptions struct {
	MaxResumeBytes int64
	ScoreMaxRetry  int
}

// ApplicantHandler 处理候选人列表、详情、阶段变更、简历与评分。
type ApplicantHandler struct {
	db       *gorm.DB
	pipeline *pipeline.Service
	objects  resumeStore
	scanner  scan.Scanner
	queue    taskEnqueuer
	inspect  taskInspector
	opts     ApplicantOptions
}

func NewApplicantHandler(db *gorm.DB, pipelineService *pipeline.Service, objects resumeStore, scanner scan.Scanner, queue taskEnqueuer, inspector taskInspector, opts ApplicantOptions) *ApplicantHandler {
	if scanner == nil {
		scanner = scan.Nop{}
	}
	if opts.MaxResumeBytes <= 0 {
		opts.MaxResumeBytes = resumetext.DefaultMaxBytes
	}
	return &ApplicantHandler{
		db:       db,
		pipeline: pipelineService,
		objects:  objects,
		scanner:  scanner,
		queue:    queue,
		inspect:  inspector,
		opts:     opts,
	}
}

// List 列出本公司候选人，按总分倒序，未评分的排在最后。
func (h *ApplicantHandler) List(c *gin.Context) {
	companyID, ok := companyIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	postingID, err := parseOptionalID(c.Query("posting_id"))
	if err != nil {
		BadRequest(c, "Invalid posting_id")
		return
	}

	query := database.CompanyApplicants(h.db.WithContext(c.Request.Context()), companyID).Preload("Posting")
	if postingID != 0 {
		query = query.Where("applicants.posting_id = ?", postingID)
	}
	if stage := c.Query("stage"); stage != "" {
		if !recruit.Stage(stage).Valid() {
			BadRequest(c, "Invalid stage")
			return
		}
		query = query.Where("applicants.stage = ?", stage)
	}

	var applicants []database.Applicant
	if err := query.
		Order("applicants.total_score IS NULL").
		Order("applicants.total_score DESC").
		Order("applicants.id ASC").
		Find(&applicants).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list applicants failed", slog.Any("error", err))
		Internal(c, "Failed to list applicants")
		return
	}
	Data(c, http.StatusOK, newApplicantViews(applicants))
}

type createApplicantRequest struct {
	PostingID     uint              `json:"posting_id" binding:"required"`
	Name          string            `json:"name"`
	ApplyPlatform *string           `json:"apply_platform"`
	Memo          *string           `json:"memo"`
	ScoringResult *ai.ScoringResult `json:"scoring_result"`
}

// Create 登记候选人，可附带已有的评分结果。
func (h *ApplicantHandler) Create(c *gin.Context) {
	companyID, ok := companyIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createApplicantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		BadRequest(c, "Applicant name is required")
		return
	}
	if req.ApplyPlatform != nil && !recruit.ApplyPlatform(*req.ApplyPlatform).Valid() {
		BadRequest(c, "Invalid apply platform")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)
	db := h.db.WithContext(ctx)

	if _, err := database.FindPosting(db, companyID, req.PostingID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, postingNotFound)
			return
		}
		logger.Error("load posting failed", slog.Any("error", err))
		Internal(c, "Failed to create applicant")
		return
	}

	applicant := database.Applicant{
		PostingID:            req.PostingID,
		Name:                 name,
		ApplyPlatform:        req.ApplyPlatform,
		Memo:                 req.Memo,
		Stage:                string(recruit.StageApplied),
		Strengths:            datatypes.JSONSlice[string]{},
		Risks:                datatypes.JSONSlice[string]{},
		RecommendedQuestions: datatypes.JSONSlice[string]{},
	}
	if req.ScoringResult != nil {
		applyScoringResult(&applicant, *req.ScoringResult)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&applicant).Error; err != nil {
			return err
		}
		return tx.Create(&database.PipelineLog{
			ApplicantID: applicant.ID,
			ToStage:     applicant.Stage,
		}).Error
	})
	if err != nil {
		logger.Error("create applicant failed", slog.Any("error", err))
		Internal(c, "Failed to create applicant")
		return
	}

	created, err := database.FindApplicant(db, companyID, applicant.ID)
	if err != nil {
		logger.Error("reload applicant failed", slog.Any("error", err))
		Internal(c, "Failed to create applicant")
		return
	}
	Data(c, http.StatusCreated, newApplicantView(created))
}

func applyScoringResult(a *database.Applicant, r ai.ScoringResult) {
	r.Normalize()
	total, skill, culture, career := r.TotalScore, r.SkillScore, r.CultureScore, r.CareerScore
	a.TotalScore = &total
	a.SkillScore = &skill
	a.CultureScore = &culture
	a.CareerScore = &career
	a.Strengths = datatypes.JSONSlice[string](r.Strengths)
	a.Risks = datatypes.JSONSlice[string](r.Risks)
	a.RecommendedQuestions = datatypes.JSONSlice[string](r.RecommendedQuestions)
	if r.Summary != "" {
		summary := r.Summary
		a.Summary = &summary
	}
	a.ScoringStatus = recruit.ScoringCompleted
}

func (h *ApplicantHandler) Get(c *gin.Context) {
	applicant, ok := h.loadApplicant(c)
	if !ok {
		return
	}
	Data(c, http.StatusOK, newApplicantView(applicant))
}

type updateApplicantRequest struct {
	Stage *string `json:"stage"`
	Memo  *string `json:"memo"`
}

// Update 仅允许修改阶段与备注；阶段变更经由看板服务并写入流转日志。
func (h *ApplicantHandler) Update(c *gin.Context) {
	applicant, ok := h.loadApplicant(c)
	if !ok {
		return
	}
	companyID, _ := companyIDFromContext(c)

	var req updateApplicantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.Stage != nil && !recruit.Stage(*req.Stage).Valid() {
		BadRequest(c, "Invalid stage")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	if req.Stage != nil && *req.Stage != applicant.Stage {
		result, err := h.pipeline.Move(ctx, companyID, applicant.ID, recruit.Stage(*req.Stage), req.Memo)
		if err != nil {
			writePipelineError(c, err)
			return
		}
		Data(c, http.StatusOK, newApplicantView(result.Applicant))
		return
	}

	if req.Memo != nil {
		if err := h.db.WithContext(ctx).Model(&database.Applicant{}).Where("id = ?", applicant.ID).Update("memo", *req.Memo).Error; err != nil {
			logger.Error("update applicant memo failed", slog.Any("error", err))
			Internal(c, "Failed to update applicant")
			return
		}
	}

	updated, err := database.FindApplicant(h.db.WithContext(ctx), companyID, applicant.ID)
	if err != nil {
		logger.Error("reload applicant failed", slog.Any("error", err))
		Internal(c, "Failed to update applicant")
		return
	}
	Data(c, http.StatusOK, newApplicantView(updated))
}

func (h *ApplicantHandler) Delete(c *gin.Context) {
	applicant, ok := h.loadApplicant(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("applicant_id = ?", applicant.ID).Delete(&database.PipelineLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(&applicant).Error
	})
	if err != nil {
		logger.Error("delete applicant failed", slog.Any("error", err))
		Internal(c, "Failed to delete applicant")
		return
	}

	if h.objects != nil && applicant.ResumeObjectKey != "" {
		if err := h.objects.DeletePrefix(ctx, storage.ResumePrefix(applicant.Posting.CompanyID, applicant.ID)); err != nil {
			logger.Warn("delete resume objects failed", slog.Any("error", err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// History 返回阶段流转记录，最早的在前。
func (h *ApplicantHandler) History(c *gin.Context) {
	companyID, ok := companyIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		NotFound(c, applicantNotFound)
		return
	}

	logs, err := h.pipeline.History(c.Request.Context(), companyID, id)
	if err != nil {
		writePipelineError(c, err)
		return
	}
	Data(c, http.StatusOK, newPipelineLogViews(logs))
}

// UploadResume 扫描并保存候选人简历，替换已有文件。
func (h *ApplicantHandler) UploadResume(c *gin.Context) {
	applicant, ok := h.loadApplicant(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.Uint64("applicant_id", uint64(applicant.ID)))

	file, err := c.FormFile("resume")
	if err != nil {
		BadRequest(c, "missing resume file")
		return
	}
	if file.Size > h.opts.MaxResumeBytes {
		Error(c, http.StatusRequestEntityTooLarge, "Resume file is too large")
		return
	}
	contentType := file.Header.Get("Content-Type")
	if !resumetext.Supported(file.Filename, contentType) {
		BadRequest(c, "Unsupported resume format")
		return
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	err = h.scanner.Scan(reader)
	reader.Close()
	if err != nil {
		if errors.Is(err, scan.ErrInfected) {
			BadRequest(c, "malicious file detected")
			return
		}
		logger.Error("scan resume failed", slog.Any("error", err))
		Internal(c, "failed to scan file")
		return
	}

	reader, err = file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer reader.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	companyID := applicant.Posting.CompanyID
	objectKey := storage.ResumeKey(companyID, applicant.ID, uuid.NewString(), file.Filename)
	if _, err := h.objects.UploadFile(ctx, objectKey, reader, file.Size, contentType); err != nil {
		logger.Error("upload resume failed", slog.Any("error", err))
		Internal(c, "failed to upload file")
		return
	}

	previous := applicant.ResumeObjectKey
	if err := h.db.WithContext(ctx).Model(&database.Applicant{}).Where("id = ?", applicant.ID).Updates(map[string]any{
		"resume_object_key": objectKey,
		"scoring_status":    recruit.ScoringNone,
	}).Error; err != nil {
		logger.Error("save resume key failed", slog.Any("error", err))
		_ = h.objects.DeleteObject(ctx, objectKey)
		Internal(c, "failed to upload file")
		return
	}
	if previous != "" && previous != objectKey {
		if err := h.objects.DeleteObject(ctx, previous); err != nil {
			logger.Warn("delete previous resume failed", slog.Any("error", err))
		}
	}

	logger.Info("resume uploaded", slog.String("object_key", objectKey), slog.Int64("size", file.Size))
	applicant.ResumeObjectKey = objectKey
	applicant.ScoringStatus = recruit.ScoringNone
	Data(c, http.StatusCreated, newApplicantView(applicant))
}

// DownloadResume 返回简历的临时下载地址。
func (h *ApplicantHandler) DownloadResume(c *gin.Context) {
	applicant, ok := h.loadApplicant(c)
	if !ok {
		return
	}
	if applicant.ResumeObjectKey == "" || !isValidResumeObjectKey(applicant.Posting.CompanyID, applicant.ID, applicant.ResumeObjectKey) {
		NotFound(c, "Resume not found")
		return
	}

	filename := resumeDownloadName(applicant.Name, applicant.ResumeObjectKey)
	url, err := h.objects.GeneratePresignedURL(c.Request.Context(), applicant.ResumeObjectKey, resumeURLTTL, filename)
	if err != nil {
		middleware.LoggerFromContext(c).Error("generate resume url failed", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}
	Data(c, http.StatusOK, gin.H{
		"url":        url,
		"expires_in": int(resumeURLTTL.Seconds()),
	})
}

// Score 将简历评分放入后台队列，同一候选人同时只排队一次。
func (h *ApplicantHandler) Score(c *gin.Context) {
	applicant, ok := h.loadApplicant(c)
	if !ok {
		return
	}
	if applicant.ResumeObjectKey == "" {
		BadRequest(c, "Resume not uploaded")
		return
	}
	if h.queue == nil {
		Error(c, http.StatusServiceUnavailable, "Scoring queue unavailable")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.Uint64("applicant_id", uint64(applicant.ID)))

	task, err := tasks.NewApplicantScoreTask(tasks.ApplicantScorePayload{
		ApplicantID:   applicant.ID,
		CompanyID:     applicant.Posting.CompanyID,
		CorrelationID: middleware.GetCorrelationID(c),
	}, h.opts.ScoreMaxRetry)
	if err != nil {
		logger.Error("build score task failed", slog.Any("error", err))
		Internal(c, "Failed to queue scoring")
		return
	}

	// 先标记 queued，避免 worker 写入的 completed 被随后的更新覆盖。
	previous := applicant.ScoringStatus
	if err := h.setScoringStatus(ctx, applicant.ID, "", recruit.ScoringQueued); err != nil {
		logger.Error("mark scoring queued failed", slog.Any("error", err))
		Internal(c, "Failed to queue scoring")
		return
	}

	info, err := h.enqueueScore(ctx, task, applicant.ID, logger)
	if err != nil {
		if rerr := h.setScoringStatus(ctx, applicant.ID, recruit.ScoringQueued, previous); rerr != nil {
			logger.Warn("revert scoring status failed", slog.Any("error", rerr))
		}
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			Conflict(c, "Scoring already queued")
			return
		}
		logger.Error("enqueue score task failed", slog.Any("error", err))
		Internal(c, "Failed to queue scoring")
		return
	}

	logger.Info("score task enqueued", slog.String("task_id", info.ID))
	Data(c, http.StatusAccepted, gin.H{
		"task_id":      info.ID,
		"applicant_id": applicant.ID,
		"status":       recruit.ScoringQueued,
	})
}

// enqueueScore 入队评分任务。任务 ID 被已归档或已完成的旧任务占用时，
// 删除旧任务后重新入队；仍在排队或执行中的任务保持冲突。
func (h *ApplicantHandler) enqueueScore(ctx context.Context, task *asynq.Task, applicantID uint, logger *slog.Logger) (*asynq.TaskInfo, error) {
	info, err := h.queue.EnqueueContext(ctx, task)
	if err == nil || h.inspect == nil || !errors.Is(err, asynq.ErrTaskIDConflict) {
		return info, err
	}

	taskID := tasks.ApplicantScoreTaskID(applicantID)
	existing, ierr := h.inspect.GetTaskInfo(tasks.QueueAI, taskID)
	if ierr != nil {
		if errors.Is(ierr, asynq.ErrTaskNotFound) {
			return h.queue.EnqueueContext(ctx, task)
		}
		logger.Warn("inspect score task failed", slog.Any("error", ierr))
		return nil, err
	}
	switch existing.State {
	case asynq.TaskStateArchived, asynq.TaskStateCompleted:
	default:
		return nil, err
	}
	if derr := h.inspect.DeleteTask(tasks.QueueAI, taskID); derr != nil && !errors.Is(derr, asynq.ErrTaskNotFound) {
		return nil, fmt.Errorf("delete stale score task: %w", derr)
	}
	logger.Info("replaced stale score task", slog.String("state", existing.State.String()))
	return h.queue.EnqueueContext(ctx, task)
}

// setScoringStatus 仅当当前状态为 from 时写入 to；from 为空表示不限制。
func (h *ApplicantHandler) setScoringStatus(ctx context.Context, applicantID uint, from, to string) error {
	query := h.db.WithContext(ctx).Model(&database.Applicant{}).Where("id = ?", applicantID)
	if from != "" {
		query = query.Where("scoring_status = ?", from)
	}
	return query.Update("scoring_status", to).Error
}

func (h *ApplicantHandler) loadApplicant(c *gin.Context) (database.Applicant, bool) {
	companyID, ok := companyIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return database.Applicant{}, false
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		NotFound(c, applicantNotFound)
		return database.Applicant{}, false
	}

	applicant, err := database.FindApplicant(h.db.WithContext(c.Request.Context()), companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, applicantNotFound)
			return database.Applicant{}, false
		}
		middleware.LoggerFromContext(c).Error("load applicant failed", slog.Any("error", err))
		Internal(c, "Failed to load applicant")
		return database.Applicant{}, false
	}
	return applicant, true
}

func resumeDownloadName(name, objectKey string) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '/', '\r', '\n':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if base == "" {
		base = "resume"
	}
	return base + filepath.Ext(objectKey)
}
