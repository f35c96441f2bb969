package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"recruify/internal/api/middleware"
	"recruify/internal/pipeline"
	"recruify/internal/recruit"
)

// PipelineHandler 暴露招聘看板。
type PipelineHandler struct {
	service *pipeline.Service
}

func NewPipelineHandler(service *pipeline.Service) *PipelineHandler {
	return &PipelineHandler{service: service}
}

// Board 返回按阶段顺序排列的看板列。
func (h *PipelineHandler) Board(c *gin.Context) {
	companyID, ok := companyIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	filter, msg := pipelineFilterFromQuery(c)
	if msg != "" {
		BadRequest(c, msg)
		return
	}

	board, err := h.service.Board(c.Request.Context(), companyID, filter)
	if err != nil {
		middleware.LoggerFromContext(c).Error("load pipeline board failed", slog.Any("error", err))
		Internal(c, "Failed to load pipeline")
		return
	}
	Data(c, http.StatusOK, gin.H{
		"columns": board.Columns(),
		"total":   board.Len(),
	})
}

func pipelineFilterFromQuery(c *gin.Context) (pipeline.Filter, string) {
	var filter pipeline.Filter

	postingID, err := parseOptionalID(c.Query("posting_id"))
	if err != nil {
		return filter, "Invalid posting_id"
	}
	filter.PostingID = postingID

	if platform := c.Query("platform"); platform != "" {
		if !recruit.ApplyPlatform(platform).Valid() {
			return filter, "Invalid platform"
		}
		filter.Platform = platform
	}

	if raw := c.Query("min_score"); raw != "" {
		score, err := strconv.Atoi(raw)
		if err != nil || score < 0 || score > 100 {
			return filter, "Invalid min_score"
		}
		filter.MinScore = &score
	}

	filter.Query = strings.TrimSpace(c.Query("q"))
	return filter, ""
}

type moveRequest struct {
	ApplicantID uint    `json:"applicant_id" binding:"required"`
	ToStage     string  `json:"to_stage" binding:"required"`
	Memo        *string `json:"memo"`
}

// Move 将候选人移到目标阶段。
func (h *PipelineHandler) Move(c *gin.Context) {
	companyID, ok := companyIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Move(c.Request.Context(), companyID, req.ApplicantID, recruit.Stage(req.ToStage), req.Memo)
	if err != nil {
		writePipelineError(c, err)
		return
	}
	Data(c, http.StatusOK, gin.H{
		"applicant":  newApplicantView(result.Applicant),
		"from_stage": result.From,
		"to_stage":   result.To,
		"moved":      result.Moved,
	})
}

// writePipelineError maps pipeline errors onto HTTP responses.
func writePipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pipeline.ErrUnknownStage):
		BadRequest(c, "Invalid stage")
	case errors.Is(err, pipeline.ErrApplicantScope), errors.Is(err, pipeline.ErrCardNotFound):
		NotFound(c, applicantNotFound)
	case errors.Is(err, pipeline.ErrStageConflict):
		Conflict(c, "Applicant stage was changed by another request")
	default:
		middleware.LoggerFromContext(c).Error("pipeline operation failed", slog.Any("error", err))
		Internal(c, "Failed to update pipeline")
	}
}
