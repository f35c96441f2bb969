package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"recruify/internal/api/middleware"
	"recruify/internal/database"
	"recruify/internal/recruit"
	"recruify/internal/storage"
)

const postingNotFound = "Posting not found"

// prefixRemover deletes every object under a prefix.
type prefixRemover interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// PostingHandler 处理职位的增删改查。
type PostingHandler struct {
	db      *gorm.DB
	objects prefixRemover
}

func NewPostingHandler(db *gorm.DB, objects prefixRemover) *PostingHandler {
	return &PostingHandler{db: db, objects: objects}
}

// postingRequest 同时用于创建与更新；更新时只修改出现的字段。
// 可空列用 optional，显式 null 会清空该列。
type postingRequest struct {
	Title           *string          `json:"title"`
	Description     optional[string] `json:"description"`
	Requirements    optional[string] `json:"requirements"`
	TechStack       *[]string        `json:"tech_stack"`
	SalaryMin       optional[int64]  `json:"salary_min"`
	SalaryMax       optional[int64]  `json:"salary_max"`
	Location        optional[string] `json:"location"`
	EmploymentType  *string          `json:"employment_type"`
	Status          *string          `json:"status"`
	PlatformPostIDs *map[string]any  `json:"platform_post_ids"`
}

func (r postingRequest) validate() string {
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return "Job title is required"
	}
	if r.EmploymentType != nil && !recruit.EmploymentType(*r.EmploymentType).Valid() {
		return "Invalid employment type"
	}
	if r.Status != nil && !recruit.PostingStatus(*r.Status).Valid() {
		return "Invalid status"
	}
	if (r.SalaryMin.Value != nil && *r.SalaryMin.Value < 0) || (r.SalaryMax.Value != nil && *r.SalaryMax.Value < 0) {
		return "Salary must not be negative"
	}
	return ""
}

// List 按创建时间倒序列出本公司职位，可按状态过滤。
func (h *PostingHandler) List(c *gin.Context) {
	companyID, ok := companyIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	query := h.db.WithContext(c.Request.Context()).Where("company_id = ?", companyID)
	if status := c.Query("status"); status != "" {
		if !recruit.PostingStatus(status).Valid() {
			BadRequest(c, "Invalid status")
			return
		}
		query = query.Where("status = ?", status)
	}

	var postings []database.Posting
	if err := query.Order("created_at DESC").Order("id DESC").Find(&postings).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list postings failed", slog.Any("error", err))
		Internal(c, "Failed to list postings")
		return
	}

	views := make([]postingView, 0, len(postings))
	for _, p := range postings {
		views = append(views, newPostingView(p))
	}
	Data(c, http.StatusOK, views)
}

// Create 新建职位，未提供的状态与雇佣类型取默认值。
func (h *PostingHandler) Create(c *gin.Context) {
	companyID, ok := companyIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req postingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		BadRequest(c, "Job title is required")
		return
	}
	if msg := req.validate(); msg != "" {
		BadRequest(c, msg)
		return
	}
	if salaryRangeInvalid(req.SalaryMin.Value, req.SalaryMax.Value) {
		BadRequest(c, "salary_min must not exceed salary_max")
		return
	}

	posting := database.Posting{
		CompanyID:      companyID,
		Title:          strings.TrimSpace(*req.Title),
		Description:    req.Description.Value,
		Requirements:   req.Requirements.Value,
		SalaryMin:      req.SalaryMin.Value,
		SalaryMax:      req.SalaryMax.Value,
		Location:       req.Location.Value,
		EmploymentType: string(recruit.EmploymentFullTime),
		Status:         string(recruit.PostingDraft),
		TechStack:      datatypes.JSONSlice[string]{},
	}
	if req.TechStack != nil {
		posting.TechStack = datatypes.JSONSlice[string](*req.TechStack)
	}
	if req.EmploymentType != nil {
		posting.EmploymentType = *req.EmploymentType
	}
	if req.Status != nil {
		posting.Status = *req.Status
	}
	if req.PlatformPostIDs != nil {
		posting.PlatformPostIDs = datatypes.JSONMap(*req.PlatformPostIDs)
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&posting).Error; err != nil {
		middleware.LoggerFromContext(c).Error("create posting failed", slog.Any("error", err))
		Internal(c, "Failed to create posting")
		return
	}
	Data(c, http.StatusCreated, newPostingView(posting))
}

func (h *PostingHandler) Get(c *gin.Context) {
	posting, ok := h.loadPosting(c)
	if !ok {
		return
	}
	Data(c, http.StatusOK, newPostingView(posting))
}

// Update 只修改请求中出现的字段。
func (h *PostingHandler) Update(c *gin.Context) {
	posting, ok := h.loadPosting(c)
	if !ok {
		return
	}

	var req postingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		BadRequest(c, msg)
		return
	}

	if salaryRangeInvalid(req.SalaryMin.merge(posting.SalaryMin), req.SalaryMax.merge(posting.SalaryMax)) {
		BadRequest(c, "salary_min must not exceed salary_max")
		return
	}

	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	nullable := map[string]optional[string]{
		"description":  req.Description,
		"requirements": req.Requirements,
		"location":     req.Location,
	}
	for column, field := range nullable {
		if field.Set {
			updates[column] = field.column()
		}
	}
	if req.TechStack != nil {
		updates["tech_stack"] = datatypes.JSONSlice[string](*req.TechStack)
	}
	if req.SalaryMin.Set {
		updates["salary_min"] = req.SalaryMin.column()
	}
	if req.SalaryMax.Set {
		updates["salary_max"] = req.SalaryMax.column()
	}
	if req.EmploymentType != nil {
		updates["employment_type"] = *req.EmploymentType
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.PlatformPostIDs != nil {
		updates["platform_post_ids"] = datatypes.JSONMap(*req.PlatformPostIDs)
	}

	db := h.db.WithContext(c.Request.Context())
	if len(updates) > 0 {
		if err := db.Model(&posting).Updates(updates).Error; err != nil {
			middleware.LoggerFromContext(c).Error("update posting failed", slog.Any("error", err))
			Internal(c, "Failed to update posting")
			return
		}
	}

	var updated database.Posting
	if err := db.First(&updated, posting.ID).Error; err != nil {
		middleware.LoggerFromContext(c).Error("reload posting failed", slog.Any("error", err))
		Internal(c, "Failed to update posting")
		return
	}
	Data(c, http.StatusOK, newPostingView(updated))
}

func salaryRangeInvalid(minimum, maximum *int64) bool {
	return minimum != nil && maximum != nil && *minimum > *maximum
}

// Delete 删除职位及其候选人，简历文件尽力清理。
func (h *PostingHandler) Delete(c *gin.Context) {
	posting, ok := h.loadPosting(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	var applicantIDs []uint
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.Applicant{}).
			Where("posting_id = ?", posting.ID).
			Pluck("id", &applicantIDs).Error; err != nil {
			return err
		}
		if len(applicantIDs) > 0 {
			if err := tx.Where("applicant_id IN ?", applicantIDs).Delete(&database.PipelineLog{}).Error; err != nil {
				return err
			}
			if err := tx.Where("posting_id = ?", posting.ID).Delete(&database.Applicant{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&posting).Error
	})
	if err != nil {
		logger.Error("delete posting failed", slog.Any("error", err))
		Internal(c, "Failed to delete posting")
		return
	}

	if h.objects != nil {
		for _, id := range applicantIDs {
			if err := h.objects.DeletePrefix(ctx, storage.ResumePrefix(posting.CompanyID, id)); err != nil {
				logger.Warn("delete resume objects failed", slog.Uint64("applicant_id", uint64(id)), slog.Any("error", err))
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *PostingHandler) loadPosting(c *gin.Context) (database.Posting, bool) {
	companyID, ok := companyIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return database.Posting{}, false
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		NotFound(c, postingNotFound)
		return database.Posting{}, false
	}

	posting, err := database.FindPosting(h.db.WithContext(c.Request.Context()), companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, postingNotFound)
			return database.Posting{}, false
		}
		middleware.LoggerFromContext(c).Error("load posting failed", slog.Any("error", err))
		Internal(c, "Failed to load posting")
		return database.Posting{}, false
	}
	return posting, true
}
