package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"recruify/internal/api/middleware"
	"recruify/internal/database"
	"recruify/internal/recruit"
)

const dashboardTopApplicants = 4

type DashboardHandler struct {
	db *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

type stageCount struct {
	Stage recruit.Stage `json:"stage"`
	Title string        `json:"title"`
	Count int64         `json:"count"`
}

type dashboardSummary struct {
	ActivePostings  int64           `json:"active_postings"`
	TotalPostings   int64           `json:"total_postings"`
	TotalApplicants int64           `json:"total_applicants"`
	Stages          []stageCount    `json:"stages"`
	TopApplicants   []applicantView `json:"top_applicants"`
}

// Summary 汇总职位与候选人数据，供首页展示。
func (h *DashboardHandler) Summary(c *gin.Context) {
	companyID, ok := companyIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	db := h.db.WithContext(c.Request.Context())
	logger := middleware.LoggerFromContext(c)

	var summary dashboardSummary
	if err := db.Model(&database.Posting{}).Where("company_id = ?", companyID).Count(&summary.TotalPostings).Error; err != nil {
		logger.Error("count postings failed", slog.Any("error", err))
		Internal(c, "Failed to load dashboard")
		return
	}
	if err := db.Model(&database.Posting{}).
		Where("company_id = ? AND status = ?", companyID, recruit.PostingActive).
		Count(&summary.ActivePostings).Error; err != nil {
		logger.Error("count active postings failed", slog.Any("error", err))
		Internal(c, "Failed to load dashboard")
		return
	}

	var rows []struct {
		Stage string
		Total int64
	}
	if err := database.CompanyApplicants(db, companyID).
		Select("applicants.stage AS stage, COUNT(*) AS total").
		Group("applicants.stage").
		Scan(&rows).Error; err != nil {
		logger.Error("count applicants by stage failed", slog.Any("error", err))
		Internal(c, "Failed to load dashboard")
		return
	}
	byStage := make(map[recruit.Stage]int64, len(rows))
	for _, r := range rows {
		stage := recruit.Stage(r.Stage)
		if !stage.Valid() {
			stage = recruit.StageApplied
		}
		byStage[stage] += r.Total
		summary.TotalApplicants += r.Total
	}
	summary.Stages = make([]stageCount, 0, len(recruit.Stages))
	for _, s := range recruit.Stages {
		summary.Stages = append(summary.Stages, stageCount{Stage: s.Stage, Title: s.Title, Count: byStage[s.Stage]})
	}

	var top []database.Applicant
	if err := database.CompanyApplicants(db, companyID).
		Preload("Posting").
		Where("applicants.total_score IS NOT NULL").
		Order("applicants.total_score DESC").
		Order("applicants.id ASC").
		Limit(dashboardTopApplicants).
		Find(&top).Error; err != nil {
		logger.Error("load top applicants failed", slog.Any("error", err))
		Internal(c, "Failed to load dashboard")
		return
	}
	summary.TopApplicants = newApplicantViews(top)

	Data(c, http.StatusOK, summary)
}
