package api

import (
	"time"

	"recruify/internal/database"
)

// postingView 是职位的对外 JSON 表示。
type postingView struct {
	ID              uint           `json:"id"`
	CompanyID       uint           `json:"company_id"`
	Title           string         `json:"title"`
	Description     *string        `json:"description"`
	Requirements    *string        `json:"requirements"`
	TechStack       []string       `json:"tech_stack"`
	SalaryMin       *int64         `json:"salary_min"`
	SalaryMax       *int64         `json:"salary_max"`
	Location        *string        `json:"location"`
	EmploymentType  string         `json:"employment_type"`
	Status          string         `json:"status"`
	PlatformPostIDs map[string]any `json:"platform_post_ids"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func newPostingView(p database.Posting) postingView {
	techStack := []string(p.TechStack)
	if techStack == nil {
		techStack = []string{}
	}
	platformIDs := map[string]any(p.PlatformPostIDs)
	if platformIDs == nil {
		platformIDs = map[string]any{}
	}
	return postingView{
		ID:              p.ID,
		CompanyID:       p.CompanyID,
		Title:           p.Title,
		Description:     p.Description,
		Requirements:    p.Requirements,
		TechStack:       techStack,
		SalaryMin:       p.SalaryMin,
		SalaryMax:       p.SalaryMax,
		Location:        p.Location,
		EmploymentType:  p.EmploymentType,
		Status:          p.Status,
		PlatformPostIDs: platformIDs,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

type applicantView struct {
	ID                   uint      `json:"id"`
	PostingID            uint      `json:"posting_id"`
	PostingTitle         string    `json:"posting_title,omitempty"`
	Name                 string    `json:"name"`
	ApplyPlatform        *string   `json:"apply_platform"`
	TotalScore           *int      `json:"total_score"`
	SkillScore           *int      `json:"skill_score"`
	CultureScore         *int      `json:"culture_score"`
	CareerScore          *int      `json:"career_score"`
	Strengths            []string  `json:"strengths"`
	Risks                []string  `json:"risks"`
	RecommendedQuestions []string  `json:"recommended_questions"`
	Summary              *string   `json:"summary"`
	Stage                string    `json:"stage"`
	StageChangedAt       time.Time `json:"stage_changed_at"`
	Memo                 *string   `json:"memo"`
	HasResume            bool      `json:"has_resume"`
	ScoringStatus        string    `json:"scoring_status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func newApplicantView(a database.Applicant) applicantView {
	return applicantView{
		ID:                   a.ID,
		PostingID:            a.PostingID,
		PostingTitle:         a.Posting.Title,
		Name:                 a.Name,
		ApplyPlatform:        a.ApplyPlatform,
		TotalScore:           a.TotalScore,
		SkillScore:           a.SkillScore,
		CultureScore:         a.CultureScore,
		CareerScore:          a.CareerScore,
		Strengths:            nonNil(a.Strengths),
		Risks:                nonNil(a.Risks),
		RecommendedQuestions: nonNil(a.RecommendedQuestions),
		Summary:              a.Summary,
		Stage:                a.Stage,
		StageChangedAt:       a.StageChangedAt,
		Memo:                 a.Memo,
		HasResume:            a.ResumeObjectKey != "",
		ScoringStatus:        a.ScoringStatus,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func newApplicantViews(applicants []database.Applicant) []applicantView {
	views := make([]applicantView, 0, len(applicants))
	for _, a := range applicants {
		views = append(views, newApplicantView(a))
	}
	return views
}

type pipelineLogView struct {
	ID          uint      `json:"id"`
	ApplicantID uint      `json:"applicant_id"`
	FromStage   *string   `json:"from_stage"`
	ToStage     string    `json:"to_stage"`
	Memo        *string   `json:"memo"`
	CreatedAt   time.Time `json:"created_at"`
}

func newPipelineLogViews(logs []database.PipelineLog) []pipelineLogView {
	views := make([]pipelineLogView, 0, len(logs))
	for _, l := range logs {
		views = append(views, pipelineLogView{
			ID:          l.ID,
			ApplicantID: l.ApplicantID,
			FromStage:   l.FromStage,
			ToStage:     l.ToStage,
			Memo:        l.Memo,
			CreatedAt:   l.CreatedAt,
		})
	}
	return views
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
