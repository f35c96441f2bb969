package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示可登录的招聘方账号。
type User struct {
	gorm.Model
	Email              string   `gorm:"uniqueIndex;size:255"`
	PasswordHash       string   `gorm:"size:255"`
	MustChangePassword bool     `gorm:"default:false"`
	Company            *Company `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}

// Company 归属于唯一的 owner，所有招聘数据都按公司隔离。
type Company struct {
	gorm.Model
	Name     string    `gorm:"size:255"`
	Industry *string   `gorm:"size:128"`
	Size     *string   `gorm:"size:32"`
	OwnerID  uint      `gorm:"uniqueIndex"`
	Postings []Posting `gorm:"constraint:OnDelete:CASCADE"`
}

// Posting 表示一条招聘职位。
type Posting struct {
	gorm.Model
	CompanyID       uint                        `gorm:"index"`
	Title           string                      `gorm:"size:255"`
	Description     *string                     `gorm:"type:text"`
	Requirements    *string                     `gorm:"type:text"`
	TechStack       datatypes.JSONSlice[string] `gorm:"type:json"`
	SalaryMin       *int64                      `gorm:"column:salary_min"`
	SalaryMax       *int64                      `gorm:"column:salary_max"`
	Location        *string                     `gorm:"size:255"`
	EmploymentType  string                      `gorm:"size:32;default:'full-time'"`
	Status          string                      `gorm:"size:32;default:'draft';index"`
	PlatformPostIDs datatypes.JSONMap           `gorm:"type:json"`
	Applicants      []Applicant                 `gorm:"constraint:OnDelete:CASCADE"`
}

// Applicant 表示投递到某个职位的候选人及其 AI 评分结果。
type Applicant struct {
	gorm.Model
	PostingID            uint                        `gorm:"index"`
	Posting              Posting                     `gorm:"constraint:OnDelete:CASCADE"`
	Name                 string                      `gorm:"size:255"`
	ApplyPlatform        *string                     `gorm:"size:32"`
	TotalScore           *int                        `gorm:"index"`
	SkillScore           *int                        `gorm:"column:skill_score"`
	CultureScore         *int                        `gorm:"column:culture_score"`
	CareerScore          *int                        `gorm:"column:career_score"`
	Strengths            datatypes.JSONSlice[string] `gorm:"type:json"`
	Risks                datatypes.JSONSlice[string] `gorm:"type:json"`
	RecommendedQuestions datatypes.JSONSlice[string] `gorm:"type:json"`
	Summary              *string                     `gorm:"type:text"`
	Stage                string                      `gorm:"size:32;default:'applied';index"`
	StageChangedAt       time.Time                   `gorm:"index;default:CURRENT_TIMESTAMP"`
	Memo                 *string                     `gorm:"type:text"`
	ResumeObjectKey      string                      `gorm:"size:512"`
	ScoringStatus        string                      `gorm:"size:32"`
	PipelineLogs         []PipelineLog               `gorm:"constraint:OnDelete:CASCADE"`
}

// BeforeCreate 记录进入初始阶段的时间，看板列内按它排序。
func (a *Applicant) BeforeCreate(*gorm.DB) error {
	if a.StageChangedAt.IsZero() {
		a.StageChangedAt = time.Now()
	}
	return nil
}

// PipelineLog 记录一次阶段变更，只追加不修改。
type PipelineLog struct {
	ID          uint    `gorm:"primaryKey"`
	ApplicantID uint    `gorm:"index"`
	FromStage   *string `gorm:"size:32"`
	ToStage     string  `gorm:"size:32"`
	Memo        *string `gorm:"type:text"`
	CreatedAt   time.Time
}
