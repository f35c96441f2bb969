// Package recruit 定义招聘领域的枚举值，供持久层、HTTP 层与 AI 层共享。
package recruit

// Stage 是候选人在招聘流程中的阶段。
type Stage string

const (
	StageApplied    Stage = "applied"
	StageScreening  Stage = "screening"
	StageInterview1 Stage = "interview1"
	StageInterview2 Stage = "interview2"
	StageFinal      Stage = "final"
	StageHired      Stage = "hired"
	StageRejected   Stage = "rejected"
)

// StageInfo pairs a stage with its column title.
type StageInfo struct {
	Stage Stage
	Title string
}

// Stages 按看板列顺序排列。
var Stages = []StageInfo{
	{StageApplied, "Applied"},
	{StageScreening, "Screening"},
	{StageInterview1, "Interview 1"},
	{StageInterview2, "Interview 2"},
	{StageFinal, "Final"},
	{StageHired, "Hired"},
	{StageRejected, "Rejected"},
}

func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Index returns the column position of s, or -1.
func (s Stage) Index() int {
	for i, info := range Stages {
		if info.Stage == s {
			return i
		}
	}
	return -1
}

// Title returns the display title, or the raw value for unknown stages.
func (s Stage) Title() string {
	if i := s.Index(); i >= 0 {
		return Stages[i].Title
	}
	return string(s)
}

type PostingStatus string

const (
	PostingDraft  PostingStatus = "draft"
	PostingActive PostingStatus = "active"
	PostingClosed PostingStatus = "closed"
)

func (s PostingStatus) Valid() bool {
	switch s {
	case PostingDraft, PostingActive, PostingClosed:
		return true
	}
	return false
}

type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "full-time"
	EmploymentPartTime   EmploymentType = "part-time"
	EmploymentContract   EmploymentType = "contract"
	EmploymentInternship EmploymentType = "internship"
)

func (t EmploymentType) Valid() bool {
	switch t {
	case EmploymentFullTime, EmploymentPartTime, EmploymentContract, EmploymentInternship:
		return true
	}
	return false
}

// ApplyPlatform 是候选人投递来源的招聘平台。
type ApplyPlatform string

const (
	PlatformJobKorea ApplyPlatform = "jobkorea"
	PlatformSaramin  ApplyPlatform = "saramin"
	PlatformWanted   ApplyPlatform = "wanted"
	PlatformJumpit   ApplyPlatform = "jumpit"
	PlatformDirect   ApplyPlatform = "direct"
)

func (p ApplyPlatform) Valid() bool {
	switch p {
	case PlatformJobKorea, PlatformSaramin, PlatformWanted, PlatformJumpit, PlatformDirect:
		return true
	}
	return false
}

type CompanySize string

const (
	SizeStartup    CompanySize = "startup"
	SizeSmall      CompanySize = "small"
	SizeMedium     CompanySize = "medium"
	SizeLarge      CompanySize = "large"
	SizeEnterprise CompanySize = "enterprise"
)

func (s CompanySize) Valid() bool {
	switch s {
	case SizeStartup, SizeSmall, SizeMedium, SizeLarge, SizeEnterprise:
		return true
	}
	return false
}

// Scoring status values stored on applicants.
const (
	ScoringNone      = ""
	ScoringQueued    = "queued"
	ScoringCompleted = "completed"
	ScoringFailed    = "failed"
)
