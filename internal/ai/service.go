package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

var (
	ErrTitleRequired          = errors.New("ai: job title is required")
	ErrJobDescriptionRequired = errors.New("ai: job description is required")
	ErrResumeRequired         = errors.New("ai: resume content is required")
)

const (
	jdTemperature      = 0.7
	scoringTemperature = 0.3
)

// JDInput 描述生成职位描述所需的信息，仅 Title 必填。
type JDInput struct {
	Title          string   `json:"title"`
	Experience     string   `json:"experience,omitempty"`
	TechStack      []string `json:"techStack,omitempty"`
	Location       string   `json:"location,omitempty"`
	EmploymentType string   `json:"employmentType,omitempty"`
	AdditionalInfo string   `json:"additionalInfo,omitempty"`
}

type GeneratedJD struct {
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
}

type ScoreInput struct {
	JobDescription string
	Requirements   string
	ResumeText     string
}

// ScoringResult mirrors the JSON object the model is asked to produce.
type ScoringResult struct {
	TotalScore           int      `json:"total_score"`
	SkillScore           int      `json:"skill_score"`
	CultureScore         int      `json:"culture_score"`
	CareerScore          int      `json:"career_score"`
	Strengths            []string `json:"strengths"`
	Risks                []string `json:"risks"`
	RecommendedQuestions []string `json:"recommended_questions"`
	Summary              string   `json:"summary"`
}

// Normalize clamps scores into 0..100 and replaces nil lists.
func (r *ScoringResult) Normalize() {
	r.TotalScore = clampScore(r.TotalScore)
	r.SkillScore = clampScore(r.SkillScore)
	r.CultureScore = clampScore(r.CultureScore)
	r.CareerScore = clampScore(r.CareerScore)
	if r.Strengths == nil {
		r.Strengths = []string{}
	}
	if r.Risks == nil {
		r.Risks = []string{}
	}
	if r.RecommendedQuestions == nil {
		r.RecommendedQuestions = []string{}
	}
}

func clampScore(v int) int {
	return min(max(v, 0), 100)
}

// Service 在 Completer 为空时走模拟分支。
type Service struct {
	completer Completer

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Service)

// WithRand fixes the source used for mock scores.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rng = r }
}

func NewService(completer Completer, opts ...Option) *Service {
	s := &Service{completer: completer}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Mock reports whether responses are canned.
func (s *Service) Mock() bool {
	return s.completer == nil
}

func (s *Service) GenerateJD(ctx context.Context, in JDInput) (GeneratedJD, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return GeneratedJD{}, ErrTitleRequired
	}
	if s.completer == nil {
		return mockJD(in), nil
	}

	content, err := s.completer.Complete(ctx, ChatRequest{
		System:      jdSystemPrompt,
		User:        jdUserPrompt(in),
		Temperature: jdTemperature,
		JSON:        true,
	})
	if err != nil {
		return GeneratedJD{}, err
	}

	var out GeneratedJD
	if err := json.Unmarshal([]byte(cleanJSON(content)), &out); err != nil {
		return GeneratedJD{}, fmt.Errorf("decode job description: %w", err)
	}
	return out, nil
}

func (s *Service) ScoreResume(ctx context.Context, in ScoreInput) (ScoringResult, error) {
	if strings.TrimSpace(in.JobDescription) == "" {
		return ScoringResult{}, ErrJobDescriptionRequired
	}
	if strings.TrimSpace(in.ResumeText) == "" {
		return ScoringResult{}, ErrResumeRequired
	}
	if s.completer == nil {
		return s.mockScore(), nil
	}

	content, err := s.completer.Complete(ctx, ChatRequest{
		System:      scoringSystemPrompt,
		User:        scoringUserPrompt(in),
		Temperature: scoringTemperature,
		JSON:        true,
	})
	if err != nil {
		return ScoringResult{}, err
	}

	var out ScoringResult
	if err := json.Unmarshal([]byte(cleanJSON(content)), &out); err != nil {
		return ScoringResult{}, fmt.Errorf("decode scoring result: %w", err)
	}
	out.Normalize()
	return out, nil
}

// intn is a half-open draw guarded for concurrent handlers.
func (s *Service) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}
