// Package demo 创建固定的演示账号与示例数据，供免注册体验使用。
package demo

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"recruify/internal/auth"
	"recruify/internal/database"
	"recruify/internal/recruit"
)

const (
	CompanyName = "Recruify Demo Company"
	UserEmail   = "demo@recruify.local"
)

// EnsureCompany 返回演示账号及其公司，不存在时创建。
// 演示账号的密码是随机生成后丢弃的，只能通过演示登录获取令牌。
func EnsureCompany(ctx context.Context, db *gorm.DB) (database.User, database.Company, error) {
	var (
		user    database.User
		company database.Company
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", UserEmail).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			password, err := auth.RandomPassword(32)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			user = database.User{Email: UserEmail, PasswordHash: hash}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("create demo user: %w", err)
			}
		case err != nil:
			return fmt.Errorf("load demo user: %w", err)
		}

		size := string(recruit.SizeStartup)
		company = database.Company{Name: CompanyName, Size: &size, OwnerID: user.ID}
		if err := tx.Where(database.Company{OwnerID: user.ID}).FirstOrCreate(&company).Error; err != nil {
			return fmt.Errorf("ensure demo company: %w", err)
		}
		return nil
	})
	return user, company, err
}

var (
	names = []string{
		"Kim Minjun", "Lee Soyeon", "Park Jihoon", "Choi Yuna", "Jung Seojin",
		"Han Seungwoo", "Yoon Jihyun", "Kang Dohyun", "Lim Subin", "Oh Taemin",
	}

	platforms = []recruit.ApplyPlatform{
		recruit.PlatformJobKorea, recruit.PlatformSaramin, recruit.PlatformWanted,
		recruit.PlatformJumpit, recruit.PlatformDirect,
	}

	strengthsPool = []string{
		"Extensive experience with the relevant tech stack",
		"Has led large-scale projects",
		"Excellent problem-solving skills",
		"Strong communication skills",
		"Learns new tools quickly",
		"Experienced with agile methodologies",
		"High standards for code quality",
		"Plenty of cross-team collaboration",
	}

	risksPool = []string{
		"Limited experience with some required technologies",
		"No experience in a large-company environment",
		"Limited leadership experience",
		"English communication needs to be verified",
		"Relatively short tenure at previous jobs",
		"Little remote work experience",
	}

	questionsPool = []string{
		"Describe the most challenging project you have worked on.",
		"Have you resolved a conflict within your team?",
		"How do you approach learning a new technology?",
		"What was your biggest technical growth experience?",
		"What matters most to you when collaborating?",
		"Share a failure and what you learned from it.",
		"Where do you see your career in five years?",
	}
)

type postingSeed struct {
	title      string
	status     recruit.PostingStatus
	employment recruit.EmploymentType
	location   string
	stack      []string
	salaryMin  int64
	salaryMax  int64
}

var postingSeeds = []postingSeed{
	{"Senior Backend Engineer", recruit.PostingActive, recruit.EmploymentFullTime, "Seoul", []string{"Go", "PostgreSQL", "Kubernetes"}, 70_000_000, 100_000_000},
	{"Frontend Engineer", recruit.PostingActive, recruit.EmploymentFullTime, "Seoul", []string{"TypeScript", "React", "Next.js"}, 55_000_000, 80_000_000},
	{"Product Designer", recruit.PostingDraft, recruit.EmploymentContract, "Remote", []string{"Figma"}, 45_000_000, 65_000_000},
	{"Data Engineering Intern", recruit.PostingClosed, recruit.EmploymentInternship, "Pangyo", []string{"Python", "Airflow", "SQL"}, 0, 0},
}

// SeedResult summarizes what Seed created.
type SeedResult struct {
	Skipped    bool
	Postings   int
	Applicants int
}

// Seed 为公司创建示例职位，每个职位 2~4 名候选人。公司已有职位时跳过。
func Seed(ctx context.Context, db *gorm.DB, companyID uint, rng *rand.Rand) (SeedResult, error) {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	var result SeedResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&database.Posting{}).Where("company_id = ?", companyID).Count(&existing).Error; err != nil {
			return fmt.Errorf("count postings: %w", err)
		}
		if existing > 0 {
			result.Skipped = true
			return nil
		}

		nameIdx := 0
		for _, seed := range postingSeeds {
			posting := newPosting(companyID, seed)
			if err := tx.Create(&posting).Error; err != nil {
				return fmt.Errorf("create demo posting: %w", err)
			}
			result.Postings++

			count := 2 + rng.IntN(3)
			for range count {
				applicant := newApplicant(rng, posting, names[nameIdx%len(names)])
				nameIdx++
				if err := tx.Create(&applicant).Error; err != nil {
					return fmt.Errorf("create demo applicant: %w", err)
				}
				result.Applicants++
			}
		}
		return nil
	})
	return result, err
}

func newPosting(companyID uint, seed postingSeed) database.Posting {
	description := fmt.Sprintf("We are looking for a talented %s to join our team.", seed.title)
	location := seed.location
	posting := database.Posting{
		CompanyID:       companyID,
		Title:           seed.title,
		Description:     &description,
		TechStack:       datatypes.JSONSlice[string](seed.stack),
		Location:        &location,
		EmploymentType:  string(seed.employment),
		Status:          string(seed.status),
		PlatformPostIDs: datatypes.JSONMap{},
	}
	if seed.salaryMax > 0 {
		posting.SalaryMin = &seed.salaryMin
		posting.SalaryMax = &seed.salaryMax
	}
	return posting
}

func newApplicant(rng *rand.Rand, posting database.Posting, name string) database.Applicant {
	skill := 70 + rng.IntN(25)
	culture := 70 + rng.IntN(25)
	career := 70 + rng.IntN(25)
	total := int(float64(skill+culture+career)/3 + 0.5)

	platform := string(platforms[rng.IntN(len(platforms))])
	stage := string(recruit.Stages[rng.IntN(len(recruit.Stages))].Stage)
	summary := fmt.Sprintf("%s has the technical skills for the %s position and received a positive overall assessment. "+
		"Verifying hands-on ability in an interview is recommended.", name, posting.Title)

	return database.Applicant{
		PostingID:            posting.ID,
		Name:                 name,
		ApplyPlatform:        &platform,
		TotalScore:           &total,
		SkillScore:           &skill,
		CultureScore:         &culture,
		CareerScore:          &career,
		Strengths:            pick(rng, strengthsPool, 3),
		Risks:                pick(rng, risksPool, 2),
		RecommendedQuestions: pick(rng, questionsPool, 3),
		Summary:              &summary,
		Stage:                stage,
		ScoringStatus:        recruit.ScoringCompleted,
	}
}

// pick returns n distinct items of pool in random order.
func pick(rng *rand.Rand, pool []string, n int) datatypes.JSONSlice[string] {
	idx := rng.Perm(len(pool))
	out := make(datatypes.JSONSlice[string], 0, n)
	for _, i := range idx[:min(n, len(idx))] {
		out = append(out, pool[i])
	}
	return out
}
