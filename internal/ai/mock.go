package ai

import (
	"fmt"
	"strings"
)

func mockJD(in JDInput) GeneratedJD {
	var desc strings.Builder
	fmt.Fprintf(&desc, "We are looking for a talented %s to join our team.\n\n", in.Title)
	fmt.Fprintf(&desc, "As a %s, you will be responsible for:\n", in.Title)
	desc.WriteString("- Designing and implementing high-quality solutions\n")
	desc.WriteString("- Collaborating with cross-functional teams to define and ship new features\n")
	desc.WriteString("- Writing clean, maintainable, and efficient code\n")
	desc.WriteString("- Participating in code reviews and providing constructive feedback\n")
	desc.WriteString("- Contributing to architectural decisions and technical discussions\n")
	if len(in.TechStack) > 0 {
		fmt.Fprintf(&desc, "- Working with technologies including %s\n", strings.Join(in.TechStack, ", "))
	}

	employment := in.EmploymentType
	if employment == "" {
		employment = "full-time"
	}
	fmt.Fprintf(&desc, "\nThis is a %s position", employment)
	if in.Location != "" {
		fmt.Fprintf(&desc, " based in %s", in.Location)
	}
	desc.WriteString(".")

	experience := in.Experience
	if experience == "" {
		experience = "3+ years"
	}
	var req strings.Builder
	req.WriteString("Required Qualifications:\n")
	fmt.Fprintf(&req, "- %s of professional experience in a similar role\n", experience)
	if len(in.TechStack) > 0 {
		top := in.TechStack[:min(3, len(in.TechStack))]
		fmt.Fprintf(&req, "- Strong proficiency in %s\n", strings.Join(top, ", "))
	} else {
		req.WriteString("- Strong technical skills relevant to the role\n")
	}
	req.WriteString("- Excellent problem-solving and analytical skills\n")
	req.WriteString("- Strong communication skills and ability to work in a team\n")
	req.WriteString("- Experience with agile development methodologies\n\n")
	req.WriteString("Nice to Have:\n")
	req.WriteString("- Experience with cloud platforms (AWS, GCP, or Azure)\n")
	req.WriteString("- Contributions to open-source projects\n")
	req.WriteString("- Experience mentoring junior developers")

	return GeneratedJD{Description: desc.String(), Requirements: req.String()}
}

func (s *Service) mockScore() ScoringResult {
	return ScoringResult{
		TotalScore:   75 + s.intn(20),
		SkillScore:   75 + s.intn(20),
		CultureScore: 70 + s.intn(20),
		CareerScore:  75 + s.intn(20),
		Strengths: []string{
			"Strong technical background with relevant experience",
			"Demonstrated leadership in previous roles",
			"Good problem-solving skills evident from projects",
		},
		Risks: []string{
			"Limited experience with some required technologies",
			"May require onboarding time for domain-specific knowledge",
		},
		RecommendedQuestions: []string{
			"Can you describe a challenging technical problem you solved recently?",
			"How do you approach learning new technologies?",
			"Tell us about your experience working in cross-functional teams.",
		},
		Summary: "A solid candidate with relevant technical skills and good career progression. Shows potential for growth and cultural fit.",
	}
}
