package ai

import (
	"fmt"
	"strings"
)

const jdSystemPrompt = `You are an expert HR professional and technical recruiter. Your task is to generate professional, compelling job descriptions based on the provided information.

Guidelines:
- Write in a professional, clear, and engaging tone
- Be specific about responsibilities and requirements
- Include both technical and soft skill requirements when appropriate
- Structure the content clearly with proper sections
- Do not use emojis or excessive formatting
- Keep the language professional and suitable for a B2B recruitment platform
- Write in English unless the user specifically requests another language

Output your response in the following JSON format:
{
  "description": "The full job description including role overview and responsibilities",
  "requirements": "The qualifications, skills, and experience required for the role"
}`

const scoringSystemPrompt = `You are an expert HR professional and technical recruiter. Your task is to evaluate a candidate's resume against a job description and provide a detailed assessment.

Evaluate the candidate on the following criteria:
1. Skill Match (0-100): How well do the candidate's technical skills match the requirements?
2. Culture Fit (0-100): Based on their experience and background, how likely are they to fit the company culture?
3. Career Trajectory (0-100): Does their career progression show growth and alignment with this role?

Output your response in the following JSON format:
{
  "total_score": 0-100,
  "skill_score": 0-100,
  "culture_score": 0-100,
  "career_score": 0-100,
  "strengths": ["strength1", "strength2", "strength3"],
  "risks": ["risk1", "risk2"],
  "recommended_questions": ["question1", "question2", "question3"],
  "summary": "A brief 2-3 sentence summary of the candidate"
}`

func jdUserPrompt(in JDInput) string {
	parts := []string{
		"Generate a professional job description for the following position:",
		"",
		"Job Title: " + in.Title,
	}
	if in.Experience != "" {
		parts = append(parts, "Experience Level: "+in.Experience)
	}
	if len(in.TechStack) > 0 {
		parts = append(parts, "Tech Stack: "+strings.Join(in.TechStack, ", "))
	}
	if in.Location != "" {
		parts = append(parts, "Location: "+in.Location)
	}
	if in.EmploymentType != "" {
		parts = append(parts, "Employment Type: "+in.EmploymentType)
	}
	if in.AdditionalInfo != "" {
		parts = append(parts, "", "Additional Information: "+in.AdditionalInfo)
	}
	return strings.Join(parts, "\n")
}

func scoringUserPrompt(in ScoreInput) string {
	requirements := in.Requirements
	if strings.TrimSpace(requirements) == "" {
		requirements = "Not specified"
	}
	return fmt.Sprintf(`Please evaluate the following resume against the job description and requirements.

## Job Description
%s

## Requirements
%s

## Resume Content
%s

Provide a comprehensive evaluation in the specified JSON format.`, in.JobDescription, requirements, in.ResumeText)
}
