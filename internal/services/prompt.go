package services

import (
	"fmt"
	"strings"
)

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildSystemInstruction creates the resume coach instruction with the reply shape
// the parser expects.
func (pb *PromptBuilder) BuildSystemInstruction() string {
	return `You are a resume coach reviewing someone's resume for potential match against a job description from a job app. You will be given the job description and resume text. Score the resume in the following areas (from 0 to 100) and count how many of the job description's key terms appear in the resume. Also provide a paragraph with some recommendations.

Return ONLY valid JSON in the following format:
{
  "scores": {
    "overall_score": <0-100>,
    "skills_match": <0-100>,
    "experience_match": <0-100>,
    "education_match": <0-100>,
    "keywords_found": <number of key terms found in the resume>,
    "total_keywords": <number of key terms in the job description>
  },
  "recommendations": "<one paragraph of concrete recommendations>"
}`
}

// BuildScoringPrompt wraps the full job description and resume text in tagged
// blocks. Nothing is truncated.
func (pb *PromptBuilder) BuildScoringPrompt(jobDescription, resumeText string) string {
	return fmt.Sprintf("<job_description>\n%s\n</job_description>\n\n<resume_text>\n%s\n</resume_text>",
		strings.TrimSpace(jobDescription), strings.TrimSpace(resumeText))
}
