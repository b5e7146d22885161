package services

import (
	"fmt"
	"strings"

	"alfredoptarigan/cv-screener/internal/models"
)

const noContextPlaceholder = "No relevant context found."

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// CVSystemPrompt describes the CV dimensions and the required JSON shape.
func (pb *PromptBuilder) CVSystemPrompt() string {
	return `You are an expert technical recruiter evaluating a candidate's CV against a specific job role.

Assess the candidate on these dimensions (1-5 scale):
1. Technical Skills Match (Weight: 40%) - Alignment with backend, databases, APIs, cloud, AI/LLM requirements
2. Experience Level (Weight: 25%) - Years of experience and project complexity
3. Relevant Achievements (Weight: 20%) - Impact of past work (scaling, performance, adoption)
4. Cultural/Collaboration Fit (Weight: 15%) - Communication, learning mindset, teamwork/leadership

SCORING GUIDE:
- 1 = Not demonstrated or irrelevant
- 2 = Minimal/basic level
- 3 = Adequate/average
- 4 = Strong/good
- 5 = Excellent/exceptional

Respond with a valid JSON object in exactly this format:
{
  "technical_skills": <integer 1-5>,
  "experience_level": <integer 1-5>,
  "relevant_achievements": <integer 1-5>,
  "cultural_fit": <integer 1-5>,
  "feedback": "<3-5 sentences explaining strengths and gaps>"
}

Be objective and base every score on evidence from the CV.`
}

// CVUserPrompt embeds the retrieved job context and the CV.
func (pb *PromptBuilder) CVUserPrompt(cvText, jobContext, jobTitle string) string {
	return fmt.Sprintf(`JOB ROLE: %s

RELEVANT JOB REQUIREMENTS AND EVALUATION CRITERIA:
%s

CANDIDATE CV:
%s

Based on the job requirements above, evaluate this CV and score each dimension with detailed feedback.`,
		jobTitle, orPlaceholder(jobContext), strings.TrimSpace(cvText))
}

// ProjectSystemPrompt describes the project dimensions and the required
// JSON shape.
func (pb *PromptBuilder) ProjectSystemPrompt() string {
	return `You are a senior software engineer evaluating a candidate's project report for a backend take-home assignment.

Assess the project on these dimensions (1-5 scale):
1. Correctness (Weight: 30%) - Prompt design, LLM chaining, RAG context injection, meeting requirements
2. Code Quality & Structure (Weight: 25%) - Clean, modular, reusable, tested
3. Resilience & Error Handling (Weight: 20%) - Long-running jobs, retries, randomness, API failures
4. Documentation & Explanation (Weight: 15%) - README clarity, setup instructions, trade-off explanations
5. Creativity/Bonus (Weight: 10%) - Thoughtful improvements beyond requirements

SCORING GUIDE:
- 1 = Not implemented or severely lacking
- 2 = Minimal attempt, significant issues
- 3 = Adequate, meets basic expectations
- 4 = Good, solid implementation
- 5 = Excellent, production-ready quality

Respond with a valid JSON object in exactly this format:
{
  "correctness": <integer 1-5>,
  "code_quality": <integer 1-5>,
  "resilience": <integer 1-5>,
  "documentation": <integer 1-5>,
  "creativity": <integer 1-5>,
  "feedback": "<3-5 sentences on what was done well and what could improve>"
}

Be constructive and reference actual implementation details from the report.`
}

// ProjectUserPrompt embeds the retrieved case-study context and the report.
func (pb *PromptBuilder) ProjectUserPrompt(reportText, caseContext string) string {
	return fmt.Sprintf(`CASE STUDY REQUIREMENTS AND EVALUATION CRITERIA:
%s

CANDIDATE PROJECT REPORT:
%s

Based on the requirements above, evaluate this project submission and score each dimension with detailed feedback.`,
		orPlaceholder(caseContext), strings.TrimSpace(reportText))
}

// SummarySystemPrompt asks for a plain-text hiring recommendation.
func (pb *PromptBuilder) SummarySystemPrompt() string {
	return `You are a hiring manager synthesizing evaluation results into a hiring recommendation.

Write a concise overall summary (3-5 sentences) that:
1. Highlights the candidate's key strengths
2. Identifies notable gaps or areas for improvement
3. Ends with a recommendation (Strong Hire / Hire / Maybe / No Hire)

Return ONLY the summary text, no JSON. Be direct and actionable.`
}

// SummaryUserPrompt embeds both dimension sets and the job title.
func (pb *PromptBuilder) SummaryUserPrompt(cv models.CVScores, project models.ProjectScores, jobTitle string) string {
	return fmt.Sprintf(`JOB ROLE: %s

CV EVALUATION RESULTS:
- Technical Skills: %d/5
- Experience Level: %d/5
- Relevant Achievements: %d/5
- Cultural Fit: %d/5
- Feedback: %s

PROJECT EVALUATION RESULTS:
- Correctness: %d/5
- Code Quality: %d/5
- Resilience: %d/5
- Documentation: %d/5
- Creativity: %d/5
- Feedback: %s

Based on these evaluations, provide a 3-5 sentence overall summary with your hiring recommendation.`,
		jobTitle,
		cv.TechnicalSkills, cv.ExperienceLevel, cv.RelevantAchievements, cv.CulturalFit, cv.Feedback,
		project.Correctness, project.CodeQuality, project.Resilience, project.Documentation, project.Creativity, project.Feedback,
	)
}

// RetrievalQuery builds the similarity-search text for a corpus category.
func (pb *PromptBuilder) RetrievalQuery(category, jobTitle string) string {
	switch category {
	case models.CategoryJobDescription, models.CategoryCVRubric:
		return fmt.Sprintf("Job requirements and qualifications for %s", jobTitle)
	case models.CategoryCaseStudy, models.CategoryProjectRubric:
		return fmt.Sprintf("Case study requirements and evaluation criteria for %s", jobTitle)
	default:
		return jobTitle
	}
}

func orPlaceholder(context string) string {
	if strings.TrimSpace(context) == "" {
		return noContextPlaceholder
	}
	return context
}
