package models

// CVScores is the structured answer of the CV stage. Transient.
type CVScores struct {
	TechnicalSkills      int    `json:"technical_skills"`
	ExperienceLevel      int    `json:"experience_level"`
	RelevantAchievements int    `json:"relevant_achievements"`
	CulturalFit          int    `json:"cultural_fit"`
	Feedback             string `json:"feedback"`
}

// ProjectScores is the structured answer of the project stage. Transient.
type ProjectScores struct {
	Correctness   int    `json:"correctness"`
	CodeQuality   int    `json:"code_quality"`
	Resilience    int    `json:"resilience"`
	Documentation int    `json:"documentation"`
	Creativity    int    `json:"creativity"`
	Feedback      string `json:"feedback"`
}
