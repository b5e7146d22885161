// Package scoring turns per-dimension integer scores into the normalized
// rates stored on an evaluation result. All functions are pure.
//
// Inputs are expected to be in [1,5]; range checking belongs to the caller
// that parsed the model output.
package scoring

import "math"

// CV dimension weights.
const (
	WeightTechnicalSkills      = 0.40
	WeightExperienceLevel      = 0.25
	WeightRelevantAchievements = 0.20
	WeightCulturalFit          = 0.15
)

// Project dimension weights.
const (
	WeightCorrectness   = 0.30
	WeightCodeQuality   = 0.25
	WeightResilience    = 0.20
	WeightDocumentation = 0.15
	WeightCreativity    = 0.10
)

type CVDimensions struct {
	TechnicalSkills      int
	ExperienceLevel      int
	RelevantAchievements int
	CulturalFit          int
}

type ProjectDimensions struct {
	Correctness   int
	CodeQuality   int
	Resilience    int
	Documentation int
	Creativity    int
}

// CVMatchRate maps the weighted CV score from [1,5] onto [0,1].
func CVMatchRate(d CVDimensions) float64 {
	weighted := float64(d.TechnicalSkills)*WeightTechnicalSkills +
		float64(d.ExperienceLevel)*WeightExperienceLevel +
		float64(d.RelevantAchievements)*WeightRelevantAchievements +
		float64(d.CulturalFit)*WeightCulturalFit

	return Round2((weighted - 1) / 4)
}

// ProjectScore is the weighted project score, left on the [1,5] scale.
func ProjectScore(d ProjectDimensions) float64 {
	weighted := float64(d.Correctness)*WeightCorrectness +
		float64(d.CodeQuality)*WeightCodeQuality +
		float64(d.Resilience)*WeightResilience +
		float64(d.Documentation)*WeightDocumentation +
		float64(d.Creativity)*WeightCreativity

	return Round2(weighted)
}

// OverallScore averages the project score with the match rate rescaled via
// rate*4 - 1.
func OverallScore(cvMatchRate, projectScore float64) float64 {
	cvScore := cvMatchRate*4 - 1
	return Round2((cvScore + projectScore) / 2)
}

// Round2 rounds half away from zero to 2 decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
