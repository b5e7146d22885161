package services

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"alfredoptarigan/cv-screener/internal/models"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	cvSchema      = lazySchema("schemas/cv_scores.json")
	projectSchema = lazySchema("schemas/project_scores.json")
)

func lazySchema(path string) func() (*gojsonschema.Schema, error) {
	return sync.OnceValues(func() (*gojsonschema.Schema, error) {
		raw, err := schemaFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", path, err)
		}
		return schema, nil
	})
}

// ParseCVScores validates and decodes the CV stage answer.
func ParseCVScores(raw string) (models.CVScores, error) {
	var wire struct {
		TechnicalSkills      float64 `json:"technical_skills"`
		ExperienceLevel      float64 `json:"experience_level"`
		RelevantAchievements float64 `json:"relevant_achievements"`
		CulturalFit          float64 `json:"cultural_fit"`
		Feedback             string  `json:"feedback"`
	}
	if err := decodeValidated(cvSchema, raw, &wire); err != nil {
		return models.CVScores{}, err
	}

	return models.CVScores{
		TechnicalSkills:      int(wire.TechnicalSkills),
		ExperienceLevel:      int(wire.ExperienceLevel),
		RelevantAchievements: int(wire.RelevantAchievements),
		CulturalFit:          int(wire.CulturalFit),
		Feedback:             strings.TrimSpace(wire.Feedback),
	}, nil
}

// ParseProjectScores validates and decodes the project stage answer.
func ParseProjectScores(raw string) (models.ProjectScores, error) {
	var wire struct {
		Correctness   float64 `json:"correctness"`
		CodeQuality   float64 `json:"code_quality"`
		Resilience    float64 `json:"resilience"`
		Documentation float64 `json:"documentation"`
		Creativity    float64 `json:"creativity"`
		Feedback      string  `json:"feedback"`
	}
	if err := decodeValidated(projectSchema, raw, &wire); err != nil {
		return models.ProjectScores{}, err
	}

	return models.ProjectScores{
		Correctness:   int(wire.Correctness),
		CodeQuality:   int(wire.CodeQuality),
		Resilience:    int(wire.Resilience),
		Documentation: int(wire.Documentation),
		Creativity:    int(wire.Creativity),
		Feedback:      strings.TrimSpace(wire.Feedback),
	}, nil
}

// ParseSummary trims the free-text summary.
func ParseSummary(raw string) (string, error) {
	summary := strings.TrimSpace(raw)
	if summary == "" {
		return "", &ParseError{Field: "summary", Reason: "empty"}
	}
	return summary, nil
}

func decodeValidated(schema func() (*gojsonschema.Schema, error), raw string, target any) error {
	s, err := schema()
	if err != nil {
		return err
	}

	body := stripCodeFence(raw)
	if !json.Valid([]byte(body)) {
		return &ParseError{Reason: "response is not valid JSON: " + truncate(body, 80)}
	}

	result, err := s.Validate(gojsonschema.NewStringLoader(body))
	if err != nil {
		return &ParseError{Reason: err.Error()}
	}
	if !result.Valid() {
		errs := result.Errors()
		reasons := make([]string, 0, len(errs))
		for _, desc := range errs {
			reasons = append(reasons, desc.String())
		}
		field := errs[0].Field()
		if field == "(root)" {
			if missing, ok := errs[0].Details()["property"].(string); ok {
				field = missing
			}
		}
		return &ParseError{Field: field, Reason: strings.Join(reasons, "; ")}
	}

	if err := json.Unmarshal([]byte(body), target); err != nil {
		return &ParseError{Reason: err.Error()}
	}
	return nil
}

// stripCodeFence removes a surrounding markdown code fence and any prose
// around the outermost JSON object.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	if !json.Valid([]byte(s)) {
		start := strings.IndexByte(s, '{')
		end := strings.LastIndexByte(s, '}')
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}

	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
