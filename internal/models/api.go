package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type UploadResponse struct {
	CV            *UploadedFile `json:"cv,omitempty"`
	ProjectReport *UploadedFile `json:"project_report,omitempty"`
}

type UploadedFile struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	FileType     string `json:"file_type"`
}

type EvaluateRequest struct {
	JobTitle          string `json:"job_title" validate:"required,max=200"`
	CVDocumentID      string `json:"cv_document_id" validate:"required,uuid4"`
	ProjectDocumentID string `json:"project_document_id" validate:"required,uuid4"`
}

var validate = validator.New()

// Validate checks the request against its struct tags.
func (r *EvaluateRequest) Validate() error {
	r.JobTitle = strings.TrimSpace(r.JobTitle)
	return validate.Struct(r)
}

// ValidationDetails turns validator errors into a short message keyed by the
// JSON field names of EvaluateRequest.
func ValidationDetails(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	fields := map[string]string{
		"JobTitle":          "job_title",
		"CVDocumentID":      "cv_document_id",
		"ProjectDocumentID": "project_document_id",
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name, ok := fields[fe.Field()]
		if !ok {
			name = fe.Field()
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", name))
		case "uuid4":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid UUID", name))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", name, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", name))
		}
	}
	return strings.Join(msgs, "; ")
}

type EvaluateResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ResultResponse struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Result       *EvaluationData `json:"result,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

type EvaluationData struct {
	CVMatchRate     float64 `json:"cv_match_rate"`
	CVFeedback      string  `json:"cv_feedback"`
	ProjectScore    float64 `json:"project_score"`
	ProjectFeedback string  `json:"project_feedback"`
	OverallSummary  string  `json:"overall_summary"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewResultResponse shapes a job for the status endpoint. The result block
// is only present for completed jobs, the error only for failed ones.
func NewResultResponse(eval *Evaluation, result *EvaluationResult) ResultResponse {
	resp := ResultResponse{
		ID:     eval.ID.String(),
		Status: string(eval.Status),
	}

	switch eval.Status {
	case StatusCompleted:
		if result != nil {
			resp.Result = &EvaluationData{
				CVMatchRate:     result.CVMatchRate,
				CVFeedback:      result.CVFeedback,
				ProjectScore:    result.ProjectScore,
				ProjectFeedback: result.ProjectFeedback,
				OverallSummary:  result.OverallSummary,
			}
		}
	case StatusFailed:
		resp.ErrorMessage = eval.ErrorMessage
	}

	return resp
}
