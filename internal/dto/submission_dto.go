package dto

import (
	"time"

	"github.com/kkian481718/CEGAS/internal/models"
)

// SubmissionResponse is the list-level representation of a submission.
type SubmissionResponse struct {
	ID                uint                  `json:"id"`
	AssignmentID      uint                  `json:"assignment_id"`
	StudentID         string                `json:"student_id"`
	StudentName       string                `json:"student_name"`
	ClassName         string                `json:"class_name,omitempty"`
	OriginalFilename  string                `json:"original_filename,omitempty"`
	Status            string                `json:"status"`
	AssignedTo        *uint                 `json:"assigned_to"`
	AssigneeName      string                `json:"assignee_name,omitempty"`
	ParseCompleteness *int                  `json:"parse_completeness"`
	ParseWarnings     *models.ParseWarnings `json:"parse_warnings,omitempty"`
	FailureReason     string                `json:"failure_reason,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// SubmissionDetailResponse adds the extracted snippets with their analysis
// findings and any grades entered so far.
type SubmissionDetailResponse struct {
	SubmissionResponse
	UnmatchedContent string                `json:"unmatched_content,omitempty"`
	Snippets         []CodeSnippetResponse `json:"snippets"`
	Grades           []GradeResponse       `json:"grades"`
}

// CodeSnippetResponse is one extracted question's code with findings.
type CodeSnippetResponse struct {
	ID             uint                     `json:"id"`
	QuestionNumber int                      `json:"question_number"`
	RawCode        string                   `json:"raw_code"`
	NormalizedCode string                   `json:"normalized_code"`
	Results        []AnalysisResultResponse `json:"results"`
}

// AnalysisResultResponse is one static-analysis finding.
type AnalysisResultResponse struct {
	ID         uint   `json:"id"`
	ErrorID    string `json:"error_id,omitempty"`
	Message    string `json:"message"`
	LineNumber *int   `json:"line_number"`
	Severity   string `json:"severity,omitempty"`
	ToolFailed bool   `json:"tool_failed"`
}

// SubmissionAssignRequest changes the grader responsible for a submission.
// A nil grader ID clears the assignment.
type SubmissionAssignRequest struct {
	GraderID *uint `json:"grader_id"`
}

// BulkUploadItem reports the outcome of one file in a bulk upload.
type BulkUploadItem struct {
	Filename     string `json:"filename"`
	SubmissionID uint   `json:"submission_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// BulkUploadResponse summarizes a bulk upload. Files are independent: one
// rejected document never blocks the rest of the batch.
type BulkUploadResponse struct {
	Requested int              `json:"requested"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Items     []BulkUploadItem `json:"items"`
}

// NewSubmissionResponse converts a model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:                model.ID,
		AssignmentID:      model.AssignmentID,
		StudentID:         model.StudentID,
		StudentName:       model.StudentName,
		ClassName:         model.ClassName,
		OriginalFilename:  model.OriginalFilename,
		Status:            model.Status,
		AssignedTo:        model.AssignedTo,
		ParseCompleteness: model.ParseCompleteness,
		FailureReason:     model.FailureReason,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
	if model.Assignee != nil {
		response.AssigneeName = model.Assignee.DisplayName
	}
	if warnings, err := models.DecodeParseWarnings(model.ParseWarnings); err == nil && !warnings.IsEmpty() {
		response.ParseWarnings = &warnings
	}

	return response
}

// NewSubmissionResponseSlice converts a slice of models into DTOs.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}

// NewSubmissionDetailResponse converts a fully loaded model into a DTO.
func NewSubmissionDetailResponse(model models.Submission) SubmissionDetailResponse {
	detail := SubmissionDetailResponse{
		SubmissionResponse: NewSubmissionResponse(model),
		UnmatchedContent:   model.UnmatchedContent,
		Snippets:           make([]CodeSnippetResponse, 0, len(model.Snippets)),
		Grades:             make([]GradeResponse, 0, len(model.Grades)),
	}
	for _, snippet := range model.Snippets {
		detail.Snippets = append(detail.Snippets, NewCodeSnippetResponse(snippet))
	}
	for _, grade := range model.Grades {
		detail.Grades = append(detail.Grades, NewGradeResponse(grade))
	}

	return detail
}

// NewCodeSnippetResponse converts a snippet model into a DTO.
func NewCodeSnippetResponse(model models.CodeSnippet) CodeSnippetResponse {
	response := CodeSnippetResponse{
		ID:             model.ID,
		QuestionNumber: model.QuestionNumber,
		RawCode:        model.RawCode,
		NormalizedCode: model.NormalizedCode,
		Results:        make([]AnalysisResultResponse, 0, len(model.Results)),
	}
	for _, result := range model.Results {
		response.Results = append(response.Results, AnalysisResultResponse{
			ID:         result.ID,
			ErrorID:    result.ErrorID,
			Message:    result.Message,
			LineNumber: result.LineNumber,
			Severity:   result.Severity,
			ToolFailed: result.ToolFailed,
		})
	}

	return response
}
