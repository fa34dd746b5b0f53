package dto

// DistributeRequest triggers automatic distribution of unassigned submissions
// for one assignment across the active graders.
type DistributeRequest struct {
	AssignmentID uint `json:"assignment_id" validate:"required"`
}

// DistributeResponse summarizes one distribution run.
type DistributeResponse struct {
	AssignmentID uint             `json:"assignment_id"`
	Assigned     int              `json:"assigned"`
	Skipped      int              `json:"skipped"`
	PerGrader    map[uint]int     `json:"per_grader"`
	Graders      []GraderLoadInfo `json:"graders"`
}

// GraderLoadInfo reports one grader's load after a distribution run.
type GraderLoadInfo struct {
	GraderID    uint   `json:"grader_id"`
	DisplayName string `json:"display_name"`
	Load        int64  `json:"load"`
}

// PipelineRunRequest enqueues submissions for extraction and analysis.
type PipelineRunRequest struct {
	SubmissionIDs []uint `json:"submission_ids" validate:"required,min=1,dive,required"`
}

// PipelineItemResult reports the outcome of one submission's pipeline run.
type PipelineItemResult struct {
	SubmissionID uint   `json:"submission_id"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
}

// PipelineRunResponse reports the outcome of a batch pipeline run.
type PipelineRunResponse struct {
	Requested int                  `json:"requested"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Items     []PipelineItemResult `json:"items"`
}
