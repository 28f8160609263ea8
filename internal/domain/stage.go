package domain

// StageStatus is the lifecycle status of one pipeline stage. Transitions
// are monotonic: PENDING -> RUNNING -> COMPLETED or FAILED.
type StageStatus string

const (
	StagePending   StageStatus = "PENDING"
	StageRunning   StageStatus = "RUNNING"
	StageCompleted StageStatus = "COMPLETED"
	StageFailed    StageStatus = "FAILED"
)

// Stage identifiers. Every request runs exactly these three stages in order.
const (
	StagePlanning  = "planning"
	StageRetrieval = "retrieval"
	StageSummary   = "summary"
)

// Stage is one phase of the answer pipeline.
type Stage struct {
	ID     string      `json:"stage_id"`
	Name   string      `json:"stage_name"`
	Status StageStatus `json:"status"`
}

// PipelineStages returns the stage declarations for a fresh request,
// all PENDING, in execution order.
func PipelineStages() []Stage {
	return []Stage{
		{ID: StagePlanning, Name: "Question analysis", Status: StagePending},
		{ID: StageRetrieval, Name: "Knowledge retrieval", Status: StagePending},
		{ID: StageSummary, Name: "Cited summary", Status: StagePending},
	}
}
