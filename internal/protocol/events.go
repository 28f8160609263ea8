package protocol

import "github.com/yuhao-w/deepquery/internal/domain"

// EventType is the wire-level type tag of an emitted event.
type EventType string

const (
	EventPlanDeclared       EventType = "PLAN_DECLARED"
	EventPlanChange         EventType = "PLAN_CHANGE"
	EventInvocationDeclared EventType = "INVOCATION_DECLARED"
	EventInvocationChange   EventType = "INVOCATION_CHANGE"
	EventStreamContent      EventType = "STREAM_CONTENT"
	EventArtifact           EventType = "ARTIFACT"
	EventEnd                EventType = "END"
	EventError              EventType = "ERROR"
)

// Event is one pipeline event. The set of implementations below is closed;
// the encoder type-switches over it instead of inspecting string keys.
// Events are immutable once emitted and are never revised or re-sent.
type Event interface {
	Type() EventType
}

// StageDeclared lists every pipeline stage, all PENDING. It is emitted
// exactly once, before any other event.
type StageDeclared struct {
	Stages []domain.Stage
}

func (StageDeclared) Type() EventType { return EventPlanDeclared }

// StageStatusChange reports a monotonic stage transition.
type StageStatusChange struct {
	StageID string
	Status  domain.StageStatus
}

func (StageStatusChange) Type() EventType { return EventPlanChange }

// SearchStarted reports one search invocation being issued. The same
// InvocationID appears on the matching SearchFinished.
type SearchStarted struct {
	StageID      string
	InvocationID string
	Query        string
	ResultBound  int
}

func (SearchStarted) Type() EventType { return EventInvocationDeclared }

// SearchFinished reports the outcome of one search invocation. A failed
// search carries Success=false and never aborts the request.
type SearchFinished struct {
	StageID      string
	InvocationID string
	Success      bool
	ResultCount  int
}

func (SearchFinished) Type() EventType { return EventInvocationChange }

// ContentFragment carries one streamed piece of the generated answer.
// Concatenating fragments in emission order reconstructs the full text.
type ContentFragment struct {
	Content string
}

func (ContentFragment) Type() EventType { return EventStreamContent }

// ReferenceList is the citation artifact, emitted exactly once after the
// retrieval stage completes and before any summary content.
type ReferenceList struct {
	References []domain.Reference
}

func (ReferenceList) Type() EventType { return EventArtifact }

// Completed is the success terminal. No payload.
type Completed struct{}

func (Completed) Type() EventType { return EventEnd }

// Failed is the error terminal, carrying a human-readable message.
type Failed struct {
	Message string
}

func (Failed) Type() EventType { return EventError }
