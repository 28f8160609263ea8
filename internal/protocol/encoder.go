package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/yuhao-w/deepquery/internal/domain"
)

// Agent mode and executor names carried in the wire context. These match
// what the upstream gateway expects.
const (
	wireMode          = "plan-executor"
	retrievalExecutor = "retrieval-agent"
	summaryExecutor   = "summary-agent"

	referencesArtifactID = "references-001"
)

// Change types for PLAN_CHANGE / INVOCATION_CHANGE messages.
const (
	changeStatus = "STATUS_CHANGE"
)

type wireContext struct {
	Mode         string `json:"mode"`
	StageID      string `json:"stage_id,omitempty"`
	InvocationID string `json:"invocation_id,omitempty"`
	Executor     string `json:"executor,omitempty"`
}

type wireEvent struct {
	EventType EventType        `json:"event_type"`
	Context   wireContext      `json:"context"`
	Messages  []map[string]any `json:"messages"`
}

// Encoder serializes pipeline events as SSE frames (`data: <json>\n\n`)
// in the order they are encoded. It never rewrites an emitted frame.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an encoder writing SSE frames to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one event as a single SSE frame and flushes if the
// underlying writer supports it.
func (e *Encoder) Encode(ev Event) error {
	data, err := json.Marshal(envelope(ev))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if f, ok := e.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// envelope maps an event variant onto the gateway wire format.
func envelope(ev Event) wireEvent {
	switch ev := ev.(type) {
	case StageDeclared:
		msgs := make([]map[string]any, 0, len(ev.Stages))
		for _, s := range ev.Stages {
			msgs = append(msgs, map[string]any{
				"stage_id":   s.ID,
				"stage_name": s.Name,
				"status":     s.Status,
			})
		}
		return wireEvent{
			EventType: EventPlanDeclared,
			Context:   wireContext{Mode: wireMode},
			Messages:  msgs,
		}

	case StageStatusChange:
		return wireEvent{
			EventType: EventPlanChange,
			Context:   wireContext{Mode: wireMode},
			Messages: []map[string]any{{
				"change_type": changeStatus,
				"stage_id":    ev.StageID,
				"status":      ev.Status,
			}},
		}

	case SearchStarted:
		return wireEvent{
			EventType: EventInvocationDeclared,
			Context: wireContext{
				Mode:         wireMode,
				StageID:      ev.StageID,
				InvocationID: ev.InvocationID,
				Executor:     retrievalExecutor,
			},
			Messages: []map[string]any{{
				"name":            fmt.Sprintf("Searching: %s", ev.Query),
				"invocation_type": "search",
				"query":           ev.Query,
				"result_bound":    ev.ResultBound,
			}},
		}

	case SearchFinished:
		status := domain.StageCompleted
		if !ev.Success {
			status = domain.StageFailed
		}
		return wireEvent{
			EventType: EventInvocationChange,
			Context: wireContext{
				Mode:         wireMode,
				StageID:      ev.StageID,
				InvocationID: ev.InvocationID,
				Executor:     retrievalExecutor,
			},
			Messages: []map[string]any{{
				"change_type":  changeStatus,
				"status":       status,
				"success":      ev.Success,
				"result_count": ev.ResultCount,
			}},
		}

	case ContentFragment:
		return wireEvent{
			EventType: EventStreamContent,
			Context:   wireContext{Mode: wireMode, Executor: summaryExecutor},
			Messages:  []map[string]any{{"content": ev.Content}},
		}

	case ReferenceList:
		refs := ev.References
		if refs == nil {
			refs = []domain.Reference{}
		}
		return wireEvent{
			EventType: EventArtifact,
			Context:   wireContext{Mode: wireMode, StageID: domain.StageSummary},
			Messages: []map[string]any{{
				"artifact_id":   referencesArtifactID,
				"artifact_name": "references",
				"artifact_type": "reference_list",
				"references":    refs,
			}},
		}

	case Completed:
		return wireEvent{
			EventType: EventEnd,
			Context:   wireContext{Mode: wireMode},
			Messages:  []map[string]any{},
		}

	case Failed:
		return wireEvent{
			EventType: EventError,
			Context:   wireContext{Mode: wireMode},
			Messages:  []map[string]any{{"message": ev.Message}},
		}
	}

	// Unreachable as long as the variant set above stays closed.
	return wireEvent{
		EventType: EventError,
		Context:   wireContext{Mode: wireMode},
		Messages:  []map[string]any{{"message": fmt.Sprintf("unknown event %T", ev)}},
	}
}
