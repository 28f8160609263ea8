package domain

import "time"

// QueryRequest is the body of POST /api/v2/query.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// Query record terminal statuses.
const (
	QueryStatusCompleted = "completed"
	QueryStatusFailed    = "failed"
)

// QueryRecord is the persisted trace of one answered (or failed) query.
// Retrieved passages and stream events are not persisted, only the exchange.
type QueryRecord struct {
	ID            string    `json:"id"`
	Query         string    `json:"query"`
	Status        string    `json:"status"`
	Answer        string    `json:"answer,omitempty"`
	Error         string    `json:"error,omitempty"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
	CompletedAt   time.Time `json:"completed_at"`
}
