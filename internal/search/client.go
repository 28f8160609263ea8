package search

import "context"

// Result is one passage returned by the knowledge-base collaborator,
// ordered by relevance.
type Result struct {
	Content           string  `json:"content"`
	Source            string  `json:"source"`
	Score             float64 `json:"score"`
	ChunkKey          string  `json:"chunk_id,omitempty"`
	DocID             string  `json:"doc_id,omitempty"`
	DocURL            string  `json:"doc_url,omitempty"`
	KnowledgeBaseID   string  `json:"knowledge_base_id,omitempty"`
	KnowledgeBaseName string  `json:"knowledge_base_name,omitempty"`
}

// Client is the knowledge-base search collaborator boundary.
type Client interface {
	// Search runs one query, returning at most topK results ordered by
	// relevance, or an error if the call failed as a whole.
	Search(ctx context.Context, query string, topK int) ([]Result, error)
}
