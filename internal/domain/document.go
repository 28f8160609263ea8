package domain

// Document is one retrieved passage held by a document store for the
// duration of a single request.
type Document struct {
	Content           string  `json:"content"`
	Source            string  `json:"source"`
	Score             float64 `json:"score"`
	ChunkKey          string  `json:"chunk_key,omitempty"`
	DocID             string  `json:"doc_id,omitempty"`
	DocURL            string  `json:"doc_url,omitempty"`
	KnowledgeBaseID   string  `json:"knowledge_base_id,omitempty"`
	KnowledgeBaseName string  `json:"knowledge_base_name,omitempty"`

	// ReferenceIndex is the 1-based citation number. It is zero until the
	// store is finalized.
	ReferenceIndex int `json:"id,omitempty"`
}

// Reference is the externally visible entry of the reference list artifact.
type Reference struct {
	ID      int     `json:"id"`
	Source  string  `json:"source"`
	Preview string  `json:"content_preview"`
	Score   float64 `json:"score"`
	DocID   string  `json:"doc_id,omitempty"`
	DocURL  string  `json:"doc_url,omitempty"`
}
