package service

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/yuhao-w/deepquery/internal/domain"
)

// previewRunes is the character budget for reference previews.
const previewRunes = 100

// DocumentStore owns the deduplicated document set for one request.
// Add may be called concurrently from a retrieval round's search fan-out;
// Finalize marks the retrieval/summary boundary, after which the store is
// read-only. Stores are never shared between requests.
type DocumentStore struct {
	mu        sync.Mutex
	docs      []*domain.Document
	seen      map[string]struct{}
	finalized bool
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{seen: make(map[string]struct{})}
}

// contentKey is the dedup key: the collaborator's chunk key when present,
// otherwise a hash of the content.
func contentKey(doc *domain.Document) string {
	if doc.ChunkKey != "" {
		return doc.ChunkKey
	}
	sum := md5.Sum([]byte(doc.Content))
	return hex.EncodeToString(sum[:])
}

// Add appends doc unless a document with the same content key is already
// stored. Duplicate submission is a silent no-op: the stored document keeps
// its score, source and position (first write wins).
func (s *DocumentStore) Add(doc *domain.Document) {
	key := contentKey(doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.docs = append(s.docs, doc)
}

// Finalize stable-sorts documents by score descending and assigns 1-based
// reference indices by final position. Equal scores keep insertion order,
// so citation numbering is reproducible across rounds. Idempotent.
func (s *DocumentStore) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sort.SliceStable(s.docs, func(i, j int) bool {
		return s.docs[i].Score > s.docs[j].Score
	})
	for i, doc := range s.docs {
		doc.ReferenceIndex = i + 1
	}
	s.finalized = true
}

// Len returns the number of stored documents.
func (s *DocumentStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// GroundingContext builds the ordered text block handed to the summarizer,
// one entry per document tagged with its citation number. Only valid after
// Finalize. Empty store yields an empty string.
func (s *DocumentStore) GroundingContext() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.docs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.docs))
	for _, doc := range s.docs {
		parts = append(parts, fmt.Sprintf("[%d] Source: %s\nContent: %s",
			doc.ReferenceIndex, doc.Source, doc.Content))
	}
	return strings.Join(parts, "\n\n")
}

// References returns the externally visible reference list in finalized
// order. Never nil.
func (s *DocumentStore) References() []domain.Reference {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]domain.Reference, 0, len(s.docs))
	for _, doc := range s.docs {
		refs = append(refs, domain.Reference{
			ID:      doc.ReferenceIndex,
			Source:  doc.Source,
			Preview: preview(doc.Content),
			Score:   doc.Score,
			DocID:   doc.DocID,
			DocURL:  doc.DocURL,
		})
	}
	return refs
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "..."
}
