package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yuhao-w/deepquery/internal/llm"
	"github.com/yuhao-w/deepquery/internal/protocol"
)

const summarySystemPrompt = `You are a professional research analyst. Write a high-quality answer grounded in the provided documents.

Requirements:
- Cite sources inline with bracketed numbers: [1] refers to document 1, [2] to document 2, and so on.
- Use only information from the documents. Never invent facts, and never cite a number that has no matching document.
- If no documents are provided, say that no supporting material was found and keep the answer brief, with no citations.
- Use Markdown, with a clear structure and a citation on every substantive point.`

// SummaryController streams the cited answer for a finalized document set.
// It uses no tools and never buffers the full answer before emitting.
type SummaryController struct {
	llm    llm.Client
	logger *zap.Logger
}

// NewSummaryController creates a controller for one request.
func NewSummaryController(llmClient llm.Client, logger *zap.Logger) *SummaryController {
	return &SummaryController{llm: llmClient, logger: logger}
}

// Run builds the grounding context, opens the token stream and forwards
// each fragment as a content event. On a mid-stream error the fragments
// already emitted stand; the accumulated partial text is returned alongside
// the error. There are no retries.
func (c *SummaryController) Run(ctx context.Context, query string, store *DocumentStore, emit func(protocol.Event)) (string, error) {
	grounding := store.GroundingContext()

	var userMsg string
	if grounding == "" {
		userMsg = fmt.Sprintf("Question: %s\n\nNo documents were retrieved for this question.", query)
	} else {
		userMsg = fmt.Sprintf(
			"Question: %s\n\nThe following %d document chunks were retrieved, ordered by relevance:\n\n%s\n\nAnswer the question based on these documents.",
			query, store.Len(), grounding)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: summarySystemPrompt},
		{Role: llm.RoleUser, Content: userMsg},
	}

	fragments, err := c.llm.Stream(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("open summary stream: %w", err)
	}

	var full strings.Builder
	for frag := range fragments {
		if frag.Err != nil {
			c.logger.Error("summary stream truncated", zap.Error(frag.Err))
			return full.String(), frag.Err
		}
		full.WriteString(frag.Content)
		emit(protocol.ContentFragment{Content: frag.Content})
	}

	c.logger.Info("summary complete", zap.Int("answer_len", full.Len()))
	return full.String(), nil
}
