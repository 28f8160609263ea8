package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yuhao-w/deepquery/internal/domain"
	"github.com/yuhao-w/deepquery/internal/llm"
	"github.com/yuhao-w/deepquery/internal/protocol"
	"github.com/yuhao-w/deepquery/internal/search"
)

const (
	defaultMaxRounds   = 3
	defaultResultBound = 5

	searchToolName = "search_knowledge"
)

const retrievalSystemPrompt = `You are a retrieval assistant. Your task is to find the documents most relevant to the user's question.

- Analyze the question and extract its core concepts.
- Call search_knowledge with focused queries; call it several times with different keyword combinations to cover different angles.
- Previous search results are visible in the conversation; do not repeat queries that already returned the same material.
- When the question is covered, stop without calling any more tools. Do not write an answer; retrieval is your only job.`

// RetrievalController runs the bounded multi-round search loop for one
// request, feeding every result into the document store.
type RetrievalController struct {
	llm         llm.Client
	search      search.Client
	store       *DocumentStore
	maxRounds   int
	resultBound int
	logger      *zap.Logger
}

// NewRetrievalController creates a controller for one request.
func NewRetrievalController(llmClient llm.Client, searchClient search.Client, store *DocumentStore, maxRounds, resultBound int, logger *zap.Logger) *RetrievalController {
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	if resultBound <= 0 {
		resultBound = defaultResultBound
	}
	return &RetrievalController{
		llm:         llmClient,
		search:      searchClient,
		store:       store,
		maxRounds:   maxRounds,
		resultBound: resultBound,
		logger:      logger,
	}
}

type searchArgs struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (c *RetrievalController) toolSpec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: searchToolName,
		Description: "Search the knowledge base for document chunks relevant to a query. " +
			"May be called multiple times with different keywords. Results carry relevance scores.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query: keywords, a question, or a topic.",
				},
				"top_k": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Number of chunks to return, 1-20. Default %d.", c.resultBound),
					"minimum":     1,
					"maximum":     20,
				},
			},
			"required": []string{"query"},
		},
	}
}

// Run executes up to maxRounds model turns. The loop ends early when the
// model stops requesting searches. A failed individual search is absorbed
// and reported via events; a failed model call fails the whole stage.
func (c *RetrievalController) Run(ctx context.Context, query string, emit func(protocol.Event)) error {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: retrievalSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Search for material covering this question from multiple angles: %s", query)},
	}
	tools := []llm.ToolSpec{c.toolSpec()}

	for round := 1; round <= c.maxRounds; round++ {
		completion, err := c.llm.Complete(ctx, messages, tools)
		if err != nil {
			return fmt.Errorf("retrieval round %d: %w", round, err)
		}
		if len(completion.ToolCalls) == 0 {
			c.logger.Info("model requested no further searches",
				zap.Int("round", round),
				zap.Int("documents", c.store.Len()),
			)
			return nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		outcomes := c.runSearches(ctx, completion.ToolCalls, emit)
		for i, call := range completion.ToolCalls {
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    outcomes[i],
			})
		}
	}

	c.logger.Info("retrieval round budget exhausted",
		zap.Int("rounds", c.maxRounds),
		zap.Int("documents", c.store.Len()),
	)
	return nil
}

// runSearches executes one round's search invocations concurrently and
// returns the per-call tool results in call order. The document store is
// the only shared state between goroutines.
func (c *RetrievalController) runSearches(ctx context.Context, calls []llm.ToolCall, emit func(protocol.Event)) []string {
	outcomes := make([]string, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		invocationID := "inv-" + uuid.NewString()[:8]

		var args searchArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			args.Query = ""
		}
		if strings.TrimSpace(args.Query) == "" {
			// Unparseable or empty tool call: reported as a failed
			// invocation, never fatal to the round.
			c.logger.Warn("malformed search arguments",
				zap.String("invocation_id", invocationID),
				zap.String("arguments", call.Arguments),
			)
			emit(protocol.SearchStarted{
				StageID:      domain.StageRetrieval,
				InvocationID: invocationID,
				Query:        args.Query,
				ResultBound:  c.resultBound,
			})
			emit(protocol.SearchFinished{
				StageID:      domain.StageRetrieval,
				InvocationID: invocationID,
				Success:      false,
			})
			outcomes[i] = fmt.Sprintf("Search failed: %v", domain.ErrMalformedResponse)
			continue
		}

		topK := args.TopK
		if topK <= 0 {
			topK = c.resultBound
		}

		emit(protocol.SearchStarted{
			StageID:      domain.StageRetrieval,
			InvocationID: invocationID,
			Query:        args.Query,
			ResultBound:  topK,
		})

		wg.Add(1)
		go func(i int, invocationID, query string, topK int) {
			defer wg.Done()

			results, err := c.search.Search(ctx, query, topK)
			if err != nil {
				c.logger.Warn("search invocation failed",
					zap.String("invocation_id", invocationID),
					zap.String("query", query),
					zap.Error(err),
				)
				emit(protocol.SearchFinished{
					StageID:      domain.StageRetrieval,
					InvocationID: invocationID,
					Success:      false,
				})
				outcomes[i] = fmt.Sprintf("Search failed: %v", err)
				return
			}

			for _, r := range results {
				c.store.Add(&domain.Document{
					Content:           r.Content,
					Source:            r.Source,
					Score:             r.Score,
					ChunkKey:          r.ChunkKey,
					DocID:             r.DocID,
					DocURL:            r.DocURL,
					KnowledgeBaseID:   r.KnowledgeBaseID,
					KnowledgeBaseName: r.KnowledgeBaseName,
				})
			}

			emit(protocol.SearchFinished{
				StageID:      domain.StageRetrieval,
				InvocationID: invocationID,
				Success:      true,
				ResultCount:  len(results),
			})
			outcomes[i] = formatSearchOutcome(results)
		}(i, invocationID, args.Query, topK)
	}

	wg.Wait()
	return outcomes
}

// formatSearchOutcome summarizes one search result for the next model
// round, so the model can diversify its follow-up queries.
func formatSearchOutcome(results []search.Result) string {
	if len(results) == 0 {
		return "No documents found for this query."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d document chunks:\n", len(results))
	for i, r := range results {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "- %s (score %.2f)\n", r.Source, r.Score)
	}
	return b.String()
}
