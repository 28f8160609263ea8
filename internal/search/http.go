package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yuhao-w/deepquery/internal/domain"
)

// The gateway caps result counts at 20 per query.
const (
	minTopK = 1
	maxTopK = 20
)

// Config holds the knowledge-gateway connection settings.
type Config struct {
	Endpoint          string
	APIKey            string
	KnowledgeBaseID   string
	KnowledgeBaseName string
	Timeout           time.Duration
}

// HTTPClient implements Client against the knowledge-gateway retrieve
// endpoint (mixed vector/keyword recall with reranking).
type HTTPClient struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewHTTPClient creates a gateway search client.
func NewHTTPClient(cfg Config, logger *zap.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type retrieveRequest struct {
	Query        string   `json:"query"`
	KnowledgeIDs []string `json:"knowledge_ids"`
	TopK         int      `json:"top_k"`
	RecallMethod string   `json:"recall_method"`
	RecallRatio  int      `json:"recall_ratio"`
	RerankStatus int      `json:"rerank_status"`
	RerankModel  string   `json:"rerank_model"`
}

type retrieveResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    []struct {
		Text     string  `json:"text"`
		Score    float64 `json:"score"`
		Metadata struct {
			ID      string `json:"_id"`
			DocID   string `json:"doc_id"`
			DocName string `json:"doc_name"`
			DocURL  string `json:"doc_url"`
		} `json:"metadata"`
	} `json:"data"`
}

// Search runs one retrieve call against the gateway.
func (c *HTTPClient) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK < minTopK {
		topK = minTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	payload := retrieveRequest{
		Query:        query,
		KnowledgeIDs: []string{c.cfg.KnowledgeBaseID},
		TopK:         topK,
		RecallMethod: "mixed",
		RecallRatio:  80,
		RerankStatus: 1,
		RerankModel:  "rerank",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal retrieve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build retrieve request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil, fmt.Errorf("%w: %v", domain.ErrCollaboratorTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCollaboratorFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("%w: gateway returned HTTP %d: %s",
			domain.ErrCollaboratorFailure, resp.StatusCode, snippet)
	}

	var decoded retrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if decoded.Code != 200 {
		return nil, fmt.Errorf("%w: gateway error: %s", domain.ErrCollaboratorFailure, decoded.Message)
	}

	results := make([]Result, 0, len(decoded.Data))
	for _, item := range decoded.Data {
		source := item.Metadata.DocName
		if source == "" {
			source = "Unknown"
		}
		results = append(results, Result{
			Content:           item.Text,
			Source:            source,
			Score:             item.Score,
			ChunkKey:          item.Metadata.ID,
			DocID:             item.Metadata.DocID,
			DocURL:            item.Metadata.DocURL,
			KnowledgeBaseID:   c.cfg.KnowledgeBaseID,
			KnowledgeBaseName: c.cfg.KnowledgeBaseName,
		})
	}

	c.logger.Debug("retrieve call finished",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)
	return results, nil
}
