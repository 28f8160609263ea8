package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yuhao-w/deepquery/internal/domain"
)

func newGatewayClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Config{
		Endpoint:          srv.URL,
		APIKey:            "secret",
		KnowledgeBaseID:   "kb-1",
		KnowledgeBaseName: "Research KB",
	}, zap.NewNop())
}

func TestSearchParsesGatewayResponse(t *testing.T) {
	var gotReq retrieveRequest
	client := newGatewayClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(`{
			"code": 200,
			"data": [
				{"text": "chunk one", "score": 0.91,
				 "metadata": {"_id": "c1", "doc_id": "d1", "doc_name": "Report", "doc_url": "https://kb/d1"}},
				{"text": "chunk two", "score": 0.42, "metadata": {"_id": "c2", "doc_id": "d2"}}
			]
		}`))
	})

	results, err := client.Search(context.Background(), "market outlook", 5)
	require.NoError(t, err)

	assert.Equal(t, "market outlook", gotReq.Query)
	assert.Equal(t, []string{"kb-1"}, gotReq.KnowledgeIDs)
	assert.Equal(t, 5, gotReq.TopK)

	require.Len(t, results, 2)
	assert.Equal(t, "chunk one", results[0].Content)
	assert.Equal(t, "Report", results[0].Source)
	assert.Equal(t, "c1", results[0].ChunkKey)
	assert.Equal(t, "https://kb/d1", results[0].DocURL)
	assert.Equal(t, "kb-1", results[0].KnowledgeBaseID)
	assert.Equal(t, "Research KB", results[0].KnowledgeBaseName)
	// Missing doc_name falls back to a placeholder source.
	assert.Equal(t, "Unknown", results[1].Source)
}

func TestSearchClampsTopK(t *testing.T) {
	var tops []int
	client := newGatewayClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req retrieveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		tops = append(tops, req.TopK)
		w.Write([]byte(`{"code": 200, "data": []}`))
	})

	for _, topK := range []int{0, -3, 7, 50} {
		_, err := client.Search(context.Background(), "q", topK)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 1, 7, 20}, tops)
}

func TestSearchGatewayBusinessError(t *testing.T) {
	client := newGatewayClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": 403, "message": "knowledge base suspended"}`))
	})

	_, err := client.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCollaboratorFailure)
	assert.Contains(t, err.Error(), "knowledge base suspended")
}

func TestSearchGatewayHTTPError(t *testing.T) {
	client := newGatewayClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := client.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCollaboratorFailure)
	assert.Contains(t, err.Error(), "502")
}

func TestSearchMalformedBody(t *testing.T) {
	client := newGatewayClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": 200, "data": [`))
	})

	_, err := client.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestSearchContextCancelled(t *testing.T) {
	client := newGatewayClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": 200, "data": []}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Search(ctx, "q", 5)
	require.Error(t, err)
}
