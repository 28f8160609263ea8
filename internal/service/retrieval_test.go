package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yuhao-w/deepquery/internal/llm"
	"github.com/yuhao-w/deepquery/internal/protocol"
	"github.com/yuhao-w/deepquery/internal/search"
)

func newTestRetrieval(t *testing.T, model *fakeLLM, kb *fakeSearch, store *DocumentStore) *RetrievalController {
	t.Helper()
	return NewRetrievalController(model, kb, store, 3, 5, zap.NewNop())
}

func TestRetrievalCollectsAcrossRounds(t *testing.T) {
	model := &fakeLLM{steps: []completionStep{
		{completion: &llm.Completion{ToolCalls: []llm.ToolCall{toolCall(t, "t1", "q1", 5)}}},
		{completion: &llm.Completion{ToolCalls: []llm.ToolCall{toolCall(t, "t2", "q2", 5)}}},
		{completion: &llm.Completion{ToolCalls: []llm.ToolCall{toolCall(t, "t3", "q3", 5)}}},
	}}
	kb := &fakeSearch{results: map[string][]search.Result{
		"q1": {chunk("a", "A", 0.9), chunk("b", "B", 0.7)},
		"q2": {chunk("b", "B", 0.7)}, // duplicate of round 1
		"q3": {chunk("c", "C", 0.95)},
	}}
	store := NewDocumentStore()

	err := newTestRetrieval(t, model, kb, store).Run(context.Background(), "question", (&eventCollector{}).emit)
	require.NoError(t, err)

	store.Finalize()
	require.Equal(t, 3, store.Len())
	refs := store.References()
	assert.Equal(t, []string{"C", "A", "B"}, []string{refs[0].Source, refs[1].Source, refs[2].Source})
}

func TestRetrievalStopsWhenModelStops(t *testing.T) {
	model := &fakeLLM{steps: []completionStep{
		{completion: &llm.Completion{Content: "nothing to search"}},
	}}
	kb := &fakeSearch{}
	collector := &eventCollector{}

	err := newTestRetrieval(t, model, kb, NewDocumentStore()).Run(context.Background(), "question", collector.emit)
	require.NoError(t, err)

	assert.Equal(t, 1, model.completeCalls)
	assert.Zero(t, kb.callCount())
	assert.Empty(t, collector.all())
}

func TestRetrievalRespectsRoundBudget(t *testing.T) {
	// The model never stops asking; the loop must.
	model := &fakeLLM{steps: []completionStep{
		{completion: &llm.Completion{ToolCalls: []llm.ToolCall{toolCall(t, "t1", "q", 5)}}},
		{completion: &llm.Completion{ToolCalls: []llm.ToolCall{toolCall(t, "t2", "q", 5)}}},
		{completion: &llm.Completion{ToolCalls: []llm.ToolCall{toolCall(t, "t3", "q", 5)}}},
		{completion: &llm.Completion{ToolCalls: []llm.ToolCall{toolCall(t, "t4", "q", 5)}}},
	}}
	kb := &fakeSearch{results: map[string][]search.Result{"q": {chunk("a", "A", 0.5)}}}

	err := newTestRetrieval(t, model, kb, NewDocumentStore()).Run(context.Background(), "question", (&eventCollector{}).emit)
	require.NoError(t, err)

	assert.Equal(t, 3, model.completeCalls)
	assert.Equal(t, 3, kb.callCount())
}

func TestRetrievalAbsorbsFailedSearch(t *testing.T) {
	model := &fakeLLM{steps: []completionStep{
		{completion: &llm.Completion{ToolCalls: []llm.ToolCall{
			toolCall(t, "t1", "bad", 5),
			toolCall(t, "t2", "good", 5),
		}}},
	}}
	kb := &fakeSearch{
		results: map[string][]search.Result{"good": {chunk("a", "A", 0.8)}},
		errs:    map[string]error{"bad": errors.New("gateway unavailable")},
	}
	store := NewDocumentStore()
	collector := &eventCollector{}

	err := newTestRetrieval(t, model, kb, store).Run(context.Background(), "question", collector.emit)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	var ok, failed int
	for _, ev := range collector.all() {
		if fin, isFin := ev.(protocol.SearchFinished); isFin {
			if fin.Success {
				ok++
			} else {
				failed++
			}
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
}

func TestRetrievalFailsOnModelError(t *testing.T) {
	model := &fakeLLM{steps: []completionStep{
		{err: errors.New("connection reset")},
	}}

	err := newTestRetrieval(t, model, &fakeSearch{}, NewDocumentStore()).Run(context.Background(), "question", (&eventCollector{}).emit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval round 1")
}

func TestRetrievalMalformedToolCall(t *testing.T) {
	model := &fakeLLM{steps: []completionStep{
		{completion: &llm.Completion{ToolCalls: []llm.ToolCall{
			{ID: "t1", Name: "search_knowledge", Arguments: "{not json"},
		}}},
	}}
	kb := &fakeSearch{}
	collector := &eventCollector{}

	err := newTestRetrieval(t, model, kb, NewDocumentStore()).Run(context.Background(), "question", collector.emit)
	require.NoError(t, err)

	// Reported as a failed invocation, and the collaborator is never called.
	assert.Zero(t, kb.callCount())
	events := collector.all()
	require.Len(t, events, 2)
	fin, isFin := events[1].(protocol.SearchFinished)
	require.True(t, isFin)
	assert.False(t, fin.Success)
}

func TestRetrievalInvocationIDsPairUp(t *testing.T) {
	model := &fakeLLM{steps: []completionStep{
		{completion: &llm.Completion{ToolCalls: []llm.ToolCall{
			toolCall(t, "t1", "q1", 5),
			toolCall(t, "t2", "q2", 5),
		}}},
	}}
	kb := &fakeSearch{results: map[string][]search.Result{
		"q1": {chunk("a", "A", 0.8)},
		"q2": {chunk("b", "B", 0.6)},
	}}
	collector := &eventCollector{}

	err := newTestRetrieval(t, model, kb, NewDocumentStore()).Run(context.Background(), "question", collector.emit)
	require.NoError(t, err)

	started := map[string]bool{}
	finished := map[string]bool{}
	for _, ev := range collector.all() {
		switch ev := ev.(type) {
		case protocol.SearchStarted:
			assert.False(t, started[ev.InvocationID], "duplicate start %s", ev.InvocationID)
			started[ev.InvocationID] = true
		case protocol.SearchFinished:
			finished[ev.InvocationID] = true
		}
	}
	assert.Len(t, started, 2)
	assert.Equal(t, started, finished)
}
