package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/yuhao-w/deepquery/internal/llm"
	"github.com/yuhao-w/deepquery/internal/protocol"
	"github.com/yuhao-w/deepquery/internal/search"
)

// completionStep scripts one Complete call of the fake model.
type completionStep struct {
	completion *llm.Completion
	err        error
}

// fakeLLM replays scripted completions and stream fragments.
type fakeLLM struct {
	mu            sync.Mutex
	steps         []completionStep
	completeCalls int

	// completeHook runs on every Complete call, before the scripted step is
	// consumed. Lets a test cancel its context mid-pipeline.
	completeHook func()

	fragments []llm.Fragment
	streamErr error
}

func (f *fakeLLM) Complete(_ context.Context, _ []llm.Message, _ []llm.ToolSpec) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	if f.completeHook != nil {
		f.completeHook()
	}
	if len(f.steps) == 0 {
		return &llm.Completion{}, nil
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	return step.completion, step.err
}

func (f *fakeLLM) Stream(_ context.Context, _ []llm.Message) (<-chan llm.Fragment, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan llm.Fragment, len(f.fragments))
	for _, frag := range f.fragments {
		ch <- frag
	}
	close(ch)
	return ch, nil
}

// fakeSearch maps queries to canned results or errors and records calls.
type fakeSearch struct {
	mu      sync.Mutex
	results map[string][]search.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeSearch) Search(_ context.Context, query string, _ int) ([]search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, query)
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	return f.results[query], nil
}

func (f *fakeSearch) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// eventCollector is a concurrency-safe emit target.
type eventCollector struct {
	mu     sync.Mutex
	events []protocol.Event
}

func (c *eventCollector) emit(ev protocol.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *eventCollector) all() []protocol.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Event, len(c.events))
	copy(out, c.events)
	return out
}

func toolCall(t *testing.T, id, query string, topK int) llm.ToolCall {
	t.Helper()
	args := map[string]any{"query": query}
	if topK > 0 {
		args["top_k"] = topK
	}
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal tool args: %v", err)
	}
	return llm.ToolCall{ID: id, Name: "search_knowledge", Arguments: string(raw)}
}

func chunk(key, source string, score float64) search.Result {
	return search.Result{Content: "content of " + key, Source: source, Score: score, ChunkKey: key}
}
