package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kindred-voice/relay/pkg/live/backend"
	"github.com/kindred-voice/relay/pkg/memory"
)

type fakeMemories struct {
	searchRecords []memory.Record
	searchErr     error
	searchCalls   int
	lastQuery     string
	lastTopK      int

	saveID    string
	saveErr   error
	saveCalls int
	lastSave  string
	lastAttrs memory.Attributes
}

func (f *fakeMemories) Search(_ context.Context, query string, topK int, _ string) ([]memory.Record, error) {
	f.searchCalls++
	f.lastQuery = query
	f.lastTopK = topK
	return f.searchRecords, f.searchErr
}

func (f *fakeMemories) Save(_ context.Context, _, content string, attrs memory.Attributes) (string, error) {
	f.saveCalls++
	f.lastSave = content
	f.lastAttrs = attrs
	return f.saveID, f.saveErr
}

func newTestDispatcher(m memory.Client) *Dispatcher {
	return NewDispatcher(m, 0.6, nil)
}

func TestDispatchBatchAlwaysOneResultPerCall(t *testing.T) {
	mem := &fakeMemories{
		searchRecords: []memory.Record{{Content: "likes jazz", Score: 0.9}},
		saveErr:       errors.New("store down"),
	}
	d := newTestDispatcher(mem)

	calls := []backend.ToolCall{
		{CallID: "c1", Name: "search_memories", Args: map[string]any{"query": "music"}},
		{CallID: "c2", Name: "save_new_memory", Args: map[string]any{"content": "met nurse"}},
		{CallID: "c3", Name: "delete_everything", Args: map[string]any{}},
	}
	results := d.Dispatch(context.Background(), calls, "subj_1", "s_1")

	if len(results) != len(calls) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(calls))
	}
	for i, r := range results {
		if r.CallID != calls[i].CallID {
			t.Fatalf("results[%d].CallID = %q, want %q", i, r.CallID, calls[i].CallID)
		}
		if r.Name != calls[i].Name {
			t.Fatalf("results[%d].Name = %q, want %q", i, r.Name, calls[i].Name)
		}
	}
	if _, ok := results[0].Response["result"]; !ok {
		t.Fatalf("results[0] = %v, want a result entry", results[0].Response)
	}
	if _, ok := results[1].Response["error"]; !ok {
		t.Fatalf("results[1] = %v, want an error entry", results[1].Response)
	}
	errText, _ := results[2].Response["error"].(string)
	if !strings.Contains(errText, "delete_everything") {
		t.Fatalf("unknown-function error = %q, want it to name the function", errText)
	}
}

func TestSearchEmptyQuerySkipsMemoryClient(t *testing.T) {
	mem := &fakeMemories{}
	d := newTestDispatcher(mem)

	results := d.Dispatch(context.Background(), []backend.ToolCall{
		{CallID: "c1", Name: "search_memories", Args: map[string]any{"query": "   "}},
	}, "subj_1", "s_1")

	if mem.searchCalls != 0 {
		t.Fatalf("Search called %d times, want 0", mem.searchCalls)
	}
	if _, ok := results[0].Response["error"]; !ok {
		t.Fatalf("response = %v, want an error entry", results[0].Response)
	}
}

func TestSearchFiltersByThresholdKeepsOrder(t *testing.T) {
	mem := &fakeMemories{searchRecords: []memory.Record{
		{Content: "first", Score: 0.95},
		{Content: "too weak", Score: 0.3},
		{Content: "second", Score: 0.7, Category: "event", Date: "2026-08-01"},
	}}
	d := newTestDispatcher(mem)

	results := d.Dispatch(context.Background(), []backend.ToolCall{
		{CallID: "c1", Name: "search_memories", Args: map[string]any{"query": "q", "top_k": float64(5)}},
	}, "subj_1", "s_1")

	if mem.lastTopK != 5 {
		t.Fatalf("top_k = %d, want 5", mem.lastTopK)
	}
	text, _ := results[0].Response["result"].(string)
	if strings.Contains(text, "too weak") {
		t.Fatalf("filtered record leaked into result: %q", text)
	}
	firstIdx := strings.Index(text, "first")
	secondIdx := strings.Index(text, "second")
	if firstIdx < 0 || secondIdx < 0 || firstIdx > secondIdx {
		t.Fatalf("store order not preserved: %q", text)
	}
	if !strings.Contains(text, "(category: event)") || !strings.Contains(text, "(date: 2026-08-01)") {
		t.Fatalf("metadata missing from result: %q", text)
	}
}

func TestSearchNothingRelevantIsSuccess(t *testing.T) {
	mem := &fakeMemories{searchRecords: []memory.Record{{Content: "weak", Score: 0.1}}}
	d := newTestDispatcher(mem)

	results := d.Dispatch(context.Background(), []backend.ToolCall{
		{CallID: "c1", Name: "search_memories", Args: map[string]any{"query": "q"}},
	}, "subj_1", "s_1")

	text, ok := results[0].Response["result"].(string)
	if !ok {
		t.Fatalf("response = %v, want a result entry", results[0].Response)
	}
	if text != "No relevant memories were found." {
		t.Fatalf("result = %q", text)
	}
}

func TestSearchDefaultTopK(t *testing.T) {
	mem := &fakeMemories{}
	d := newTestDispatcher(mem)

	d.Dispatch(context.Background(), []backend.ToolCall{
		{CallID: "c1", Name: "search_memories", Args: map[string]any{"query": "q"}},
	}, "subj_1", "s_1")

	if mem.lastTopK != 3 {
		t.Fatalf("top_k = %d, want default 3", mem.lastTopK)
	}
}

func TestSaveEmptyContentSkipsMemoryClient(t *testing.T) {
	mem := &fakeMemories{saveID: "mem_1"}
	d := newTestDispatcher(mem)

	results := d.Dispatch(context.Background(), []backend.ToolCall{
		{CallID: "c1", Name: "save_new_memory", Args: map[string]any{"content": ""}},
	}, "subj_1", "s_1")

	if mem.saveCalls != 0 {
		t.Fatalf("Save called %d times, want 0", mem.saveCalls)
	}
	if _, ok := results[0].Response["error"]; !ok {
		t.Fatalf("response = %v, want an error entry", results[0].Response)
	}
}

func TestSaveAttachesAttributes(t *testing.T) {
	mem := &fakeMemories{saveID: "mem_1"}
	d := newTestDispatcher(mem)

	results := d.Dispatch(context.Background(), []backend.ToolCall{
		{CallID: "c1", Name: "save_new_memory", Args: map[string]any{
			"content":  "granddaughter visited",
			"category": "family",
		}},
	}, "subj_1", "s_42")

	text, _ := results[0].Response["result"].(string)
	if !strings.Contains(text, "granddaughter visited") {
		t.Fatalf("result = %q", text)
	}
	if mem.lastAttrs.Category != "family" {
		t.Fatalf("category = %q, want family", mem.lastAttrs.Category)
	}
	if mem.lastAttrs.Importance != "medium" {
		t.Fatalf("importance = %q, want default medium", mem.lastAttrs.Importance)
	}
	if mem.lastAttrs.SessionID != "s_42" {
		t.Fatalf("session id = %q, want s_42", mem.lastAttrs.SessionID)
	}
	if len(mem.lastAttrs.Date) != len("2006-01-02") {
		t.Fatalf("date = %q, want ISO date", mem.lastAttrs.Date)
	}
}

func TestSaveEmptyIDIsError(t *testing.T) {
	mem := &fakeMemories{saveID: ""}
	d := newTestDispatcher(mem)

	results := d.Dispatch(context.Background(), []backend.ToolCall{
		{CallID: "c1", Name: "save_new_memory", Args: map[string]any{"content": "note"}},
	}, "subj_1", "s_1")

	if _, ok := results[0].Response["error"]; !ok {
		t.Fatalf("response = %v, want an error entry", results[0].Response)
	}
}
