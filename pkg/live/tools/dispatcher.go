// Package tools executes backend-initiated tool calls against the memory
// store and packages their results for the tool-response channel.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kindred-voice/relay/pkg/live/backend"
	"github.com/kindred-voice/relay/pkg/memory"
)

const (
	funcSearchMemories = "search_memories"
	funcSaveNewMemory  = "save_new_memory"

	defaultTopK       = 3
	defaultImportance = "medium"
)

// Dispatcher resolves tool calls to memory operations. Every request in a
// batch yields exactly one result; failures become error results, never
// panics or dropped entries.
type Dispatcher struct {
	memories  memory.Client
	threshold float64
	logger    *slog.Logger
	now       func() time.Time
}

func NewDispatcher(memories memory.Client, relevanceThreshold float64, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		memories:  memories,
		threshold: relevanceThreshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch executes the batch for one subject and returns one result per
// call, in call order, each echoing its call id.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []backend.ToolCall, subjectID, sessionID string) []backend.ToolResult {
	results := make([]backend.ToolResult, 0, len(calls))
	for _, call := range calls {
		text, err := d.execute(ctx, call, subjectID, sessionID)
		response := map[string]any{"result": text}
		if err != nil {
			d.logger.Warn("tool call failed",
				"session_id", sessionID,
				"function", call.Name,
				"error", err,
			)
			response = map[string]any{"error": err.Error()}
		}
		results = append(results, backend.ToolResult{
			CallID:   call.CallID,
			Name:     call.Name,
			Response: response,
		})
	}
	return results
}

func (d *Dispatcher) execute(ctx context.Context, call backend.ToolCall, subjectID, sessionID string) (string, error) {
	switch call.Name {
	case funcSearchMemories:
		return d.searchMemories(ctx, call.Args, subjectID)
	case funcSaveNewMemory:
		return d.saveNewMemory(ctx, call.Args, subjectID, sessionID)
	default:
		return "", fmt.Errorf("unknown function: %s", call.Name)
	}
}

func (d *Dispatcher) searchMemories(ctx context.Context, args map[string]any, subjectID string) (string, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return "", fmt.Errorf("no search query was provided")
	}
	topK := intArg(args, "top_k", defaultTopK)

	records, err := d.memories.Search(ctx, query, topK, subjectID)
	if err != nil {
		return "", fmt.Errorf("memory search failed: %w", err)
	}

	var lines []string
	for _, rec := range records {
		if rec.Score <= d.threshold {
			continue
		}
		line := "- " + rec.Content
		if rec.Category != "" {
			line += fmt.Sprintf(" (category: %s)", rec.Category)
		}
		if rec.Date != "" {
			line += fmt.Sprintf(" (date: %s)", rec.Date)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "No relevant memories were found.", nil
	}
	return "Retrieved memories:\n" + strings.Join(lines, "\n"), nil
}

func (d *Dispatcher) saveNewMemory(ctx context.Context, args map[string]any, subjectID, sessionID string) (string, error) {
	content := strings.TrimSpace(stringArg(args, "content"))
	if content == "" {
		return "", fmt.Errorf("no content was provided to save")
	}

	attrs := memory.Attributes{
		Category:   stringArg(args, "category"),
		Importance: stringArg(args, "importance"),
		Date:       d.now().UTC().Format("2006-01-02"),
		SessionID:  sessionID,
	}
	if attrs.Importance == "" {
		attrs.Importance = defaultImportance
	}

	id, err := d.memories.Save(ctx, subjectID, content, attrs)
	if err != nil {
		return "", fmt.Errorf("saving the memory failed: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("saving the memory failed: store returned no id")
	}
	return "Memory saved: " + content, nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg accepts float64 because tool arguments arrive as decoded JSON.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return fallback
}
