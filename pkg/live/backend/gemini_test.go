package backend

import (
	"testing"

	"google.golang.org/genai"
)

func TestClassifyToolCallSuppressesContent(t *testing.T) {
	msg := &genai.LiveServerMessage{
		ToolCall: &genai.LiveServerToolCall{
			FunctionCalls: []*genai.FunctionCall{
				{ID: "call-1", Name: "search_memories", Args: map[string]any{"query": "family"}},
				{ID: "call-2", Name: "save_new_memory", Args: map[string]any{"content": "likes tea"}},
			},
		},
		ServerContent: &genai.LiveServerContent{TurnComplete: true},
	}

	events := classify(msg)
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	tc, ok := events[0].(ToolCallEvent)
	if !ok {
		t.Fatalf("events[0] = %T, want ToolCallEvent", events[0])
	}
	if len(tc.Calls) != 2 || tc.Calls[0].CallID != "call-1" || tc.Calls[1].Name != "save_new_memory" {
		t.Fatalf("calls = %+v", tc.Calls)
	}
}

func TestClassifyInterruptedSuppressesServerContent(t *testing.T) {
	msg := &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			Interrupted:         true,
			TurnComplete:        true,
			OutputTranscription: &genai.Transcription{Text: "hel"},
		},
	}

	events := classify(msg)
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if _, ok := events[0].(InterruptedEvent); !ok {
		t.Fatalf("events[0] = %T, want InterruptedEvent", events[0])
	}
}

func TestClassifyOrdersMultiplexedContent(t *testing.T) {
	msg := &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{Parts: []*genai.Part{
				{InlineData: &genai.Blob{Data: []byte{1, 2, 3}, MIMEType: "audio/pcm;rate=24000"}},
				{Text: "Hello."},
			}},
			InputTranscription:  &genai.Transcription{Text: "hi"},
			OutputTranscription: &genai.Transcription{Text: "Hello."},
			TurnComplete:        true,
		},
	}

	events := classify(msg)
	want := []string{"AudioEvent", "TextEvent", "InputTranscriptEvent", "OutputTranscriptEvent", "TurnCompleteEvent"}
	if len(events) != len(want) {
		t.Fatalf("len(events) = %d, want %d (%+v)", len(events), len(want), events)
	}
	for i, ev := range events {
		var name string
		switch ev.(type) {
		case AudioEvent:
			name = "AudioEvent"
		case TextEvent:
			name = "TextEvent"
		case InputTranscriptEvent:
			name = "InputTranscriptEvent"
		case OutputTranscriptEvent:
			name = "OutputTranscriptEvent"
		case TurnCompleteEvent:
			name = "TurnCompleteEvent"
		default:
			name = "unexpected"
		}
		if name != want[i] {
			t.Fatalf("events[%d] = %T, want %s", i, ev, want[i])
		}
	}
}

func TestClassifyAdvisories(t *testing.T) {
	msg := &genai.LiveServerMessage{
		GoAway: &genai.LiveServerGoAway{},
		SessionResumptionUpdate: &genai.LiveServerSessionResumptionUpdate{
			NewHandle: "handle-1",
			Resumable: true,
		},
	}

	events := classify(msg)
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if _, ok := events[0].(GoAwayEvent); !ok {
		t.Fatalf("events[0] = %T, want GoAwayEvent", events[0])
	}
	sru, ok := events[1].(SessionResumptionEvent)
	if !ok || sru.Handle != "handle-1" || !sru.Resumable {
		t.Fatalf("events[1] = %+v", events[1])
	}
}

func TestClassifyEmptyMessage(t *testing.T) {
	if events := classify(&genai.LiveServerMessage{}); len(events) != 0 {
		t.Fatalf("events = %+v, want none", events)
	}
	if events := classify(nil); events != nil {
		t.Fatalf("events = %+v, want nil", events)
	}
}
