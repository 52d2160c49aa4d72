package session

import (
	"testing"
	"time"

	"github.com/kindred-voice/relay/pkg/storage/transcripts"
)

func TestAccumulatorCommitJoinsFragments(t *testing.T) {
	acc := newTurnAccumulator()
	acc.addInput("안")
	acc.addInput("녕")
	acc.addOutput("Hello ")
	acc.addOutput("there.")

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	turns := acc.commit(now)
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Speaker != transcripts.SpeakerParticipant || turns[0].Content != "안녕" {
		t.Fatalf("turns[0] = %+v", turns[0])
	}
	if turns[1].Speaker != transcripts.SpeakerAssistant || turns[1].Content != "Hello there." {
		t.Fatalf("turns[1] = %+v", turns[1])
	}
	if !turns[0].Timestamp.Equal(now) {
		t.Fatalf("timestamp = %v, want %v", turns[0].Timestamp, now)
	}

	if again := acc.commit(now); len(again) != 0 {
		t.Fatalf("second commit = %+v, want empty", again)
	}
}

func TestAccumulatorDropsWhitespaceOnlyBuffers(t *testing.T) {
	acc := newTurnAccumulator()
	acc.addInput("  ")
	acc.addInput("\n")
	acc.addOutput("real text")

	turns := acc.commit(time.Now())
	if len(turns) != 1 {
		t.Fatalf("len(turns) = %d, want 1: %+v", len(turns), turns)
	}
	if turns[0].Speaker != transcripts.SpeakerAssistant {
		t.Fatalf("speaker = %v, want assistant", turns[0].Speaker)
	}
}

func TestAccumulatorDiscard(t *testing.T) {
	acc := newTurnAccumulator()
	acc.addInput("hel")
	acc.addOutput("wor")
	acc.discard()

	if turns := acc.commit(time.Now()); len(turns) != 0 {
		t.Fatalf("commit after discard = %+v, want empty", turns)
	}
}
