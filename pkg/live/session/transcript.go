package session

import (
	"strings"
	"time"

	"github.com/kindred-voice/relay/pkg/storage/transcripts"
)

// turnAccumulator buffers transcript fragments for the in-progress turn.
// Fragments are committed only on turn completion; an interruption discards
// them.
type turnAccumulator struct {
	input  []string
	output []string
}

func newTurnAccumulator() *turnAccumulator {
	return &turnAccumulator{}
}

func (a *turnAccumulator) addInput(fragment string) {
	if fragment == "" {
		return
	}
	a.input = append(a.input, fragment)
}

func (a *turnAccumulator) addOutput(fragment string) {
	if fragment == "" {
		return
	}
	a.output = append(a.output, fragment)
}

// discard drops the buffered fragments; an interruption invalidates the
// partial turn.
func (a *turnAccumulator) discard() {
	a.input = nil
	a.output = nil
}

// commit flushes the buffers into at most two turns, participant first.
// Whitespace-only buffers produce no turn.
func (a *turnAccumulator) commit(now time.Time) []transcripts.Turn {
	var turns []transcripts.Turn
	if text := strings.TrimSpace(strings.Join(a.input, "")); text != "" {
		turns = append(turns, transcripts.Turn{
			Speaker:   transcripts.SpeakerParticipant,
			Content:   text,
			Timestamp: now,
		})
	}
	if text := strings.TrimSpace(strings.Join(a.output, "")); text != "" {
		turns = append(turns, transcripts.Turn{
			Speaker:   transcripts.SpeakerAssistant,
			Content:   text,
			Timestamp: now,
		})
	}
	a.input = nil
	a.output = nil
	return turns
}
