package backend

// Event is one classified occurrence on the backend stream. The set of
// variants is closed; consumers switch exhaustively on the concrete type.
type Event interface {
	backendEvent()
}

// ToolCallEvent carries one batch of function invocations. It blocks the
// backend until answered, so it is always the first event emitted for a
// message and suppresses the message's other content.
type ToolCallEvent struct {
	Calls []ToolCall
}

// InterruptedEvent signals the participant spoke over the assistant. Any
// buffered transcript fragments for the in-progress turn are invalid.
type InterruptedEvent struct{}

// AudioEvent is one chunk of synthesized assistant audio.
type AudioEvent struct {
	Data []byte
}

// TextEvent is inline assistant text outside the transcription channel.
type TextEvent struct {
	Text string
}

// InputTranscriptEvent is a speech-to-text fragment of participant audio.
type InputTranscriptEvent struct {
	Text string
}

// OutputTranscriptEvent is a fragment of the assistant's spoken text.
type OutputTranscriptEvent struct {
	Text string
}

// TurnCompleteEvent marks the end of one conversational turn.
type TurnCompleteEvent struct{}

// GoAwayEvent is the backend's advisory that the connection will close soon.
type GoAwayEvent struct{}

// SessionResumptionEvent carries an updated resumption handle.
type SessionResumptionEvent struct {
	Handle    string
	Resumable bool
}

func (ToolCallEvent) backendEvent()          {}
func (InterruptedEvent) backendEvent()       {}
func (AudioEvent) backendEvent()             {}
func (TextEvent) backendEvent()              {}
func (InputTranscriptEvent) backendEvent()   {}
func (OutputTranscriptEvent) backendEvent()  {}
func (TurnCompleteEvent) backendEvent()      {}
func (GoAwayEvent) backendEvent()            {}
func (SessionResumptionEvent) backendEvent() {}
