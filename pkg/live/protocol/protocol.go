// Package protocol defines the JSON envelope used for all non-audio text
// frames exchanged with the client over the realtime websocket.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope types sent to the client.
const (
	TypeInputTranscript  = "input_transcript"
	TypeOutputTranscript = "output_transcript"
	TypeAudio            = "audio"
	TypeText             = "text"
	TypeInterrupt        = "interrupt"
	TypeTurnComplete     = "turn_complete"
	TypeWarning          = "warning"
)

// Payload is the envelope for every non-audio client-facing message.
type Payload struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Encode marshals a typed envelope to a text frame.
func Encode(messageType string, data any) ([]byte, error) {
	messageType = strings.TrimSpace(messageType)
	if messageType == "" {
		return nil, fmt.Errorf("payload type must not be empty")
	}
	return json.Marshal(Payload{Type: messageType, Data: data})
}

// Decode parses a text frame into an envelope. The data field is left as
// raw JSON for the caller to interpret per type.
func Decode(frame []byte) (string, json.RawMessage, error) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return "", nil, &DecodeError{Message: "invalid json frame"}
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return "", nil, &DecodeError{Message: "missing type"}
	}
	return typ, envelope.Data, nil
}
