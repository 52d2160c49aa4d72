package backend

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/genai"
)

// GeminiConfig selects the live model and its conversational behavior.
type GeminiConfig struct {
	Model        string
	VoiceName    string
	SystemPrompt string
}

// GeminiConnector opens Gemini Live sessions configured for voice relay:
// audio responses, input/output transcription, and the memory tools.
type GeminiConnector struct {
	client *genai.Client
	cfg    GeminiConfig
}

func NewGeminiConnector(client *genai.Client, cfg GeminiConfig) *GeminiConnector {
	return &GeminiConnector{client: client, cfg: cfg}
}

func (c *GeminiConnector) Connect(ctx context.Context) (Session, error) {
	sess, err := c.client.Live.Connect(ctx, c.cfg.Model, liveConfig(c.cfg))
	if err != nil {
		return nil, fmt.Errorf("connect live session: %w", err)
	}
	return &geminiSession{sess: sess}, nil
}

func liveConfig(cfg GeminiConfig) *genai.LiveConnectConfig {
	lc := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		Tools:                    []*genai.Tool{memoryTools()},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if cfg.SystemPrompt != "" {
		lc.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemPrompt}},
		}
	}
	if cfg.VoiceName != "" {
		lc.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.VoiceName},
			},
		}
	}
	return lc
}

func memoryTools() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "search_memories",
				Description: "Search the participant's long-term memories for entries relevant to a query.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"query": {Type: genai.TypeString, Description: "What to look for in past memories."},
						"top_k": {Type: genai.TypeInteger, Description: "How many memories to retrieve."},
					},
					Required: []string{"query"},
				},
			},
			{
				Name:        "save_new_memory",
				Description: "Store a new long-term memory about the participant.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"content":    {Type: genai.TypeString, Description: "The memory to store, as one sentence."},
						"category":   {Type: genai.TypeString, Description: "Free-form category label."},
						"importance": {Type: genai.TypeString, Description: "One of high, medium, low."},
					},
					Required: []string{"content"},
				},
			},
		},
	}
}

type geminiSession struct {
	sess *genai.Session
}

func (g *geminiSession) SendAudio(chunk []byte, sampleRateHz int) error {
	if len(chunk) == 0 {
		return nil
	}
	err := g.sess.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			Data:     chunk,
			MIMEType: fmt.Sprintf("audio/pcm;rate=%d", sampleRateHz),
		},
	})
	if err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func (g *geminiSession) SendToolResults(results []ToolResult) error {
	responses := make([]*genai.FunctionResponse, 0, len(results))
	for _, r := range results {
		responses = append(responses, &genai.FunctionResponse{
			ID:       r.CallID,
			Name:     r.Name,
			Response: r.Response,
		})
	}
	err := g.sess.SendToolResponse(genai.LiveToolResponseInput{FunctionResponses: responses})
	if err != nil {
		return fmt.Errorf("send tool response: %w", err)
	}
	return nil
}

func (g *geminiSession) Receive() ([]Event, error) {
	msg, err := g.sess.Receive()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrSessionClosed
		}
		return nil, fmt.Errorf("receive: %w", err)
	}
	return classify(msg), nil
}

func (g *geminiSession) Close() error {
	return g.sess.Close()
}

// classify flattens one server message into ordered events. A tool call
// suppresses the rest of the message, and an interruption suppresses the
// remaining server content, since both invalidate what follows.
func classify(msg *genai.LiveServerMessage) []Event {
	if msg == nil {
		return nil
	}

	if tc := msg.ToolCall; tc != nil && len(tc.FunctionCalls) > 0 {
		calls := make([]ToolCall, 0, len(tc.FunctionCalls))
		for _, fc := range tc.FunctionCalls {
			calls = append(calls, ToolCall{CallID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
		return []Event{ToolCallEvent{Calls: calls}}
	}

	var events []Event
	if sc := msg.ServerContent; sc != nil {
		if sc.Interrupted {
			events = append(events, InterruptedEvent{})
		} else {
			if sc.ModelTurn != nil {
				for _, part := range sc.ModelTurn.Parts {
					if part == nil {
						continue
					}
					if part.InlineData != nil && len(part.InlineData.Data) > 0 {
						events = append(events, AudioEvent{Data: part.InlineData.Data})
					}
					if part.Text != "" {
						events = append(events, TextEvent{Text: part.Text})
					}
				}
			}
			if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
				events = append(events, InputTranscriptEvent{Text: sc.InputTranscription.Text})
			}
			if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
				events = append(events, OutputTranscriptEvent{Text: sc.OutputTranscription.Text})
			}
			if sc.TurnComplete {
				events = append(events, TurnCompleteEvent{})
			}
		}
	}
	if msg.GoAway != nil {
		events = append(events, GoAwayEvent{})
	}
	if sru := msg.SessionResumptionUpdate; sru != nil {
		events = append(events, SessionResumptionEvent{Handle: sru.NewHandle, Resumable: sru.Resumable})
	}
	return events
}
