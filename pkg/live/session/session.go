// Package session orchestrates one live relay session: client audio in,
// backend events out, tool calls answered mid-stream, and a transcript
// persisted on teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/kindred-voice/relay/pkg/live/backend"
	"github.com/kindred-voice/relay/pkg/live/protocol"
	"github.com/kindred-voice/relay/pkg/storage/transcripts"
)

// State is the session lifecycle position. Transitions are monotonic:
// Created → Active → Draining → Finalized.
type State int32

const (
	StateCreated State = iota
	StateActive
	StateDraining
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateFinalized:
		return "finalized"
	}
	return "unknown"
}

// errBackendIdle ends a session whose backend went silent; it drives
// Draining like a disconnect, never a successful turn.
var errBackendIdle = errors.New("backend idle timeout expired")

// ClientConn is the client-side transport half the session uses. A gorilla
// websocket connection satisfies it.
type ClientConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// AudioSink receives the caller's PCM stream and produces a durable
// reference on finalize, or "" when nothing was recorded.
type AudioSink interface {
	Append(chunk []byte)
	Finalize(ctx context.Context) (string, error)
}

// ToolDispatcher answers one tool-call batch with exactly one result per
// request.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, calls []backend.ToolCall, subjectID, sessionID string) []backend.ToolResult
}

type Config struct {
	InputSampleRateHz  int
	AudioQueueSize     int
	OutboundQueueSize  int
	BackendIdleTimeout time.Duration
	WriteTimeout       time.Duration
	PingInterval       time.Duration
}

type Dependencies struct {
	Conn      ClientConn
	Backend   backend.Session
	Tools     ToolDispatcher
	Sink      AudioSink
	Store     transcripts.Store
	Logger    *slog.Logger
	SessionID string
	SubjectID string
	Config    Config
	StartTime time.Time
	Now       func() time.Time
}

// Manager owns the full lifecycle of one live session from accept to
// persisted teardown.
type Manager struct {
	conn      ClientConn
	backend   backend.Session
	tools     ToolDispatcher
	sink      AudioSink
	store     transcripts.Store
	logger    *slog.Logger
	sessionID string
	subjectID string
	cfg       Config
	startTime time.Time
	now       func() time.Time

	state atomic.Int32

	// Single-producer, single-consumer; a nil chunk is the end-of-stream
	// sentinel submitted exactly once by the receive worker.
	audioQueue chan []byte
	outbound   chan outboundFrame

	runCtx    context.Context
	runCancel context.CancelFunc

	// Written only by the response worker while Active; read by finalize
	// after all workers have stopped.
	transcript []transcripts.Turn

	finalizeOnce sync.Once
	endedAt      time.Time
	audioRef     string
}

func New(deps Dependencies) (*Manager, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("client connection is required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend session is required")
	}
	if deps.Tools == nil {
		return nil, fmt.Errorf("tool dispatcher is required")
	}
	if deps.Sink == nil {
		return nil, fmt.Errorf("audio sink is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("transcript store is required")
	}
	if deps.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.AudioQueueSize <= 0 {
		deps.Config.AudioQueueSize = 256
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = 128
	}
	if deps.Config.BackendIdleTimeout <= 0 {
		deps.Config.BackendIdleTimeout = 90 * time.Second
	}
	if deps.Config.WriteTimeout <= 0 {
		deps.Config.WriteTimeout = 5 * time.Second
	}
	if deps.StartTime.IsZero() {
		deps.StartTime = time.Now()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		conn:       deps.Conn,
		backend:    deps.Backend,
		tools:      deps.Tools,
		sink:       deps.Sink,
		store:      deps.Store,
		logger:     deps.Logger.With("session_id", deps.SessionID),
		sessionID:  deps.SessionID,
		subjectID:  deps.SubjectID,
		cfg:        deps.Config,
		startTime:  deps.StartTime,
		now:        deps.Now,
		audioQueue: make(chan []byte, deps.Config.AudioQueueSize),
		outbound:   make(chan outboundFrame, deps.Config.OutboundQueueSize),
		runCtx:     ctx,
		runCancel:  cancel,
	}
	m.state.Store(int32(StateCreated))
	return m, nil
}

func (m *Manager) ID() string        { return m.sessionID }
func (m *Manager) SubjectID() string { return m.subjectID }
func (m *Manager) State() State      { return State(m.state.Load()) }

// Cancel signals the session to drain. Safe from any goroutine.
func (m *Manager) Cancel() {
	m.setState(StateDraining)
	m.runCancel()
}

// Warn best-effort delivers a warning envelope to the client. Used for
// operator-facing notices like shutdown; drops the frame when the session
// is already gone or backlogged.
func (m *Manager) Warn(message string) {
	payload, err := protocol.Encode(protocol.TypeWarning, message)
	if err != nil {
		return
	}
	select {
	case m.outbound <- outboundFrame{messageType: websocket.TextMessage, data: payload}:
	case <-m.runCtx.Done():
	default:
	}
}

// Run drives the session to completion: starts the workers, waits for the
// first of them to stop, drains the rest, and finalizes. It blocks until
// the session is Finalized and returns the error that triggered Draining,
// if any. Connection closure is a normal end, not an error.
func (m *Manager) Run() error {
	m.setState(StateActive)
	m.logger.Info("session started", "subject_id", m.subjectID)

	g, ctx := errgroup.WithContext(m.runCtx)

	// Blocking reads on the socket and the backend stream only unwind when
	// their transports close, so tie both to the group context.
	unblock := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-unblock:
		}
		_ = m.conn.Close()
		_ = m.backend.Close()
	}()

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- m.writeLoop(ctx)
	}()

	// Any worker stopping, normally or not, drains the whole session.
	drainAfter := func(worker func(context.Context) error) func() error {
		return func() error {
			defer m.runCancel()
			return worker(ctx)
		}
	}
	g.Go(drainAfter(m.receiveLoop))
	g.Go(drainAfter(m.forwardLoop))
	g.Go(drainAfter(m.respondLoop))

	err := g.Wait()
	m.setState(StateDraining)
	close(unblock)
	<-writerDone

	if err != nil {
		m.logger.Warn("session draining after worker error", "error", err)
	}

	m.finalize()
	return err
}

// receiveLoop reads raw client frames and feeds the audio queue. On
// disconnect it submits the end-of-stream sentinel exactly once and exits.
func (m *Manager) receiveLoop(ctx context.Context) error {
	defer m.submitAudio(ctx, nil)

	for {
		messageType, data, err := m.conn.ReadMessage()
		if err != nil {
			// Expected teardown paths: normal close, going away, or a
			// socket already torn down by the unblock goroutine.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err) {
				m.logger.Debug("client connection closed", "error", err)
				return nil
			}
			return nil
		}
		switch messageType {
		case websocket.BinaryMessage:
			if len(data) == 0 {
				continue
			}
			if !m.submitAudio(ctx, data) {
				return nil
			}
		case websocket.TextMessage:
			envelope, _, decErr := protocol.Decode(data)
			if decErr != nil {
				m.logger.Debug("ignoring undecodable client frame", "error", decErr)
				continue
			}
			m.logger.Debug("ignoring client control frame", "type", envelope)
		}
	}
}

// submitAudio enqueues one chunk, or the nil sentinel, preserving arrival
// order. It reports false once the session is draining.
func (m *Manager) submitAudio(ctx context.Context, chunk []byte) bool {
	select {
	case m.audioQueue <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// forwardLoop drains the audio queue into the sink and the backend. The
// sentinel stops the loop without being forwarded; the backend learns about
// end-of-input from its connection closing.
func (m *Manager) forwardLoop(ctx context.Context) error {
	forward := func(chunk []byte) error {
		m.sink.Append(chunk)
		if err := m.backend.SendAudio(chunk, m.cfg.InputSampleRateHz); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("forward audio: %w", err)
		}
		return nil
	}

	for {
		select {
		case chunk := <-m.audioQueue:
			if chunk == nil {
				return nil
			}
			if err := forward(chunk); err != nil {
				return err
			}
		case <-ctx.Done():
			// Chunks enqueued before the sentinel are never dropped: drain
			// what is already queued, then stop pulling new work.
			for {
				select {
				case chunk := <-m.audioQueue:
					if chunk == nil {
						return nil
					}
					if err := forward(chunk); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}

// respondLoop is the sole consumer of backend events and the sole writer of
// the transcript and outbound client frames.
func (m *Manager) respondLoop(ctx context.Context) error {
	events := make(chan []backend.Event)
	recvErr := make(chan error, 1)
	go func() {
		for {
			batch, err := m.backend.Receive()
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case events <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()

	acc := newTurnAccumulator()
	idle := time.NewTimer(m.cfg.BackendIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-recvErr:
			if errors.Is(err, backend.ErrSessionClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("backend stream: %w", err)
		case <-idle.C:
			return errBackendIdle
		case batch := <-events:
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(m.cfg.BackendIdleTimeout)
			for _, ev := range batch {
				if err := m.handleEvent(ctx, ev, acc); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
			}
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev backend.Event, acc *turnAccumulator) error {
	switch e := ev.(type) {
	case backend.ToolCallEvent:
		results := m.tools.Dispatch(ctx, e.Calls, m.subjectID, m.sessionID)
		if err := m.backend.SendToolResults(results); err != nil {
			return fmt.Errorf("send tool results: %w", err)
		}
	case backend.InterruptedEvent:
		acc.discard()
		return m.sendEnvelope(ctx, protocol.TypeInterrupt, nil)
	case backend.AudioEvent:
		return m.sendBinary(ctx, e.Data)
	case backend.TextEvent:
		return m.sendEnvelope(ctx, protocol.TypeText, e.Text)
	case backend.InputTranscriptEvent:
		acc.addInput(e.Text)
		return m.sendEnvelope(ctx, protocol.TypeInputTranscript, e.Text)
	case backend.OutputTranscriptEvent:
		acc.addOutput(e.Text)
		return m.sendEnvelope(ctx, protocol.TypeOutputTranscript, e.Text)
	case backend.TurnCompleteEvent:
		m.transcript = append(m.transcript, acc.commit(m.now())...)
		return m.sendEnvelope(ctx, protocol.TypeTurnComplete, true)
	case backend.GoAwayEvent:
		m.logger.Info("backend connection closing soon")
	case backend.SessionResumptionEvent:
		m.logger.Info("backend resumption update", "resumable", e.Resumable)
	}
	return nil
}

func (m *Manager) sendEnvelope(ctx context.Context, envelopeType string, data any) error {
	payload, err := protocol.Encode(envelopeType, data)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", envelopeType, err)
	}
	return m.enqueue(ctx, outboundFrame{messageType: websocket.TextMessage, data: payload})
}

func (m *Manager) sendBinary(ctx context.Context, data []byte) error {
	return m.enqueue(ctx, outboundFrame{messageType: websocket.BinaryMessage, data: data})
}

func (m *Manager) enqueue(ctx context.Context, frame outboundFrame) error {
	select {
	case m.outbound <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finalize runs the terminal sequence exactly once: close out the audio
// sink, stamp the end time, and hand the record to durable storage. Store
// failures are logged, never propagated; a downstream outage must not keep
// a session from reaching Finalized.
func (m *Manager) finalize() {
	m.finalizeOnce.Do(func() {
		finalizeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		audioRef, err := m.sink.Finalize(finalizeCtx)
		if err != nil {
			m.logger.Warn("audio sink finalize failed", "error", err)
		} else {
			m.audioRef = audioRef
		}

		m.endedAt = m.now()
		record := &transcripts.SessionRecord{
			SessionID:         m.sessionID,
			SubjectID:         m.subjectID,
			StartedAt:         m.startTime,
			EndedAt:           m.endedAt,
			Conversation:      m.transcript,
			AudioRecordingURL: m.audioRef,
		}
		if err := m.store.SaveSession(finalizeCtx, record); err != nil {
			m.logger.Warn("transcript persistence failed", "error", err)
		}

		m.setState(StateFinalized)
		m.logger.Info("session finalized",
			"turns", len(m.transcript),
			"audio_recorded", m.audioRef != "",
			"duration", m.endedAt.Sub(m.startTime),
		)
	})
}

// setState advances the lifecycle; transitions never move backward.
func (m *Manager) setState(next State) {
	for {
		current := m.state.Load()
		if current >= int32(next) {
			return
		}
		if m.state.CompareAndSwap(current, int32(next)) {
			return
		}
	}
}
