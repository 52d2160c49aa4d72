package session

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

type outboundFrame struct {
	messageType int
	data        []byte
}

// writeLoop is the only goroutine that writes to the client socket. It
// drains the outbound queue until the session drains, then sends a close
// frame.
func (m *Manager) writeLoop(ctx context.Context) error {
	pingInterval := m.cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(m.cfg.WriteTimeout)
			_ = m.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return nil
		case <-pingTicker.C:
			deadline := time.Now().Add(m.cfg.WriteTimeout)
			if err := m.conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return err
			}
		case frame := <-m.outbound:
			if err := m.conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout)); err != nil {
				return err
			}
			if err := m.conn.WriteMessage(frame.messageType, frame.data); err != nil {
				return err
			}
		}
	}
}
