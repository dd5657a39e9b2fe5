package participant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/crowdchat/parley/types"
)

// Frame is the wire envelope exchanged with a remote worker client.
// Observations flow outward, actions flow inward.
type Frame struct {
	Type          string        `json:"type"` // "observation" or "action"
	Message       types.Message `json:"message"`
	IncrementTurn bool          `json:"increment_turn"`
}

const (
	frameObservation = "observation"
	frameAction      = "action"
)

// WebSocketParticipant is the server-side view of a remote human worker
// connected over a WebSocket. Writes are serialized behind a mutex because
// the connection does not support concurrent writers.
type WebSocketParticipant struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	displayID string
	turnCount int
	closed    bool
}

// NewWebSocketParticipant adapts an accepted connection. id is the worker's
// authenticated identity.
func NewWebSocketParticipant(id string, conn *websocket.Conn, logger *zap.Logger) *WebSocketParticipant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketParticipant{
		id:        id,
		displayID: id,
		conn:      conn,
		logger:    logger.With(zap.String("component", "ws_participant"), zap.String("worker", id)),
	}
}

// ID returns the worker's authenticated identity.
func (w *WebSocketParticipant) ID() string { return w.id }

// DisplayID returns the current display identifier.
func (w *WebSocketParticipant) DisplayID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.displayID
}

// SetDisplayID sets the display identifier. An empty string clears it.
func (w *WebSocketParticipant) SetDisplayID(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.displayID = id
}

// TurnCount returns how many turn-counting observations have been sent.
func (w *WebSocketParticipant) TurnCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.turnCount
}

// Observe pushes the message to the worker client as an observation frame.
func (w *WebSocketParticipant) Observe(ctx context.Context, msg types.Message, opts ...ObserveOption) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	resolved := applyObserveOptions(opts)

	data, err := json.Marshal(Frame{
		Type:          frameObservation,
		Message:       msg,
		IncrementTurn: resolved.IncrementTurn,
	})
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}

	if resolved.IncrementTurn {
		w.mu.Lock()
		w.turnCount++
		w.mu.Unlock()
	}
	return nil
}

// Act reads frames until an action arrives, bounded by timeout. Non-action
// frames (client-side echoes, pings encoded as frames) are skipped.
func (w *WebSocketParticipant) Act(ctx context.Context, timeout time.Duration) (types.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		_, data, err := w.conn.Read(ctx)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				w.logger.Warn("act timed out", zap.Duration("timeout", timeout))
				return types.Message{}, ErrActTimeout
			}
			return types.Message{}, fmt.Errorf("websocket read: %w", err)
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			return types.Message{}, types.NewError(types.ErrInvalidMessage, "malformed frame from worker").WithCause(err)
		}
		if frame.Type != frameAction {
			w.logger.Debug("skipping non-action frame", zap.String("type", frame.Type))
			continue
		}
		if err := frame.Message.Validate(); err != nil {
			return types.Message{}, err
		}
		return frame.Message, nil
	}
}

// Close closes the underlying connection.
func (w *WebSocketParticipant) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	return w.conn.Close(websocket.StatusNormalClosure, "conversation finished")
}
