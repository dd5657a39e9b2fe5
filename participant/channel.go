package participant

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crowdchat/parley/types"
)

const defaultBufferSize = 64

// ChannelParticipant is an in-process participant backed by Go channels.
// One side (the engine) calls Observe/Act; the other side (a local client,
// or a test) reads Observations and feeds actions through Deliver.
type ChannelParticipant struct {
	id           string
	observations chan types.Message
	actions      chan types.Message
	logger       *zap.Logger

	mu        sync.Mutex
	displayID string
	turnCount int
	closed    bool
}

// NewChannelParticipant creates a channel-backed participant.
func NewChannelParticipant(id string, logger *zap.Logger) *ChannelParticipant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelParticipant{
		id:           id,
		displayID:    id,
		observations: make(chan types.Message, defaultBufferSize),
		actions:      make(chan types.Message, defaultBufferSize),
		logger:       logger.With(zap.String("component", "channel_participant"), zap.String("participant", id)),
	}
}

// ID returns the participant's stable identity.
func (p *ChannelParticipant) ID() string { return p.id }

// DisplayID returns the current display identifier.
func (p *ChannelParticipant) DisplayID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.displayID
}

// SetDisplayID sets the display identifier. An empty string clears it.
func (p *ChannelParticipant) SetDisplayID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.displayID = id
}

// TurnCount returns how many turn-counting observations have been delivered.
func (p *ChannelParticipant) TurnCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.turnCount
}

// Observe validates and enqueues a message for the consuming side.
func (p *ChannelParticipant) Observe(ctx context.Context, msg types.Message, opts ...ObserveOption) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	resolved := applyObserveOptions(opts)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return types.NewErrorf(types.ErrClosed, "participant %s is closed", p.id)
	}
	if resolved.IncrementTurn {
		p.turnCount++
	}
	p.mu.Unlock()

	select {
	case p.observations <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return types.NewErrorf(types.ErrInvalidMessage, "observation buffer full for participant %s", p.id)
	}
}

// Act blocks until the other side delivers an action, the timeout elapses,
// or ctx is cancelled.
func (p *ChannelParticipant) Act(ctx context.Context, timeout time.Duration) (types.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-p.actions:
		if !ok {
			return types.Message{}, types.NewErrorf(types.ErrClosed, "participant %s is closed", p.id)
		}
		if err := msg.Validate(); err != nil {
			return types.Message{}, err
		}
		return msg, nil
	case <-timer.C:
		p.logger.Warn("act timed out", zap.Duration("timeout", timeout))
		return types.Message{}, ErrActTimeout
	case <-ctx.Done():
		return types.Message{}, ctx.Err()
	}
}

// Deliver feeds an action from the participant's own side. It is the
// counterpart of Act.
func (p *ChannelParticipant) Deliver(ctx context.Context, msg types.Message) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return types.NewErrorf(types.ErrClosed, "participant %s is closed", p.id)
	}
	p.mu.Unlock()

	select {
	case p.actions <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Observations exposes the delivery channel for the participant's own side.
func (p *ChannelParticipant) Observations() <-chan types.Message {
	return p.observations
}

// Close shuts down the action channel. Pending Act calls return ErrClosed.
func (p *ChannelParticipant) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.actions)
}
