// Package participant abstracts one conversational party behind a small
// observe/act contract. The turn engine drives two participants, the human
// worker and the automated model, without knowing how either is transported.
package participant

import (
	"context"
	"time"

	"github.com/crowdchat/parley/types"
)

// ErrActTimeout is returned when a participant fails to produce an action
// within the configured response timeout. It is propagated to the caller,
// never retried here; retry policy belongs to the transport layer.
var ErrActTimeout = types.NewError(types.ErrTimeout, "participant did not act within the response timeout")

// ObserveOptions controls how a delivered observation is accounted.
type ObserveOptions struct {
	// IncrementTurn charges the observation against the participant's own
	// turn counter. Scene-setting deliveries disable it.
	IncrementTurn bool
}

// ObserveOption mutates ObserveOptions.
type ObserveOption func(*ObserveOptions)

// WithoutTurnIncrement marks an observation as scene-setting rather than
// dialogue: it must not count as a turn for the receiving participant.
func WithoutTurnIncrement() ObserveOption {
	return func(o *ObserveOptions) { o.IncrementTurn = false }
}

func applyObserveOptions(opts []ObserveOption) ObserveOptions {
	resolved := ObserveOptions{IncrementTurn: true}
	for _, opt := range opts {
		opt(&resolved)
	}
	return resolved
}

// Participant is one conversational party.
//
// Observe delivers an event and returns promptly; it never blocks on the
// party producing anything. Act blocks until the party produces a response
// or the timeout elapses, in which case ErrActTimeout surfaces.
type Participant interface {
	// ID is the participant's stable identity (worker ID, model variant).
	ID() string

	// DisplayID is the transient display identifier attached to outgoing
	// messages. The engine clears it at conversation start so that identity
	// flows through message content (persona names) instead.
	DisplayID() string
	SetDisplayID(id string)

	Observe(ctx context.Context, msg types.Message, opts ...ObserveOption) error
	Act(ctx context.Context, timeout time.Duration) (types.Message, error)
}
