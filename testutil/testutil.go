// Package testutil provides scripted participants and helpers shared by
// package tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/crowdchat/parley/participant"
	"github.com/crowdchat/parley/types"
)

// TestContext returns a context bounded to the test's lifetime.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestLogger returns a zap logger that writes through t.Log.
func TestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t)
}

// Observation is one recorded delivery to a ScriptedParticipant.
type Observation struct {
	Message       types.Message
	IncrementTurn bool
}

// ScriptedParticipant implements participant.Participant with a fixed queue
// of actions and a full record of everything it observed.
type ScriptedParticipant struct {
	id string

	mu           sync.Mutex
	displayID    string
	actions      []types.Message
	next         int
	observations []Observation
	turnCount    int

	// ActErr, when set, is returned by the next Act call.
	ActErr error
}

// NewScriptedParticipant queues actions to be replayed in order.
func NewScriptedParticipant(id string, actions ...types.Message) *ScriptedParticipant {
	return &ScriptedParticipant{id: id, displayID: id, actions: actions}
}

// ID returns the participant's stable identity.
func (s *ScriptedParticipant) ID() string { return s.id }

// DisplayID returns the current display identifier.
func (s *ScriptedParticipant) DisplayID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayID
}

// SetDisplayID sets the display identifier.
func (s *ScriptedParticipant) SetDisplayID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayID = id
}

// Observe records the delivery.
func (s *ScriptedParticipant) Observe(ctx context.Context, msg types.Message, opts ...participant.ObserveOption) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	resolved := participant.ObserveOptions{IncrementTurn: true}
	for _, opt := range opts {
		opt(&resolved)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.observations = append(s.observations, Observation{Message: msg, IncrementTurn: resolved.IncrementTurn})
	if resolved.IncrementTurn {
		s.turnCount++
	}
	return nil
}

// Act replays the next queued action, or fails with the participant timeout
// error when the script is exhausted.
func (s *ScriptedParticipant) Act(ctx context.Context, timeout time.Duration) (types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ActErr != nil {
		err := s.ActErr
		s.ActErr = nil
		return types.Message{}, err
	}
	if s.next >= len(s.actions) {
		return types.Message{}, participant.ErrActTimeout
	}
	msg := s.actions[s.next]
	s.next++
	return msg, nil
}

// Queue appends more actions to the script.
func (s *ScriptedParticipant) Queue(actions ...types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, actions...)
}

// Observations returns everything delivered so far.
func (s *ScriptedParticipant) Observations() []Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Observation, len(s.observations))
	copy(out, s.observations)
	return out
}

// TurnCount returns how many turn-counting observations were delivered.
func (s *ScriptedParticipant) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnCount
}

// TestScenario returns a fixed two-persona context for engine tests.
func TestScenario() *types.ConversationContext {
	return &types.ConversationContext{
		DatasetTag: "model-chat",
		Personas: []types.Persona{
			{Name: "lighthouse keeper", Description: "I tend the lamp on the cliff every night."},
			{Name: "smuggler", Description: "I move cargo along the coast after dark."},
			{Name: "fishmonger", Description: "I sell the morning catch at the harbor market."},
		},
		Location: &types.Location{
			Name:        "Lamp room",
			Description: "A narrow circular room at the top of the lighthouse.",
		},
	}
}
