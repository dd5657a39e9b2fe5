package participant

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crowdchat/parley/types"
)

// Policy is the automated participant's decision procedure. It owns pacing:
// the returned message's HumanTurn flag decides who speaks next, the engine
// only routes.
type Policy interface {
	// Reply produces the bot's next action given everything it has observed
	// so far, in delivery order.
	Reply(ctx context.Context, observed []types.Message) (types.Message, error)
}

// BotParticipant adapts a Policy to the Participant contract and keeps the
// bot-side turn accounting (scene-setting observations are not charged).
type BotParticipant struct {
	id     string
	policy Policy
	logger *zap.Logger

	mu        sync.Mutex
	displayID string
	observed  []types.Message
	turnCount int
}

// NewBotParticipant wraps policy as a participant identified by the model
// variant name.
func NewBotParticipant(modelName string, policy Policy, logger *zap.Logger) *BotParticipant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BotParticipant{
		id:        modelName,
		displayID: modelName,
		policy:    policy,
		logger:    logger.With(zap.String("component", "bot_participant"), zap.String("model", modelName)),
	}
}

// ID returns the model variant name.
func (b *BotParticipant) ID() string { return b.id }

// DisplayID returns the current display identifier.
func (b *BotParticipant) DisplayID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.displayID
}

// SetDisplayID sets the display identifier. An empty string clears it.
func (b *BotParticipant) SetDisplayID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.displayID = id
}

// TurnCount returns how many turn-counting observations the bot has seen.
func (b *BotParticipant) TurnCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.turnCount
}

// Observe records the message into the bot's history.
func (b *BotParticipant) Observe(ctx context.Context, msg types.Message, opts ...ObserveOption) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	resolved := applyObserveOptions(opts)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.observed = append(b.observed, msg)
	if resolved.IncrementTurn {
		b.turnCount++
	}
	return nil
}

// Act asks the policy for the bot's next action, bounded by timeout.
func (b *BotParticipant) Act(ctx context.Context, timeout time.Duration) (types.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b.mu.Lock()
	history := make([]types.Message, len(b.observed))
	copy(history, b.observed)
	b.mu.Unlock()

	msg, err := b.policy.Reply(ctx, history)
	if err != nil {
		if ctx.Err() != nil {
			return types.Message{}, ErrActTimeout
		}
		return types.Message{}, err
	}
	if msg.ID == "" {
		msg.ID = b.id
	}
	if err := msg.Validate(); err != nil {
		return types.Message{}, err
	}
	return msg, nil
}

// ScriptedPolicy replays a fixed sequence of actions. Used by tests and by
// smoke deployments without a live model.
type ScriptedPolicy struct {
	mu      sync.Mutex
	actions []types.Message
	next    int
}

// NewScriptedPolicy returns a policy that replays actions in order. Once the
// script is exhausted it keeps handing the turn to the human.
func NewScriptedPolicy(actions ...types.Message) *ScriptedPolicy {
	return &ScriptedPolicy{actions: actions}
}

// Reply returns the next scripted action.
func (s *ScriptedPolicy) Reply(ctx context.Context, observed []types.Message) (types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.actions) {
		return types.Message{HumanTurn: true}, nil
	}
	msg := s.actions[s.next]
	s.next++
	return msg, nil
}

// AlternatingPolicy is a minimal pacing policy: it speaks a canned line,
// then hands the turn to the human, and repeats. It stands in for a model
// backend in local deployments.
type AlternatingPolicy struct {
	Lines []string

	mu       sync.Mutex
	spoke    bool
	lineIdx  int
	fallback string
}

// NewAlternatingPolicy builds a policy cycling through lines.
func NewAlternatingPolicy(lines ...string) *AlternatingPolicy {
	p := &AlternatingPolicy{Lines: lines, fallback: "Go on."}
	return p
}

// Reply alternates between speaking and yielding the turn.
func (p *AlternatingPolicy) Reply(ctx context.Context, observed []types.Message) (types.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.spoke {
		p.spoke = false
		return types.Message{HumanTurn: true}, nil
	}

	line := p.fallback
	if len(p.Lines) > 0 {
		line = p.Lines[p.lineIdx%len(p.Lines)]
		p.lineIdx++
	}
	p.spoke = true
	return types.Message{Text: line}, nil
}
