package participant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdchat/parley/types"
)

func TestChannelParticipant(t *testing.T) {
	ctx := context.Background()

	t.Run("act returns delivered action", func(t *testing.T) {
		p := NewChannelParticipant("worker-1", nil)
		want := types.Message{ID: "worker-1", Text: "hello there"}
		require.NoError(t, p.Deliver(ctx, want))

		got, err := p.Act(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("act times out", func(t *testing.T) {
		p := NewChannelParticipant("worker-1", nil)
		_, err := p.Act(ctx, 10*time.Millisecond)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrActTimeout))
		assert.True(t, types.IsErrorCode(err, types.ErrTimeout))
	})

	t.Run("observe counts turns unless opted out", func(t *testing.T) {
		p := NewChannelParticipant("worker-1", nil)
		require.NoError(t, p.Observe(ctx, types.Message{ID: "bot", Text: "hi"}))
		require.NoError(t, p.Observe(ctx, types.Message{ID: "setter"}, WithoutTurnIncrement()))
		assert.Equal(t, 1, p.TurnCount())

		// Both messages are still delivered.
		assert.Len(t, p.Observations(), 2)
	})

	t.Run("observe rejects invalid message", func(t *testing.T) {
		p := NewChannelParticipant("worker-1", nil)
		bad := types.Message{ID: "x", TaskData: &types.TaskData{FinalRating: &types.Rating{Score: -2}}}
		err := p.Observe(ctx, bad)
		assert.True(t, types.IsErrorCode(err, types.ErrInvalidMessage))
	})

	t.Run("close fails pending act", func(t *testing.T) {
		p := NewChannelParticipant("worker-1", nil)
		done := make(chan error, 1)
		go func() {
			_, err := p.Act(ctx, time.Second)
			done <- err
		}()
		time.Sleep(10 * time.Millisecond)
		p.Close()
		err := <-done
		assert.True(t, types.IsErrorCode(err, types.ErrClosed))
	})

	t.Run("display id round trip", func(t *testing.T) {
		p := NewChannelParticipant("worker-1", nil)
		assert.Equal(t, "worker-1", p.DisplayID())
		p.SetDisplayID("")
		assert.Equal(t, "", p.DisplayID())
	})
}

func TestBotParticipant(t *testing.T) {
	ctx := context.Background()

	t.Run("scripted policy replays in order", func(t *testing.T) {
		policy := NewScriptedPolicy(
			types.Message{Text: "first line"},
			types.Message{HumanTurn: true},
		)
		bot := NewBotParticipant("variant-a", policy, nil)

		act, err := bot.Act(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "first line", act.Text)
		assert.Equal(t, "variant-a", act.ID, "bot fills its identity when the script omits one")

		act, err = bot.Act(ctx, time.Second)
		require.NoError(t, err)
		assert.True(t, act.HumanTurn)

		// Exhausted script keeps yielding the turn.
		act, err = bot.Act(ctx, time.Second)
		require.NoError(t, err)
		assert.True(t, act.HumanTurn)
	})

	t.Run("observe accumulates history and turn count", func(t *testing.T) {
		var seen int
		policy := replyFunc(func(ctx context.Context, observed []types.Message) (types.Message, error) {
			seen = len(observed)
			return types.Message{Text: "ok"}, nil
		})
		bot := NewBotParticipant("variant-a", policy, nil)

		require.NoError(t, bot.Observe(ctx, types.Message{ID: "setter"}, WithoutTurnIncrement()))
		require.NoError(t, bot.Observe(ctx, types.Message{ID: "human", Text: "hi"}))
		assert.Equal(t, 1, bot.TurnCount())

		_, err := bot.Act(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, 2, seen, "policy sees every observation, charged or not")
	})

	t.Run("alternating policy speaks then yields", func(t *testing.T) {
		bot := NewBotParticipant("variant-a", NewAlternatingPolicy("a line"), nil)

		act, err := bot.Act(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "a line", act.Text)
		assert.False(t, act.HumanTurn)

		act, err = bot.Act(ctx, time.Second)
		require.NoError(t, err)
		assert.True(t, act.HumanTurn)
	})
}

// replyFunc adapts a function to the Policy interface.
type replyFunc func(ctx context.Context, observed []types.Message) (types.Message, error)

func (f replyFunc) Reply(ctx context.Context, observed []types.Message) (types.Message, error) {
	return f(ctx, observed)
}
