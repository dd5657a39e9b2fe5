package conversation_test

import (
	"context"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/crowdchat/parley/conversation"
	"github.com/crowdchat/parley/qualification"
	"github.com/crowdchat/parley/record"
	"github.com/crowdchat/parley/testutil"
	"github.com/crowdchat/parley/types"
)

// TestTurnIndexMonotonicity drives an engine with a randomly generated script
// and checks the invariants every successful parley must preserve: the turn
// index advances by exactly one per completed invocation, never regresses,
// and freezes once the conversation is done.
func TestTurnIndexMonotonicity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		human := testutil.NewScriptedParticipant("worker-prop")
		bot := testutil.NewScriptedParticipant("variant-prop")
		sink := record.NewMemorySink()
		granter := qualification.NewMemoryGranter()

		cfg := conversation.DefaultConfig()
		cfg.ResponseTimeout = time.Second

		engine, err := conversation.NewEngine(cfg, human, bot, testutil.TestScenario(), sink, granter,
			conversation.WithChecker(conversation.NoopChecker{}))
		if err != nil {
			rt.Fatalf("engine construction: %v", err)
		}

		exchanges := rapid.IntRange(0, 8).Draw(rt, "exchanges")
		endsWithRating := rapid.Bool().Draw(rt, "endsWithRating")

		for i := 0; i < exchanges; i++ {
			if rapid.Bool().Draw(rt, "humanTurn") {
				bot.Queue(types.Message{ID: "variant-prop", HumanTurn: true})
				human.Queue(types.Message{ID: "worker-prop", Text: rapid.StringN(1, 40, 40).Draw(rt, "humanText")})
			} else {
				bot.Queue(types.Message{ID: "variant-prop", Text: rapid.StringN(1, 40, 40).Draw(rt, "botText")})
				human.Queue(types.Message{ID: "worker-prop"}) // rating action without a rating
			}
		}
		if endsWithRating {
			bot.Queue(types.Message{ID: "variant-prop", Text: "closing line"})
			human.Queue(types.Message{ID: "worker-prop", TaskData: &types.TaskData{
				FinalRating: &types.Rating{Score: rapid.IntRange(1, 5).Draw(rt, "score")},
			}})
		}

		total := 1 + exchanges // initial turn plus scripted exchanges
		if endsWithRating {
			total++
		}
		for i := 0; i < total; i++ {
			before := engine.TurnIndex()
			if err := engine.Parley(ctx); err != nil {
				rt.Fatalf("parley %d: %v", i, err)
			}
			if got := engine.TurnIndex(); got != before+1 {
				rt.Fatalf("parley %d: turn index went %d -> %d, want +1", i, before, got)
			}
		}

		if engine.Done() != endsWithRating {
			rt.Fatalf("done = %v, want %v", engine.Done(), endsWithRating)
		}

		if endsWithRating {
			// Post-done calls never move the index or repeat side effects.
			frozen := engine.TurnIndex()
			for i := 0; i < 3; i++ {
				if err := engine.Parley(ctx); err != nil {
					rt.Fatalf("post-done parley: %v", err)
				}
			}
			if engine.TurnIndex() != frozen {
				rt.Fatalf("turn index moved after done: %d -> %d", frozen, engine.TurnIndex())
			}
			if sink.Writes() != 1 {
				rt.Fatalf("sink writes = %d, want 1", sink.Writes())
			}
		} else if sink.Writes() != 0 {
			rt.Fatalf("sink writes = %d before termination", sink.Writes())
		}
	})
}
