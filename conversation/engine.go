// Package conversation implements the turn-taking and termination state
// machine for one human/bot conversation: who speaks next, when the exchange
// is done rather than paused, how mid-conversation annotations attach to
// prior utterances, and how terminal side effects fire exactly once.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/crowdchat/parley/internal/metrics"
	"github.com/crowdchat/parley/participant"
	"github.com/crowdchat/parley/qualification"
	"github.com/crowdchat/parley/record"
	"github.com/crowdchat/parley/types"
)

const (
	// personaSetterID identifies scene-setting observations. Identity is
	// communicated via message content, so this never reaches the transcript.
	personaSetterID = "persona-agent"

	// personaSettingText is the placeholder text of the bot's scene-setting
	// observation.
	personaSettingText = "PERSONA SETTING MESSAGE"

	// ratingAckText replaces the text of a rating action before it is
	// accounted: the action carries annotations, not dialogue.
	ratingAckText = "THIS IS A RATING ACTION"
)

// Config carries the per-deployment engine settings.
type Config struct {
	// IncludePersona delivers the persona set (and location, if present) to
	// both parties on the initial turn.
	IncludePersona bool

	// RequireLocation makes a context without a location a setup error.
	RequireLocation bool

	// ResponseTimeout bounds every blocking wait on a participant action.
	ResponseTimeout time.Duration

	// TaskType tags persisted records.
	TaskType string
}

// DefaultConfig returns the standard collection settings.
func DefaultConfig() Config {
	return Config{
		IncludePersona:  true,
		ResponseTimeout: 3 * time.Minute,
		TaskType:        "multiparty_chat",
	}
}

// Engine drives one conversation through its three states:
//
//	NOT_STARTED (turn index 0)
//	AWAITING_EXCHANGE (turn index ≥ 1, not done)
//	DONE (terminal)
//
// Each Parley call advances by exactly one unit of work. The engine has
// exclusive access to its transcript and state; callers must not invoke
// Parley concurrently for the same engine.
type Engine struct {
	id      string
	cfg     Config
	human   participant.Participant
	bot     participant.Participant
	convCtx *types.ConversationContext

	sink      record.Sink
	granter   qualification.Granter
	checker   AcceptabilityChecker
	collector *metrics.Collector
	logger    *zap.Logger
	tracer    trace.Tracer

	dialog    *DialogHistory
	turnIndex int
	done      bool
	startedAt time.Time

	recordLocation string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// WithChecker overrides the acceptability checker.
func WithChecker(c AcceptabilityChecker) Option {
	return func(e *Engine) { e.checker = c }
}

// WithID fixes the conversation ID instead of generating one.
func WithID(id string) Option {
	return func(e *Engine) { e.id = id }
}

// NewEngine validates the wiring and builds an engine in NOT_STARTED state.
// Configuration problems are fatal here, before any conversation state
// exists.
func NewEngine(
	cfg Config,
	human, bot participant.Participant,
	convCtx *types.ConversationContext,
	sink record.Sink,
	granter qualification.Granter,
	opts ...Option,
) (*Engine, error) {
	if err := convCtx.Validate(); err != nil {
		return nil, err
	}
	if human == nil || bot == nil {
		return nil, types.NewError(types.ErrConfiguration, "engine needs both a human and a bot participant")
	}
	if sink == nil {
		return nil, types.NewError(types.ErrConfiguration, "engine needs a persistence sink")
	}
	if granter == nil {
		return nil, types.NewError(types.ErrConfiguration, "engine needs a qualification granter")
	}
	if cfg.ResponseTimeout <= 0 {
		return nil, types.NewError(types.ErrConfiguration, "response timeout must be positive")
	}
	if cfg.RequireLocation && convCtx.Location == nil {
		return nil, types.NewError(types.ErrConfiguration, "scenario has no location but the deployment requires one")
	}

	e := &Engine{
		id:      uuid.NewString(),
		cfg:     cfg,
		human:   human,
		bot:     bot,
		convCtx: convCtx,
		sink:    sink,
		granter: granter,
		checker: NewDefaultChecker(),
		logger:  zap.NewNop(),
		tracer:  otel.Tracer("github.com/crowdchat/parley/conversation"),
		dialog:  NewDialogHistory(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(
		zap.String("component", "turn_engine"),
		zap.String("conversation_id", e.id),
		zap.String("model", bot.ID()),
	)
	return e, nil
}

// ID returns the conversation ID.
func (e *Engine) ID() string { return e.id }

// TurnIndex returns how many parley invocations have been consumed.
func (e *Engine) TurnIndex() int { return e.turnIndex }

// Done reports whether the conversation reached its terminal state.
func (e *Engine) Done() bool { return e.done }

// Dialog returns a copy of the transcript so far.
func (e *Engine) Dialog() []types.Utterance { return e.dialog.Entries() }

// RecordLocation returns where the terminal record landed, once done.
func (e *Engine) RecordLocation() string { return e.recordLocation }

// Parley advances the conversation by exactly one unit of work: the initial
// setup turn, or one exchange cycle. Once the conversation is done, further
// calls are no-ops: callers should stop, but a stray extra call must not
// corrupt state.
func (e *Engine) Parley(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "conversation.parley",
		trace.WithAttributes(
			attribute.Int("turn_index", e.turnIndex),
			attribute.String("conversation_id", e.id),
		))
	defer span.End()

	if e.done {
		e.logger.Debug("parley after done, ignoring")
		return nil
	}
	if e.collector != nil {
		e.collector.Parley()
	}

	if e.turnIndex == 0 {
		if err := e.runInitialTurn(ctx); err != nil {
			return err
		}
		e.turnIndex++
		return nil
	}
	return e.runExchangeTurn(ctx)
}

// runInitialTurn clears display identities and, when persona sharing is on,
// delivers the scene-setting observations. Neither delivery counts as a turn
// for the receiving participant: it is scenery, not dialogue.
func (e *Engine) runInitialTurn(ctx context.Context) error {
	e.startedAt = time.Now()
	e.human.SetDisplayID("")
	e.bot.SetDisplayID("")

	if e.collector != nil {
		e.collector.ConversationStarted(e.bot.ID())
	}
	e.logger.Info("conversation starting",
		zap.String("human_persona", e.convCtx.HumanPersona().Name),
		zap.String("bot_persona", e.convCtx.BotPersona().Name),
	)

	if !e.cfg.IncludePersona {
		return nil
	}

	sceneData := &types.TaskData{
		Personas: e.convCtx.Personas,
		Location: e.convCtx.Location,
	}
	botScene := types.Message{
		ID:       personaSetterID,
		Text:     personaSettingText,
		TaskData: sceneData,
	}
	if err := e.bot.Observe(ctx, botScene, participant.WithoutTurnIncrement()); err != nil {
		return fmt.Errorf("deliver scene to bot: %w", err)
	}

	humanScene := types.Message{
		ID:       personaSetterID,
		TaskData: sceneData,
	}
	if err := e.human.Observe(ctx, humanScene, participant.WithoutTurnIncrement()); err != nil {
		return fmt.Errorf("deliver scene to human: %w", err)
	}
	return nil
}

// runExchangeTurn runs one exchange cycle. The bot's own action decides who
// talks: the engine is a mechanical turn router, not a pacing policy.
func (e *Engine) runExchangeTurn(ctx context.Context) error {
	botAct, err := e.bot.Act(ctx, e.cfg.ResponseTimeout)
	if err != nil {
		e.noteTimeout("bot", err)
		return fmt.Errorf("bot act: %w", err)
	}

	var terminal types.Message
	if botAct.HumanTurn {
		terminal, err = e.humanSpeaks(ctx)
	} else {
		terminal, err = e.botSpeaks(ctx, botAct)
	}
	if err != nil {
		return err
	}

	e.turnIndex++

	if rating := terminal.FinalRating(); rating != nil {
		e.done = true
		return e.finish(ctx, rating)
	}
	return nil
}

// humanSpeaks collects one human dialogue turn. The human's declared
// identity is normalized to the assigned persona name, and the bot observes
// a freshly constructed copy of the action, never the original value.
func (e *Engine) humanSpeaks(ctx context.Context) (types.Message, error) {
	act, err := e.human.Act(ctx, e.cfg.ResponseTimeout)
	if err != nil {
		e.noteTimeout("human", err)
		return types.Message{}, fmt.Errorf("human act: %w", err)
	}

	personaName := e.convCtx.HumanPersona().Name
	e.dialog.Append(types.Utterance{
		AgentIndex: types.HumanAgentIndex,
		Text:       StripAnnotationMarkup(act.Text),
		SpeakerID:  personaName,
	})

	relay := types.Message{
		ID:          personaName,
		Text:        act.Text,
		EpisodeDone: act.EpisodeDone,
		TaskData:    copyTaskData(act.TaskData),
	}
	if err := e.bot.Observe(ctx, relay); err != nil {
		return types.Message{}, fmt.Errorf("relay human turn to bot: %w", err)
	}
	return act, nil
}

// botSpeaks records one bot utterance, requests a rating from the human, and
// applies any problem-data backfill the rating action carries. The rating
// action's text is discarded: it is annotation, not dialogue.
func (e *Engine) botSpeaks(ctx context.Context, botAct types.Message) (types.Message, error) {
	e.dialog.Append(types.Utterance{
		AgentIndex: types.BotAgentIndex,
		Text:       StripAnnotationMarkup(botAct.Text),
		SpeakerID:  botAct.SpeakerID(),
	})

	ratingRequest := types.Message{
		ID:          botAct.ID,
		Text:        botAct.Text,
		EpisodeDone: botAct.EpisodeDone,
		NeedsRating: true,
		TaskData:    copyTaskData(botAct.TaskData),
	}
	if err := e.human.Observe(ctx, ratingRequest); err != nil {
		return types.Message{}, fmt.Errorf("request rating from human: %w", err)
	}

	ratingAct, err := e.human.Act(ctx, e.cfg.ResponseTimeout)
	if err != nil {
		e.noteTimeout("human", err)
		return types.Message{}, fmt.Errorf("human rating act: %w", err)
	}

	rating := types.Message{
		ID:          ratingAct.ID,
		Text:        ratingAckText,
		EpisodeDone: ratingAct.EpisodeDone,
		TaskData:    copyTaskData(ratingAct.TaskData),
	}

	if pd := rating.ProblemData(); pd != nil {
		// The most recent utterance is the bot's own, appended above; any
		// other shape is a logic defect and must fail loudly.
		if err := e.dialog.AttachProblemData(pd); err != nil {
			return types.Message{}, err
		}
		e.logger.Debug("problem data attached", zap.Int("buckets", len(pd)))
	}
	return rating, nil
}

// finish runs the terminal side effects exactly once: final-rating backfill,
// record assembly, the single persistence write, and the punitive
// qualification when violations were flagged. Guarded by the done latch set
// in runExchangeTurn.
func (e *Engine) finish(ctx context.Context, rating *types.Rating) error {
	if err := e.dialog.SetFinalRating(rating); err != nil {
		return err
	}

	violations := e.checker.Check(e.dialog.Entries())
	rec := &record.TerminalRecord{
		ConversationID:          e.id,
		DatasetTag:              e.convCtx.DatasetTag,
		TaskType:                e.cfg.TaskType,
		ModelIdentity:           e.bot.ID(),
		WorkerID:                e.human.ID(),
		Personas:                e.convCtx.Personas,
		Location:                e.convCtx.Location,
		Dialog:                  e.dialog.Entries(),
		AcceptabilityViolations: violations,
		FinalRating:             rating,
		CompletedAt:             time.Now(),
	}

	location, err := e.sink.Write(ctx, rec)
	if err != nil {
		if e.collector != nil {
			e.collector.RecordWrite("error")
		}
		return fmt.Errorf("persist terminal record: %w", err)
	}
	e.recordLocation = location

	if e.collector != nil {
		e.collector.RecordWrite("ok")
		e.collector.ConversationCompleted(e.bot.ID(), time.Since(e.startedAt), rating.Score)
	}
	e.logger.Info("conversation finished",
		zap.Int("turns", e.turnIndex),
		zap.Int("final_rating", rating.Score),
		zap.String("record_location", location),
	)

	if rec.HasViolations() {
		e.logger.Warn("acceptability violations detected", zap.Strings("violations", violations))
		if e.collector != nil {
			for _, tag := range violations {
				if tag != "" {
					e.collector.Violation(tag)
				}
			}
		}
		if err := e.granter.GrantPunitive(ctx, e.human.ID(), strings.Join(violations, ",")); err != nil {
			return fmt.Errorf("grant punitive qualification: %w", err)
		}
	}
	return nil
}

func (e *Engine) noteTimeout(party string, err error) {
	if e.collector != nil && types.IsErrorCode(err, types.ErrTimeout) {
		e.collector.ActTimeout(party)
	}
}

func copyTaskData(td *types.TaskData) *types.TaskData {
	if td == nil {
		return nil
	}
	cp := *td
	return &cp
}
