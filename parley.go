// Package parley provides a top-level convenience entry point for driving a
// single human/model conversation with minimal boilerplate.
//
// Usage:
//
//	import "github.com/crowdchat/parley"
//
//	engine, err := parley.New(human, bot,
//	    parley.WithScenario(scene),
//	    parley.WithSink(sink),
//	    parley.WithGranter(granter),
//	)
//	for !engine.Done() {
//	    if err := engine.Parley(ctx); err != nil { ... }
//	}
//
// This is a thin wrapper around [conversation.NewEngine] with sensible
// defaults: the built-in scenario catalog, an in-memory record sink, and an
// in-memory qualification granter. Production deployments wire the real
// backends through the conversation package directly.
package parley

import (
	"go.uber.org/zap"

	"github.com/crowdchat/parley/conversation"
	"github.com/crowdchat/parley/participant"
	"github.com/crowdchat/parley/qualification"
	"github.com/crowdchat/parley/record"
	"github.com/crowdchat/parley/scenario"
	"github.com/crowdchat/parley/types"
)

// Option configures the engine created by [New].
type Option func(*builder)

type builder struct {
	cfg     conversation.Config
	scene   *types.ConversationContext
	sink    record.Sink
	granter qualification.Granter
	logger  *zap.Logger
	seed    *int64
}

// WithScenario fixes the conversation context instead of drawing one from
// the built-in catalog.
func WithScenario(scene *types.ConversationContext) Option {
	return func(b *builder) { b.scene = scene }
}

// WithSink overrides the in-memory record sink.
func WithSink(sink record.Sink) Option {
	return func(b *builder) { b.sink = sink }
}

// WithGranter overrides the in-memory qualification granter.
func WithGranter(granter qualification.Granter) Option {
	return func(b *builder) { b.granter = granter }
}

// WithConfig replaces the default engine configuration.
func WithConfig(cfg conversation.Config) Option {
	return func(b *builder) { b.cfg = cfg }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *builder) { b.logger = logger }
}

// WithSeed makes catalog scenario selection deterministic.
func WithSeed(seed int64) Option {
	return func(b *builder) { b.seed = &seed }
}

// New builds a ready-to-run conversation engine for the two participants.
func New(human, bot participant.Participant, opts ...Option) (*conversation.Engine, error) {
	b := &builder{cfg: conversation.DefaultConfig()}
	for _, opt := range opts {
		opt(b)
	}

	if b.scene == nil {
		provOpts := []scenario.Option{}
		if b.logger != nil {
			provOpts = append(provOpts, scenario.WithLogger(b.logger))
		}
		if b.seed != nil {
			provOpts = append(provOpts, scenario.WithSeed(*b.seed))
		}
		provider, err := scenario.NewProvider(scenario.DefaultCatalog(), provOpts...)
		if err != nil {
			return nil, err
		}
		scene, err := provider.GetContext()
		if err != nil {
			return nil, err
		}
		b.scene = scene
	}
	if b.sink == nil {
		b.sink = record.NewMemorySink()
	}
	if b.granter == nil {
		b.granter = qualification.NewMemoryGranter()
	}

	engineOpts := []conversation.Option{}
	if b.logger != nil {
		engineOpts = append(engineOpts, conversation.WithLogger(b.logger))
	}
	return conversation.NewEngine(b.cfg, human, bot, b.scene, b.sink, b.granter, engineOpts...)
}
