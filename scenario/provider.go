package scenario

import (
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/crowdchat/parley/types"
)

// DefaultDatasetTag labels records produced from the built-in task.
const DefaultDatasetTag = "model-chat"

// Provider selects one scenario uniformly at random from its catalog for
// each new conversation. The catalog is never mutated; every returned
// context is an independent copy.
type Provider struct {
	catalog    Catalog
	datasetTag string
	logger     *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Provider.
type Option func(*Provider)

// WithSeed makes selection deterministic: two providers built with the same
// catalog and seed return identical context sequences.
func WithSeed(seed int64) Option {
	return func(p *Provider) { p.rng = rand.New(rand.NewSource(seed)) }
}

// WithDatasetTag overrides the dataset tag stamped onto every context.
func WithDatasetTag(tag string) Option {
	return func(p *Provider) { p.datasetTag = tag }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// NewProvider validates the catalog and builds a provider. An empty or
// malformed catalog is a configuration error, fatal at construction.
func NewProvider(catalog Catalog, opts ...Option) (*Provider, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	p := &Provider{
		catalog:    catalog,
		datasetTag: DefaultDatasetTag,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(rand.Int63()))
	}
	p.logger = p.logger.With(zap.String("component", "scenario_provider"))
	return p, nil
}

// GetContext returns a fresh conversation context with a copy of one
// uniformly selected setting.
func (p *Provider) GetContext() (*types.ConversationContext, error) {
	p.mu.Lock()
	setting := p.catalog[p.rng.Intn(len(p.catalog))]
	p.mu.Unlock()

	ctx := &types.ConversationContext{
		DatasetTag: p.datasetTag,
		Personas:   make([]types.Persona, len(setting.Personas)),
	}
	copy(ctx.Personas, setting.Personas)
	if setting.Location != nil {
		loc := *setting.Location
		ctx.Location = &loc
	}

	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	p.logger.Debug("scenario selected",
		zap.String("human_persona", ctx.HumanPersona().Name),
		zap.String("bot_persona", ctx.BotPersona().Name),
	)
	return ctx, nil
}
