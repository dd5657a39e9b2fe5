package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/crowdchat/parley/config"
	"github.com/crowdchat/parley/conversation"
	"github.com/crowdchat/parley/internal/metrics"
	"github.com/crowdchat/parley/internal/telemetry"
	"github.com/crowdchat/parley/participant"
	"github.com/crowdchat/parley/qualification"
	"github.com/crowdchat/parley/record"
	"github.com/crowdchat/parley/roster"
	"github.com/crowdchat/parley/scenario"
	"github.com/crowdchat/parley/types"
)

// blockedQualification names the punitive qualification granted on
// acceptability violations.
const blockedQualification = "multiparty_chat_blocked"

// PolicyFactory builds the bot reply policy for an acquired model variant.
// The default factory returns a canned policy; deployments doing real
// inference swap it out.
type PolicyFactory func(variant string) participant.Policy

// Server owns the HTTP surface and the shared collection state.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	registry  *prometheus.Registry
	collector *metrics.Collector
	telemetry *telemetry.Providers

	provider *scenario.Provider
	variants *roster.Roster
	sink     record.Sink
	granter  qualification.Granter

	policyFor PolicyFactory

	httpServer *http.Server
}

// NewServer wires the collection pipeline from the configuration.
func NewServer(cfg *config.Config, logger *zap.Logger, providers *telemetry.Providers, db *gorm.DB) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	catalog := scenario.DefaultCatalog()
	if cfg.Collection.CatalogPath != "" {
		loaded, err := scenario.LoadCatalog(cfg.Collection.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load scenario catalog: %w", err)
		}
		catalog = loaded
	}
	provider, err := scenario.NewProvider(catalog,
		scenario.WithDatasetTag(cfg.Collection.DatasetTag),
		scenario.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("build scenario provider: %w", err)
	}

	needed := cfg.Roster
	if len(needed) == 0 {
		needed = map[string]int{"default": 1}
		logger.Warn("no roster configured, collecting a single conversation for variant \"default\"")
	}
	variants, err := roster.New(needed, logger)
	if err != nil {
		return nil, fmt.Errorf("build variant roster: %w", err)
	}

	sink, err := record.NewSink(cfg.SinkConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("build record sink: %w", err)
	}

	granter, err := qualification.NewStore(db, blockedQualification, logger)
	if err != nil {
		return nil, fmt.Errorf("build qualification store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Server{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "server")),
		registry:  registry,
		collector: metrics.NewCollector("parley", registry),
		telemetry: providers,
		provider:  provider,
		variants:  variants,
		sink:      sink,
		granter:   granter,
		policyFor: defaultPolicyFactory,
	}, nil
}

// Run starts the server and blocks until shutdown. SIGINT and SIGTERM
// trigger a graceful drain bounded by the configured shutdown timeout.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws/chat", s.handleChat)

	skipAuthPaths := []string{"/health", "/version", "/metrics"}
	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
	}
	if s.cfg.RateLimit.Enabled {
		middlewares = append(middlewares, RateLimiter(ctx, s.cfg.RateLimit.RPS, s.cfg.RateLimit.Burst, s.logger))
	}
	middlewares = append(middlewares, JWTAuth(s.cfg.Auth.JWTSecret, skipAuthPaths, s.logger))

	s.httpServer = &http.Server{
		Addr:        s.cfg.Server.Addr,
		Handler:     Chain(mux, middlewares...),
		ReadTimeout: s.cfg.Server.ReadTimeout,
		// WriteTimeout stays unset: WebSocket conversations outlive any
		// sane response deadline.
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", s.cfg.Server.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		s.variants.Close()
		if s.telemetry != nil {
			if err := s.telemetry.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn("telemetry shutdown", zap.Error(err))
			}
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","remaining":%d}`, remainingTotal(s.variants.Remaining()))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"version":%q,"build_time":%q,"git_commit":%q}`, Version, BuildTime, GitCommit)
}

// handleChat upgrades the connection and drives one full conversation. The
// variant slot is acquired before the engine exists and is either completed
// or released back, never leaked.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	workerID := WorkerIDFromContext(r.Context())
	if workerID == "" {
		workerID = r.URL.Query().Get("worker_id")
	}
	if workerID == "" {
		writeJSONError(w, http.StatusBadRequest, "no worker identity")
		return
	}

	acquireCtx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	variant, err := s.variants.Acquire(acquireCtx)
	cancel()
	if err != nil {
		if types.IsErrorCode(err, types.ErrVariantExhausted) || types.IsErrorCode(err, types.ErrClosed) {
			writeJSONError(w, http.StatusConflict, "no conversations remaining")
			return
		}
		writeJSONError(w, http.StatusServiceUnavailable, "could not assign a model variant")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.variants.Release(variant)
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	logger := s.logger.With(zap.String("worker_id", workerID), zap.String("variant", variant))
	logger.Info("conversation connection accepted")

	completed := s.runConversation(r.Context(), conn, workerID, variant, logger)
	if completed {
		s.variants.Complete(variant)
	} else {
		s.variants.Release(variant)
	}
}

// runConversation builds the engine and drives it to completion. Returns
// whether the conversation finished cleanly.
func (s *Server) runConversation(ctx context.Context, conn *websocket.Conn, workerID, variant string, logger *zap.Logger) bool {
	human := participant.NewWebSocketParticipant(workerID, conn, logger)
	defer human.Close()

	bot := participant.NewBotParticipant(variant, s.policyFor(variant), logger)

	convCtx, err := s.provider.GetContext()
	if err != nil {
		logger.Error("scenario selection failed", zap.Error(err))
		return false
	}

	engine, err := conversation.NewEngine(
		conversation.Config{
			IncludePersona:  s.cfg.Collection.IncludePersona,
			RequireLocation: s.cfg.Collection.RequireLocation,
			ResponseTimeout: s.cfg.Collection.ResponseTimeout,
			TaskType:        s.cfg.Collection.TaskType,
		},
		human, bot, convCtx,
		s.sink, s.granter,
		conversation.WithLogger(logger),
		conversation.WithMetrics(s.collector),
	)
	if err != nil {
		logger.Error("engine construction failed", zap.Error(err))
		return false
	}

	for !engine.Done() {
		if err := engine.Parley(ctx); err != nil {
			logger.Warn("conversation aborted", zap.Error(err), zap.Int("turn_index", engine.TurnIndex()))
			return false
		}
	}
	logger.Info("conversation completed", zap.String("record", engine.RecordLocation()))
	return true
}

func remainingTotal(remaining map[string]int) int {
	total := 0
	for _, n := range remaining {
		total += n
	}
	return total
}

// defaultPolicyFactory returns a canned conversational policy. Real model
// inference plugs in here.
func defaultPolicyFactory(variant string) participant.Policy {
	return participant.NewAlternatingPolicy(
		"Well met. What brings you here at this hour?",
		"Go on, I am listening.",
		"Strange times on this coast, no doubt about it.",
		"That may be so, but I have my own troubles to mind.",
	)
}
