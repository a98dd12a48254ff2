package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/honeypot/backend/internal/config"
	"github.com/zhouzirui/honeypot/backend/internal/handler"
	"github.com/zhouzirui/honeypot/backend/internal/model/persona"
	"github.com/zhouzirui/honeypot/backend/internal/service/ai"
	"github.com/zhouzirui/honeypot/backend/internal/service/extraction"
	"github.com/zhouzirui/honeypot/backend/internal/service/report"
	"github.com/zhouzirui/honeypot/backend/internal/service/scam"
	"github.com/zhouzirui/honeypot/backend/internal/service/session"
	"github.com/zhouzirui/honeypot/backend/internal/service/turn"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, continuing with system environment variables only", zap.Error(envErr))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL value %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	personaStore := persona.NewMemoryStore(persona.Seed())

	var chatModel model.BaseChatModel
	if cfg.AI.Enabled() {
		cm, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			logger.Warn("failed to initialize chat model, continuing offline", zap.Error(err))
		} else {
			chatModel = cm
			logger.Info("chat model initialized", zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Info("ark credentials not configured, replies use persona stall lines and heuristic scoring")
	}

	replier, err := ai.NewService(ctx, personaStore, chatModel, logger)
	if err != nil {
		return fmt.Errorf("init reply service: %w", err)
	}
	scorer, err := scam.NewService(ctx, chatModel, scam.Config{Threshold: cfg.AI.ScamThreshold}, logger)
	if err != nil {
		return fmt.Errorf("init scam scorer: %w", err)
	}
	extractor, err := extraction.NewService(ctx, chatModel, logger)
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}

	persister, closePersister, err := newPersister(ctx, cfg.Session, logger)
	if err != nil {
		return err
	}
	defer closePersister()

	store := session.NewMemoryStore(ctx,
		session.NewRandomPicker(personaStore.IDs(), uint64(time.Now().UnixNano())),
		session.WithTTL(cfg.Session.TTL),
		session.WithSweepEvery(cfg.Session.SweepEvery),
		session.WithPersister(persister),
		session.WithPersistTimeout(cfg.Session.PersistTimeout),
		session.WithLogger(logger),
	)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Session.PersistTimeout+time.Second)
		defer cancel()
		if err := store.Close(flushCtx); err != nil {
			logger.Warn("shutdown before sessions were persisted", zap.Error(err))
		}
	}()

	sinks, closeSinks, err := newSinks(cfg.Report, logger)
	if err != nil {
		return err
	}
	defer closeSinks()
	dispatcher := report.NewDispatcher(cfg.Report.Timeout, logger, sinks...)

	orchestrator := turn.New(store, replier, scorer, extractor, dispatcher, turn.Config{
		CallTimeout:   cfg.AI.InferenceTimeout,
		ReportCadence: cfg.Report.Cadence,
	}, logger)

	router := handler.NewRouter(handler.Deps{
		Personas: personaStore,
		Sessions: store,
		Turns:    orchestrator,
		APIKey:   cfg.Server.APIKey,
		Logger:   logger,
	})
	if cfg.Server.APIKey == "" {
		logger.Warn("HONEYPOT_API_KEY not set, message routes are unauthenticated")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("honeypot backend listening", zap.String("addr", cfg.Server.Addr))
	serveErr := runServer(ctx, srv)

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Report.Timeout+time.Second)
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		logger.Warn("shutdown with reports still in flight", zap.Error(err))
	}
	return serveErr
}

func newPersister(ctx context.Context, cfg config.SessionConfig, logger *zap.Logger) (session.Persister, func(), error) {
	noop := func() {}
	switch cfg.Persist {
	case config.PersistFile:
		logger.Info("persisting sessions to file", zap.String("path", cfg.File))
		return session.NewFilePersister(cfg.File), noop, nil
	case config.PersistPostgres:
		p, err := session.NewPostgresPersister(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("init postgres persistence: %w", err)
		}
		logger.Info("persisting sessions to postgres")
		return p, p.Close, nil
	case config.PersistSQLite:
		p, err := session.NewSQLitePersister(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, fmt.Errorf("init sqlite persistence: %w", err)
		}
		logger.Info("persisting sessions to sqlite", zap.String("path", cfg.SQLitePath))
		return p, func() { _ = p.Close() }, nil
	default:
		logger.Info("session persistence disabled")
		return session.NopPersister{}, noop, nil
	}
}

func newSinks(cfg config.ReportConfig, logger *zap.Logger) ([]report.Sink, func(), error) {
	var (
		sinks   []report.Sink
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.URL != "" {
		sinks = append(sinks, report.NewHTTPSink(cfg.URL))
		logger.Info("reports will be posted to collector", zap.String("url", cfg.URL))
	}
	if cfg.NATSURL != "" {
		conn, err := report.ConnectNATS(cfg.NATSURL, cfg.NATSToken, logger.Named("nats"))
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, func() { _ = conn.Drain() })
		sinks = append(sinks, report.NewNATSSink(conn, cfg.Subject))
		logger.Info("reports will be published on nats", zap.String("subject", cfg.Subject))
	}
	if len(sinks) == 0 {
		logger.Warn("no report sink configured, intelligence reports are dropped")
	}
	return sinks, closeAll, nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
