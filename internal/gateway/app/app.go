package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ascend/internal/auth"
	"ascend/internal/blueprint"
	"ascend/internal/chat"
	"ascend/internal/gateway/config"
	"ascend/internal/gateway/handler"
	"ascend/internal/gateway/middleware"
	"ascend/internal/gateway/repository/device"
	"ascend/internal/gateway/repository/usage"
	"ascend/internal/gateway/server"
	"ascend/internal/llm"
	"ascend/internal/logger"
	"ascend/internal/metrics"
	"ascend/internal/orchestrator"
)

// Engine is the generation stack without any HTTP surface.
type Engine struct {
	Keyring      *llm.Keyring
	Registry     *llm.Registry
	Orchestrator *orchestrator.Orchestrator
	Coach        *chat.Coach
}

// NewEngine wires providers, middlewares and the orchestrator from cfg.
// cursor may be nil for an in-process rotation.
func NewEngine(cfg *config.Config, cursor llm.Cursor, m *metrics.Metrics, log logger.Logger) *Engine {
	keyring := llm.NewKeyring([]llm.ProviderConfig{
		{Name: llm.ProviderGemini, Keys: cfg.Gemini.Keys, FastModel: cfg.Gemini.FastModel, CapableModel: cfg.Gemini.CapableModel},
		{Name: llm.ProviderGroq, Keys: cfg.Groq.Keys, FastModel: cfg.Groq.FastModel, CapableModel: cfg.Groq.CapableModel},
	}, cursor, log)

	gen := cfg.Generation
	mws := []llm.Middleware{
		llm.WithLogging(log),
		llm.Retry(gen.RetryMax, gen.RetryBase),
		llm.RateLimit(gen.UpstreamRPS, gen.UpstreamBurst),
	}
	if m != nil {
		mws = append(mws, llm.WithObserver(m))
	}
	registry := llm.DefaultRegistry(cfg.Groq.BaseURL, mws...)

	opts := []orchestrator.Option{orchestrator.WithLogger(log)}
	if m != nil {
		opts = append(opts, orchestrator.WithObserver(m))
	}
	orch := orchestrator.New(keyring, registry, blueprint.NewInterpreter(gen.Interpreter), orchestrator.Config{
		Pacer:          orchestrator.Pacer{ChunkRunes: gen.ChunkRunes, Interval: gen.ChunkInterval},
		AttemptTimeout: gen.AttemptTimeout,
		Stream:         gen.Stream,
	}, opts...)

	return &Engine{
		Keyring:      keyring,
		Registry:     registry,
		Orchestrator: orch,
		Coach:        chat.NewCoach(keyring, registry, cfg.Chat.Timeout, log),
	}
}

type App struct {
	server   *server.Server
	stores   *gatewayStores
	log      logger.Logger
	shutdown time.Duration
	Handler  http.Handler
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return Build(ctx, cfg, logger.New(cfg.Log.Level, cfg.Log.Format))
}

// Build assembles the gateway from an explicit configuration.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	m := metrics.New()

	stores, err := initStores(ctx, cfg, m, log)
	if err != nil {
		return nil, err
	}

	var cursor llm.Cursor
	if stores.rdb != nil {
		cursor = llm.NewRedisCursor(stores.rdb, "")
	}
	engine := NewEngine(cfg, cursor, m, log)
	if engine.Keyring.Empty() {
		log.Warn("no model API keys configured; every generation will use the local fallback", nil)
	}

	provider, err := authProvider(cfg)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	deps := handler.Deps{
		Orchestrator:   engine.Orchestrator,
		Coach:          engine.Coach,
		Keyring:        engine.Keyring,
		Quota:          usage.NewQuota(stores.usage, cfg.Quota.DailyLimit),
		EnforceQuota:   cfg.Quota.Enabled,
		Vault:          stores.vault,
		Archive:        stores.archive,
		Observer:       m,
		Log:            log,
		TrustClientIDs: cfg.Auth.Mode != "supabase",
		AuthMode:       cfg.Auth.Mode,
	}
	if cfg.Device.Enabled {
		deps.Guard = device.NewGuard(stores.device, cfg.Device.AccountLimit, log, m)
	}
	if stores.db != nil {
		deps.DB = stores.db
	}

	mux := server.NewMux(handler.New(deps), server.RouterOptions{
		Log:         log,
		Metrics:     m,
		Auth:        provider,
		CORSOrigins: cfg.CORSOrigins,
		Limiter:     middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.TrustedProxies...),
	})

	return &App{
		server:   server.New(cfg.Port, mux, log),
		stores:   stores,
		log:      log,
		shutdown: cfg.ShutdownTimeout,
		Handler:  mux,
	}, nil
}

func authProvider(cfg *config.Config) (auth.Provider, error) {
	switch cfg.Auth.Mode {
	case "supabase":
		p, err := auth.NewSupabaseProvider(cfg.Auth.SupabaseURL, cfg.Auth.SupabaseAnonKey, nil, cfg.Auth.SessionTTL)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "header":
		return auth.HeaderProvider{}, nil
	default:
		return nil, nil
	}
}

// ShutdownTimeout is how long Shutdown may wait for in-flight requests.
func (a *App) ShutdownTimeout() time.Duration {
	if a.shutdown <= 0 {
		return 5 * time.Second
	}
	return a.shutdown
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.stores.Close(); cerr != nil && err == nil {
		err = cerr
	}
	_ = a.log.Sync()
	return err
}
