package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/tripforge/placescout/internal/gateway"
	"github.com/tripforge/placescout/internal/geo"
	"github.com/tripforge/placescout/internal/ingest"
	"github.com/tripforge/placescout/internal/orchestrator"
	"github.com/tripforge/placescout/internal/scout"
	"github.com/tripforge/placescout/internal/store"
	"github.com/tripforge/placescout/internal/task"
	anthropicpkg "github.com/tripforge/placescout/pkg/anthropic"
	"github.com/tripforge/placescout/pkg/genai"
)

// appEnv holds the initialized store, clients, and workflows needed by the
// task/scout/serve commands.
type appEnv struct {
	Store        store.Store
	Registry     *task.Registry
	Orchestrator *orchestrator.Orchestrator
	Scout        *scout.Workflow
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, the inference gateway, and both execution
// surfaces. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	genaiClient := genai.NewClient(cfg.GenAI.Key,
		genai.WithBaseURL(cfg.GenAI.BaseURL),
		genai.WithRateLimit(cfg.GenAI.RPS),
	)

	var anthropicClient anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		anthropicClient = anthropicpkg.NewClient(cfg.Anthropic.Key)
	}

	registry, err := task.Load()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	gw := gateway.New(genaiClient, anthropicClient, st, cfg)
	ingestor := ingest.New(st, ingest.NewResolver(cfg.Ingest))
	filter := geo.NewFilter(cfg.Geo.EscalationRadiiKm, cfg.Geo.FallbackCount)

	return &appEnv{
		Store:        st,
		Registry:     registry,
		Orchestrator: orchestrator.New(st, gw, registry, ingestor, filter, cfg.Orch),
		Scout:        scout.New(st, gw, registry, ingestor, cfg.Scout),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "placescout.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// ctxToken adapts context cancellation to the cooperative cancel token the
// execution loops poll.
type ctxToken struct {
	ctx context.Context
}

func (t ctxToken) Stopped() bool { return t.ctx.Err() != nil }
