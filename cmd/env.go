package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealmate/internal/agent"
	"github.com/sells-group/dealmate/internal/orchestrator"
	"github.com/sells-group/dealmate/internal/resilience"
	"github.com/sells-group/dealmate/internal/selector"
	"github.com/sells-group/dealmate/internal/store"
	"github.com/sells-group/dealmate/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "dealmate.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// resolveSeed picks the model configuration seed: an explicit path wins,
// then the configured path, then the built-in defaults.
func resolveSeed(path string) (*selector.Seed, error) {
	if path == "" {
		path = cfg.Models.SeedPath
	}
	if path == "" {
		return selector.DefaultSeed(), nil
	}
	return selector.LoadSeed(path)
}

// loadSnapshot builds a model-selection snapshot from the store. When the
// store holds no profiles yet (a fresh database), it falls back to the
// seed so a first run works without a prior migrate --seed.
func loadSnapshot(ctx context.Context, st store.Store) (*selector.Snapshot, error) {
	profiles, err := st.ListModelProfiles(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "list model profiles")
	}
	selections, err := st.ListModelSelections(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "list model selections")
	}

	if len(profiles) == 0 {
		seed, err := resolveSeed("")
		if err != nil {
			return nil, err
		}
		return selector.NewSnapshot(seed.Profiles, seed.Selections), nil
	}

	return selector.NewSnapshot(profiles, selections), nil
}

func newOrchestrator(st store.Store, snap *selector.Snapshot) *orchestrator.Orchestrator {
	runner := agent.NewRunner(anthropic.NewClient(cfg.Anthropic.Key))
	return orchestrator.New(st, runner, snap, orchestrator.Config{
		Workers:     cfg.Orchestrator.Workers,
		RunTimeout:  cfg.Orchestrator.RunTimeout(),
		ChunkBudget: cfg.Orchestrator.ChunkBudget,
		Retry:       resilience.RetryConfig{MaxAttempts: cfg.Orchestrator.MaxAttempts},
	})
}
