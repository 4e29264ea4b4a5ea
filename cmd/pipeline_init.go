package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/baseline-cli/internal/cost"
	"github.com/sells-group/baseline-cli/internal/mapping"
	"github.com/sells-group/baseline-cli/internal/monitoring"
	"github.com/sells-group/baseline-cli/internal/oracle"
	"github.com/sells-group/baseline-cli/internal/pipeline"
	"github.com/sells-group/baseline-cli/internal/registry"
	"github.com/sells-group/baseline-cli/internal/store"
)

// pipelineEnv holds the store, registry and pipeline needed by the run,
// mappings and monitor commands.
type pipelineEnv struct {
	Store    store.Store
	Registry *registry.Registry
	Oracle   mapping.Oracle
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// Checker builds the monitoring checker over the environment's registry
// and run history.
func (pe *pipelineEnv) Checker() *monitoring.Checker {
	return monitoring.NewChecker(
		monitoring.NewCollector(pe.Registry, pe.Store),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring,
	)
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initRegistry opens the store and wraps it in a mapping registry. Callers
// should defer env.Close().
func initRegistry(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	return &pipelineEnv{
		Store:    st,
		Registry: registry.New(st, cfg.Schema.Config),
	}, nil
}

// initPipeline sets up the store, registry, oracle, resolver and rate card
// and builds the Pipeline. offline disables the oracle regardless of config.
// Callers should defer env.Close().
func initPipeline(ctx context.Context, offline bool) (*pipelineEnv, error) {
	env, err := initRegistry(ctx)
	if err != nil {
		return nil, err
	}

	opts, err := cfg.ResolverOptions()
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "resolver options")
	}

	env.Oracle = oracle.Null{}
	if !offline {
		env.Oracle = oracle.New(cfg.Oracle.Config, cfg.Anthropic.Key)
	}
	if env.Oracle.Enabled() {
		zap.L().Info("oracle enabled", zap.String("model", cfg.Oracle.Model))
	} else {
		zap.L().Info("oracle disabled, resolving with heuristics only")
	}

	var rateCard *cost.RateCard
	if cfg.Cost.RateCardFile != "" {
		rateCard, err = cost.LoadRateCard(cfg.Cost.RateCardFile)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "load rate card")
		}
		zap.L().Info("rate card loaded", zap.Int("rates", rateCard.Len()))
	}

	resolver := mapping.NewResolver(env.Registry, env.Oracle, env.Registry, opts)
	env.Pipeline = pipeline.New(cfg.PipelineConfig(), env.Store, resolver, env.Registry, rateCard)

	// Mirror the ledger into Postgres when the registry lives there.
	if ps, ok := env.Store.(*store.PostgresStore); ok {
		env.Pipeline.WithSink(pipeline.NewPostgresLedger(ps.Pool()))
		zap.L().Info("postgres ledger sink enabled")
	}

	return env, nil
}
