package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfoliod/internal/config"
	"github.com/fyrsmithlabs/portfoliod/internal/embeddings"
	"github.com/fyrsmithlabs/portfoliod/internal/intent"
	"github.com/fyrsmithlabs/portfoliod/internal/journal"
	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
	"github.com/fyrsmithlabs/portfoliod/internal/llm"
	"github.com/fyrsmithlabs/portfoliod/internal/resolver"
	"github.com/fyrsmithlabs/portfoliod/internal/supervisor"
)

// app holds the wired core and whatever must be released on exit.
type app struct {
	sup     *supervisor.Supervisor
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// buildApp loads the dataset and wires the supervisor. Only a dataset or
// alias file that cannot be read is fatal; the optional backends degrade
// with a warning.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	table, err := ledger.Load(cfg.Dataset.Path)
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	first, last := table.PeriodRange()
	logger.Info("dataset loaded",
		zap.String("path", cfg.Dataset.Path),
		zap.Int("rows", table.Len()),
		zap.Int("properties", len(table.Properties())),
		zap.String("first_period", first.String()),
		zap.String("last_period", last.String()),
	)

	var aliases map[string]string
	if cfg.Dataset.AliasFile != "" {
		aliases, err = resolver.LoadAliases(cfg.Dataset.AliasFile)
		if err != nil {
			return nil, fmt.Errorf("loading aliases: %w", err)
		}
	}

	rcfg := resolver.Config{
		FuzzyThreshold:  cfg.Resolver.FuzzyThreshold,
		SuggestionFloor: cfg.Resolver.SuggestionFloor,
		MaxSuggestions:  cfg.Resolver.MaxSuggestions,
		SemanticTimeout: cfg.Resolver.Semantic.Timeout.Duration(),
		Logger:          logger.Named("resolver"),
	}
	if sem := cfg.Resolver.Semantic; sem.Enabled {
		embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
			Provider: sem.Provider,
			Model:    sem.Model,
			BaseURL:  sem.BaseURL,
			APIKey:   sem.APIKey.Value(),
			CacheDir: sem.CacheDir,
			Logger:   logger.Named("embeddings"),
		})
		if err != nil {
			logger.Warn("embedding provider unavailable, semantic suggestions disabled",
				zap.String("provider", sem.Provider), zap.Error(err))
		} else {
			rcfg.Embedder = embedder
			a.closers = append(a.closers, embedder.Close)
		}
	}

	res, err := resolver.New(ctx, table.Properties(), aliases, rcfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("building resolver: %w", err)
	}

	if cfg.Dataset.WatchAliases && cfg.Dataset.AliasFile != "" {
		w, err := resolver.NewWatcher(cfg.Dataset.AliasFile, res, logger.Named("aliases"))
		if err == nil {
			err = w.Start(ctx)
		}
		if err != nil {
			logger.Warn("alias watcher disabled", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() error { w.Stop(); return nil })
		}
	}

	var classifier intent.Strategy = intent.NewRuleBased()
	if cc := cfg.Classifier; cc.Provider != llm.ProviderDisabled {
		completer, err := llm.New(ctx, llm.Config{
			Provider: cc.Provider,
			Model:    cc.Model,
			BaseURL:  cc.BaseURL,
			APIKey:   cc.APIKey.Value(),
			Timeout:  cc.Timeout.Duration(),
		})
		if err != nil {
			logger.Warn("classifier model unavailable, using rules only",
				zap.String("provider", cc.Provider), zap.Error(err))
		} else {
			classifier = intent.NewModelAssisted(intent.NewRuleBased(), completer, cc.Timeout.Duration(), logger.Named("intent"))
		}
	}

	var sink journal.Publisher = journal.Nop{}
	if jc := cfg.Journal; jc.Enabled {
		pub, err := journal.Connect(jc.URL, jc.SubjectPrefix, logger.Named("journal"))
		if err != nil {
			logger.Warn("request journal disabled", zap.String("url", jc.URL), zap.Error(err))
		} else {
			sink = pub
			a.closers = append(a.closers, pub.Close)
		}
	}

	sup, err := supervisor.New(supervisor.Deps{
		Table:      table,
		Resolver:   res,
		Classifier: classifier,
		Logger:     logger.Named("supervisor"),
		Sink:       sink,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating supervisor: %w", err)
	}
	a.sup = sup
	return a, nil
}
