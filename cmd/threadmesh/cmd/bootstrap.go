package cmd

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/threadmesh"
	"github.com/hupe1980/threadmesh/checkpoint"
	"github.com/hupe1980/threadmesh/checkpoint/boltstore"
	"github.com/hupe1980/threadmesh/checkpoint/rediscache"
	"github.com/hupe1980/threadmesh/checkpoint/sqlstore"
	"github.com/hupe1980/threadmesh/config"
	"github.com/hupe1980/threadmesh/logging"
	"github.com/hupe1980/threadmesh/model"
	"github.com/hupe1980/threadmesh/model/anthropic"
	"github.com/hupe1980/threadmesh/model/openai"
	"github.com/hupe1980/threadmesh/tool"
)

// app bundles the wired service and the resources to release on exit.
type app struct {
	svc     *threadmesh.Service
	logger  logging.Logger
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger().WithComponent("cli")
	a := &app{logger: logger}

	store, err := openStore(ctx, cfg, a)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	llm, err := newModel(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	g, err := threadmesh.NewDefaultGraph(llm, func(o *threadmesh.GraphOptions) {
		o.MaxSteps = cfg.Graph.MaxSteps
		o.NodeTimeout = cfg.Graph.NodeTimeout
		o.ToolTimeout = cfg.Graph.ToolTimeout
		o.Triggers = cfg.Graph.Triggers
		o.Logger = logger
		if cfg.Model.Provider == config.ProviderMock {
			o.Searcher = offlineSearcher
		}
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.svc = threadmesh.New(g, func(o *threadmesh.Options) {
		o.Store = store
		o.Lookup = threadmesh.StaticLookup{ContextType: cfg.Graph.ContextType, TaskType: cfg.Graph.TaskType}
		o.MaxConcurrentRuns = cfg.Graph.MaxConcurrentRuns
		o.Logger = logger
	})
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, a *app) (checkpoint.Store, error) {
	var store checkpoint.Store

	switch cfg.Store.Kind {
	case config.StoreMemory:
		store = checkpoint.NewMemoryStore()
	case config.StoreSQLite, config.StorePostgres:
		open := func() (*sqlstore.Store, error) {
			if cfg.Store.Kind == config.StorePostgres {
				db, err := sqlstore.OpenPostgres(cfg.Store.DSN)
				if err != nil {
					return nil, err
				}
				return sqlstore.New(db), nil
			}
			db, err := sqlstore.OpenSQLite(cfg.Store.Path)
			if err != nil {
				return nil, err
			}
			return sqlstore.New(db), nil
		}
		s, err := open()
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		store = s
	case config.StoreBolt:
		s, err := boltstore.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		store = s
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store.Kind)
	}

	if cfg.Store.RedisAddr == "" {
		return store, nil
	}
	cache, err := rediscache.Dial(ctx, cfg.Store.RedisAddr, func(o *rediscache.Options) {
		o.TTL = cfg.Store.RedisTTL
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, cache.Close)
	return checkpoint.NewCachedStore(store, cache, func(o *checkpoint.CachedStoreOptions) {
		o.Logger = a.logger
	}), nil
}

func newModel(cfg *config.Config) (model.Model, error) {
	switch cfg.Model.Provider {
	case config.ProviderOpenAI:
		var reqOpts []option.RequestOption
		if cfg.Model.OpenAIAPIKey != "" {
			reqOpts = append(reqOpts, option.WithAPIKey(cfg.Model.OpenAIAPIKey))
		}
		client := openaisdk.NewClient(reqOpts...)
		return openai.NewModelFromClient(&client, func(o *openai.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
			o.Temperature = cfg.Model.Temperature
			o.MaxCompletionTokens = cfg.Model.MaxTokens
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
			o.Temperature = cfg.Model.Temperature
			o.MaxTokens = cfg.Model.MaxTokens
			o.APIKey = cfg.Model.AnthropicAPIKey
		}), nil
	case config.ProviderMock:
		return model.NewMockModel("mock", "mock"), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Model.Provider)
	}
}

// offlineSearcher lets the mock provider exercise delegation without network access.
var offlineSearcher = tool.SearcherFunc(func(context.Context, string) (*tool.SearchResponse, error) {
	return &tool.SearchResponse{}, nil
})
