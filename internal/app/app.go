// Package app turns configuration into a ready repository.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dusk-indust/graphogm/internal/config"
	"github.com/dusk-indust/graphogm/internal/engine"
	"github.com/dusk-indust/graphogm/internal/repository"
	"github.com/dusk-indust/graphogm/internal/repository/cypher"
	"github.com/dusk-indust/graphogm/internal/repository/traversal"
	"github.com/dusk-indust/graphogm/internal/schema"
	"github.com/dusk-indust/graphogm/internal/social"
)

// Open connects the backend cfg selects and returns its repository facade.
// The caller closes the repository.
func Open(ctx context.Context, cfg *config.Config, reg *schema.Registry, logger *zap.Logger) (repository.Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case config.BackendTraversal:
		backend, err := openTraversal(cfg.Traversal, logger)
		if err != nil {
			return nil, err
		}
		return traversal.New(backend, reg, traversal.Options{
			TransactionalWrites: cfg.Traversal.TransactionalWrites,
		}, logger), nil

	case config.BackendCypher:
		drv, err := openCypher(ctx, cfg.Cypher, logger)
		if err != nil {
			return nil, err
		}
		return cypher.New(drv, reg, logger), nil

	default:
		return nil, fmt.Errorf("app: %w: backend %q", config.ErrInvalid, cfg.Backend)
	}
}

func openTraversal(c config.TraversalConfig, logger *zap.Logger) (engine.Backend, error) {
	switch c.Driver {
	case config.DriverMemory:
		return engine.NewMemoryBackend(nil), nil
	case config.DriverGremlin:
		b, err := engine.DialGremlin(engine.GremlinOptions{
			Host:                      c.Host,
			Port:                      c.Port,
			Username:                  c.Username,
			Password:                  c.Password,
			SSL:                       c.SSL,
			PoolSize:                  c.PoolSize,
			MaxInProcessPerConnection: c.MaxInProcessPerConnection,
			BatchSize:                 c.BatchSize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("app: %w: traversal driver %q", config.ErrInvalid, c.Driver)
	}
}

func openCypher(ctx context.Context, c config.CypherConfig, logger *zap.Logger) (cypher.Driver, error) {
	switch c.Driver {
	case config.DriverKuzu:
		d, err := cypher.OpenEmbedded(c.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return d, nil
	case config.DriverNeo4j:
		d, err := cypher.DialNeo4j(ctx, cypher.Neo4jOptions{
			URI:         c.URI,
			Username:    c.Username,
			Password:    c.Password,
			Database:    c.Database,
			MaxPoolSize: c.MaxPoolSize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("app: %w: cypher driver %q", config.ErrInvalid, c.Driver)
	}
}

// NewRegistry returns a registry holding every entity the binary ships with.
func NewRegistry() (*schema.Registry, error) {
	reg := schema.NewRegistry()
	if err := social.Register(reg); err != nil {
		return nil, fmt.Errorf("app: register entities: %w", err)
	}
	return reg, nil
}

// SocialService builds the follow-graph service with the configured fan-out.
// progress may be nil.
func SocialService(cfg *config.Config, repo repository.Repository, progress *social.ProgressReporter, logger *zap.Logger) *social.Service {
	return social.NewService(repo, nil, social.Options{
		BatchSize:   cfg.Social.FanOutBatchSize,
		Concurrency: cfg.Social.FanOutConcurrency,
		Progress:    progress,
	}, logger)
}
