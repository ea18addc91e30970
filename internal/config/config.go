// Package config loads graphogm.yml. Every field has a default, so a missing
// file yields a working in-memory setup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend families. Exactly one is active per process.
const (
	BackendTraversal = "traversal"
	BackendCypher    = "cypher"
)

// Drivers within each family.
const (
	DriverMemory  = "memory"
	DriverGremlin = "gremlin"
	DriverKuzu    = "kuzu"
	DriverNeo4j   = "neo4j"
)

// Environment variables that override file settings. Secrets belong here
// rather than in the file.
const (
	EnvBackend  = "GRAPHOGM_BACKEND"
	EnvPassword = "GRAPHOGM_PASSWORD"
)

// ErrInvalid marks configuration validation failures.
var ErrInvalid = errors.New("config: invalid")

// Config holds project-level settings loaded from graphogm.yml.
type Config struct {
	Backend   string          `yaml:"backend,omitempty"`
	Traversal TraversalConfig `yaml:"traversal,omitempty"`
	Cypher    CypherConfig    `yaml:"cypher,omitempty"`
	Log       LogConfig       `yaml:"log,omitempty"`
	MCP       MCPConfig       `yaml:"mcp,omitempty"`
	Social    SocialConfig    `yaml:"social,omitempty"`
}

// TraversalConfig selects and tunes the traversal-step backend.
type TraversalConfig struct {
	Driver                    string `yaml:"driver,omitempty"`
	Host                      string `yaml:"host,omitempty"`
	Port                      int    `yaml:"port,omitempty"`
	Username                  string `yaml:"username,omitempty"`
	Password                  string `yaml:"password,omitempty"`
	SSL                       bool   `yaml:"ssl,omitempty"`
	PoolSize                  int    `yaml:"pool_size,omitempty"`
	MaxInProcessPerConnection int    `yaml:"max_in_process_per_connection,omitempty"`
	BatchSize                 int    `yaml:"batch_size,omitempty"`
	// TransactionalWrites runs multi-step writes in their own transaction.
	TransactionalWrites bool `yaml:"transactional_writes,omitempty"`
}

// CypherConfig selects and tunes the pattern-matching backend.
type CypherConfig struct {
	Driver   string `yaml:"driver,omitempty"`
	URI      string `yaml:"uri,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
	// Path is the Kuzu database location; empty or ":memory:" is in-memory.
	Path        string `yaml:"path,omitempty"`
	MaxPoolSize int    `yaml:"max_pool_size,omitempty"`
}

type LogConfig struct {
	Level       string `yaml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty"`
}

type MCPConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// SocialConfig tunes the follower fan-out.
type SocialConfig struct {
	FanOutBatchSize   int `yaml:"fanout_batch_size,omitempty"`
	FanOutConcurrency int `yaml:"fanout_concurrency,omitempty"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		Backend: BackendTraversal,
		Traversal: TraversalConfig{
			Driver:                    DriverMemory,
			Host:                      "localhost",
			Port:                      8182,
			PoolSize:                  8,
			MaxInProcessPerConnection: 128,
			BatchSize:                 512,
		},
		Cypher: CypherConfig{
			Driver: DriverKuzu,
			URI:    "neo4j://localhost:7687",
			Path:   ":memory:",
		},
		Log:    LogConfig{Level: "info"},
		MCP:    MCPConfig{Addr: ":8090"},
		Social: SocialConfig{FanOutBatchSize: 2000, FanOutConcurrency: 4},
	}
}

// Load attempts to read graphogm.yml or graphogm.yaml from the given
// directory over the defaults, applies environment overrides and validates
// the result. A missing file is not an error.
func Load(dir string) (*Config, error) {
	cfg := Default()
	for _, name := range []string{"graphogm.yml", "graphogm.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", name, err)
		}
		break
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvPassword); ok {
		c.Traversal.Password = v
		c.Cypher.Password = v
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch c.Backend {
	case BackendTraversal:
		switch c.Traversal.Driver {
		case DriverMemory:
		case DriverGremlin:
			if c.Traversal.Host == "" {
				bad("traversal.host is required for the gremlin driver")
			}
			if c.Traversal.Port <= 0 || c.Traversal.Port > 65535 {
				bad("traversal.port %d out of range", c.Traversal.Port)
			}
			if c.Traversal.PoolSize <= 0 {
				bad("traversal.pool_size must be positive")
			}
			if c.Traversal.MaxInProcessPerConnection <= 0 {
				bad("traversal.max_in_process_per_connection must be positive")
			}
			if c.Traversal.BatchSize <= 0 {
				bad("traversal.batch_size must be positive")
			}
		default:
			bad("traversal.driver %q (want %s or %s)", c.Traversal.Driver, DriverMemory, DriverGremlin)
		}
	case BackendCypher:
		switch c.Cypher.Driver {
		case DriverKuzu:
		case DriverNeo4j:
			if c.Cypher.URI == "" {
				bad("cypher.uri is required for the neo4j driver")
			}
		default:
			bad("cypher.driver %q (want %s or %s)", c.Cypher.Driver, DriverKuzu, DriverNeo4j)
		}
		if c.Cypher.MaxPoolSize < 0 {
			bad("cypher.max_pool_size must not be negative")
		}
	default:
		bad("backend %q (want %s or %s)", c.Backend, BackendTraversal, BackendCypher)
	}

	if c.Social.FanOutBatchSize <= 0 {
		bad("social.fanout_batch_size must be positive")
	}
	if c.Social.FanOutConcurrency <= 0 {
		bad("social.fanout_concurrency must be positive")
	}
	return errors.Join(errs...)
}
