package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dusk-indust/graphogm/internal/app"
	"github.com/dusk-indust/graphogm/internal/config"
	"github.com/dusk-indust/graphogm/internal/logging"
	"github.com/dusk-indust/graphogm/internal/repository"
)

// CLI flags parsed from command line.
type cliFlags struct {
	ConfigDir string
	Version   bool
}

// version is set by goreleaser at build time.
var version = "dev"

const usage = `usage: graphogm [-config dir] <command> [flags]

commands:
  init        write graphogm.yml and register the MCP server in .mcp.json
  stats       print vertex counts per registered label
  export      print the graph as JSON or a Mermaid diagram
  serve-mcp   serve the graph tools over MCP (HTTP or stdio)
  demo        build a small follow graph and query it`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var flags cliFlags

	fs := flag.NewFlagSet("graphogm", flag.ContinueOnError)
	fs.StringVar(&flags.ConfigDir, "config", ".", "directory holding graphogm.yml")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")
	fs.Usage = func() { fmt.Fprintln(fs.Output(), usage) }

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Fprintln(stdout, version)
		return nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("no command given")
	}
	cmd, cmdArgs := rest[0], rest[1:]

	if cmd == "init" {
		return runInit(flags.ConfigDir, cmdArgs, stdout)
	}

	cfg, err := config.Load(flags.ConfigDir)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	env := &environment{cfg: cfg, logger: logger, stdout: stdout}

	switch cmd {
	case "stats":
		return env.withRepository(ctx, func(repo repository.Repository) error {
			return runStats(ctx, env, repo, cmdArgs)
		})
	case "export":
		return env.withRepository(ctx, func(repo repository.Repository) error {
			return runExport(ctx, env, repo, cmdArgs)
		})
	case "serve-mcp":
		return env.withRepository(ctx, func(repo repository.Repository) error {
			return runServeMCP(ctx, env, repo, cmdArgs)
		})
	case "demo":
		return env.withRepository(ctx, func(repo repository.Repository) error {
			return runDemo(ctx, env, repo, cmdArgs)
		})
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// environment carries what every command needs.
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
	stdout io.Writer
}

// withRepository opens the configured backend for the duration of fn.
func (e *environment) withRepository(ctx context.Context, fn func(repository.Repository) error) error {
	reg, err := app.NewRegistry()
	if err != nil {
		return err
	}
	repo, err := app.Open(ctx, e.cfg, reg, e.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			e.logger.Warn("close repository", zap.Error(err))
		}
	}()
	return fn(repo)
}
