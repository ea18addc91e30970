package main

import (
	"context"
	"flag"

	"go.uber.org/zap"

	"github.com/dusk-indust/graphogm/internal/mcptools"
	"github.com/dusk-indust/graphogm/internal/repository"
)

func runServeMCP(ctx context.Context, env *environment, repo repository.Repository, args []string) error {
	fs := flag.NewFlagSet("serve-mcp", flag.ContinueOnError)
	addr := fs.String("addr", env.cfg.MCP.Addr, "HTTP listen address")
	stdio := fs.Bool("stdio", false, "serve on stdin/stdout instead of HTTP")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc := mcptools.NewGraphService(repo, env.logger)
	if *stdio {
		env.logger.Info("serving MCP on stdio", zap.String("backend", repo.Name()))
		return mcptools.RunMCPServerStdio(ctx, svc)
	}
	env.logger.Info("serving MCP over HTTP", zap.String("addr", *addr), zap.String("backend", repo.Name()))
	return mcptools.RunMCPServer(ctx, svc, *addr)
}
