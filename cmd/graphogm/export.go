package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dusk-indust/graphogm/internal/export"
	"github.com/dusk-indust/graphogm/internal/repository"
)

func runExport(ctx context.Context, env *environment, repo repository.Repository, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", "json", "output format: json or mermaid")
	labels := fs.String("labels", "", "comma-separated vertex labels (default: all registered)")
	edge := fs.String("edge", "", "edge label to include (default: any)")
	limit := fs.Int("limit", 0, "maximum vertices per label (0: all)")
	seed := fs.Bool("seed", false, "load the demo follow graph first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *format != "json" && *format != "mermaid" {
		return fmt.Errorf("export: unknown format %q", *format)
	}
	if *seed {
		if _, err := seedDemo(ctx, env, repo); err != nil {
			return err
		}
	}

	opts := export.Options{EdgeLabel: *edge, Limit: *limit}
	if *labels != "" {
		for _, l := range strings.Split(*labels, ",") {
			if l = strings.TrimSpace(l); l != "" {
				opts.Labels = append(opts.Labels, l)
			}
		}
	}

	snap, err := export.Build(ctx, repo, opts)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if *format == "mermaid" {
		_, err = io.WriteString(env.stdout, export.Mermaid(snap))
		return err
	}
	return export.WriteJSON(env.stdout, snap)
}
