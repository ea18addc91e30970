package main

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/dusk-indust/graphogm/internal/repository"
)

func runStats(ctx context.Context, env *environment, repo repository.Repository, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	seed := fs.Bool("seed", false, "load the demo follow graph first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *seed {
		if _, err := seedDemo(ctx, env, repo); err != nil {
			return err
		}
	}

	st, err := repository.Stats(ctx, repo)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	fmt.Fprintf(env.stdout, "Backend: %s\n", repo.Name())
	fmt.Fprintf(env.stdout, "Vertices: %d\n", st.VertexCount)

	labels := make([]string, 0, len(st.ByLabel))
	for l := range st.ByLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintf(env.stdout, "  %-20s %d\n", l, st.ByLabel[l])
	}
	return nil
}
