package main

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dusk-indust/graphogm/internal/app"
	"github.com/dusk-indust/graphogm/internal/repository"
	"github.com/dusk-indust/graphogm/internal/social"
)

// demoFollows is the follow graph seeded by the demo: follower -> followed.
var demoFollows = [][2]string{
	{"bob", "alice"},
	{"carol", "alice"},
	{"dave", "carol"},
	{"alice", "bob"},
}

var demoUsers = []string{"alice", "bob", "carol", "dave"}

// seedDemo creates the demo users and their follows. Users already present
// (matched by email) are reused and their follows are not added again.
func seedDemo(ctx context.Context, env *environment, repo repository.Repository) (map[string]*social.User, error) {
	svc := app.SocialService(env.cfg, repo, nil, env.logger)

	users := make(map[string]*social.User, len(demoUsers))
	fresh := false
	for _, name := range demoUsers {
		email := name + "@example.com"
		u, ok, err := svc.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if !ok {
			if u, err = svc.CreateUser(ctx, &social.User{Name: name, Email: email}); err != nil {
				return nil, err
			}
			fresh = true
		}
		users[name] = u
	}
	if !fresh {
		return users, nil
	}
	for _, f := range demoFollows {
		if err := svc.Follow(ctx, users[f[0]].UserID, users[f[1]].UserID); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func runDemo(ctx context.Context, env *environment, repo repository.Repository, args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	depth := fs.Int("depth", 2, "hops followed by the reach query")
	if err := fs.Parse(args); err != nil {
		return err
	}

	users, err := seedDemo(ctx, env, repo)
	if err != nil {
		return fmt.Errorf("demo: seed: %w", err)
	}
	progress := social.NewProgressReporter()
	svc := app.SocialService(env.cfg, repo, progress, env.logger)
	out := env.stdout

	fmt.Fprintf(out, "Backend: %s\n", repo.Name())

	followers, err := svc.Followers(ctx, users["alice"].UserID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Followers of alice: %s\n", userNames(followers))

	followings, err := svc.Followings(ctx, users["alice"].UserID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "alice follows: %s\n", userNames(followings))

	reach, err := svc.Reach(ctx, users["dave"].UserID, *depth)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Reach of dave within %d hops: %s\n", *depth, userNames(reach))

	paths, err := repo.GetPath(ctx, users["dave"].ID, users["bob"].ID, social.EdgeFollowing, 5)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Paths from dave to bob: %d\n", len(paths))
	for _, p := range paths {
		names := make([]string, 0, len(p.Vertices()))
		for _, v := range p.Vertices() {
			name, _ := v.Props["name"].(string)
			names = append(names, name)
		}
		fmt.Fprintf(out, "  %s (%d hops)\n", strings.Join(names, " -> "), p.Hops())
	}

	res, err := svc.FanOut(ctx, social.Post{ID: uuid.New(), AuthorID: users["alice"].UserID})
	progress.Close()
	for ev := range progress.Subscribe() {
		fmt.Fprintln(out, social.FormatProgress(ev))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Post by alice reached %d followers in %d batches\n", res.Recipients, res.Batches)
	return nil
}

func userNames(users []*social.User) string {
	if len(users) == 0 {
		return "(none)"
	}
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Name
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
