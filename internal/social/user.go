// Package social is the follow-graph service built on the repository: users,
// follow edges between them and the fan-out of post notifications to
// followers.
package social

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dusk-indust/graphogm/internal/graph"
	"github.com/dusk-indust/graphogm/internal/repository"
	"github.com/dusk-indust/graphogm/internal/schema"
)

// EdgeFollowing is the label of the edge from a follower to the followed.
const EdgeFollowing = "following"

// ErrUserNotFound is returned when a user id resolves to no vertex.
var ErrUserNotFound = errors.New("social: user not found")

// User is a member of the follow graph. UserID is the stable public identity;
// ID is the backend vertex identity.
type User struct {
	ID      string
	UserID  uuid.UUID `graph:"userId"`
	Name    string
	Email   string
	Friends []*User `graph:"friends,edge=following,dir=out"`
}

// Register adds the service's entities to reg.
func Register(reg *schema.Registry) error {
	_, err := schema.Register[User](reg)
	return err
}

// Service manages users and follow edges.
type Service struct {
	repo     repository.Repository
	notifier Notifier
	opts     Options
	logger   *zap.Logger
}

// Options tunes the fan-out.
type Options struct {
	// BatchSize is the number of recipients per notification.
	BatchSize int
	// Concurrency bounds the notifications in flight.
	Concurrency int
	// Progress receives per-batch events when set.
	Progress *ProgressReporter
}

// NewService returns a service over repo. User must be registered in the
// repository's registry. A nil notifier logs notifications.
func NewService(repo repository.Repository, notifier Notifier, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 2000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Service{repo: repo, notifier: notifier, opts: opts, logger: logger}
}

// CreateUser saves u, assigning a UserID when it has none.
func (s *Service) CreateUser(ctx context.Context, u *User) (*User, error) {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	if _, err := s.repo.Save(ctx, u); err != nil {
		return nil, fmt.Errorf("social: create user: %w", err)
	}
	s.logger.Info("user created", zap.String("userId", u.UserID.String()), zap.String("id", u.ID))
	return u, nil
}

func (s *Service) FindByUserID(ctx context.Context, userID uuid.UUID) (*User, bool, error) {
	return repository.FindByProperty[User](ctx, s.repo, "userId", userID.String())
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*User, bool, error) {
	return repository.FindByProperty[User](ctx, s.repo, "email", email)
}

func (s *Service) AllUsers(ctx context.Context) ([]*User, error) {
	return repository.FindAll[User](ctx, s.repo)
}

// DeleteUser removes the user and its edges. Unknown ids are a no-op.
func (s *Service) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	return repository.DeleteByProperty[User](ctx, s.repo, "userId", userID.String())
}

// vertexID resolves a public user id to its vertex identity.
func (s *Service) vertexID(ctx context.Context, userID uuid.UUID) (*User, graph.ID, error) {
	u, ok, err := s.FindByUserID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return u, u.ID, nil
}

// Follow adds a following edge from one user to another and notifies the
// followed user. A notification failure is logged, the edge stays.
func (s *Service) Follow(ctx context.Context, from, to uuid.UUID) error {
	follower, fromID, err := s.vertexID(ctx, from)
	if err != nil {
		return err
	}
	_, toID, err := s.vertexID(ctx, to)
	if err != nil {
		return err
	}
	if err := s.repo.AddEdge(ctx, fromID, toID, EdgeFollowing, graph.DirectionOut, nil); err != nil {
		return fmt.Errorf("social: follow: %w", err)
	}
	s.logger.Info("follow created", zap.String("from", from.String()), zap.String("to", to.String()))

	n := Notification{
		Kind:       KindFollow,
		ActorID:    from,
		Message:    follower.Name,
		Recipients: []uuid.UUID{to},
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("follow notification failed", zap.String("to", to.String()), zap.Error(err))
	}
	return nil
}

// Unfollow removes the following edges from one user to another.
func (s *Service) Unfollow(ctx context.Context, from, to uuid.UUID) error {
	_, fromID, err := s.vertexID(ctx, from)
	if err != nil {
		return err
	}
	_, toID, err := s.vertexID(ctx, to)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteEdge(ctx, fromID, toID, EdgeFollowing); err != nil {
		return fmt.Errorf("social: unfollow: %w", err)
	}
	s.logger.Info("follow deleted", zap.String("from", from.String()), zap.String("to", to.String()))
	return nil
}

// Followings returns the users userID follows.
func (s *Service) Followings(ctx context.Context, userID uuid.UUID) ([]*User, error) {
	_, id, err := s.vertexID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return repository.TraverseOutgoing[User](ctx, s.repo, id, EdgeFollowing)
}

// Followers returns the users following userID.
func (s *Service) Followers(ctx context.Context, userID uuid.UUID) ([]*User, error) {
	_, id, err := s.vertexID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return repository.TraverseIncoming[User](ctx, s.repo, id, EdgeFollowing)
}

// Connections returns the users linked to userID in either direction.
func (s *Service) Connections(ctx context.Context, userID uuid.UUID) ([]*User, error) {
	_, id, err := s.vertexID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return repository.TraverseBoth[User](ctx, s.repo, id, EdgeFollowing)
}

// Reach returns the users reachable through up to depth following hops.
func (s *Service) Reach(ctx context.Context, userID uuid.UUID, depth int) ([]*User, error) {
	_, id, err := s.vertexID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return repository.TraverseWithDepth[User](ctx, s.repo, id, EdgeFollowing, depth)
}
