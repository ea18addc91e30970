package social

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Post is the event that triggers a fan-out.
type Post struct {
	ID       uuid.UUID
	AuthorID uuid.UUID
}

// FanOutResult summarizes one fan-out.
type FanOutResult struct {
	Recipients int
	Batches    int
}

// Partition splits items into consecutive chunks of at most size elements.
// A size below one yields a single chunk.
func Partition[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size < 1 {
		size = len(items)
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}

// FanOut notifies the author's followers of a new post, one notification per
// batch of recipients. Batches are sent in parallel with at most
// Options.Concurrency in flight; the first failure cancels the rest.
func (s *Service) FanOut(ctx context.Context, post Post) (FanOutResult, error) {
	s.logger.Info("fan-out started", zap.String("post", post.ID.String()))

	author, _, err := s.vertexID(ctx, post.AuthorID)
	if err != nil {
		return FanOutResult{}, err
	}
	followers, err := s.Followers(ctx, post.AuthorID)
	if err != nil {
		return FanOutResult{}, fmt.Errorf("social: fan-out: %w", err)
	}
	if len(followers) == 0 {
		s.logger.Info("no followers", zap.String("author", post.AuthorID.String()))
		return FanOutResult{}, nil
	}

	ids := make([]uuid.UUID, len(followers))
	for i, f := range followers {
		ids[i] = f.UserID
	}
	batches := Partition(ids, s.opts.BatchSize)
	message := "New post from " + author.Name

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			s.opts.Progress.Emit(BatchEvent{Batch: i, Recipients: len(batch), Status: BatchWorking})
			err := s.notifier.Notify(gctx, Notification{
				Kind:       KindPost,
				ActorID:    post.AuthorID,
				PostID:     post.ID,
				Message:    message,
				Recipients: batch,
			})
			if err != nil {
				s.opts.Progress.Emit(BatchEvent{Batch: i, Recipients: len(batch), Status: BatchFailed, Message: err.Error()})
				return err
			}
			s.opts.Progress.Emit(BatchEvent{Batch: i, Recipients: len(batch), Status: BatchComplete})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return FanOutResult{}, fmt.Errorf("social: fan-out: %w", err)
	}

	s.logger.Info("fan-out completed",
		zap.Int("followers", len(ids)),
		zap.Int("batches", len(batches)),
	)
	return FanOutResult{Recipients: len(ids), Batches: len(batches)}, nil
}
