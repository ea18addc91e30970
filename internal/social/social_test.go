package social

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dusk-indust/graphogm/internal/engine"
	"github.com/dusk-indust/graphogm/internal/repository/traversal"
	"github.com/dusk-indust/graphogm/internal/schema"
)

// recorder collects notifications.
type recorder struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func newTestService(t *testing.T, n Notifier, opts Options) *Service {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, Register(reg))
	repo := traversal.New(engine.NewMemoryBackend(nil), reg, traversal.Options{TransactionalWrites: true}, zaptest.NewLogger(t))
	return NewService(repo, n, opts, zaptest.NewLogger(t))
}

func mustCreate(t *testing.T, s *Service, name string) *User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), &User{Name: name, Email: name + "@x.io"})
	require.NoError(t, err)
	return u
}

func names(users []*User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.Name
	}
	sort.Strings(out)
	return out
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name  string
		items []int
		size  int
		want  [][]int
	}{
		{"empty", nil, 3, nil},
		{"exact", []int{1, 2, 3, 4}, 2, [][]int{{1, 2}, {3, 4}}},
		{"remainder", []int{1, 2, 3, 4, 5}, 2, [][]int{{1, 2}, {3, 4}, {5}}},
		{"size larger than input", []int{1, 2}, 10, [][]int{{1, 2}}},
		{"non-positive size", []int{1, 2, 3}, 0, [][]int{{1, 2, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Partition(tt.items, tt.size))
		})
	}
}

func TestPartition_ChunksDoNotAlias(t *testing.T) {
	parts := Partition([]int{1, 2, 3, 4}, 2)
	parts[0] = append(parts[0], 99)
	assert.Equal(t, []int{3, 4}, parts[1])
}

func TestCreateAndFindUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &recorder{}, Options{})

	ann := mustCreate(t, s, "ann")
	assert.NotEqual(t, uuid.Nil, ann.UserID)
	assert.NotEmpty(t, ann.ID)

	got, ok, err := s.FindByUserID(ctx, ann.UserID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ann.UserID, got.UserID)
	assert.Equal(t, "ann", got.Name)

	got, ok, err = s.FindByEmail(ctx, "ann@x.io")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ann.ID, got.ID)

	_, ok, err = s.FindByUserID(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := s.AllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFollowGraph(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := newTestService(t, rec, Options{})

	ann, bob, cat := mustCreate(t, s, "ann"), mustCreate(t, s, "bob"), mustCreate(t, s, "cat")
	require.NoError(t, s.Follow(ctx, ann.UserID, bob.UserID))
	require.NoError(t, s.Follow(ctx, cat.UserID, ann.UserID))
	require.NoError(t, s.Follow(ctx, bob.UserID, cat.UserID))

	followings, err := s.Followings(ctx, ann.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, names(followings))

	followers, err := s.Followers(ctx, ann.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, names(followers))

	conns, err := s.Connections(ctx, ann.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "cat"}, names(conns))

	reach, err := s.Reach(ctx, ann.UserID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "cat"}, names(reach))

	require.Len(t, rec.got, 3)
	assert.Equal(t, KindFollow, rec.got[0].Kind)
	assert.Equal(t, ann.UserID, rec.got[0].ActorID)
	assert.Equal(t, []uuid.UUID{bob.UserID}, rec.got[0].Recipients)
	assert.Equal(t, "ann", rec.got[0].Message)

	require.NoError(t, s.Unfollow(ctx, ann.UserID, bob.UserID))
	followings, err = s.Followings(ctx, ann.UserID)
	require.NoError(t, err)
	assert.Empty(t, followings)
}

func TestFollow_UnknownUser(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &recorder{}, Options{})
	ann := mustCreate(t, s, "ann")

	err := s.Follow(ctx, ann.UserID, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.Followers(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFollow_NotificationFailureKeepsEdge(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, NotifierFunc(func(context.Context, Notification) error {
		return errors.New("bus down")
	}), Options{})
	ann, bob := mustCreate(t, s, "ann"), mustCreate(t, s, "bob")

	require.NoError(t, s.Follow(ctx, ann.UserID, bob.UserID))
	followers, err := s.Followers(ctx, bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ann"}, names(followers))
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &recorder{}, Options{})
	ann, bob := mustCreate(t, s, "ann"), mustCreate(t, s, "bob")
	require.NoError(t, s.Follow(ctx, ann.UserID, bob.UserID))

	require.NoError(t, s.DeleteUser(ctx, bob.UserID))
	_, ok, err := s.FindByUserID(ctx, bob.UserID)
	require.NoError(t, err)
	assert.False(t, ok)

	followings, err := s.Followings(ctx, ann.UserID)
	require.NoError(t, err)
	assert.Empty(t, followings, "edges go with the vertex")
}

func TestFanOut(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := newTestService(t, rec, Options{BatchSize: 2, Concurrency: 2})

	author := mustCreate(t, s, "author")
	want := map[uuid.UUID]bool{}
	for _, n := range []string{"f1", "f2", "f3", "f4", "f5"} {
		f := mustCreate(t, s, n)
		require.NoError(t, s.Follow(ctx, f.UserID, author.UserID))
		want[f.UserID] = true
	}
	rec.got = nil

	post := Post{ID: uuid.New(), AuthorID: author.UserID}
	res, err := s.FanOut(ctx, post)
	require.NoError(t, err)
	assert.Equal(t, FanOutResult{Recipients: 5, Batches: 3}, res)

	require.Len(t, rec.got, 3)
	seen := map[uuid.UUID]bool{}
	for _, n := range rec.got {
		assert.Equal(t, KindPost, n.Kind)
		assert.Equal(t, post.ID, n.PostID)
		assert.Equal(t, "New post from author", n.Message)
		assert.LessOrEqual(t, len(n.Recipients), 2)
		for _, id := range n.Recipients {
			seen[id] = true
		}
	}
	assert.Equal(t, want, seen)
}

func TestFanOut_NoFollowers(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s := newTestService(t, rec, Options{})
	author := mustCreate(t, s, "author")

	res, err := s.FanOut(ctx, Post{ID: uuid.New(), AuthorID: author.UserID})
	require.NoError(t, err)
	assert.Zero(t, res)
	assert.Empty(t, rec.got)
}

func TestFanOut_FailureCancelsRemaining(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	s := newTestService(t, NotifierFunc(func(ctx context.Context, n Notification) error {
		if n.Kind == KindFollow {
			return nil
		}
		if calls.Add(1) == 1 {
			return errors.New("bus down")
		}
		return ctx.Err()
	}), Options{BatchSize: 1, Concurrency: 1})

	author := mustCreate(t, s, "author")
	for _, n := range []string{"f1", "f2", "f3"} {
		f := mustCreate(t, s, n)
		require.NoError(t, s.Follow(ctx, f.UserID, author.UserID))
	}

	_, err := s.FanOut(ctx, Post{ID: uuid.New(), AuthorID: author.UserID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus down")
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Notify(context.Background(), Notification{
		Kind:       KindPost,
		ActorID:    uuid.New(),
		Message:    "hello",
		Recipients: []uuid.UUID{uuid.New(), uuid.New()},
	}))
	entries := logs.FilterMessage("notification").All()
	require.Len(t, entries, 1)
	assert.Equal(t, KindPost, entries[0].ContextMap()["kind"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["recipients"])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Notify(ctx, Notification{}), context.Canceled)
}

func TestFanOut_Progress(t *testing.T) {
	ctx := context.Background()
	pr := NewProgressReporter()
	s := newTestService(t, &recorder{}, Options{BatchSize: 2, Concurrency: 1, Progress: pr})

	author := mustCreate(t, s, "author")
	for _, n := range []string{"f1", "f2", "f3"} {
		f := mustCreate(t, s, n)
		require.NoError(t, s.Follow(ctx, f.UserID, author.UserID))
	}

	_, err := s.FanOut(ctx, Post{ID: uuid.New(), AuthorID: author.UserID})
	require.NoError(t, err)
	pr.Close()

	counts := map[BatchStatus]int{}
	recipients := 0
	for ev := range pr.Subscribe() {
		counts[ev.Status]++
		if ev.Status == BatchComplete {
			recipients += ev.Recipients
		}
	}
	assert.Equal(t, map[BatchStatus]int{BatchWorking: 2, BatchComplete: 2}, counts)
	assert.Equal(t, 3, recipients)
}

func TestProgressReporter_DropsWhenFull(t *testing.T) {
	pr := NewProgressReporter()
	for i := 0; i < 100; i++ {
		pr.Emit(BatchEvent{Batch: i, Status: BatchWorking})
	}
	pr.Close()

	n := 0
	for range pr.Subscribe() {
		n++
	}
	assert.Equal(t, 64, n)

	var nilReporter *ProgressReporter
	assert.NotPanics(t, func() { nilReporter.Emit(BatchEvent{}) })
}

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		ev   BatchEvent
		want string
	}{
		{BatchEvent{Batch: 0, Recipients: 2, Status: BatchWorking}, "  ● batch 0 (2 recipients)..."},
		{BatchEvent{Batch: 1, Status: BatchComplete}, "  ✓ batch 1 complete"},
		{BatchEvent{Batch: 2, Status: BatchFailed, Message: "bus down"}, "  ✗ batch 2 failed: bus down"},
		{BatchEvent{Batch: 3, Status: "odd"}, "  ? batch 3 (unknown status)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatProgress(tt.ev))
	}
}
