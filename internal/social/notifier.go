package social

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notification kinds.
const (
	KindFollow = "FOLLOW-NOTIFICATION"
	KindPost   = "POST-NOTIFICATION"
)

// Notification is one message addressed to a set of users.
type Notification struct {
	Kind       string      `json:"kind"`
	ActorID    uuid.UUID   `json:"actorId"`
	PostID     uuid.UUID   `json:"postId,omitempty"`
	Message    string      `json:"message"`
	Recipients []uuid.UUID `json:"recipients"`
}

// Notifier delivers notifications, typically by publishing to a message bus.
// Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.logger.Info("notification",
		zap.String("kind", n.Kind),
		zap.String("actor", n.ActorID.String()),
		zap.Int("recipients", len(n.Recipients)),
		zap.String("message", n.Message),
	)
	return nil
}
