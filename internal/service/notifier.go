package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Notification struct {
	Event    string
	BranchID string
	EntityID string
	Message  string
	At       time.Time
}

// Notifier delivers operational events. Delivery failures are the notifier's concern; callers
// never wait on or react to them.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, Notification) {}

// LogNotifier writes every notification as a structured log line.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, msg Notification) {
	n.logger.Info().
		Str("event", msg.Event).
		Str("branch_id", msg.BranchID).
		Str("entity_id", msg.EntityID).
		Time("at", msg.At).
		Msg(msg.Message)
}
