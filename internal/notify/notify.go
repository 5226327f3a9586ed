package notify

import (
	"context"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/servicecheck/internal/domain"
)

const AnnounceTitle = "Server available"

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi delivers to every notifier and returns all failures combined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, title, text))
	}
	return errs
}

// Log writes notifications to the structured log.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(ctx context.Context, title, text string) error {
	l.Logger.Info("notification",
		zap.String("title", title),
		zap.Strings("lines", strings.Split(text, "\n")),
	)
	return nil
}

// Announce sends one notification listing every up-edge of a cycle. Nothing
// is sent for an empty batch.
func Announce(ctx context.Context, n Notifier, events []domain.TransitionEvent) error {
	if n == nil || len(events) == 0 {
		return nil
	}
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, e.Message())
	}
	return n.Send(ctx, AnnounceTitle, strings.Join(lines, "\n"))
}
