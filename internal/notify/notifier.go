// Package notify delivers operational warnings and errors.
package notify

import (
	"context"
	"log/slog"

	"kbase/internal/domain/services"
)

// SlogNotifier writes notifications to a structured logger
type SlogNotifier struct {
	logger *slog.Logger
}

var _ services.Notifier = (*SlogNotifier)(nil)

// NewSlogNotifier creates a notifier backed by logger
func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	return &SlogNotifier{logger: logger.With("component", "notify")}
}

func (n *SlogNotifier) Warn(ctx context.Context, msg string, args ...any) {
	n.logger.WarnContext(ctx, msg, args...)
}

func (n *SlogNotifier) Error(ctx context.Context, msg string, args ...any) {
	n.logger.ErrorContext(ctx, msg, args...)
}
