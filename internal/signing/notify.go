package signing

import (
	"context"

	"github.com/aussiebroadwan/countersign/pkg/slogx"
)

// Notifier is told when a background sync fails. It must not block.
type Notifier interface {
	SyncFailed(ctx context.Context, err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, err error)

func (f NotifierFunc) SyncFailed(ctx context.Context, err error) { f(ctx, err) }

// LogNotifier logs failures to the context logger.
type LogNotifier struct{}

func (LogNotifier) SyncFailed(ctx context.Context, err error) {
	slogx.FromContext(ctx).Warn("field sync failed; will retry on next edit", "err", err)
}
