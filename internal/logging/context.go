package logging

import (
	"context"
	"time"
)

// DetachContext returns a context that is not cancelled when parent is.
// Values carried by parent remain visible.
func DetachContext(parent context.Context) context.Context {
	return context.WithoutCancel(parent)
}

// DetachContextWithTimeout detaches from parent and applies its own deadline.
// Session checkpoints are written this way so a cancelled request still
// persists the history it already appended.
//
//	saveCtx, cancel := logging.DetachContextWithTimeout(ctx, 5*time.Second)
//	defer cancel()
//	err := store.Checkpoint(saveCtx, sessionID)
func DetachContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}
