package eventlog

import (
	"context"
	"time"
)

// WaitForAppend blocks until the next append, timeout, or ctx is done and
// reports whether an append woke it. timeout <= 0 means no timeout.
func (l *Log) WaitForAppend(ctx context.Context, timeout time.Duration) bool {
	l.mu.Lock()
	ch := l.notifyCh
	l.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-ch:
		return true
	case <-expired:
	case <-ctx.Done():
	}
	return false
}
