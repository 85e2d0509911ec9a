// internal/display/lock.go
package display

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Lock serializes access to a display surface. Capture and input dispatch both take it,
// so concurrent runs sharing a surface never interleave device effects.
type Lock struct {
	sem *semaphore.Weighted
}

func NewLock() *Lock {
	return &Lock{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the lock is held or ctx is done.
func (l *Lock) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// TryAcquire takes the lock only if it is free.
func (l *Lock) TryAcquire() bool {
	return l.sem.TryAcquire(1)
}

func (l *Lock) Release() {
	l.sem.Release(1)
}
