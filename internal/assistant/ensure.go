package assistant

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Ensurer runs an initialization function at most once per process lifetime.
// Concurrent first callers share the in-flight attempt instead of each
// triggering their own; a failed attempt resets the guard so a later request
// can retry.
type Ensurer struct {
	fn    func(context.Context) error
	group singleflight.Group

	mu   sync.Mutex
	done bool
}

// NewEnsurer wraps fn in a once-successful guard.
func NewEnsurer(fn func(context.Context) error) *Ensurer {
	return &Ensurer{fn: fn}
}

// Ensure runs the wrapped function unless a previous call already succeeded.
func (e *Ensurer) Ensure(ctx context.Context) error {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	_, err, _ := e.group.Do("ensure", func() (any, error) {
		if err := e.fn(ctx); err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.done = true
		e.mu.Unlock()
		return nil, nil
	})
	return err
}
