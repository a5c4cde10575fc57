/*
2026 © Postgres.ai
*/

package emulator

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// Conn guards a single live terminal. The terminal is reachable only through a Scope
// so every screen read or write happens inside the critical section.
//
// Waiters are served in arrival order and a holder may sleep or poll the screen
// without blocking unrelated goroutines. The gate is not reentrant.
type Conn struct {
	term Terminal
	sem  *semaphore.Weighted
}

// NewConn creates a gate around the terminal.
func NewConn(term Terminal) *Conn {
	return &Conn{
		term: term,
		sem:  semaphore.NewWeighted(1),
	}
}

// Acquire waits for exclusive access to the terminal.
func (c *Conn) Acquire(ctx context.Context) (*Scope, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to acquire terminal")
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "failed to acquire terminal")
	}

	return &Scope{conn: c, term: c.term}, nil
}

// TryAcquire takes the terminal only if nobody holds it.
func (c *Conn) TryAcquire() (*Scope, bool) {
	if !c.sem.TryAcquire(1) {
		return nil, false
	}

	return &Scope{conn: c, term: c.term}, true
}

// Do runs fn inside the critical section and releases the terminal on every exit path.
func (c *Conn) Do(ctx context.Context, fn func(scope *Scope) error) error {
	scope, err := c.Acquire(ctx)
	if err != nil {
		return err
	}

	defer scope.Release()

	return fn(scope)
}

// Scope grants exclusive use of the terminal until Release.
type Scope struct {
	conn *Conn
	term Terminal
	once sync.Once
}

// Terminal returns the guarded terminal. It must not be used after Release.
func (s *Scope) Terminal() Terminal {
	return s.term
}

// Release gives the terminal back. Calling it more than once is a no-op.
func (s *Scope) Release() {
	s.once.Do(func() {
		s.term = nil
		s.conn.sem.Release(1)
	})
}
