package service

import (
	"context"
	"sync/atomic"

	"github.com/yndnr/meshnode-go/internal/core/domain"
)

// PendingJoin is a single-resolution future for one join cycle.
// The first resolve wins; later resolves report false and change nothing.
type PendingJoin struct {
	resolved atomic.Bool
	done     chan struct{}

	token domain.AuthToken
	err   error
}

func newPendingJoin() *PendingJoin {
	return &PendingJoin{done: make(chan struct{})}
}

func (p *PendingJoin) resolve(token domain.AuthToken, err error) bool {
	if !p.resolved.CompareAndSwap(false, true) {
		return false
	}
	p.token = token
	p.err = err
	close(p.done)
	return true
}

// Done is closed once the future is resolved.
func (p *PendingJoin) Done() <-chan struct{} {
	return p.done
}

// Resolved reports whether a result has been delivered.
func (p *PendingJoin) Resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future resolves or ctx ends. A context error is
// returned as is; the future stays unresolved in that case.
func (p *PendingJoin) Wait(ctx context.Context) (domain.AuthToken, error) {
	select {
	case <-p.done:
		return p.token, p.err
	case <-ctx.Done():
		return domain.NoToken, ctx.Err()
	}
}
