// Package dispatch executes RPC operations asynchronously on a worker pool
// and delivers their results back on an application-chosen executor.
//
// Feature code never blocks on the network: it submits an operation through
// Invoke together with a callback, and the callback runs later on the
// delivery executor with either the result or a typed error. When a call
// fails because the auth token expired, the gateway tears the session down
// and re-presents the login surface without involving the caller.
package dispatch

import (
	"context"
	"sync"

	"github.com/notewell/notewell-go/pkg/config"
	"github.com/notewell/notewell-go/pkg/errors"
	"github.com/notewell/notewell-go/pkg/logger"
	"github.com/notewell/notewell-go/pkg/session"
)

// Callback receives the outcome of one dispatched operation. Exactly one of
// the two functions runs, exactly once, on the gateway's delivery executor.
// Either may be nil when the caller does not care about that outcome.
type Callback[T any] struct {
	OnSuccess func(T)
	OnError   func(error)
}

// Gateway runs operations on a fixed pool of worker goroutines. In-flight
// operations are never cancelled; Close waits for them to finish.
type Gateway struct {
	session  *session.Manager
	executor Executor
	ownsExec bool
	workers  int

	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	closed  bool
	wg      sync.WaitGroup
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithExecutor sets the delivery executor. The embedding application
// supplies one bound to its UI loop; without it the gateway owns a
// SerialExecutor and closes it on Close.
func WithExecutor(e Executor) GatewayOption {
	return func(g *Gateway) {
		g.executor = e
		g.ownsExec = false
	}
}

// WithWorkers overrides the configured worker pool size.
func WithWorkers(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.workers = n
		}
	}
}

// NewGateway starts the worker pool.
func NewGateway(sess *session.Manager, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		session: sess,
		workers: config.DispatchWorkers(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.workers <= 0 {
		g.workers = config.DefaultDispatchWorkers
	}
	if g.executor == nil {
		g.executor = NewSerialExecutor()
		g.ownsExec = true
	}
	g.cond = sync.NewCond(&g.mu)

	g.wg.Add(g.workers)
	for i := 0; i < g.workers; i++ {
		go g.worker()
	}
	logger.Debugw("dispatch gateway started", "workers", g.workers)
	return g
}

// Invoke queues op on the worker pool. The operation's outcome is delivered
// through cb on the delivery executor. An expired-auth failure additionally
// forces re-authentication of the session the gateway is bound to.
//
// The error return covers submission only: the gateway being closed.
func Invoke[T any](g *Gateway, op func(context.Context) (T, error), cb Callback[T]) error {
	// Captured now so a forced logout that already happened for this
	// credential is not repeated when the stale call fails later.
	generation := g.session.Generation()

	return g.submit(func() {
		value, err := op(context.Background())
		if err != nil {
			if errors.IsAuthExpired(err) {
				go g.session.ForceReauthentication(generation)
			}
			g.executor.Do(func() {
				if cb.OnError != nil {
					cb.OnError(err)
				}
			})
			return
		}
		g.executor.Do(func() {
			if cb.OnSuccess != nil {
				cb.OnSuccess(value)
			}
		})
	})
}

// Run queues a result-less operation. Semantics match Invoke.
func (g *Gateway) Run(op func(context.Context) error, onDone func(error)) error {
	return Invoke(g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, Callback[struct{}]{
		OnSuccess: func(struct{}) {
			if onDone != nil {
				onDone(nil)
			}
		},
		OnError: func(err error) {
			if onDone != nil {
				onDone(err)
			}
		},
	})
}

func (g *Gateway) submit(task func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errors.NewInvalidStateError("dispatch gateway is closed", nil)
	}
	g.pending = append(g.pending, task)
	g.cond.Signal()
	return nil
}

// Close stops accepting work, waits for queued and in-flight operations to
// finish, and shuts down an owned executor after their callbacks have run.
func (g *Gateway) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.cond.Broadcast()
	g.mu.Unlock()

	g.wg.Wait()
	if g.ownsExec {
		if se, ok := g.executor.(*SerialExecutor); ok {
			se.Close()
		}
	}
}

func (g *Gateway) worker() {
	defer g.wg.Done()
	for {
		g.mu.Lock()
		for len(g.pending) == 0 && !g.closed {
			g.cond.Wait()
		}
		if len(g.pending) == 0 {
			g.mu.Unlock()
			return
		}
		task := g.pending[0]
		g.pending = g.pending[1:]
		g.mu.Unlock()
		task()
	}
}
