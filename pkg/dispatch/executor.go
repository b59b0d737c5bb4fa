package dispatch

import "sync"

// Executor runs closures on some context the caller cares about, typically
// the application's UI loop. Implementations must preserve submission order
// for closures submitted from a single goroutine.
type Executor interface {
	Do(fn func())
}

// SerialExecutor runs submitted closures one at a time, in FIFO order, on a
// single dedicated goroutine. It is the default delivery context when the
// embedding application does not supply its own.
type SerialExecutor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	closed  bool
	done    chan struct{}
}

// NewSerialExecutor starts the draining goroutine.
func NewSerialExecutor() *SerialExecutor {
	e := &SerialExecutor{done: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.run()
	return e
}

// Do enqueues fn. Submissions after Close are dropped.
func (e *SerialExecutor) Do(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.pending = append(e.pending, fn)
	e.cond.Signal()
}

// Close drains the queue and stops the goroutine. It blocks until every
// closure submitted before the call has run.
func (e *SerialExecutor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return
	}
	e.closed = true
	e.cond.Signal()
	e.mu.Unlock()
	<-e.done
}

func (e *SerialExecutor) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.pending) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.pending) == 0 {
			e.mu.Unlock()
			return
		}
		fn := e.pending[0]
		e.pending = e.pending[1:]
		e.mu.Unlock()
		fn()
	}
}
