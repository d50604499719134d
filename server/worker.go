package server

import (
	"errors"
	"fmt"
	"sync"
)

// ErrStopped is returned by Do once the worker has been stopped.
var ErrStopped = errors.New("worker stopped")

// request is a unit of work executed on the worker goroutine.
type request struct {
	fn   func() any
	done chan result
}

// result holds the return value of a request.
type result struct {
	value any
	err   error
}

// Worker serializes compiler access through a single goroutine. A
// compilation session is single threaded; every LSP handler goes through
// the worker so that no two sessions run at once.
type Worker struct {
	requests chan request
	quit     chan struct{}
	stop     sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker() *Worker {
	w := &Worker{
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *Worker) execute(fn func() any) result {
	var res result
	func() {
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("%v", r)
				log.Errorf("request panicked: %v", r)
			}
		}()
		res.value = fn()
	}()
	return res
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes. A panic in fn is returned as an error.
func (w *Worker) Do(fn func() any) (any, error) {
	req := request{
		fn:   fn,
		done: make(chan result, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, ErrStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}
