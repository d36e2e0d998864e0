package device

import (
	"fmt"
	"sync"
)

// Stream is a FIFO of asynchronously executed device tasks, driven by a
// single goroutine. Submit never blocks the caller; Wait is the only
// blocking operation and the only point at which execution errors become
// visible.
//
// Error model: the first task error is recorded and poisons the stream —
// subsequent tasks are skipped, not run against possibly-corrupt state —
// until the next Wait returns (and clears) that error. This mirrors the
// sticky-error behavior of real accelerator runtimes.
//
// A Stream supports one submitting goroutine; tasks themselves run on the
// stream's own goroutine.
type Stream struct {
	name string
	dev  *Device

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []streamTask
	running bool // a task is currently executing
	err     error
	closing bool
	done    chan struct{}
}

type streamTask struct {
	op string
	fn func() error
}

func newStream(dev *Device, name string) *Stream {
	s := &Stream{
		name: name,
		dev:  dev,
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

// Name returns the stream's identifier.
func (s *Stream) Name() string { return s.name }

// Device returns the device the stream belongs to.
func (s *Stream) Device() *Device { return s.dev }

// Submit enqueues an operation on the stream and returns immediately.
// op names the operation for diagnostics. Submitting to a closed stream
// panics: it indicates a lifetime bug in the caller, not a runtime
// condition to recover from.
func (s *Stream) Submit(op string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		panic(fmt.Sprintf("stream %q: submit after close (op %q)", s.name, op))
	}
	s.queue = append(s.queue, streamTask{op: op, fn: fn})
	s.cond.Broadcast()
}

// Wait blocks until every previously submitted task has finished, then
// returns the first error recorded since the last Wait, or nil. The error
// state is cleared so the stream is usable again.
func (s *Stream) Wait() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 || s.running {
		s.cond.Wait()
	}
	err := s.err
	s.err = nil
	return err
}

// Close drains the stream and stops its goroutine. Any error from the
// drained tail is discarded; callers that care must Wait first.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closing = true
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.done
}

func (s *Stream) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closing {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closing {
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		poisoned := s.err != nil
		s.running = true
		s.mu.Unlock()

		var err error
		if !poisoned {
			err = s.runTask(task)
		}

		s.mu.Lock()
		s.running = false
		if err != nil && s.err == nil {
			s.err = err
		}
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

// runTask executes one task, converting panics into errors so a broken
// kernel cannot take down the stream goroutine.
func (s *Stream) runTask(t streamTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ExecError{Op: t.op, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return t.fn()
}
