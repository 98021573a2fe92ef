package host

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/user-none/eblitui/android/metrics"
)

// Command is deferred work for the simulation thread.
type Command func()

// ThreadState describes the simulation thread. Flags are written under the
// queue lock and may be read from any goroutine.
type ThreadState struct {
	active        atomic.Bool // a simulation thread exists
	running       atomic.Bool // its frame loop is running
	stopRequested atomic.Bool
	id            atomic.Uint64
}

// Active reports whether a simulation thread exists.
func (s *ThreadState) Active() bool {
	return s.active.Load()
}

// Running reports whether the frame loop is running.
func (s *ThreadState) Running() bool {
	return s.running.Load()
}

// StopRequested reports whether a stop is pending.
func (s *ThreadState) StopRequested() bool {
	return s.stopRequested.Load()
}

// OnThread reports whether the caller is the simulation thread.
func (s *ThreadState) OnThread() bool {
	id := s.id.Load()
	return id != 0 && goroutineID() == id
}

type queued struct {
	seq uint64
	run Command
}

// CommandQueue is the FIFO of commands submitted by callers and drained by
// the simulation thread. Its lock also guards the ThreadState transitions.
type CommandQueue struct {
	mu       sync.Mutex
	wake     *sync.Cond // the simulation thread waits on this while paused
	done     *sync.Cond // blocking submitters wait on this
	commands []queued
	pending  bool

	submitted uint64
	completed uint64

	state   ThreadState
	metrics *metrics.Metrics
}

// NewCommandQueue returns an empty queue with no simulation thread.
func NewCommandQueue(m *metrics.Metrics) *CommandQueue {
	q := &CommandQueue{metrics: m}
	q.wake = sync.NewCond(&q.mu)
	q.done = sync.NewCond(&q.mu)
	return q
}

// State returns the thread state guarded by this queue.
func (q *CommandQueue) State() *ThreadState {
	return &q.state
}

// Pending reports whether submitted commands have not all run yet.
func (q *CommandQueue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Submit hands cmd to the simulation thread.
//
// Without a simulation thread cmd runs inline before Submit returns. A
// non-blocking submission returns at once, even from the simulation thread
// itself, where cmd never runs before Submit returns: it runs after the
// current command, in the same drain when one is in progress, otherwise on
// the next loop iteration. A blocking
// submission returns after cmd and everything queued before it have run; on
// the simulation thread it runs cmd inline instead of waiting on itself.
func (q *CommandQueue) Submit(cmd Command, blocking bool) {
	q.mu.Lock()
	if !q.state.active.Load() || (blocking && q.state.OnThread()) {
		q.mu.Unlock()
		cmd()
		q.metrics.CommandRan(true)
		return
	}

	q.submitted++
	seq := q.submitted
	q.commands = append(q.commands, queued{seq: seq, run: cmd})
	q.pending = true
	q.metrics.Queued(len(q.commands))
	q.wake.Signal()

	if !blocking {
		q.mu.Unlock()
		return
	}

	start := time.Now()
	for q.completed < seq {
		q.done.Wait()
	}
	q.mu.Unlock()
	q.metrics.Waited(time.Since(start))
}

// drainLocked runs queued commands in submission order until the queue is
// observed empty. mu must be held; it is released while each command runs
// so commands can submit more commands.
func (q *CommandQueue) drainLocked() {
	if len(q.commands) == 0 {
		return
	}
	for len(q.commands) > 0 {
		c := q.commands[0]
		q.commands[0] = queued{}
		q.commands = q.commands[1:]

		q.mu.Unlock()
		c.run()
		q.mu.Lock()

		q.completed = c.seq
		q.metrics.CommandRan(false)
		q.done.Broadcast()
	}
	q.commands = nil
	q.pending = false
	q.metrics.Queued(0)
}

// service is the top of every loop iteration. It drains the queue and, while
// paused reports true, sleeps until woken and drains again. It returns false
// when a stop has been requested, clearing the stop and running flags.
func (q *CommandQueue) service(paused func() bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		q.drainLocked()
		if q.state.stopRequested.Load() {
			q.state.stopRequested.Store(false)
			q.state.running.Store(false)
			return false
		}
		if !paused() {
			return true
		}
		q.wake.Wait()
	}
}

// requestStop asks the simulation thread to leave its loop. It does nothing
// when no thread exists.
func (q *CommandQueue) requestStop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.state.active.Load() {
		return
	}
	q.state.stopRequested.Store(true)
	q.wake.Signal()
}

// begin reserves the simulation thread slot. It fails if a thread exists.
func (q *CommandQueue) begin() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state.active.Load() {
		return false
	}
	q.state.active.Store(true)
	q.state.stopRequested.Store(false)
	return true
}

// attach records the calling goroutine as the simulation thread.
func (q *CommandQueue) attach() {
	q.state.id.Store(goroutineID())
}

// setRunning publishes that the frame loop has started.
func (q *CommandQueue) setRunning() {
	q.mu.Lock()
	q.state.running.Store(true)
	q.mu.Unlock()
}

// finish runs anything still queued, then releases the thread slot so later
// submissions run inline.
func (q *CommandQueue) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drainLocked()
	q.state.active.Store(false)
	q.state.running.Store(false)
	q.state.stopRequested.Store(false)
	q.state.id.Store(0)
	q.done.Broadcast()
}
