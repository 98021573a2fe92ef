package host

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user-none/eblitui/android/metrics"
)

// startConsumer runs a bare simulation thread that only drains q. The
// returned function stops it and waits for it to exit.
func startConsumer(t *testing.T, q *CommandQueue) func() {
	t.Helper()
	require.True(t, q.begin())
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		q.attach()
		q.setRunning()
		for q.service(func() bool { return true }) {
		}
		q.finish()
	}()
	return func() {
		t.Helper()
		q.requestStop()
		select {
		case <-exited:
		case <-time.After(time.Second):
			t.Fatal("simulation thread did not exit")
		}
	}
}

func TestSubmit_InlineWhenIdle(t *testing.T) {
	q := NewCommandQueue(nil)

	ran := false
	q.Submit(func() { ran = true }, false)
	assert.True(t, ran, "non-blocking submit runs inline without a thread")

	ran = false
	q.Submit(func() { ran = true }, true)
	assert.True(t, ran)
	assert.False(t, q.Pending())
}

func TestSubmit_Ordering(t *testing.T) {
	q := NewCommandQueue(nil)
	stop := startConsumer(t, q)
	defer stop()

	var got []int
	for i := 0; i < 100; i++ {
		q.Submit(func() { got = append(got, i) }, false)
	}
	q.Submit(func() {}, true)

	want := make([]int, 100)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestSubmit_BlockingGuarantee(t *testing.T) {
	q := NewCommandQueue(nil)
	stop := startConsumer(t, q)
	defer stop()

	for i := 0; i < 20; i++ {
		flag := false
		q.Submit(func() {
			time.Sleep(time.Millisecond)
			flag = true
		}, true)
		require.True(t, flag, "iteration %d", i)
	}
}

func TestSubmit_ConcurrentBlocking(t *testing.T) {
	q := NewCommandQueue(nil)
	stop := startConsumer(t, q)
	defer stop()

	var (
		wg    sync.WaitGroup
		count int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Submit(func() { count++ }, j%2 == 0)
			}
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("blocking submitters hung")
	}

	q.Submit(func() {}, true)
	assert.Equal(t, 400, count)
}

func TestSubmit_FromSimulationThread(t *testing.T) {
	q := NewCommandQueue(nil)
	stop := startConsumer(t, q)
	defer stop()

	var order []string
	q.Submit(func() {
		assert.True(t, q.State().OnThread())
		order = append(order, "outer start")
		q.Submit(func() { order = append(order, "deferred") }, false)
		q.Submit(func() { order = append(order, "inline") }, true)
		order = append(order, "outer end")
	}, true)
	q.Submit(func() {}, true)

	assert.Equal(t, []string{"outer start", "inline", "outer end", "deferred"}, order)
	assert.False(t, q.State().OnThread())
}

func TestStop_DrainsQueuedCommands(t *testing.T) {
	q := NewCommandQueue(nil)
	require.True(t, q.begin())
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		q.attach()
		for q.service(func() bool { return true }) {
		}
		q.finish()
	}()

	gate := make(chan struct{})
	q.Submit(func() { <-gate }, false)

	ran := 0
	for i := 0; i < 5; i++ {
		q.Submit(func() { ran++ }, false)
	}
	assert.True(t, q.Pending())
	q.requestStop()
	close(gate)

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("simulation thread did not exit")
	}
	assert.Equal(t, 5, ran)
	assert.False(t, q.Pending())
	assert.False(t, q.State().Active())
	assert.False(t, q.State().StopRequested())

	inline := false
	q.Submit(func() { inline = true }, false)
	assert.True(t, inline, "submissions after exit run inline")
}

func TestThreadState_Lifecycle(t *testing.T) {
	q := NewCommandQueue(nil)
	s := q.State()
	assert.False(t, s.Active())
	assert.False(t, s.Running())

	stop := startConsumer(t, q)
	assert.False(t, q.begin(), "only one simulation thread at a time")
	q.Submit(func() {}, true)
	assert.True(t, s.Active())
	assert.True(t, s.Running())

	stop()
	assert.False(t, s.Active())
	assert.False(t, s.Running())

	q.requestStop()
	assert.False(t, s.StopRequested(), "stop without a thread is ignored")

	stop = startConsumer(t, q)
	stop()
}

func TestSubmit_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	q := NewCommandQueue(m)

	q.Submit(func() {}, false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("inline")))

	stop := startConsumer(t, q)
	q.Submit(func() {}, false)
	q.Submit(func() {}, true)
	stop()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Commands.WithLabelValues("queued")))
	assert.Zero(t, testutil.ToFloat64(m.QueueDepth))
}

func TestGoroutineID(t *testing.T) {
	main := goroutineID()
	assert.NotZero(t, main)

	other := make(chan uint64)
	go func() { other <- goroutineID() }()
	assert.NotEqual(t, main, <-other)
	assert.Equal(t, main, goroutineID())
}
