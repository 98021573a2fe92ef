// Package host runs a simulation on a dedicated thread and lets any other
// goroutine drive it through an ordered command queue.
package host

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/user-none/eblitui/android/display"
	"github.com/user-none/eblitui/android/metrics"
	"github.com/user-none/eblitui/android/storage"
	"github.com/user-none/eblitui/android/system"
)

// osdDuration is how long on-screen messages stay up, in seconds.
const osdDuration = 5.0

var (
	// ErrThreadActive is returned by Start while a simulation thread exists.
	ErrThreadActive = errors.New("simulation thread already active")

	// ErrNoSurface is returned when the thread starts without a window.
	ErrNoSurface = errors.New("simulation thread started without a surface")

	// ErrBootFailed wraps engine and display failures during boot.
	ErrBootFailed = errors.New("failed to boot system")
)

// Options configures a Coordinator.
type Options struct {
	Logger *zap.Logger

	// Store is the settings document. Nil uses an empty in-memory store.
	Store *storage.Store

	Engine   Engine
	Displays DisplayFactory

	// Sink receives host notifications. Nil logs them.
	Sink Sink

	Metrics *metrics.Metrics

	// Ports is the number of controller ports configured. Defaults to 2.
	Ports int

	// Now is the clock used for vibration debouncing.
	Now func() time.Time
}

// Coordinator owns the simulation thread.
type Coordinator struct {
	logger   *zap.Logger
	store    *storage.Store
	engine   Engine
	displays DisplayFactory
	sink     Sink
	metrics  *metrics.Metrics
	ports    int

	queue  *CommandQueue
	paused atomic.Bool

	// UI-side view of the window, used to pick the blocking policy.
	surface    atomic.Uintptr
	surfaceSet atomic.Bool

	// Owned by the simulation thread, or by the caller while none exists.
	desc             display.SurfaceDescriptor
	haveDesc         bool
	display          Display
	alignment        storage.Alignment
	settings         storage.Settings
	inputs           inputMap
	fastForward      bool
	throttlerEnabled bool
	autoPaused       bool
	vibration        *VibrationThrottle

	lifecycle sync.Mutex
	done      chan struct{}
	exitErr   error
}

// New creates a coordinator with no simulation thread.
func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Store == nil {
		opts.Store = storage.NewStore("")
	}
	if opts.Sink == nil {
		opts.Sink = LogSink{Logger: opts.Logger.Named("sink")}
	}
	if opts.Ports <= 0 {
		opts.Ports = 2
	}
	c := &Coordinator{
		logger:    opts.Logger.Named("host"),
		store:     opts.Store,
		engine:    opts.Engine,
		displays:  opts.Displays,
		sink:      opts.Sink,
		metrics:   opts.Metrics,
		ports:     opts.Ports,
		queue:     NewCommandQueue(opts.Metrics),
		alignment: storage.AlignCenter,
	}
	c.vibration = NewVibrationThrottle(opts.Now, c.sink.OnVibrate, opts.Metrics)
	return c
}

// Queue returns the command queue.
func (c *Coordinator) Queue() *CommandQueue {
	return c.queue
}

// IsRunning reports whether the frame loop is running.
func (c *Coordinator) IsRunning() bool {
	return c.queue.state.Running()
}

// IsPaused reports whether the loaded system is paused.
func (c *Coordinator) IsPaused() bool {
	return c.paused.Load()
}

// IsOnEmulationThread reports whether the caller is the simulation thread.
func (c *Coordinator) IsOnEmulationThread() bool {
	return c.queue.state.OnThread()
}

// RunOnEmulationThread submits cmd to the simulation thread.
func (c *Coordinator) RunOnEmulationThread(cmd Command, blocking bool) {
	c.queue.Submit(cmd, blocking)
}

// Start spawns the simulation thread, which boots params and runs until
// Stop. A surface must have been supplied with NotifySurfaceChanged first.
func (c *Coordinator) Start(params system.BootParameters) error {
	if !c.queue.begin() {
		return ErrThreadActive
	}
	done := make(chan struct{})
	c.lifecycle.Lock()
	c.done, c.exitErr = done, nil
	c.lifecycle.Unlock()

	c.reloadStore()
	go c.entryPoint(params, done)
	return nil
}

// Wait blocks until the current simulation thread exits and returns its
// boot error, if any. It returns at once when no thread was started.
func (c *Coordinator) Wait() error {
	c.lifecycle.Lock()
	done := c.done
	c.lifecycle.Unlock()
	if done == nil {
		return nil
	}
	<-done

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.exitErr
}

// Stop asks the simulation thread to leave its loop after the current
// frame. Commands already queued still run.
func (c *Coordinator) Stop() {
	c.queue.requestStop()
}

func (c *Coordinator) entryPoint(params system.BootParameters, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	c.queue.attach()
	session := uuid.NewString()
	logger := c.logger.With(zap.String("session", session))

	err := c.run(params, logger)
	if err != nil {
		logger.Error("Simulation thread failed", zap.Error(err))
	}
	c.queue.finish()
	c.sink.OnStopped()

	c.lifecycle.Lock()
	c.exitErr = err
	c.lifecycle.Unlock()
	close(done)
}

func (c *Coordinator) run(params system.BootParameters, logger *zap.Logger) error {
	if !c.haveDesc || c.desc.Surfaceless() {
		c.ReportError("Simulation thread started without a surface.")
		return ErrNoSurface
	}

	c.fastForward = false
	c.applySettings(true)
	c.updateSpeedLimiterState()
	if err := c.acquireDisplay(); err != nil {
		c.ReportError("Failed to create display.")
		return fmt.Errorf("%w: %w", ErrBootFailed, err)
	}

	if err := c.engine.Boot(params); err != nil {
		c.releaseDisplay()
		c.ReportError(fmt.Sprintf("Failed to boot system on emulation thread (file:%s).", params.Filename))
		return fmt.Errorf("%w: %w", ErrBootFailed, err)
	}
	c.onRunningGameChanged()
	logger.Info("System started", zap.String("title", c.engine.Title()))

	c.queue.setRunning()
	c.sink.OnStarted()
	c.loop()

	if c.settings.SaveStateOnExit {
		c.saveResumeState()
	}
	c.engine.Shutdown()
	c.onSystemDestroyed()
	c.releaseDisplay()
	logger.Info("System stopped")
	return nil
}

func (c *Coordinator) loop() {
	for c.queue.service(c.engine.IsPaused) {
		stepped := false
		if c.engine.IsRunning() {
			if c.throttlerEnabled {
				c.engine.StepBatch()
			} else {
				c.engine.Step()
			}
			stepped = true

			if c.vibration.Enabled() {
				c.vibration.Update(c.engine)
			}
		}

		c.display.RenderFrame(c.engine)

		if stepped {
			c.engine.UpdatePerformanceCounters()
			if c.throttlerEnabled {
				c.engine.Throttle()
			}
		}
	}
}

func (c *Coordinator) acquireDisplay() error {
	if c.displays == nil {
		return errors.New("no display factory")
	}
	d, err := c.displays(c.settings.Renderer)
	if err != nil {
		return err
	}
	if err := d.Create(c.desc); err != nil {
		return err
	}
	d.SetAlignment(c.alignment)
	d.SetLinearFiltering(c.settings.LinearFiltering)
	c.display = d
	return nil
}

func (c *Coordinator) releaseDisplay() {
	if c.display == nil {
		return
	}
	c.display.Destroy()
	c.display = nil
}

func (c *Coordinator) onRunningGameChanged() {
	c.applySettings(true)
	c.paused.Store(c.engine.IsPaused())
	c.sink.OnTitleChanged(c.engine.Title())
}

func (c *Coordinator) onSystemDestroyed() {
	c.paused.Store(false)
	c.autoPaused = false
	if c.vibration.Enabled() {
		c.vibration.SetVibration(false)
	}
}

// pauseSystem moves the engine between running and paused. It does nothing
// when the engine is already in the requested state.
func (c *Coordinator) pauseSystem(paused bool) {
	if paused == c.engine.IsPaused() {
		return
	}
	c.engine.SetPaused(paused)
	if c.engine.IsPaused() != paused {
		return
	}
	c.paused.Store(paused)
	c.logger.Debug("Pause changed", zap.Bool("paused", paused))
	if paused && c.vibration.Enabled() {
		c.vibration.SetVibration(false)
	}
}
