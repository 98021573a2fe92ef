package host

import (
	"go.uber.org/zap"

	emucore "github.com/user-none/eblitui/android/api"
	"github.com/user-none/eblitui/android/display"
	"github.com/user-none/eblitui/android/storage"
	"github.com/user-none/eblitui/android/system"
)

// PadSource exposes the controllers plugged into the engine.
type PadSource interface {
	NumPorts() int

	// Controller returns the pad on port, or nil for an empty port.
	Controller(port int) system.Pad
}

// Engine is the simulation the coordinator drives. Every method is called
// on the simulation thread, or inline while no thread exists.
type Engine interface {
	PadSource
	display.FrameSource

	Boot(params system.BootParameters) error
	Shutdown()

	// Step runs one frame; StepBatch runs every frame due on the schedule.
	Step()
	StepBatch()
	Throttle()
	UpdatePerformanceCounters()

	IsRunning() bool
	IsPaused() bool
	SetPaused(paused bool)

	Title() string
}

// Configurable engines receive settings and speed changes.
type Configurable interface {
	UpdateSettings(settings storage.Settings, changes storage.Changes)
	SetSpeed(speed float64, fastForward bool)
}

// InputLayouter engines name their buttons and axes so host bindings can be
// resolved.
type InputLayouter interface {
	InputLayout() ([]emucore.Button, []emucore.Axis)
}

// StateManager engines support save states and power cycling.
type StateManager interface {
	SaveState(global bool, slot int) error
	LoadState(global bool, slot int) error
	SaveResumeState() error
	Reset() error
}

var (
	_ Engine        = (*system.System)(nil)
	_ Configurable  = (*system.System)(nil)
	_ InputLayouter = (*system.System)(nil)
	_ StateManager  = (*system.System)(nil)
)

// Display is the renderer. It is owned by the simulation thread.
type Display interface {
	Create(desc display.SurfaceDescriptor) error
	Resize(width, height uint32)
	ChangeTarget(desc display.SurfaceDescriptor) error
	RenderFrame(src display.FrameSource)
	Destroy()

	Renderer() storage.Renderer
	SetAlignment(a storage.Alignment)
	SetLinearFiltering(linear bool)
}

var _ Display = (*display.Presenter)(nil)

// DisplayFactory builds a display for the configured renderer.
type DisplayFactory func(renderer storage.Renderer) (Display, error)

// PresenterFactory builds software presenters that open windows through
// open. Every renderer name presents through the CPU scaler.
func PresenterFactory(logger *zap.Logger, open display.Opener) DisplayFactory {
	return func(renderer storage.Renderer) (Display, error) {
		return display.NewPresenter(logger.Named("display"), renderer, open), nil
	}
}
