package system

import "errors"

var (
	// ErrNotRunning is returned by operations that need a booted image.
	ErrNotRunning = errors.New("system is not running")

	// ErrAlreadyBooted is returned by Boot while an image is loaded.
	ErrAlreadyBooted = errors.New("system is already booted")

	// ErrNoImage is returned by Boot when there is nothing to load.
	ErrNoImage = errors.New("no image to boot")

	// ErrNoSaveStates is returned when the core cannot serialize its state.
	ErrNoSaveStates = errors.New("core does not support save states")

	// ErrNoResumeState is returned when no resume state exists.
	ErrNoResumeState = errors.New("no resume state")

	// ErrInvalidSlot is returned for slots outside [0, NumSlots).
	ErrInvalidSlot = errors.New("invalid save slot")
)
