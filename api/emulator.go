package emucore

// Emulator is the core interface that every emulator adapter must implement.
type Emulator interface {
	// RunFrame executes one frame of emulation.
	RunFrame()

	// GetFramebuffer returns the current frame as RGBA pixel data.
	GetFramebuffer() []byte

	// GetFramebufferStride returns bytes per row in the framebuffer.
	GetFramebufferStride() int

	// GetActiveHeight returns the current active display height in pixels.
	GetActiveHeight() int

	// GetAudioSamples returns stereo 16-bit PCM audio samples for the frame.
	GetAudioSamples() []int16

	// SetInput sets controller state as a button bitmask for the given player.
	SetInput(player int, buttons uint32)

	// GetRegion returns the current video region.
	GetRegion() Region

	// SetRegion changes the video region.
	SetRegion(region Region)

	// GetTiming returns FPS and scanline count for the current region.
	GetTiming() Timing

	// SetOption applies a core option change identified by key.
	SetOption(key string, value string)

	// Close releases any resources held by the emulator.
	Close()
}

// SaveStater enables save states and resume-on-boot.
type SaveStater interface {
	Serialize() ([]byte, error)
	Deserialize(data []byte) error
}

// BatterySaver enables SRAM persistence for battery-backed saves.
type BatterySaver interface {
	// HasSRAM reports whether the loaded image uses battery-backed save.
	HasSRAM() bool

	// GetSRAM returns a copy of the current SRAM contents.
	GetSRAM() []byte

	// SetSRAM loads SRAM contents into the emulator.
	SetSRAM(data []byte)
}

// MemoryInspector enables flat address-based memory reads. The host uses it
// to evaluate rumble cheat conditions for cores without native rumble.
type MemoryInspector interface {
	// ReadMemory reads from a flat address into buf and returns the number
	// of bytes read.
	ReadMemory(addr uint32, buf []byte) uint32
}

// Rumbler exposes the vibration motors of the emulated controllers.
type Rumbler interface {
	// MotorCount returns how many motors the controller on port has.
	MotorCount(port int) int

	// MotorStrength returns the current output of a motor in [0, 1].
	MotorStrength(port, motor int) float64
}

// AnalogInput accepts analog axis positions in addition to the button mask.
type AnalogInput interface {
	// SetAxis sets axis (an Axis.ID) on port to value in [-1, 1].
	SetAxis(port, axis int, value float64)
}
