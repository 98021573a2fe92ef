package emucore

// Standard d-pad button bit positions (always bits 0-3).
const (
	ButtonUp    = 0
	ButtonDown  = 1
	ButtonLeft  = 2
	ButtonRight = 3
)

// Button describes a system-specific button with its display name
// and bit position in the input bitmask.
type Button struct {
	Name string
	ID   int // Bit position in the uint32 bitmask (4+)
}

// Axis describes an analog axis accepted through AnalogInput.
type Axis struct {
	Name string
	ID   int
}

// CoreOption describes a configurable core setting.
type CoreOption struct {
	Key     string
	Label   string
	Default string
	Values  []string // Allowed values, empty for free-form
}

// SystemInfo describes an emulator system.
type SystemInfo struct {
	Name          string
	ConsoleName   string
	Extensions    []string
	ScreenWidth   int
	ScreenHeight  int
	SampleRate    int
	Buttons       []Button
	Axes          []Axis
	Players       int
	CoreOptions   []CoreOption
	DataDirName   string
	CoreName      string
	CoreVersion   string
	SerializeSize int

	// BigEndianMemory is true for big-endian CPUs (e.g. 68K). Memory-watch
	// rumble entries declaring the other order are byte swapped.
	BigEndianMemory bool
}

// DPadButtons returns the four d-pad buttons every system shares.
func DPadButtons() []Button {
	return []Button{
		{Name: "Up", ID: ButtonUp},
		{Name: "Down", ID: ButtonDown},
		{Name: "Left", ID: ButtonLeft},
		{Name: "Right", ID: ButtonRight},
	}
}

// AllButtons returns the d-pad buttons followed by the system buttons.
func (s SystemInfo) AllButtons() []Button {
	return append(DPadButtons(), s.Buttons...)
}

// Option returns the core option with the given key.
func (s SystemInfo) Option(key string) (CoreOption, bool) {
	for _, o := range s.CoreOptions {
		if o.Key == key {
			return o, true
		}
	}
	return CoreOption{}, false
}

// CoreFactory creates emulator instances and provides system metadata.
type CoreFactory interface {
	// SystemInfo returns system metadata.
	SystemInfo() SystemInfo

	// CreateEmulator creates a new emulator instance with the given image and region.
	CreateEmulator(image []byte, region Region) (Emulator, error)

	// DetectRegion auto-detects the region from image data.
	// The bool return indicates whether the region was found in the database.
	DetectRegion(image []byte) (Region, bool)
}
