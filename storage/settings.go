package storage

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Renderer names a display backend.
type Renderer string

const (
	RendererOpenGL   Renderer = "OpenGL"
	RendererVulkan   Renderer = "Vulkan"
	RendererSoftware Renderer = "Software"
)

func parseRenderer(s string) Renderer {
	for _, r := range []Renderer{RendererOpenGL, RendererVulkan, RendererSoftware} {
		if strings.EqualFold(s, string(r)) {
			return r
		}
	}
	return RendererOpenGL
}

// Alignment positions the presented image inside a larger surface.
type Alignment int

const (
	AlignLeftOrTop Alignment = iota
	AlignCenter
	AlignRightOrBottom
)

var alignmentNames = []string{"LeftOrTop", "Center", "RightOrBottom"}

func (a Alignment) String() string {
	if a < 0 || int(a) >= len(alignmentNames) {
		return fmt.Sprintf("Alignment(%d)", int(a))
	}
	return alignmentNames[a]
}

// ParseAlignment maps a settings value to an Alignment, defaulting to center.
func ParseAlignment(s string) Alignment {
	for i, name := range alignmentNames {
		if strings.EqualFold(s, name) {
			return Alignment(i)
		}
	}
	return AlignCenter
}

// ControllerType is the kind of pad plugged into a port.
type ControllerType string

const (
	ControllerNone    ControllerType = "None"
	ControllerDigital ControllerType = "Digital"
	ControllerAnalog  ControllerType = "Analog"
)

func parseControllerType(s string, def ControllerType) ControllerType {
	for _, t := range []ControllerType{ControllerNone, ControllerDigital, ControllerAnalog} {
		if strings.EqualFold(s, string(t)) {
			return t
		}
	}
	return def
}

// PortSettings is the configuration of one controller port.
type PortSettings struct {
	Type      ControllerType
	Vibration bool

	// Buttons maps a core button name to the host button index bound to it.
	Buttons map[string]int

	// Axes maps a core axis name to the host axis index bound to it.
	Axes map[string]int
}

// Settings is the effective configuration after conversion of the raw
// section/key document.
type Settings struct {
	Renderer         Renderer
	Multisamples     int
	PerSampleShading bool
	LinearFiltering  bool
	Alignment        Alignment

	OverclockEnable      bool
	OverclockNumerator   int
	OverclockDenominator int

	SpeedLimiterEnabled bool
	EmulationSpeed      float64
	FastForwardSpeed    float64
	SaveStateOnExit     bool
	Region              string

	Volume          float64
	Muted           bool
	FastForwardMute bool

	Ports       []PortSettings
	CoreOptions map[string]string
}

// Section and key names.
const (
	SectionGPU     = "GPU"
	SectionCPU     = "CPU"
	SectionMain    = "Main"
	SectionDisplay = "Display"
	SectionAudio   = "Audio"
	SectionCore    = "Core"

	KeyControllerType = "Type"
	KeyVibration      = "Vibration"
	bindButtonPrefix  = "Bind"
	bindAxisPrefix    = "Axis"
)

// ControllerSection is the section name for a zero-based port.
func ControllerSection(port int) string {
	return "Controller" + strconv.Itoa(port+1)
}

// LoadSettings converts the raw document into Settings for the given number
// of controller ports, filling derived fields.
func LoadSettings(store *Store, ports int) Settings {
	s := Settings{
		Renderer:        parseRenderer(store.GetString(SectionGPU, "Renderer", string(RendererOpenGL))),
		LinearFiltering: store.GetBool(SectionGPU, "LinearFiltering", true),
		Alignment:       ParseAlignment(store.GetString(SectionDisplay, "Alignment", "Center")),

		SpeedLimiterEnabled: store.GetBool(SectionMain, "SpeedLimiterEnabled", true),
		EmulationSpeed:      store.GetFloat(SectionMain, "EmulationSpeed", 1.0),
		FastForwardSpeed:    store.GetFloat(SectionMain, "FastForwardSpeed", 0),
		SaveStateOnExit:     store.GetBool(SectionMain, "SaveStateOnExit", true),
		Region:              strings.ToLower(store.GetString(SectionMain, "Region", "auto")),

		Volume:          store.GetFloat(SectionAudio, "Volume", 1.0),
		Muted:           store.GetBool(SectionAudio, "Muted", false),
		FastForwardMute: store.GetBool(SectionAudio, "FastForwardMute", true),
	}

	s.Multisamples, s.PerSampleShading = parseMSAA(store.GetString(SectionGPU, "MSAA", "1"))

	percent := max(store.GetInt(SectionCPU, "Overclock", 100), 1)
	s.OverclockNumerator, s.OverclockDenominator = OverclockFraction(percent)
	s.OverclockEnable = percent != 100

	s.Ports = make([]PortSettings, ports)
	for i := range s.Ports {
		s.Ports[i] = loadPort(store, i)
	}

	s.CoreOptions = make(map[string]string)
	if err := store.DecodeSection(SectionCore, &s.CoreOptions); err != nil {
		// Fall back to key by key so one bad value does not drop the rest.
		s.CoreOptions = make(map[string]string)
		for _, key := range store.Keys(SectionCore) {
			s.CoreOptions[key] = store.GetString(SectionCore, key, "")
		}
	}
	if s.CoreOptions == nil {
		s.CoreOptions = make(map[string]string)
	}
	return s
}

func loadPort(store *Store, port int) PortSettings {
	section := ControllerSection(port)
	def := ControllerNone
	if port == 0 {
		def = ControllerDigital
	}
	p := PortSettings{
		Type:      parseControllerType(store.GetString(section, KeyControllerType, string(def)), def),
		Vibration: store.GetBool(section, KeyVibration, false),
		Buttons:   make(map[string]int),
		Axes:      make(map[string]int),
	}
	for _, key := range store.Keys(section) {
		switch {
		case strings.HasPrefix(key, bindButtonPrefix) && len(key) > len(bindButtonPrefix):
			if idx := store.GetInt(section, key, -1); idx >= 0 {
				p.Buttons[key[len(bindButtonPrefix):]] = idx
			}
		case strings.HasPrefix(key, bindAxisPrefix) && len(key) > len(bindAxisPrefix):
			if idx := store.GetInt(section, key, -1); idx >= 0 {
				p.Axes[key[len(bindAxisPrefix):]] = idx
			}
		}
	}
	return p
}

// ButtonBindingKey is the key binding a host button to the named core button.
func ButtonBindingKey(button string) string {
	return bindButtonPrefix + button
}

// AxisBindingKey is the key binding a host axis to the named core axis.
func AxisBindingKey(axis string) string {
	return bindAxisPrefix + axis
}

// parseMSAA reads "N" as N-sample multisampling and "N-ssaa" as N samples
// with per-sample shading. Anything unparsable is a single sample.
func parseMSAA(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	samples, err := strconv.Atoi(s[:end])
	if err != nil || samples < 1 {
		samples = 1
	}
	return samples, strings.HasSuffix(strings.ToLower(s), "-ssaa")
}

// OverclockFraction reduces percent/100 to lowest terms.
func OverclockFraction(percent int) (num, den int) {
	num, den = percent, 100
	g := gcd(num, den)
	return num / g, den / g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// FixIncompatible normalizes combinations that cannot be honoured.
func (s *Settings) FixIncompatible() {
	if s.Renderer == RendererSoftware {
		s.Multisamples = 1
	}
	if s.Multisamples <= 1 {
		s.Multisamples = 1
		s.PerSampleShading = false
	}
	if s.EmulationSpeed < 0 {
		s.EmulationSpeed = 1.0
	}
	if s.FastForwardSpeed < 0 {
		s.FastForwardSpeed = 0
	}
	s.Volume = min(max(s.Volume, 0), 1)
	if _, ok := regionNames[s.Region]; !ok {
		s.Region = "auto"
	}
}

var regionNames = map[string]struct{}{"auto": {}, "ntsc": {}, "pal": {}}

// VibrationEnabled reports whether any port has vibration turned on.
func (s Settings) VibrationEnabled() bool {
	for _, p := range s.Ports {
		if p.Vibration {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	out.Ports = make([]PortSettings, len(s.Ports))
	for i, p := range s.Ports {
		p.Buttons = maps.Clone(p.Buttons)
		p.Axes = maps.Clone(p.Axes)
		out.Ports[i] = p
	}
	out.CoreOptions = maps.Clone(s.CoreOptions)
	return out
}

// Changes lists the dependent subsystems a settings reload affects.
type Changes struct {
	SpeedLimiter bool
	Controllers  bool
	Bindings     bool
	Vibration    bool
	Display      bool
	Overclock    bool
	Audio        bool
	Region       bool
	Renderer     bool

	// CoreOptions holds the keys whose values differ, sorted.
	CoreOptions []string
}

// Any reports whether anything changed.
func (c Changes) Any() bool {
	return c.SpeedLimiter || c.Controllers || c.Bindings || c.Vibration || c.Display ||
		c.Overclock || c.Audio || c.Region || c.Renderer || len(c.CoreOptions) > 0
}

// Diff compares two settings values.
func Diff(old, cur Settings) Changes {
	c := Changes{
		SpeedLimiter: old.SpeedLimiterEnabled != cur.SpeedLimiterEnabled ||
			old.EmulationSpeed != cur.EmulationSpeed ||
			old.FastForwardSpeed != cur.FastForwardSpeed,
		Vibration: old.VibrationEnabled() != cur.VibrationEnabled(),
		Display: old.LinearFiltering != cur.LinearFiltering ||
			old.Alignment != cur.Alignment,
		Overclock: old.OverclockEnable != cur.OverclockEnable ||
			old.OverclockNumerator != cur.OverclockNumerator ||
			old.OverclockDenominator != cur.OverclockDenominator,
		Audio: old.Volume != cur.Volume || old.Muted != cur.Muted ||
			old.FastForwardMute != cur.FastForwardMute,
		Region: old.Region != cur.Region,
		Renderer: old.Renderer != cur.Renderer ||
			old.Multisamples != cur.Multisamples ||
			old.PerSampleShading != cur.PerSampleShading,
	}

	if len(old.Ports) != len(cur.Ports) {
		c.Controllers, c.Bindings = true, true
	} else {
		for i := range cur.Ports {
			if old.Ports[i].Type != cur.Ports[i].Type {
				c.Controllers = true
			}
			if !maps.Equal(old.Ports[i].Buttons, cur.Ports[i].Buttons) ||
				!maps.Equal(old.Ports[i].Axes, cur.Ports[i].Axes) {
				c.Bindings = true
			}
		}
	}

	for k, v := range cur.CoreOptions {
		if ov, ok := old.CoreOptions[k]; !ok || ov != v {
			c.CoreOptions = append(c.CoreOptions, k)
		}
	}
	slices.Sort(c.CoreOptions)
	return c
}
