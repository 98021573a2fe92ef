package emucore

import "strings"

// Region represents a console video region.
type Region int

const (
	RegionNTSC Region = iota
	RegionPAL
)

// String returns the display name of the region.
func (r Region) String() string {
	switch r {
	case RegionNTSC:
		return "NTSC"
	case RegionPAL:
		return "PAL"
	default:
		return "Unknown"
	}
}

// ParseRegion maps a settings value to a region. ok is false for "auto"
// and anything unrecognised, meaning the core should detect it.
func ParseRegion(s string) (Region, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ntsc":
		return RegionNTSC, true
	case "pal":
		return RegionPAL, true
	}
	return RegionNTSC, false
}

// Timing holds the frame rate and scanline count for the current region.
// CPU clocks are core-internal and not exposed here.
type Timing struct {
	FPS       int
	Scanlines int
}
