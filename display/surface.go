// Package display presents emulated frames on a host-owned window.
package display

import "fmt"

// WindowHandle is an opaque reference to a platform window. The host owns
// the window; this package only borrows it between ChangeTarget calls.
type WindowHandle uintptr

// NoWindow is the surfaceless handle.
const NoWindow WindowHandle = 0

// PixelFormat is the layout of the host window's buffer.
type PixelFormat int

const (
	FormatRGBA8888 PixelFormat = iota + 1
	FormatRGBX8888
	FormatRGB565
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8888:
		return "RGBA8888"
	case FormatRGBX8888:
		return "RGBX8888"
	case FormatRGB565:
		return "RGB565"
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// SurfaceDescriptor describes the current render target.
type SurfaceDescriptor struct {
	Handle WindowHandle
	Format PixelFormat
	Width  uint32
	Height uint32
}

// Surfaceless reports whether the descriptor has no window.
func (d SurfaceDescriptor) Surfaceless() bool {
	return d.Handle == NoWindow
}

// SameSize reports whether o has the same dimensions.
func (d SurfaceDescriptor) SameSize(o SurfaceDescriptor) bool {
	return d.Width == o.Width && d.Height == o.Height
}
