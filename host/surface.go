package host

import (
	"go.uber.org/zap"

	"github.com/user-none/eblitui/android/display"
)

// NotifySurfaceChanged tells the coordinator the host window changed. It is
// called from the UI thread.
//
// A new size for the same window is a non-blocking resize. Replacing or
// removing a window blocks until the simulation thread has let go of the old
// one, so the host may destroy it on return. Supplying the first window does
// not block.
func (c *Coordinator) NotifySurfaceChanged(desc display.SurfaceDescriptor) {
	cur := display.WindowHandle(c.surface.Load())
	block := c.surfaceSet.Load() && cur != display.NoWindow && desc.Handle != cur

	c.surface.Store(uintptr(desc.Handle))
	c.surfaceSet.Store(true)
	c.queue.Submit(func() { c.surfaceChanged(desc) }, block)
}

// HasSurface reports whether the host has supplied a window.
func (c *Coordinator) HasSurface() bool {
	return c.surfaceSet.Load() && display.WindowHandle(c.surface.Load()) != display.NoWindow
}

func (c *Coordinator) surfaceChanged(desc display.SurfaceDescriptor) {
	c.logger.Info("Surface changed",
		zap.Uintptr("handle", uintptr(desc.Handle)),
		zap.Stringer("format", desc.Format),
		zap.Uint32("width", desc.Width),
		zap.Uint32("height", desc.Height))

	if c.haveDesc && desc.Handle == c.desc.Handle {
		resized := !desc.SameSize(c.desc)
		c.desc = desc
		if resized && c.display != nil {
			c.display.Resize(desc.Width, desc.Height)
		}
		return
	}

	c.desc, c.haveDesc = desc, true
	if c.display == nil {
		return
	}
	if err := c.display.ChangeTarget(desc); err != nil {
		c.logger.Error("Failed to change display target", zap.Error(err))
		c.ReportError("Failed to attach to the new surface.")
	}

	switch {
	case !desc.Surfaceless() && c.autoPaused && c.engine.IsPaused():
		c.autoPaused = false
		c.pauseSystem(false)
	case desc.Surfaceless() && c.engine.IsRunning():
		c.pauseSystem(true)
		c.autoPaused = c.engine.IsPaused()
	}
}
