package host

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/user-none/eblitui/android/storage"
	"github.com/user-none/eblitui/android/system"
)

// Pause pauses or resumes the loaded system. Repeating the current state
// does nothing.
func (c *Coordinator) Pause(paused bool) {
	c.queue.Submit(func() {
		c.autoPaused = false
		c.pauseSystem(paused)
	}, false)
}

// SetControllerType plugs kind into port, persisting the choice.
func (c *Coordinator) SetControllerType(port int, kind storage.ControllerType) {
	if port < 0 || port >= c.ports {
		return
	}
	c.store.Set(storage.ControllerSection(port), storage.KeyControllerType, string(kind))
	if c.store.Path() != "" {
		if err := c.store.Save(); err != nil {
			c.logger.Warn("Failed to save controller type", zap.Error(err))
		}
	}
	c.queue.Submit(func() {
		c.logger.Info("Changing controller port",
			zap.Int("port", port),
			zap.String("type", string(kind)))
		c.applySettings(false)
	}, false)
}

// HandleControllerButton routes a host button through the configured
// bindings. It is dropped when no simulation thread exists.
func (c *Coordinator) HandleControllerButton(port, hostButton int, pressed bool) {
	if !c.queue.state.Active() {
		return
	}
	c.queue.Submit(func() {
		if code, ok := c.inputs.button(port, hostButton); ok {
			c.setButton(port, code, pressed)
		}
	}, false)
}

// HandleControllerAxis routes a host axis through the configured bindings.
// It is dropped when no simulation thread exists.
func (c *Coordinator) HandleControllerAxis(port, hostAxis int, value float64) {
	if !c.queue.state.Active() {
		return
	}
	c.queue.Submit(func() {
		if code, ok := c.inputs.axis(port, hostAxis); ok {
			c.setAxis(port, code, value)
		}
	}, false)
}

// SetControllerButtonState sets a core button directly, bypassing bindings.
func (c *Coordinator) SetControllerButtonState(port, code int, pressed bool) {
	if !c.queue.state.Active() {
		return
	}
	c.queue.Submit(func() { c.setButton(port, code, pressed) }, false)
}

// SetControllerAxisState sets a core axis directly, bypassing bindings.
func (c *Coordinator) SetControllerAxisState(port, code int, value float64) {
	if !c.queue.state.Active() {
		return
	}
	c.queue.Submit(func() { c.setAxis(port, code, value) }, false)
}

func (c *Coordinator) setButton(port, code int, pressed bool) {
	if pad := c.engine.Controller(port); pad != nil {
		pad.SetButtonState(code, pressed)
	}
}

func (c *Coordinator) setAxis(port, code int, value float64) {
	if pad := c.engine.Controller(port); pad != nil {
		pad.SetAxisState(code, value)
	}
}

// SetFastForward switches between the emulation and fast forward speeds.
func (c *Coordinator) SetFastForward(enabled bool) {
	if !c.queue.state.Active() {
		return
	}
	c.queue.Submit(func() {
		c.fastForward = enabled
		c.updateSpeedLimiterState()
	}, false)
}

// ResetSystem power cycles the loaded image.
func (c *Coordinator) ResetSystem() {
	c.queue.Submit(func() {
		sm, ok := c.engine.(StateManager)
		if !ok || !c.systemLoaded() {
			return
		}
		if err := sm.Reset(); err != nil {
			c.logger.Error("Reset failed", zap.Error(err))
			c.ReportError(fmt.Sprintf("Failed to reset system: %v", err))
			if !c.systemLoaded() {
				c.queue.requestStop()
			}
			return
		}
		c.ReportMessage("System reset.")
	}, false)
}

// SaveState writes a save state slot.
func (c *Coordinator) SaveState(global bool, slot int) {
	c.queue.Submit(func() {
		sm, ok := c.engine.(StateManager)
		if !ok || !c.systemLoaded() {
			return
		}
		if err := sm.SaveState(global, slot); err != nil {
			c.ReportMessage(fmt.Sprintf("Failed to save state to %s: %v", slotName(global, slot), err))
			return
		}
		c.ReportMessage(fmt.Sprintf("State saved to %s.", slotName(global, slot)))
	}, false)
}

// LoadState restores a save state slot.
func (c *Coordinator) LoadState(global bool, slot int) {
	c.queue.Submit(func() {
		sm, ok := c.engine.(StateManager)
		if !ok || !c.systemLoaded() {
			return
		}
		if err := sm.LoadState(global, slot); err != nil {
			c.ReportMessage(fmt.Sprintf("Failed to load state from %s: %v", slotName(global, slot), err))
			return
		}
		c.ReportMessage(fmt.Sprintf("State loaded from %s.", slotName(global, slot)))
	}, false)
}

func slotName(global bool, slot int) string {
	if global {
		return fmt.Sprintf("global slot %d", slot)
	}
	return fmt.Sprintf("game slot %d", slot)
}

// SaveResumeState writes the resume state. With wait the call returns once
// it is on disk.
func (c *Coordinator) SaveResumeState(wait bool) {
	c.queue.Submit(c.saveResumeState, wait)
}

func (c *Coordinator) saveResumeState() {
	sm, ok := c.engine.(StateManager)
	if !ok || !c.systemLoaded() {
		return
	}
	err := sm.SaveResumeState()
	switch {
	case errors.Is(err, system.ErrNoSaveStates):
		c.logger.Debug("Engine has no save states, skipping resume state")
	case err != nil:
		c.logger.Warn("Failed to save resume state", zap.Error(err))
	}
}

// SetDisplayAlignment positions the image inside the surface.
func (c *Coordinator) SetDisplayAlignment(a storage.Alignment) {
	c.queue.Submit(func() {
		c.alignment = a
		if c.display != nil {
			c.display.SetAlignment(a)
		}
	}, false)
}

// ReportMessage shows text to the user. On the simulation thread it becomes
// an on-screen message; elsewhere a host toast.
func (c *Coordinator) ReportMessage(text string) {
	c.logger.Info(text)
	if c.IsOnEmulationThread() {
		c.sink.OnMessage(text, osdDuration)
		return
	}
	c.sink.OnMessage(text, 0)
}

// ReportError shows an error to the user.
func (c *Coordinator) ReportError(text string) {
	c.logger.Error(text)
	c.sink.OnError(text)
}
