package host

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	emucore "github.com/user-none/eblitui/android/api"
	"github.com/user-none/eblitui/android/storage"
)

// inputMap resolves host button and axis indices to core codes, per port.
type inputMap struct {
	buttons []map[int]int
	axes    []map[int]int
}

func (m inputMap) button(port, host int) (int, bool) {
	if port < 0 || port >= len(m.buttons) {
		return 0, false
	}
	code, ok := m.buttons[port][host]
	return code, ok
}

func (m inputMap) axis(port, host int) (int, bool) {
	if port < 0 || port >= len(m.axes) {
		return 0, false
	}
	code, ok := m.axes[port][host]
	return code, ok
}

func buildInputMap(ports []storage.PortSettings, buttons []emucore.Button, axes []emucore.Axis) inputMap {
	buttonIDs := make(map[string]int, len(buttons))
	for _, b := range buttons {
		buttonIDs[b.Name] = b.ID
	}
	axisIDs := make(map[string]int, len(axes))
	for _, a := range axes {
		axisIDs[a.Name] = a.ID
	}

	m := inputMap{
		buttons: make([]map[int]int, len(ports)),
		axes:    make([]map[int]int, len(ports)),
	}
	for i, p := range ports {
		m.buttons[i] = make(map[int]int)
		m.axes[i] = make(map[int]int)
		if p.Type == storage.ControllerNone {
			continue
		}
		for name, host := range p.Buttons {
			if id, ok := buttonIDs[name]; ok {
				m.buttons[i][host] = id
			}
		}
		if p.Type != storage.ControllerAnalog {
			continue
		}
		for name, host := range p.Axes {
			if id, ok := axisIDs[name]; ok {
				m.axes[i][host] = id
			}
		}
	}
	return m
}

// ApplySettings reloads the settings file and applies it on the simulation
// thread, or inline when no thread exists.
func (c *Coordinator) ApplySettings() {
	c.reloadStore()
	c.queue.Submit(func() { c.applySettings(false) }, false)
}

// WatchSettings applies settings whenever the settings file changes, until
// ctx is done. The returned watcher must be closed by the caller.
func (c *Coordinator) WatchSettings(ctx context.Context) (*storage.Watcher, error) {
	w, err := storage.NewWatcher(c.logger.Named("watcher"), c.store.Path(), c.ApplySettings)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (c *Coordinator) reloadStore() {
	if c.store.Path() == "" {
		return
	}
	if err := c.store.Load(); err != nil {
		c.logger.Warn("Failed to reload settings, keeping previous values", zap.Error(err))
	}
}

// applySettings converts the current document into effective settings and
// reinitialises whatever changed. notify reports changes to the user.
func (c *Coordinator) applySettings(notify bool) {
	old := c.settings.Clone()
	next := storage.LoadSettings(c.store, c.ports)
	next.FixIncompatible()

	if c.systemLoaded() && next.Renderer != old.Renderer {
		c.sink.OnMessage(fmt.Sprintf("Change to %s renderer will take effect on restart.", next.Renderer), osdDuration)
		next.Renderer = old.Renderer
	}

	c.settings = next
	c.checkForSettingsChanges(old, notify)
}

func (c *Coordinator) systemLoaded() bool {
	return c.engine.IsRunning() || c.engine.IsPaused()
}

func (c *Coordinator) checkForSettingsChanges(old storage.Settings, notify bool) {
	changes := storage.Diff(old, c.settings)
	if !changes.Any() {
		return
	}

	if changes.Controllers || changes.Bindings {
		c.updateInputMap()
	}
	c.vibration.SetEnabled(c.settings.VibrationEnabled())

	if changes.Display {
		c.alignment = c.settings.Alignment
		if c.display != nil {
			c.display.SetAlignment(c.alignment)
			c.display.SetLinearFiltering(c.settings.LinearFiltering)
		}
	}

	if cfg, ok := c.engine.(Configurable); ok {
		cfg.UpdateSettings(c.settings, changes)
	}
	if changes.SpeedLimiter {
		c.updateSpeedLimiterState()
	}
	if notify && changes.Overclock && c.systemLoaded() {
		c.sink.OnMessage("CPU overclock changed.", osdDuration)
	}
	c.logger.Debug("Settings applied",
		zap.Bool("speedLimiter", changes.SpeedLimiter),
		zap.Bool("controllers", changes.Controllers),
		zap.Bool("bindings", changes.Bindings),
		zap.Strings("coreOptions", changes.CoreOptions))
}

func (c *Coordinator) updateInputMap() {
	var (
		buttons []emucore.Button
		axes    []emucore.Axis
	)
	if l, ok := c.engine.(InputLayouter); ok {
		buttons, axes = l.InputLayout()
	}
	c.inputs = buildInputMap(c.settings.Ports, buttons, axes)
}

// updateSpeedLimiterState picks the target speed. A speed of zero, or a
// disabled limiter, runs frames back to back.
func (c *Coordinator) updateSpeedLimiterState() {
	speed := c.settings.EmulationSpeed
	if c.fastForward {
		speed = c.settings.FastForwardSpeed
	}
	c.throttlerEnabled = c.settings.SpeedLimiterEnabled && speed > 0
	if !c.throttlerEnabled {
		speed = 0
	}
	if cfg, ok := c.engine.(Configurable); ok {
		cfg.SetSpeed(speed, c.fastForward)
	}
}
