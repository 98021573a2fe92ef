package system

import (
	"time"

	emucore "github.com/user-none/eblitui/android/api"
	"github.com/user-none/eblitui/android/storage"
)

// cheatMotors is the motor count reported for ports driven by a rumble
// cheat file: a strong and a weak motor.
const cheatMotors = 2

// Controller is the pad plugged into one port. It is owned by the
// simulation thread.
type Controller struct {
	port    int
	kind    storage.ControllerType
	buttons uint32

	analog  emucore.AnalogInput
	rumbler emucore.Rumbler

	// cheat-driven motors, used when the core has no Rumbler
	cheatRumble bool
	strength    [cheatMotors]float64
	until       [cheatMotors]time.Time
	now         func() time.Time
}

func newController(port int, kind storage.ControllerType, emu emucore.Emulator, cheatRumble bool, now func() time.Time) *Controller {
	c := &Controller{
		port:        port,
		kind:        kind,
		cheatRumble: cheatRumble,
		now:         now,
	}
	c.analog, _ = emu.(emucore.AnalogInput)
	c.rumbler, _ = emu.(emucore.Rumbler)
	return c
}

// Port returns the zero-based port number.
func (c *Controller) Port() int {
	return c.port
}

// Type returns the kind of pad.
func (c *Controller) Type() storage.ControllerType {
	return c.kind
}

// Buttons returns the current input bitmask.
func (c *Controller) Buttons() uint32 {
	return c.buttons
}

// SetButtonState presses or releases the button with bit position code.
func (c *Controller) SetButtonState(code int, pressed bool) {
	if code < 0 || code > 31 {
		return
	}
	if pressed {
		c.buttons |= 1 << uint(code)
	} else {
		c.buttons &^= 1 << uint(code)
	}
}

// SetAxisState forwards an axis position to analog pads. Digital pads
// ignore axes.
func (c *Controller) SetAxisState(code int, value float64) {
	if c.kind != storage.ControllerAnalog || c.analog == nil {
		return
	}
	c.analog.SetAxis(c.port, code, min(max(value, -1), 1))
}

// VibrationMotorCount returns how many motors the pad has.
func (c *Controller) VibrationMotorCount() int {
	if c.rumbler != nil {
		return c.rumbler.MotorCount(c.port)
	}
	if c.cheatRumble {
		return cheatMotors
	}
	return 0
}

// VibrationMotorStrength returns the output of motor in [0, 1].
func (c *Controller) VibrationMotorStrength(motor int) float64 {
	if c.rumbler != nil {
		return c.rumbler.MotorStrength(c.port, motor)
	}
	if !c.cheatRumble || motor < 0 || motor >= cheatMotors {
		return 0
	}
	if !c.now().Before(c.until[motor]) {
		return 0
	}
	return c.strength[motor]
}

// rumble applies a cheat rumble event to this pad.
func (c *Controller) rumble(ev RumbleEvent) {
	now := c.now()
	if ev.Strong > 0 {
		c.strength[0] = ev.Strong
		c.until[0] = now.Add(ev.StrongFor)
	}
	if ev.Weak > 0 {
		c.strength[1] = ev.Weak
		c.until[1] = now.Add(ev.WeakFor)
	}
}

// stopRumble turns the cheat motors off.
func (c *Controller) stopRumble() {
	c.strength = [cheatMotors]float64{}
	c.until = [cheatMotors]time.Time{}
}
