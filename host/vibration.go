package host

import (
	"time"

	"github.com/user-none/eblitui/android/metrics"
)

const (
	// vibrationInterval is the minimum gap between host calls that repeat
	// the same value.
	vibrationInterval = 100 * time.Millisecond

	// vibrationThreshold is the motor strength that counts as on.
	vibrationThreshold = 0.5
)

// VibrationThrottle debounces haptic calls to the host. It is owned by the
// simulation thread.
type VibrationThrottle struct {
	enabled    bool
	last       bool
	lastUpdate time.Time

	now     func() time.Time
	call    func(on bool)
	metrics *metrics.Metrics
}

// NewVibrationThrottle forwards accepted values to call.
func NewVibrationThrottle(now func() time.Time, call func(on bool), m *metrics.Metrics) *VibrationThrottle {
	if now == nil {
		now = time.Now
	}
	return &VibrationThrottle{now: now, call: call, metrics: m}
}

// Enabled reports whether any port wants vibration.
func (v *VibrationThrottle) Enabled() bool {
	return v.enabled
}

// SetEnabled turns the per-frame motor scan on or off.
func (v *VibrationThrottle) SetEnabled(enabled bool) {
	v.enabled = enabled
}

// SetVibration calls the host unless on repeats the last value within
// vibrationInterval.
func (v *VibrationThrottle) SetVibration(on bool) {
	now := v.now()
	if on == v.last && now.Sub(v.lastUpdate) < vibrationInterval {
		return
	}
	v.last = on
	v.lastUpdate = now
	v.metrics.Vibration(on)
	v.call(on)
}

// Update turns vibration on when any motor of any pad reaches
// vibrationThreshold.
func (v *VibrationThrottle) Update(pads PadSource) {
	on := false
	for i := 0; i < pads.NumPorts() && !on; i++ {
		pad := pads.Controller(i)
		if pad == nil {
			continue
		}
		for m := 0; m < pad.VibrationMotorCount(); m++ {
			if pad.VibrationMotorStrength(m) >= vibrationThreshold {
				on = true
				break
			}
		}
	}
	v.SetVibration(on)
}
