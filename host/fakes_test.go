package host

import (
	"errors"
	"sync"
	"time"

	emucore "github.com/user-none/eblitui/android/api"
	"github.com/user-none/eblitui/android/display"
	"github.com/user-none/eblitui/android/storage"
	"github.com/user-none/eblitui/android/system"
)

type fakePad struct {
	mu      sync.Mutex
	buttons map[int]bool
	axes    map[int]float64
	motors  []float64
}

func newFakePad() *fakePad {
	return &fakePad{buttons: make(map[int]bool), axes: make(map[int]float64)}
}

func (p *fakePad) SetButtonState(code int, pressed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buttons[code] = pressed
}

func (p *fakePad) SetAxisState(code int, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.axes[code] = value
}

func (p *fakePad) VibrationMotorCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.motors)
}

func (p *fakePad) VibrationMotorStrength(motor int) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.motors[motor]
}

func (p *fakePad) button(code int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buttons[code]
}

func (p *fakePad) axis(code int) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.axes[code]
	return v, ok
}

type speedCall struct {
	speed       float64
	fastForward bool
}

// fakeEngine is a simulation that counts what the coordinator asks of it.
// The coordinator calls it on the simulation thread while tests inspect it
// from theirs, so every field is behind mu.
type fakeEngine struct {
	mu sync.Mutex

	bootErr   error
	resetErr  error
	resetKill bool
	loadErr   error

	booted      bool
	paused      bool
	boots       []system.BootParameters
	shutdowns   int
	pauseCalls  int
	steps       int
	batches     int
	throttles   int
	speeds      []speedCall
	changes     []storage.Changes
	saves       []string
	resumeSaves int
	resets      int

	pads []*fakePad
}

func newFakeEngine(ports int) *fakeEngine {
	e := &fakeEngine{}
	for i := 0; i < ports; i++ {
		e.pads = append(e.pads, newFakePad())
	}
	return e
}

func (e *fakeEngine) NumPorts() int {
	return len(e.pads)
}

func (e *fakeEngine) Controller(port int) system.Pad {
	if port < 0 || port >= len(e.pads) {
		return nil
	}
	return e.pads[port]
}

func (e *fakeEngine) Framebuffer() ([]byte, int, int) {
	return nil, 0, 0
}

func (e *fakeEngine) Boot(params system.BootParameters) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.boots = append(e.boots, params)
	if e.bootErr != nil {
		return e.bootErr
	}
	e.booted, e.paused = true, false
	return nil
}

func (e *fakeEngine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdowns++
	e.booted, e.paused = false, false
}

func (e *fakeEngine) Step() {
	e.mu.Lock()
	e.steps++
	e.mu.Unlock()
	time.Sleep(time.Millisecond)
}

func (e *fakeEngine) StepBatch() {
	e.mu.Lock()
	e.batches++
	e.mu.Unlock()
	time.Sleep(time.Millisecond)
}

func (e *fakeEngine) Throttle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.throttles++
}

func (e *fakeEngine) UpdatePerformanceCounters() {}

func (e *fakeEngine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.booted && !e.paused
}

func (e *fakeEngine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.booted && e.paused
}

func (e *fakeEngine) SetPaused(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.booted {
		return
	}
	e.pauseCalls++
	e.paused = paused
}

func (e *fakeEngine) Title() string {
	return "Test Game"
}

func (e *fakeEngine) UpdateSettings(_ storage.Settings, changes storage.Changes) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes = append(e.changes, changes)
}

func (e *fakeEngine) SetSpeed(speed float64, fastForward bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speeds = append(e.speeds, speedCall{speed, fastForward})
}

func (e *fakeEngine) InputLayout() ([]emucore.Button, []emucore.Axis) {
	return []emucore.Button{{Name: "Up", ID: 4}, {Name: "A", ID: 8}},
		[]emucore.Axis{{Name: "LX", ID: 0}}
}

func (e *fakeEngine) SaveState(global bool, slot int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.saves = append(e.saves, slotName(global, slot))
	return nil
}

func (e *fakeEngine) LoadState(global bool, slot int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadErr
}

func (e *fakeEngine) SaveResumeState() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumeSaves++
	return nil
}

func (e *fakeEngine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resets++
	if e.resetErr != nil && e.resetKill {
		e.booted, e.paused = false, false
	}
	return e.resetErr
}

func (e *fakeEngine) counts() (steps, batches int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps, e.batches
}

func (e *fakeEngine) lastSpeed() speedCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.speeds) == 0 {
		return speedCall{}
	}
	return e.speeds[len(e.speeds)-1]
}

func (e *fakeEngine) lastChanges() storage.Changes {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.changes) == 0 {
		return storage.Changes{}
	}
	return e.changes[len(e.changes)-1]
}

type fakeDisplay struct {
	mu        sync.Mutex
	renderer  storage.Renderer
	createErr error
	target    display.SurfaceDescriptor
	resizes   [][2]uint32
	changes   int
	renders   int
	destroyed bool
	align     storage.Alignment
	linear    bool
}

func (d *fakeDisplay) Create(desc display.SurfaceDescriptor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return d.createErr
	}
	d.target = desc
	return nil
}

func (d *fakeDisplay) Resize(width, height uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resizes = append(d.resizes, [2]uint32{width, height})
}

func (d *fakeDisplay) ChangeTarget(desc display.SurfaceDescriptor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes++
	d.target = desc
	return nil
}

func (d *fakeDisplay) RenderFrame(display.FrameSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.renders++
}

func (d *fakeDisplay) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
}

func (d *fakeDisplay) Renderer() storage.Renderer {
	return d.renderer
}

func (d *fakeDisplay) SetAlignment(a storage.Alignment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.align = a
}

func (d *fakeDisplay) SetLinearFiltering(linear bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.linear = linear
}

type displayState struct {
	target    display.SurfaceDescriptor
	resizes   [][2]uint32
	changes   int
	renders   int
	destroyed bool
	align     storage.Alignment
	linear    bool
}

func (d *fakeDisplay) snapshot() displayState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return displayState{
		target:    d.target,
		resizes:   append([][2]uint32(nil), d.resizes...),
		changes:   d.changes,
		renders:   d.renders,
		destroyed: d.destroyed,
		align:     d.align,
		linear:    d.linear,
	}
}

// displayFactory hands out fakeDisplays and remembers them.
type displayFactory struct {
	mu       sync.Mutex
	err      error
	displays []*fakeDisplay
}

func (f *displayFactory) build(renderer storage.Renderer) (Display, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	d := &fakeDisplay{renderer: renderer}
	f.displays = append(f.displays, d)
	return d, nil
}

func (f *displayFactory) last() *fakeDisplay {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.displays) == 0 {
		return nil
	}
	return f.displays[len(f.displays)-1]
}

func (f *displayFactory) renderers() []storage.Renderer {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.Renderer
	for _, d := range f.displays {
		out = append(out, d.renderer)
	}
	return out
}

type message struct {
	text     string
	duration float64
}

type recordingSink struct {
	mu         sync.Mutex
	started    chan struct{}
	stopped    chan struct{}
	titles     []string
	vibrations []bool
	errs       []string
	messages   []message
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		started: make(chan struct{}, 8),
		stopped: make(chan struct{}, 8),
	}
}

func (s *recordingSink) OnStarted() { s.started <- struct{}{} }
func (s *recordingSink) OnStopped() { s.stopped <- struct{}{} }

func (s *recordingSink) OnTitleChanged(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
}

func (s *recordingSink) OnVibrate(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vibrations = append(s.vibrations, on)
}

func (s *recordingSink) OnError(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, text)
}

func (s *recordingSink) OnMessage(text string, duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message{text, duration})
}

func (s *recordingSink) errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errs...)
}

func (s *recordingSink) allMessages() []message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]message(nil), s.messages...)
}

func (s *recordingSink) lastVibration() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.vibrations) == 0 {
		return false, false
	}
	return s.vibrations[len(s.vibrations)-1], true
}

var errFake = errors.New("fake failure")
