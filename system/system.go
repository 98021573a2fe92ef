// Package system is the simulation engine context: one loaded program
// image, its core instance and everything attached to it. A System is not
// safe for concurrent use. The host drives it from a single thread.
package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	emucore "github.com/user-none/eblitui/android/api"
	"github.com/user-none/eblitui/android/audio"
	"github.com/user-none/eblitui/android/metrics"
	"github.com/user-none/eblitui/android/romloader"
	"github.com/user-none/eblitui/android/storage"
)

// OverclockOption is the core option key that receives the CPU clock
// fraction ("3/2") when a core declares it.
const OverclockOption = "cpu_overclock"

// State is the lifecycle state of a System. Values are ordered.
type State int

const (
	StateShutdown State = iota
	StateStarting
	StatePaused
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateShutdown:
		return "Shutdown"
	case StateStarting:
		return "Starting"
	case StatePaused:
		return "Paused"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// BootParameters says what to load. It is not modified after submission.
type BootParameters struct {
	// Filename is the image to boot. Empty with ResumeState set resumes
	// the most recently saved resume state.
	Filename string

	// ResumeState loads the image's resume state after booting.
	ResumeState bool

	// StateFilename, when set, is a save state file loaded after booting.
	// It takes precedence over ResumeState.
	StateFilename string
}

// Pad is the input and rumble surface of one controller port.
type Pad interface {
	SetButtonState(code int, pressed bool)
	SetAxisState(code int, value float64)
	VibrationMotorCount() int
	VibrationMotorStrength(motor int) float64
}

// AudioOutput receives the core's samples.
type AudioOutput interface {
	QueueSamples(samples []int16)
	BufferLevel() int
	Clear()
	SetVolume(volume float64)
	Close()
}

// AudioOpener opens an output at the given initial volume.
type AudioOpener func(volume float64) (AudioOutput, error)

// OtoAudio opens outputs on the platform device.
func OtoAudio(logger *zap.Logger) AudioOpener {
	return func(volume float64) (AudioOutput, error) {
		p, err := audio.NewPlayer(logger, volume)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Config holds the collaborators of a System.
type Config struct {
	Logger  *zap.Logger
	Factory emucore.CoreFactory
	Paths   storage.Paths
	Metrics *metrics.Metrics

	// Audio opens the sound output at boot. Nil runs silent.
	Audio AudioOpener

	// Notify shows a short message to the user. Optional.
	Notify func(text string)

	// Now and Sleep default to the time package.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// System is the explicit simulation context owned by the host.
type System struct {
	cfg    Config
	logger *zap.Logger
	info   emucore.SystemInfo
	states StateStore

	settings    storage.Settings
	speed       float64
	fastForward bool

	state  State
	image  *romloader.Image
	region emucore.Region
	emu    emucore.Emulator

	saveStater emucore.SaveStater
	battery    emucore.BatterySaver
	memory     emucore.MemoryInspector
	rumble     *RumbleEngine

	controllers []*Controller
	audio       AudioOutput
	muted       bool
	batchAudio  []int16

	limiter limiter
	perf    perfCounter
}

// New creates a System in the Shutdown state.
func New(cfg Config) *System {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Notify == nil {
		cfg.Notify = func(string) {}
	}
	info := cfg.Factory.SystemInfo()
	return &System{
		cfg:      cfg,
		logger:   cfg.Logger.Named("system"),
		info:     info,
		states:   NewStateStore(cfg.Paths),
		settings: storage.LoadSettings(storage.NewStore(""), info.Players),
		speed:    1.0,
	}
}

// Info returns the core's system description.
func (s *System) Info() emucore.SystemInfo {
	return s.info
}

// State returns the lifecycle state.
func (s *System) State() State {
	return s.state
}

// IsValid reports whether an image is loaded.
func (s *System) IsValid() bool {
	return s.state != StateShutdown && s.state != StateStarting
}

// IsRunning reports whether frames are being emulated.
func (s *System) IsRunning() bool {
	return s.state == StateRunning
}

// IsPaused reports whether a loaded image is paused.
func (s *System) IsPaused() bool {
	return s.state == StatePaused
}

// Title is the loaded image's name without extension.
func (s *System) Title() string {
	if s.image == nil {
		return ""
	}
	return s.image.Title()
}

// Image returns the loaded image, or nil.
func (s *System) Image() *romloader.Image {
	return s.image
}

// NumPorts returns the number of controller ports.
func (s *System) NumPorts() int {
	return len(s.controllers)
}

// Controller returns the pad on port, or nil when the port is empty.
func (s *System) Controller(port int) Pad {
	if port < 0 || port >= len(s.controllers) || s.controllers[port] == nil {
		return nil
	}
	return s.controllers[port]
}

// InputLayout returns the buttons and axes the core understands.
func (s *System) InputLayout() ([]emucore.Button, []emucore.Axis) {
	return s.info.AllButtons(), s.info.Axes
}

// Framebuffer returns the current frame.
func (s *System) Framebuffer() ([]byte, int, int) {
	if s.emu == nil {
		return nil, 0, 0
	}
	return s.emu.GetFramebuffer(), s.emu.GetFramebufferStride(), s.emu.GetActiveHeight()
}

// FPS returns the last measured frame rate.
func (s *System) FPS() float64 {
	return s.perf.fps
}

// Speed returns the last measured speed as a percentage of real time.
func (s *System) Speed() float64 {
	return s.perf.speed
}

// Boot loads and starts an image. On failure nothing stays attached.
func (s *System) Boot(params BootParameters) (err error) {
	if s.state != StateShutdown {
		return ErrAlreadyBooted
	}
	s.state = StateStarting

	var undo []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		s.state = StateShutdown
		s.cfg.Metrics.Boot(err)
	}()

	path := params.Filename
	if path == "" {
		if !params.ResumeState {
			return ErrNoImage
		}
		recent, err := s.states.MostRecentResume()
		if err != nil {
			return fmt.Errorf("failed to find a resume state: %w", err)
		}
		s.logger.Info("Resuming most recent state", zap.String("title", recent.Title))
		path = recent.ImagePath
	}

	img, err := romloader.Load(path, s.info.Extensions)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	region := s.pickRegion(img.Data)
	emu, err := s.cfg.Factory.CreateEmulator(img.Data, region)
	if err != nil {
		return fmt.Errorf("failed to create emulator: %w", err)
	}
	s.attach(img, region, emu)
	undo = append(undo, s.detach)

	s.loadSRAM()
	s.loadRumble()
	s.buildControllers()
	s.applyCoreOptions()

	switch {
	case params.StateFilename != "":
		if err := s.LoadStateFile(params.StateFilename); err != nil {
			return err
		}
	case params.ResumeState:
		err := s.loadResume()
		switch {
		case errors.Is(err, ErrNoResumeState), errors.Is(err, ErrNoSaveStates):
			s.logger.Info("No resume state, booting fresh", zap.String("title", img.Title()))
			s.cfg.Notify("No resume state found, starting fresh.")
		case err != nil:
			return err
		}
	}

	s.openAudio()
	undo = append(undo, s.closeAudio)

	now := s.cfg.Now()
	s.limiter.configure(s.emu.GetTiming().FPS, s.speed, now)
	s.perf.reset(now)
	s.state = StateRunning
	s.cfg.Metrics.Boot(nil)

	s.logger.Info("System booted",
		zap.String("title", img.Title()),
		zap.String("fingerprint", img.Fingerprint()),
		zap.Stringer("region", region),
		zap.Bool("saveStates", s.saveStater != nil),
		zap.Bool("sram", s.battery != nil && s.battery.HasSRAM()))
	return nil
}

// Shutdown flushes battery RAM and releases the image.
func (s *System) Shutdown() {
	if !s.IsValid() {
		return
	}
	s.state = StateStopping
	s.saveSRAM()
	s.closeAudio()
	title := s.Title()
	s.detach()
	s.state = StateShutdown
	s.logger.Info("System shut down", zap.String("title", title))
}

// SetPaused moves between Running and Paused.
func (s *System) SetPaused(paused bool) {
	switch {
	case paused && s.state == StateRunning:
		s.state = StatePaused
		if s.audio != nil {
			s.audio.Clear()
		}
	case !paused && s.state == StatePaused:
		s.state = StateRunning
		now := s.cfg.Now()
		s.limiter.resync(now)
		s.perf.reset(now)
	}
}

// Step runs one frame.
func (s *System) Step() {
	if !s.IsRunning() {
		return
	}
	s.runFrames(1, false)
}

// StepBatch runs every frame that is due on the schedule, at least one.
func (s *System) StepBatch() {
	if !s.IsRunning() {
		return
	}
	s.runFrames(s.limiter.take(s.cfg.Now()), true)
}

// Throttle sleeps until the next frame is due, nudged by the audio level.
func (s *System) Throttle() {
	level, haveAudio := 0, s.audio != nil && !s.muted
	if haveAudio {
		level = s.audio.BufferLevel()
	}
	if d := s.limiter.sleepFor(s.cfg.Now(), level, haveAudio); d > time.Millisecond {
		s.cfg.Sleep(d)
	}
}

// UpdatePerformanceCounters refreshes FPS and speed about once a second.
func (s *System) UpdatePerformanceCounters() {
	if s.emu == nil {
		return
	}
	if s.perf.update(s.cfg.Now(), s.emu.GetTiming().FPS) {
		s.cfg.Metrics.Performance(s.perf.fps, s.perf.speed)
	}
}

// SetSpeed sets the target speed. Zero or less runs unthrottled.
// fastForward mutes audio when the settings ask for it.
func (s *System) SetSpeed(speed float64, fastForward bool) {
	s.speed, s.fastForward = speed, fastForward
	if s.emu != nil {
		s.limiter.configure(s.emu.GetTiming().FPS, speed, s.cfg.Now())
	}
	s.applyVolume()
}

// UpdateSettings takes a new effective configuration and reinitialises
// what changed.
func (s *System) UpdateSettings(next storage.Settings, c storage.Changes) {
	s.settings = next.Clone()
	if !s.IsValid() {
		return
	}
	if c.Controllers {
		s.buildControllers()
	}
	if c.Audio {
		s.applyVolume()
	}
	for _, key := range c.CoreOptions {
		s.emu.SetOption(key, s.settings.CoreOptions[key])
	}
	if c.Overclock {
		s.applyOverclock()
	}
	if c.Region {
		s.logger.Info("Region change applies on next boot", zap.String("region", s.settings.Region))
	}
}

// Reset power cycles the loaded image, keeping battery RAM.
func (s *System) Reset() error {
	if !s.IsValid() {
		return ErrNotRunning
	}
	var sram []byte
	if s.battery != nil && s.battery.HasSRAM() {
		sram = s.battery.GetSRAM()
	}

	img, region := s.image, s.region
	s.emu.Close()
	emu, err := s.cfg.Factory.CreateEmulator(img.Data, region)
	if err != nil {
		s.closeAudio()
		s.detach()
		s.state = StateShutdown
		return fmt.Errorf("failed to recreate emulator: %w", err)
	}
	s.attach(img, region, emu)
	if sram != nil && s.battery != nil {
		s.battery.SetSRAM(sram)
	}
	s.loadRumble()
	s.buildControllers()
	s.applyCoreOptions()
	s.limiter.resync(s.cfg.Now())
	s.logger.Info("System reset", zap.String("title", img.Title()))
	return nil
}

// SaveState writes a numbered slot.
func (s *System) SaveState(global bool, slot int) error {
	if err := s.canSerialize(); err != nil {
		return err
	}
	path, err := s.states.SlotPath(s.image.Fingerprint(), global, slot)
	if err != nil {
		return err
	}
	data, err := s.saveStater.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	if err := storage.AtomicWriteFile(path, data); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	s.logger.Info("State saved", zap.Int("slot", slot), zap.Bool("global", global))
	return nil
}

// LoadState restores a numbered slot.
func (s *System) LoadState(global bool, slot int) error {
	if err := s.canSerialize(); err != nil {
		return err
	}
	path, err := s.states.SlotPath(s.image.Fingerprint(), global, slot)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no save in slot %d", slot)
	}
	return s.LoadStateFile(path)
}

// LoadStateFile restores state from an explicit file.
func (s *System) LoadStateFile(path string) error {
	if err := s.canSerialize(); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}
	return s.restore(data)
}

// SaveResumeState writes the resume state and flushes battery RAM.
func (s *System) SaveResumeState() error {
	if err := s.canSerialize(); err != nil {
		return err
	}
	data, err := s.saveStater.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	info := ResumeInfo{
		ImagePath:   s.image.Path,
		Title:       s.image.Title(),
		Fingerprint: s.image.Fingerprint(),
		Saved:       s.cfg.Now(),
	}
	if err := s.states.WriteResume(info, data); err != nil {
		return err
	}
	s.saveSRAM()
	s.logger.Info("Resume state saved", zap.String("title", info.Title))
	return nil
}

func (s *System) loadResume() error {
	if err := s.canSerialize(); err != nil {
		return err
	}
	data, err := s.states.ReadResume(s.image.Fingerprint())
	if err != nil {
		return err
	}
	return s.restore(data)
}

func (s *System) restore(data []byte) error {
	if err := s.saveStater.Deserialize(data); err != nil {
		return fmt.Errorf("failed to deserialize state: %w", err)
	}
	if s.rumble != nil {
		s.rumble.Reset()
	}
	for _, c := range s.controllers {
		if c != nil {
			c.stopRumble()
		}
	}
	s.limiter.resync(s.cfg.Now())
	return nil
}

func (s *System) canSerialize() error {
	if s.emu == nil || s.image == nil {
		return ErrNotRunning
	}
	if s.saveStater == nil {
		return ErrNoSaveStates
	}
	return nil
}

func (s *System) attach(img *romloader.Image, region emucore.Region, emu emucore.Emulator) {
	s.image, s.region, s.emu = img, region, emu
	s.saveStater, _ = emu.(emucore.SaveStater)
	s.battery, _ = emu.(emucore.BatterySaver)
	s.memory, _ = emu.(emucore.MemoryInspector)
}

func (s *System) detach() {
	if s.emu != nil {
		s.emu.Close()
	}
	s.image, s.emu = nil, nil
	s.saveStater, s.battery, s.memory = nil, nil, nil
	s.rumble = nil
	s.controllers = nil
	s.batchAudio = s.batchAudio[:0]
}

func (s *System) pickRegion(data []byte) emucore.Region {
	if r, ok := emucore.ParseRegion(s.settings.Region); ok {
		return r
	}
	r, _ := s.cfg.Factory.DetectRegion(data)
	return r
}

func (s *System) buildControllers() {
	ports := min(s.info.Players, len(s.settings.Ports))
	s.controllers = make([]*Controller, ports)
	for i := range s.controllers {
		kind := s.settings.Ports[i].Type
		if kind == storage.ControllerNone {
			continue
		}
		s.controllers[i] = newController(i, kind, s.emu, s.rumble != nil, s.cfg.Now)
	}
}

func (s *System) applyCoreOptions() {
	for key, value := range s.settings.CoreOptions {
		s.emu.SetOption(key, value)
	}
	s.applyOverclock()
}

func (s *System) applyOverclock() {
	if _, ok := s.info.Option(OverclockOption); !ok {
		return
	}
	value := "1/1"
	if s.settings.OverclockEnable {
		value = fmt.Sprintf("%d/%d", s.settings.OverclockNumerator, s.settings.OverclockDenominator)
	}
	s.emu.SetOption(OverclockOption, value)
}

func (s *System) loadSRAM() {
	if s.battery == nil || !s.battery.HasSRAM() {
		return
	}
	data, err := os.ReadFile(s.states.SRAMPath(s.image.Fingerprint()))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read SRAM", zap.Error(err))
		}
		return
	}
	s.battery.SetSRAM(data)
}

func (s *System) saveSRAM() {
	if s.battery == nil || !s.battery.HasSRAM() || s.image == nil {
		return
	}
	if err := storage.AtomicWriteFile(s.states.SRAMPath(s.image.Fingerprint()), s.battery.GetSRAM()); err != nil {
		s.logger.Warn("Failed to save SRAM", zap.Error(err))
	}
}

// loadRumble attaches a memory-watch rumble file for cores without native
// rumble. Files are looked up by fingerprint, then by title.
func (s *System) loadRumble() {
	s.rumble = nil
	if s.memory == nil {
		return
	}
	if _, native := s.emu.(emucore.Rumbler); native {
		return
	}
	dir := s.cfg.Paths.CheatsDir()
	for _, name := range []string{s.image.Fingerprint() + ".cht", s.image.Title() + ".cht"} {
		entries, err := LoadRumbleFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			s.logger.Warn("Failed to load rumble file", zap.String("file", name), zap.Error(err))
			return
		}
		s.rumble = NewRumbleEngine(entries, s.info.BigEndianMemory)
		s.logger.Debug("Rumble file loaded", zap.String("file", name), zap.Int("entries", len(entries)))
		return
	}
}

func (s *System) openAudio() {
	if s.cfg.Audio == nil {
		return
	}
	out, err := s.cfg.Audio(s.volume())
	if err != nil {
		s.logger.Warn("Audio unavailable, running silent", zap.Error(err))
		return
	}
	s.audio = out
	s.muted = s.volume() == 0
}

func (s *System) closeAudio() {
	if s.audio != nil {
		s.audio.Close()
		s.audio = nil
	}
}

func (s *System) volume() float64 {
	if s.settings.Muted || (s.fastForward && s.settings.FastForwardMute) {
		return 0
	}
	return s.settings.Volume
}

func (s *System) applyVolume() {
	v := s.volume()
	s.muted = v == 0
	if s.audio == nil {
		return
	}
	s.audio.SetVolume(v)
	if s.muted {
		s.audio.Clear()
	}
}

func (s *System) runFrames(n int, batch bool) {
	start := s.cfg.Now()
	for i, c := range s.controllers {
		var buttons uint32
		if c != nil {
			buttons = c.Buttons()
		}
		s.emu.SetInput(i, buttons)
	}

	for i := 0; i < n; i++ {
		s.emu.RunFrame()
		s.collectAudio(n)
		s.evaluateRumble()
	}
	if s.audio != nil && !s.muted && n > 1 {
		s.audio.QueueSamples(averageAudio(s.batchAudio, n))
		s.batchAudio = s.batchAudio[:0]
	}

	s.perf.frames += n
	s.cfg.Metrics.FrameDone(batch, n, s.cfg.Now().Sub(start))
}

func (s *System) collectAudio(n int) {
	if s.audio == nil || s.muted {
		return
	}
	samples := s.emu.GetAudioSamples()
	if n == 1 {
		s.audio.QueueSamples(samples)
		return
	}
	s.batchAudio = append(s.batchAudio, samples...)
}

func (s *System) evaluateRumble() {
	if s.rumble == nil || s.memory == nil {
		return
	}
	for _, ev := range s.rumble.Evaluate(s.memory, s.cfg.Now()) {
		if ev.Port >= 0 && ev.Port < len(s.controllers) {
			if c := s.controllers[ev.Port]; c != nil {
				c.rumble(ev)
			}
			continue
		}
		for _, c := range s.controllers {
			if c != nil {
				c.rumble(ev)
			}
		}
	}
}
