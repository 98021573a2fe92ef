package system

import (
	"errors"
	"time"

	emucore "github.com/user-none/eblitui/android/api"
)

type fakeEmu struct {
	frames  int
	inputs  map[int]uint32
	axes    map[int]float64
	options map[string]string
	sram    []byte
	mem     []byte
	samples []int16
	closed  bool
}

func newFakeEmu() *fakeEmu {
	return &fakeEmu{
		inputs:  make(map[int]uint32),
		axes:    make(map[int]float64),
		options: make(map[string]string),
		mem:     make([]byte, 16),
		samples: []int16{100, 200},
	}
}

func (e *fakeEmu) RunFrame()                         { e.frames++ }
func (e *fakeEmu) GetFramebuffer() []byte            { return make([]byte, 4*4*4) }
func (e *fakeEmu) GetFramebufferStride() int         { return 16 }
func (e *fakeEmu) GetActiveHeight() int              { return 4 }
func (e *fakeEmu) GetAudioSamples() []int16          { return e.samples }
func (e *fakeEmu) SetInput(player int, b uint32)     { e.inputs[player] = b }
func (e *fakeEmu) GetRegion() emucore.Region         { return emucore.RegionNTSC }
func (e *fakeEmu) SetRegion(emucore.Region)          {}
func (e *fakeEmu) GetTiming() emucore.Timing         { return emucore.Timing{FPS: 60, Scanlines: 262} }
func (e *fakeEmu) SetOption(key, value string)       { e.options[key] = value }
func (e *fakeEmu) Close()                            { e.closed = true }
func (e *fakeEmu) Serialize() ([]byte, error)        { return []byte{byte(e.frames)}, nil }
func (e *fakeEmu) HasSRAM() bool                     { return true }
func (e *fakeEmu) GetSRAM() []byte                   { return append([]byte(nil), e.sram...) }
func (e *fakeEmu) SetSRAM(data []byte)               { e.sram = append([]byte(nil), data...) }
func (e *fakeEmu) SetAxis(port, axis int, v float64) { e.axes[axis] = v }

func (e *fakeEmu) Deserialize(data []byte) error {
	if len(data) != 1 {
		return errors.New("bad state")
	}
	e.frames = int(data[0])
	return nil
}

func (e *fakeEmu) ReadMemory(addr uint32, buf []byte) uint32 {
	n := copy(buf, e.mem[addr:])
	return uint32(n)
}

// plainEmu hides every optional capability of the wrapped core.
type plainEmu struct{ emucore.Emulator }

type fakeFactory struct {
	info    emucore.SystemInfo
	created []*fakeEmu
	plain   bool
	err     error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{info: emucore.SystemInfo{
		Name:       "fake",
		Extensions: []string{".bin"},
		Players:    2,
		Buttons: []emucore.Button{
			{Name: "A", ID: 4},
			{Name: "B", ID: 5},
		},
		Axes: []emucore.Axis{{Name: "LeftX", ID: 0}},
		CoreOptions: []emucore.CoreOption{
			{Key: OverclockOption, Label: "Overclock", Default: "1/1"},
		},
	}}
}

func (f *fakeFactory) SystemInfo() emucore.SystemInfo { return f.info }

func (f *fakeFactory) CreateEmulator(image []byte, region emucore.Region) (emucore.Emulator, error) {
	if f.err != nil {
		return nil, f.err
	}
	e := newFakeEmu()
	f.created = append(f.created, e)
	if f.plain {
		return plainEmu{e}, nil
	}
	return e, nil
}

func (f *fakeFactory) DetectRegion(image []byte) (emucore.Region, bool) {
	return emucore.RegionNTSC, false
}

func (f *fakeFactory) last() *fakeEmu {
	return f.created[len(f.created)-1]
}

type fakeAudio struct {
	queued  [][]int16
	volume  float64
	level   int
	cleared int
	closed  bool
}

func (a *fakeAudio) QueueSamples(s []int16) { a.queued = append(a.queued, append([]int16(nil), s...)) }
func (a *fakeAudio) BufferLevel() int       { return a.level }
func (a *fakeAudio) Clear()                 { a.cleared++ }
func (a *fakeAudio) SetVolume(v float64)    { a.volume = v }
func (a *fakeAudio) Close()                 { a.closed = true }

type fakeClock struct {
	t     time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
