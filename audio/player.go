package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

// SampleRate is the output rate. Cores are expected to produce 48 kHz stereo.
const SampleRate = 48000

// ringCapacity is ~167ms at 48kHz stereo 16-bit.
const ringCapacity = 32768

// otoBufferSize keeps oto's own buffer near 50ms so pacing sees a level
// that tracks what is actually queued.
const otoBufferSize = 19200

var (
	otoCtx     *oto.Context
	otoOnce    sync.Once
	otoInitErr error
)

func outputContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		})
		if otoInitErr != nil {
			return
		}
		<-ready
	})
	return otoCtx, otoInitErr
}

// Player streams interleaved stereo int16 samples to the platform output.
type Player struct {
	logger  *zap.Logger
	player  *oto.Player
	ring    *RingBuffer
	scratch []byte
}

// NewPlayer opens the output at the given volume. Volume is applied before
// playback starts so a muted start does not pop.
func NewPlayer(logger *zap.Logger, volume float64) (*Player, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, err := outputContext()
	if err != nil {
		return nil, fmt.Errorf("oto audio not available: %w", err)
	}

	ring := NewRingBuffer(ringCapacity)
	p := ctx.NewPlayer(ring)
	p.SetBufferSize(otoBufferSize)
	p.SetVolume(clampVolume(volume))
	p.Play()

	logger.Debug("Audio output opened", zap.Int("sampleRate", SampleRate), zap.Float64("volume", volume))
	return &Player{
		logger:  logger,
		player:  p,
		ring:    ring,
		scratch: make([]byte, 0, 4096),
	}, nil
}

// QueueSamples appends samples to the output.
func (a *Player) QueueSamples(samples []int16) {
	if len(samples) == 0 {
		return
	}
	a.scratch = encodeSamples(a.scratch[:0], samples)
	a.ring.Write(a.scratch)
}

// BufferLevel is the number of bytes queued but not yet played.
func (a *Player) BufferLevel() int {
	return a.ring.Buffered() + a.player.BufferedSize()
}

// Clear drops queued audio.
func (a *Player) Clear() {
	a.ring.Clear()
}

// SetVolume sets the playback volume, clamped to [0, 2].
func (a *Player) SetVolume(volume float64) {
	a.player.SetVolume(clampVolume(volume))
}

// Close stops playback.
func (a *Player) Close() {
	a.ring.Close()
	a.player.Close()
	a.logger.Debug("Audio output closed")
}

func encodeSamples(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = append(dst, byte(s), byte(s>>8))
	}
	return dst
}

func clampVolume(v float64) float64 {
	return min(max(v, 0), 2)
}
