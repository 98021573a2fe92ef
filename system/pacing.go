package system

import "time"

const (
	// Audio buffer levels, in bytes, that nudge the frame sleep.
	adtMinBuffer = 9600  // ~3 frames, speed up below this
	adtMaxBuffer = 19200 // ~6 frames, slow down above this

	// maxBatchFrames caps catch-up in one StepBatch. Falling further behind
	// resynchronises the schedule instead.
	maxBatchFrames = 8

	// resyncLag is how far behind schedule Throttle tolerates before it
	// gives up on catching up.
	resyncLag = 100 * time.Millisecond

	perfInterval = time.Second
)

// limiter schedules frames at a target rate.
type limiter struct {
	interval time.Duration // 0 means unlimited
	next     time.Time
}

func (l *limiter) configure(fps int, speed float64, now time.Time) {
	if fps <= 0 {
		fps = 60
	}
	if speed <= 0 {
		l.interval = 0
	} else {
		l.interval = time.Duration(float64(time.Second) / (float64(fps) * speed))
	}
	l.next = now
}

func (l *limiter) resync(now time.Time) {
	l.next = now
}

// take returns how many frames are due at now, at least one, and advances
// the schedule past them.
func (l *limiter) take(now time.Time) int {
	if l.interval == 0 {
		return 1
	}
	n := 1
	if behind := now.Sub(l.next); behind > 0 {
		n = int(behind/l.interval) + 1
	}
	if n > maxBatchFrames {
		l.next = now.Add(l.interval)
		return maxBatchFrames
	}
	l.next = l.next.Add(time.Duration(n) * l.interval)
	return n
}

// sleepFor returns how long to wait before the next frame is due. A
// negative or tiny result means no sleep.
func (l *limiter) sleepFor(now time.Time, bufferLevel int, haveAudio bool) time.Duration {
	if l.interval == 0 {
		return 0
	}
	d := l.next.Sub(now)
	if d < -resyncLag {
		l.next = now
		return 0
	}
	if haveAudio {
		switch {
		case bufferLevel < adtMinBuffer:
			d = time.Duration(float64(d) * 0.9)
		case bufferLevel > adtMaxBuffer:
			d = time.Duration(float64(d) * 1.1)
		}
	}
	return d
}

// perfCounter measures frame rate over perfInterval windows.
type perfCounter struct {
	frames int
	since  time.Time
	fps    float64
	speed  float64
}

func (p *perfCounter) reset(now time.Time) {
	*p = perfCounter{since: now}
}

// update folds the frames counted so far into fps and speed once a window
// has elapsed, and reports whether it did.
func (p *perfCounter) update(now time.Time, coreFPS int) bool {
	elapsed := now.Sub(p.since)
	if elapsed < perfInterval {
		return false
	}
	p.fps = float64(p.frames) / elapsed.Seconds()
	if coreFPS > 0 {
		p.speed = p.fps / float64(coreFPS) * 100
	}
	p.frames = 0
	p.since = now
	return true
}

// averageAudio folds the concatenated stereo samples of n frames into one
// frame's worth by averaging corresponding samples.
func averageAudio(combined []int16, n int) []int16 {
	if n <= 1 || len(combined) == 0 {
		return combined
	}
	frameLen := (len(combined) / n) &^ 1
	if frameLen == 0 {
		return nil
	}
	out := make([]int16, frameLen)
	for i := range out {
		var acc int32
		for f := 0; f < n; f++ {
			acc += int32(combined[f*frameLen+i])
		}
		out[i] = int16(acc / int32(n))
	}
	return out
}
