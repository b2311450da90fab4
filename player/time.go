package player

import (
	"sync"
	"time"
)

// GraphTime tracks the timing of a running player: the configured frame
// rate, the number of frames played, total elapsed play time and the delta
// of the last frame. It is safe to read from other goroutines while the
// player loop writes it.
type GraphTime struct {
	mu sync.RWMutex

	frameRate  int
	frameCount int
	elapsed    time.Duration
	delta      time.Duration
}

// FrameRate returns the configured target frames per second.
func (t *GraphTime) FrameRate() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frameRate
}

// FrameCount returns the number of frames the current (or last) play has
// processed.
func (t *GraphTime) FrameCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frameCount
}

// Elapsed returns the total play time accumulated so far, excluding pauses.
func (t *GraphTime) Elapsed() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.elapsed
}

// Delta returns the duration of the most recent frame.
func (t *GraphTime) Delta() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.delta
}

// AvgFPS returns the average frame rate over the play so far.
func (t *GraphTime) AvgFPS() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.elapsed <= 0 {
		return 0
	}
	return float64(t.frameCount) / t.elapsed.Seconds()
}

// CurrentFPS returns the instantaneous frame rate derived from the last
// frame's delta.
func (t *GraphTime) CurrentFPS() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.delta <= 0 {
		return 0
	}
	return 1 / t.delta.Seconds()
}

// reset re-arms the clock for a new play. Counters survive a stop so that
// callers can inspect the finished play's timing.
func (t *GraphTime) reset(frameRate int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frameRate = frameRate
	t.frameCount = 0
	t.elapsed = 0
	t.delta = 0
}

// beginFrame counts the frame as it starts, so callbacks running inside it
// observe the frame number they belong to.
func (t *GraphTime) beginFrame() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frameCount++
}

// endFrame records the finished frame's duration.
func (t *GraphTime) endFrame(delta time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delta = delta
	t.elapsed += delta
}
