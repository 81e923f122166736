package ui

import (
	"sync"
	"time"
)

// ProgressTracker holds the state a renderer draws from. It is safe for
// concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	message    string
	startTime  time.Time
	stageStart time.Time
	timings    map[Stage]time.Duration
}

// ProgressStats is a snapshot of a tracker.
type ProgressStats struct {
	Stage    Stage
	Current  int
	Total    int
	Message  string
	Progress float64
	// Rate is items per second within the current stage.
	Rate    float64
	Elapsed time.Duration
}

func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageChunking,
		startTime:  now,
		stageStart: now,
		timings:    make(map[Stage]time.Duration),
	}
}

// Apply records an event, switching stage when it names a new one.
// Events for earlier stages are ignored.
func (p *ProgressTracker) Apply(event ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Stage < p.stage {
		return
	}
	if event.Stage != p.stage {
		now := time.Now()
		p.timings[p.stage] = now.Sub(p.stageStart)
		p.stage = event.Stage
		p.stageStart = now
		p.message = ""
	}
	p.current = event.Current
	p.total = event.Total
	if event.Message != "" {
		p.message = event.Message
	}
}

// Progress returns the completed fraction of the current stage in [0, 1].
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progressLocked()
}

func (p *ProgressTracker) progressLocked() float64 {
	if p.stage == StageComplete {
		return 1
	}
	if p.total <= 0 {
		return 0
	}
	return min(float64(p.current)/float64(p.total), 1)
}

// Timings returns how long each finished stage took.
func (p *ProgressTracker) Timings() map[Stage]time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[Stage]time.Duration, len(p.timings))
	for k, v := range p.timings {
		out[k] = v
	}
	return out
}

func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := ProgressStats{
		Stage:    p.stage,
		Current:  p.current,
		Total:    p.total,
		Message:  p.message,
		Progress: p.progressLocked(),
		Elapsed:  time.Since(p.startTime),
	}
	if d := time.Since(p.stageStart).Seconds(); d > 0 {
		s.Rate = float64(p.current) / d
	}
	return s
}
