// Package simulated provides a headless media element that plays in real or simulated time.
package simulated

import (
	"lms-media/internal/core/service/playback"
	"lms-media/internal/debounce"
	"slices"
	"sync"
	"time"
)

// DefaultTickInterval matches the timeupdate cadence of browser media elements
const DefaultTickInterval = 250 * time.Millisecond

// Player is a playback.MediaHandle whose position advances with its clock while playing
type Player struct {
	mu           sync.Mutex
	clock        debounce.Clock
	duration     float64
	loaded       bool
	position     float64
	paused       bool
	tickInterval time.Duration
	lastAdvance  time.Time
	timer        debounce.Timer
	listeners    []func(playback.MediaEvent)
	queue        []playback.MediaEvent
	draining     bool
}

// Option configures a Player
type Option func(*Player)

// WithTickInterval changes the timeupdate cadence
func WithTickInterval(d time.Duration) Option {
	return func(p *Player) {
		p.tickInterval = d
	}
}

// NewPlayer creates a paused player for a video of the given length. The duration is reported once Load is called.
func NewPlayer(clock debounce.Clock, duration time.Duration, opts ...Option) *Player {
	p := &Player{
		clock:        clock,
		duration:     duration.Seconds(),
		paused:       true,
		tickInterval: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// SetCurrentTime moves the playhead and emits seeked
func (p *Player) SetCurrentTime(seconds float64) {
	p.mu.Lock()
	p.advanceLocked()
	p.position = min(max(seconds, 0), p.duration)
	p.mu.Unlock()

	p.emit(playback.EventSeeked)
}

func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return 0
	}
	return p.duration
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Player) OnEvent(fn func(playback.MediaEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Load makes the duration available and emits loadedmetadata
func (p *Player) Load() {
	p.mu.Lock()
	p.loaded = true
	p.mu.Unlock()

	p.emit(playback.EventLoadedMetadata)
}

// Play starts playback from the current position
func (p *Player) Play() {
	p.mu.Lock()
	if !p.paused || p.position >= p.duration {
		p.mu.Unlock()
		return
	}
	p.paused = false
	p.lastAdvance = p.clock.Now()
	p.scheduleLocked()
	p.mu.Unlock()

	p.emit(playback.EventPlay)
}

// Pause stops playback and emits pause
func (p *Player) Pause() {
	p.mu.Lock()
	if p.paused {
		p.mu.Unlock()
		return
	}
	p.advanceLocked()
	p.paused = true
	p.stopLocked()
	p.mu.Unlock()

	p.emit(playback.EventPause)
}

// Hide emits the visibility loss event
func (p *Player) Hide() {
	p.emit(playback.EventHidden)
}

// Stop releases the tick timer
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) tick() {
	p.mu.Lock()
	if p.paused {
		p.mu.Unlock()
		return
	}
	p.advanceLocked()
	ended := p.position >= p.duration
	if ended {
		p.paused = true
		p.timer = nil
	} else {
		p.scheduleLocked()
	}
	p.mu.Unlock()

	p.emit(playback.EventTimeUpdate)
	if ended {
		p.emit(playback.EventEnded)
	}
}

// advanceLocked moves the playhead by the time elapsed since the last advance
func (p *Player) advanceLocked() {
	if p.paused {
		return
	}
	now := p.clock.Now()
	p.position = min(p.position+now.Sub(p.lastAdvance).Seconds(), p.duration)
	p.lastAdvance = now
}

func (p *Player) scheduleLocked() {
	p.timer = p.clock.AfterFunc(p.tickInterval, p.tick)
}

func (p *Player) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// emit delivers events one at a time, in order. An event emitted from a listener is queued
// behind the one being delivered.
func (p *Player) emit(ev playback.MediaEvent) {
	p.mu.Lock()
	p.queue = append(p.queue, ev)
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true
	for len(p.queue) > 0 {
		next := p.queue[0]
		p.queue = p.queue[1:]
		listeners := slices.Clone(p.listeners)
		p.mu.Unlock()

		for _, fn := range listeners {
			fn(next)
		}

		p.mu.Lock()
	}
	p.draining = false
	p.mu.Unlock()
}
