package playback

import (
	"fmt"
	"lms-media/internal/core/domain"
	"time"
)

// DefaultRewindStep is how far the rewind control jumps back
const DefaultRewindStep = 5 * time.Second

// SeekDecision is the outcome of a seek request. A denied seek leaves the position untouched.
type SeekDecision struct {
	Allowed bool
	Target  float64
	Message string
}

// SkipGuard decides whether a viewer may jump to a position
type SkipGuard struct {
	disabled   bool
	rewindStep time.Duration
}

// NewSkipGuard creates a guard. disabled lifts every restriction.
func NewSkipGuard(disabled bool, rewindStep time.Duration) *SkipGuard {
	if rewindStep <= 0 {
		rewindStep = DefaultRewindStep
	}
	return &SkipGuard{disabled: disabled, rewindStep: rewindStep}
}

// CanSeek allows review mode, disabled prevention, and any target inside the watched range
func (g *SkipGuard) CanSeek(target float64, state domain.PlaybackProgressState) bool {
	return state.HasCompletedOnce || g.disabled || target <= state.MaxWatchedPositionSeconds
}

// RequestSeek applies target to media when allowed
func (g *SkipGuard) RequestSeek(media MediaHandle, target float64, state domain.PlaybackProgressState) SeekDecision {
	target = clampPosition(target, media.Duration())
	if !g.CanSeek(target, state) {
		return SeekDecision{
			Allowed: false,
			Target:  target,
			Message: fmt.Sprintf("You can't skip ahead yet. Keep watching to unlock the video past %s.", formatClock(state.MaxWatchedPositionSeconds)),
		}
	}
	media.SetCurrentTime(target)
	return SeekDecision{Allowed: true, Target: target}
}

// Rewind jumps back by the rewind step, never before 0. It is always allowed.
func (g *SkipGuard) Rewind(media MediaHandle) float64 {
	target := max(media.CurrentTime()-g.rewindStep.Seconds(), 0)
	media.SetCurrentTime(target)
	return target
}

func clampPosition(target, duration float64) float64 {
	if target < 0 {
		return 0
	}
	if duration > 0 && target > duration {
		return duration
	}
	return target
}

func formatClock(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
