package playback

// MediaEvent is an event emitted by a media element
type MediaEvent int

const (
	EventLoadedMetadata MediaEvent = iota
	EventTimeUpdate
	EventPlay
	EventPause
	EventSeeked
	EventEnded
	// EventHidden is emitted when the page loses visibility
	EventHidden
)

func (e MediaEvent) String() string {
	switch e {
	case EventLoadedMetadata:
		return "loadedmetadata"
	case EventTimeUpdate:
		return "timeupdate"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventSeeked:
		return "seeked"
	case EventEnded:
		return "ended"
	case EventHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// MediaHandle is the capability a player exposes over its media element.
// Events are delivered sequentially.
type MediaHandle interface {
	CurrentTime() float64
	SetCurrentTime(seconds float64)
	// Duration is 0 until metadata is loaded
	Duration() float64
	Paused() bool
	OnEvent(fn func(MediaEvent))
}
