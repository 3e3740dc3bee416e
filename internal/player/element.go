package player

// ElementEvent identifies a media element event.
type ElementEvent int

const (
	ElementEventTimeUpdate ElementEvent = iota
	ElementEventDurationChange
	ElementEventPlaying
	ElementEventPause
	ElementEventEnded
	ElementEventError
	ElementEventVolumeChange
	ElementEventProgress
	ElementEventWaiting
)

// String implements the fmt.Stringer interface.
func (e ElementEvent) String() string {
	switch e {
	case ElementEventTimeUpdate:
		return "timeupdate"
	case ElementEventDurationChange:
		return "durationchange"
	case ElementEventPlaying:
		return "playing"
	case ElementEventPause:
		return "pause"
	case ElementEventEnded:
		return "ended"
	case ElementEventError:
		return "error"
	case ElementEventVolumeChange:
		return "volumechange"
	case ElementEventProgress:
		return "progress"
	case ElementEventWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// ElementListener receives media element events.
type ElementListener func(evt ElementEvent)

// Element is the media element contract consumed by the driver. Volume is
// expressed as a 0-1 float at this boundary; the driver converts to its
// 0-100 integer scale.
//
// AddEventListener is called exactly once per element, at driver
// construction; switching the active player never re-registers listeners.
type Element interface {
	Source() string
	SetSource(url string)
	SetAutoplay(autoplay bool)
	CurrentTime() float64 // seconds
	SetCurrentTime(seconds float64)
	Duration() float64 // seconds; NaN or 0 when unknown
	Volume() float64
	SetVolume(volume float64)
	Muted() bool
	SetMuted(muted bool)
	PlaybackRate() float64
	Ended() bool
	Load()
	Play() error
	Pause()
	AddEventListener(listener ElementListener)
}
