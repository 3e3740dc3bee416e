// Package player drives a pair of media elements - one audio, one video -
// behind a single active-player facade.
//
// Exactly one element is active at a time. Switching media kinds stops and
// resets the outgoing element before the incoming one receives a source, so
// two elements never hold a live decode session concurrently. Each
// element's listeners are registered once for its lifetime; events from a
// backgrounded element are dropped at the active-player gate rather than
// corrupting shared state.
package player

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/playhead/playhead/internal/domain"
	"github.com/playhead/playhead/internal/event"
)

const defaultVolume = 100

// Events is the swappable callback set receiving player events. Nil
// callbacks are skipped.
type Events struct {
	OnTimeUpdate     func(positionMS, durationMS int64)
	OnDurationChange func(durationMS int64)
	OnPlaying        func()
	OnPause          func()
	OnEnded          func()
	OnError          func(err error)
	OnVolumeChange   func(volume int, muted bool)
	OnProgress       func()
	OnWaiting        func()
}

// LoadParams contains the parameters for loading a stream.
type LoadParams struct {
	URL        string
	Item       domain.MediaItem
	PlayMethod domain.PlayMethod
	Autoplay   bool
}

// Driver owns the audio and video element wrappers and the single active
// reference.
type Driver struct {
	bus     *event.Bus
	session *SessionBridge
	logger  *slog.Logger

	mu     sync.Mutex
	audio  *elementWrapper
	video  *elementWrapper
	active *elementWrapper
	events Events
	volume int // 0-100; logically global, re-applied on activation
	muted  bool
	item   *domain.MediaItem
	status domain.PlaybackStatus
	url    string
	method domain.PlayMethod
}

// NewDriverParams contains the parameters for building a new Driver.
type NewDriverParams struct {
	AudioElement Element
	VideoElement Element
	Bus          *event.Bus
	Session      MediaSession // optional platform media-session surface
	Logger       *slog.Logger
}

// NewDriver creates a new Driver. The audio element starts active.
func NewDriver(params NewDriverParams) *Driver {
	d := &Driver{
		bus:    params.Bus,
		logger: params.Logger,
		volume: defaultVolume,
	}

	d.audio = newElementWrapper(d, domain.MediaTypeAudio, params.AudioElement)
	d.video = newElementWrapper(d, domain.MediaTypeVideo, params.VideoElement)
	d.active = d.audio

	d.session = newSessionBridge(params.Session, params.Logger)
	d.session.registerHandlers(d)

	return d
}

// SetEvents replaces the callback set.
func (d *Driver) SetEvents(events Events) {
	d.mu.Lock()
	d.events = events
	d.mu.Unlock()
}

// State returns a snapshot of the player state.
func (d *Driver) State() domain.PlayerState {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := domain.PlayerState{
		Status:     d.status,
		PositionMS: secondsToMS(d.active.el.CurrentTime()),
		DurationMS: secondsToMS(d.active.el.Duration()),
		Volume:     d.volume,
		Muted:      d.muted,
		StreamURL:  d.url,
		PlayMethod: d.method,
	}
	if d.item != nil {
		item := *d.item
		state.Item = &item
	}

	return state
}

// LoadAndPlay attaches a stream URL to the element matching the item's
// media kind, stopping the previously active element first if the kind
// differs.
func (d *Driver) LoadAndPlay(params LoadParams) error {
	d.mu.Lock()

	target := d.audio
	if params.Item.MediaType == domain.MediaTypeVideo {
		target = d.video
	}

	if d.active != target {
		d.active.stop()
		d.active = target
	}

	target.el.SetSource(params.URL)
	target.el.SetAutoplay(params.Autoplay)
	target.el.Load()

	// Volume and mute are global: re-apply the last known settings to the
	// newly active element.
	target.el.SetVolume(volumeToElement(d.volume))
	target.el.SetMuted(d.muted)

	item := params.Item
	d.item = &item
	d.url = params.URL
	d.method = params.PlayMethod
	d.status = domain.PlaybackStatusBuffering

	el := target.el
	d.mu.Unlock()

	d.session.setMetadata(params.Item)

	if params.Autoplay {
		if err := el.Play(); err != nil {
			return fmt.Errorf("play: %w", err)
		}
	}

	return nil
}

// Play resumes playback on the active element.
func (d *Driver) Play() error {
	d.mu.Lock()
	el := d.active.el
	d.mu.Unlock()

	if err := el.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

// Pause pauses the active element.
func (d *Driver) Pause() {
	d.mu.Lock()
	el := d.active.el
	d.mu.Unlock()

	el.Pause()
}

// Stop stops playback and clears the active element's source.
func (d *Driver) Stop() {
	d.mu.Lock()
	d.active.stop()
	d.item = nil
	d.url = ""
	d.status = domain.PlaybackStatusStopped
	d.mu.Unlock()

	d.session.setPlaybackState(domain.PlaybackStatusStopped)
	d.bus.Send(event.PlaybackStatusChangedEvent{Status: domain.PlaybackStatusStopped})
}

// Seek moves the playback position of the active element.
func (d *Driver) Seek(positionMS int64) {
	d.mu.Lock()
	el := d.active.el
	d.mu.Unlock()

	el.SetCurrentTime(float64(positionMS) / 1000)
}

// Volume returns the current volume on the driver's 0-100 scale.
func (d *Driver) Volume() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.volume
}

// SetVolume sets the global volume (0-100, clamped) and applies it to the
// active element.
func (d *Driver) SetVolume(volume int) {
	d.mu.Lock()
	d.volume = clampVolume(volume)
	d.active.el.SetVolume(volumeToElement(d.volume))
	d.mu.Unlock()
}

// Muted returns the current mute state.
func (d *Driver) Muted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.muted
}

// SetMuted sets the global mute state and applies it to the active
// element.
func (d *Driver) SetMuted(muted bool) {
	d.mu.Lock()
	d.muted = muted
	d.active.el.SetMuted(muted)
	d.mu.Unlock()
}

// ToggleMute flips the global mute state.
func (d *Driver) ToggleMute() {
	d.mu.Lock()
	d.muted = !d.muted
	d.active.el.SetMuted(d.muted)
	d.mu.Unlock()
}

// ActiveKind returns the media kind of the active element.
func (d *Driver) ActiveKind() domain.MediaType {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.active.kind
}

// elementWrapper pairs an element with its media kind. Its listener is
// registered once at construction and gated on being the active wrapper
// thereafter.
type elementWrapper struct {
	driver *Driver
	kind   domain.MediaType
	el     Element
}

func newElementWrapper(driver *Driver, kind domain.MediaType, el Element) *elementWrapper {
	w := &elementWrapper{driver: driver, kind: kind, el: el}
	el.AddEventListener(w.handleEvent)
	return w
}

// stop clears the element's source and resets its decode state. The caller
// must hold the driver mutex.
func (w *elementWrapper) stop() {
	w.el.Pause()
	w.el.SetSource("")
	w.el.Load()
}

func (w *elementWrapper) handleEvent(evt ElementEvent) {
	d := w.driver

	d.mu.Lock()
	if d.active != w {
		// A backgrounded element still finishing an earlier event must not
		// corrupt shared state.
		d.mu.Unlock()
		return
	}

	events := d.events
	item := d.item

	var (
		statusChanged bool
		status        domain.PlaybackStatus
		positionMS    = secondsToMS(w.el.CurrentTime())
		durationMS    = secondsToMS(w.el.Duration())
		volume        = d.volume
		muted         = d.muted
	)

	switch evt {
	case ElementEventPlaying:
		d.status = domain.PlaybackStatusPlaying
		statusChanged, status = true, d.status
	case ElementEventPause:
		// Ended takes precedence over a simultaneous pause signal.
		if w.el.Ended() {
			d.mu.Unlock()
			return
		}
		d.status = domain.PlaybackStatusPaused
		statusChanged, status = true, d.status
	case ElementEventEnded:
		d.status = domain.PlaybackStatusStopped
		statusChanged, status = true, d.status
	case ElementEventWaiting:
		d.status = domain.PlaybackStatusBuffering
		statusChanged, status = true, d.status
	case ElementEventVolumeChange:
		volume = clampVolume(int(math.Round(w.el.Volume() * 100)))
		muted = w.el.Muted()
		d.volume = volume
		d.muted = muted
	}
	d.mu.Unlock()

	switch evt {
	case ElementEventTimeUpdate:
		if events.OnTimeUpdate != nil {
			events.OnTimeUpdate(positionMS, durationMS)
		}
		d.bus.Send(event.PlaybackProgressEvent{PositionMS: positionMS, DurationMS: durationMS})
		d.session.setPositionState(w.el.CurrentTime(), w.el.Duration(), w.el.PlaybackRate())
	case ElementEventDurationChange:
		if events.OnDurationChange != nil {
			events.OnDurationChange(durationMS)
		}
	case ElementEventPlaying:
		if events.OnPlaying != nil {
			events.OnPlaying()
		}
	case ElementEventPause:
		if events.OnPause != nil {
			events.OnPause()
		}
	case ElementEventEnded:
		if events.OnEnded != nil {
			events.OnEnded()
		}
	case ElementEventError:
		err := fmt.Errorf("media element error (%s)", w.kind)
		if events.OnError != nil {
			events.OnError(err)
		}
		d.bus.Send(event.PlaybackStatusChangedEvent{Status: domain.PlaybackStatusStopped, Item: item, Err: err})
		return
	case ElementEventVolumeChange:
		if events.OnVolumeChange != nil {
			events.OnVolumeChange(volume, muted)
		}
		d.bus.Send(event.VolumeChangedEvent{Volume: volume, Muted: muted})
	case ElementEventProgress:
		if events.OnProgress != nil {
			events.OnProgress()
		}
	case ElementEventWaiting:
		if events.OnWaiting != nil {
			events.OnWaiting()
		}
	}

	if statusChanged {
		d.bus.Send(event.PlaybackStatusChangedEvent{Status: status, Item: item})
		d.session.setPlaybackState(status)
	}
}

// clampVolume clamps to the driver's 0-100 integer scale.
func clampVolume(volume int) int {
	return min(max(volume, 0), 100)
}

// volumeToElement converts driver volume to the element's 0-1 float scale.
func volumeToElement(volume int) float64 {
	return math.Min(math.Max(float64(volume)/100, 0), 1)
}

func secondsToMS(seconds float64) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return int64(seconds * 1000)
}
