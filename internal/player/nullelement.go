package player

import "sync"

// NullElement is an in-memory Element for headless operation. It holds
// element state and reports the expected events, but performs no decoding.
// Embedders wrap a real platform media element instead.
type NullElement struct {
	mu          sync.Mutex
	src         string
	autoplay    bool
	currentTime float64
	duration    float64
	volume      float64
	muted       bool
	rate        float64
	listeners   []ElementListener
}

// NewNullElement creates a new NullElement.
func NewNullElement() *NullElement {
	return &NullElement{volume: 1, rate: 1}
}

func (e *NullElement) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

func (e *NullElement) SetSource(url string) {
	e.mu.Lock()
	e.src = url
	e.currentTime = 0
	e.mu.Unlock()
}

func (e *NullElement) SetAutoplay(autoplay bool) {
	e.mu.Lock()
	e.autoplay = autoplay
	e.mu.Unlock()
}

func (e *NullElement) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTime
}

func (e *NullElement) SetCurrentTime(seconds float64) {
	e.mu.Lock()
	e.currentTime = seconds
	e.mu.Unlock()
	e.fire(ElementEventTimeUpdate)
}

func (e *NullElement) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

func (e *NullElement) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *NullElement) SetVolume(volume float64) {
	e.mu.Lock()
	e.volume = volume
	e.mu.Unlock()
	e.fire(ElementEventVolumeChange)
}

func (e *NullElement) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *NullElement) SetMuted(muted bool) {
	e.mu.Lock()
	e.muted = muted
	e.mu.Unlock()
	e.fire(ElementEventVolumeChange)
}

func (e *NullElement) PlaybackRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

func (e *NullElement) Ended() bool {
	return false
}

func (e *NullElement) Load() {}

func (e *NullElement) Play() error {
	e.fire(ElementEventPlaying)
	return nil
}

func (e *NullElement) Pause() {
	e.fire(ElementEventPause)
}

func (e *NullElement) AddEventListener(listener ElementListener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, listener)
	e.mu.Unlock()
}

func (e *NullElement) fire(evt ElementEvent) {
	e.mu.Lock()
	listeners := append([]ElementListener(nil), e.listeners...)
	e.mu.Unlock()

	for _, listener := range listeners {
		listener(evt)
	}
}
