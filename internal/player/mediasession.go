package player

import (
	"log/slog"

	"github.com/playhead/playhead/internal/domain"
)

// MediaSession is the optional platform media-session surface. It may be
// partially implemented, so every call into it is defensively wrapped.
type MediaSession interface {
	SetActionHandler(name string, handler func())
	SetMetadata(title, artist, album string)
	SetPlaybackState(state string)
	SetPositionState(duration, playbackRate, position float64)
}

// SessionBridge mirrors the active element's metadata, state and position
// into the platform media-session surface when one is present. Platform
// failures are logged, never propagated.
type SessionBridge struct {
	session MediaSession
	logger  *slog.Logger
}

func newSessionBridge(session MediaSession, logger *slog.Logger) *SessionBridge {
	return &SessionBridge{session: session, logger: logger}
}

func (b *SessionBridge) registerHandlers(d *Driver) {
	if b.session == nil {
		return
	}

	b.safely("set action handlers", func() {
		b.session.SetActionHandler("play", func() { _ = d.Play() })
		b.session.SetActionHandler("pause", d.Pause)
		b.session.SetActionHandler("stop", d.Stop)
	})
}

func (b *SessionBridge) setMetadata(item domain.MediaItem) {
	if b.session == nil {
		return
	}

	b.safely("set metadata", func() {
		b.session.SetMetadata(item.Name, "", "")
	})
}

func (b *SessionBridge) setPlaybackState(status domain.PlaybackStatus) {
	if b.session == nil {
		return
	}

	state := "none"
	switch status {
	case domain.PlaybackStatusPlaying, domain.PlaybackStatusBuffering:
		state = "playing"
	case domain.PlaybackStatusPaused:
		state = "paused"
	}

	b.safely("set playback state", func() {
		b.session.SetPlaybackState(state)
	})
}

// setPositionState pushes the playback position. Transient out-of-range
// reads during seeks are skipped rather than pushed.
func (b *SessionBridge) setPositionState(position, duration, playbackRate float64) {
	if b.session == nil {
		return
	}

	if position < 0 || duration <= 0 || position > duration {
		return
	}

	b.safely("set position state", func() {
		b.session.SetPositionState(duration, playbackRate, position)
	})
}

// safely invokes fn, recovering and logging any panic from a partially
// implemented platform surface.
func (b *SessionBridge) safely(op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("Media session call failed", "op", op, "reason", r)
		}
	}()

	fn()
}
