package event

import "github.com/playhead/playhead/internal/domain"

// Name uniquely identifies an event type.
type Name string

const (
	EventNameConnectionStateChanged Name = "connection_state_changed"
	EventNameConnectionAttempted    Name = "connection_attempted"
	EventNameSignedOut              Name = "signed_out"
	EventNameControlSourceChanged   Name = "control_source_changed"
	EventNameTransferPending        Name = "transfer_pending"
	EventNameTransferResolved       Name = "transfer_resolved"
	EventNamePlaybackProgress       Name = "playback_progress"
	EventNamePlaybackStatusChanged  Name = "playback_status_changed"
	EventNameVolumeChanged          Name = "volume_changed"
	EventNameFatalErrorOccurred     Name = "fatal_error_occurred"
)

// Event represents something which happened in the application.
type Event interface {
	EventName() Name
}

// ConnectionStateChangedEvent is emitted when a connection attempt settles
// and the projected connection state changes.
type ConnectionStateChangedEvent struct {
	State      domain.ConnectionState
	ServerID   string
	ServerName string
}

func (e ConnectionStateChangedEvent) EventName() Name {
	return EventNameConnectionStateChanged
}

// ConnectionAttemptedEvent is emitted for every connection attempt,
// regardless of outcome.
type ConnectionAttemptedEvent struct {
	ServerID   string
	ServerName string
	DurationMS int64
	Success    bool
	Err        error
}

func (e ConnectionAttemptedEvent) EventName() Name {
	return EventNameConnectionAttempted
}

// SignedOutEvent is emitted when the user signs out. It fires even if the
// server-side logout calls failed.
type SignedOutEvent struct{}

func (e SignedOutEvent) EventName() Name {
	return EventNameSignedOut
}

// ControlSourceChangedEvent is emitted when the active control source
// changes.
type ControlSourceChangedEvent struct {
	Source domain.ControlSource
	Name   string
}

func (e ControlSourceChangedEvent) EventName() Name {
	return EventNameControlSourceChanged
}

// TransferPendingEvent is emitted when a control transfer awaits
// confirmation, and again on each countdown tick.
type TransferPendingEvent struct {
	FromSource       domain.ControlSource
	ToSource         domain.ControlSource
	SecondsRemaining int
}

func (e TransferPendingEvent) EventName() Name {
	return EventNameTransferPending
}

// TransferResolvedEvent is emitted when a pending transfer is confirmed,
// cancelled or timed out.
type TransferResolvedEvent struct {
	Accepted     bool
	ActiveSource domain.ControlSource
}

func (e TransferResolvedEvent) EventName() Name {
	return EventNameTransferResolved
}

// PlaybackProgressEvent is emitted periodically while media is playing.
type PlaybackProgressEvent struct {
	PositionMS int64
	DurationMS int64
}

func (e PlaybackProgressEvent) EventName() Name {
	return EventNamePlaybackProgress
}

// PlaybackStatusChangedEvent is emitted when the player starts, pauses,
// buffers, ends or fails.
type PlaybackStatusChangedEvent struct {
	Status domain.PlaybackStatus
	Item   *domain.MediaItem
	Err    error
}

func (e PlaybackStatusChangedEvent) EventName() Name {
	return EventNamePlaybackStatusChanged
}

// VolumeChangedEvent is emitted when the global volume or mute state
// changes.
type VolumeChangedEvent struct {
	Volume int
	Muted  bool
}

func (e VolumeChangedEvent) EventName() Name {
	return EventNameVolumeChanged
}

// FatalErrorOccurredEvent is emitted when a fatal application error occurs.
type FatalErrorOccurredEvent struct {
	Message string
}

func (e FatalErrorOccurredEvent) EventName() Name {
	return EventNameFatalErrorOccurred
}
