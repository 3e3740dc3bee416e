package event

import "github.com/playhead/playhead/internal/domain"

// Command is a playback command issued by a control source.
type Command interface {
	Name() string
}

// CommandPlay resumes or starts playback.
type CommandPlay struct{}

// Name implements the Command interface.
func (c CommandPlay) Name() string { return "play" }

// CommandPause pauses playback.
type CommandPause struct{}

// Name implements the Command interface.
func (c CommandPause) Name() string { return "pause" }

// CommandStop stops playback.
type CommandStop struct{}

// Name implements the Command interface.
func (c CommandStop) Name() string { return "stop" }

// CommandSeek seeks to an absolute position.
type CommandSeek struct {
	PositionMS int64
}

// Name implements the Command interface.
func (c CommandSeek) Name() string { return "seek" }

// CommandSetVolume sets the global volume (0-100).
type CommandSetVolume struct {
	Volume int
}

// Name implements the Command interface.
func (c CommandSetVolume) Name() string { return "set_volume" }

// CommandToggleMute toggles the global mute state.
type CommandToggleMute struct{}

// Name implements the Command interface.
func (c CommandToggleMute) Name() string { return "toggle_mute" }

// CommandNextTrack skips to the next item in the queue.
type CommandNextTrack struct{}

// Name implements the Command interface.
func (c CommandNextTrack) Name() string { return "next_track" }

// CommandPreviousTrack skips to the previous item in the queue.
type CommandPreviousTrack struct{}

// Name implements the Command interface.
func (c CommandPreviousTrack) Name() string { return "previous_track" }

// CommandInitiateTransfer requests a control-source handoff.
type CommandInitiateTransfer struct {
	FromSource domain.ControlSource
	ToSource   domain.ControlSource
}

// Name implements the Command interface.
func (c CommandInitiateTransfer) Name() string { return "initiate_transfer" }

// CommandConfirmTransfer confirms a pending control-source handoff.
type CommandConfirmTransfer struct{}

// Name implements the Command interface.
func (c CommandConfirmTransfer) Name() string { return "confirm_transfer" }

// CommandCancelTransfer declines a pending control-source handoff.
type CommandCancelTransfer struct{}

// Name implements the Command interface.
func (c CommandCancelTransfer) Name() string { return "cancel_transfer" }
