package app

import (
	"log/slog"

	"github.com/playhead/playhead/internal/control"
	"github.com/playhead/playhead/internal/event"
	"github.com/playhead/playhead/internal/player"
)

// Dispatcher routes playback commands through arbitration into the player
// driver. A false result means arbitration refused the command or the
// driver could not execute it.
type Dispatcher struct {
	arbitrator *control.Arbitrator
	driver     *player.Driver
	logger     *slog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(arbitrator *control.Arbitrator, driver *player.Driver, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{arbitrator: arbitrator, driver: driver, logger: logger}
}

// Dispatch executes a single command.
func (d *Dispatcher) Dispatch(cmd event.Command) bool {
	switch c := cmd.(type) {
	case event.CommandPlay:
		if !d.arbitrator.Dispatch(control.ActionPlay) {
			return false
		}
		if err := d.driver.Play(); err != nil {
			d.logger.Error("Play failed", "err", err)
			return false
		}
		return true
	case event.CommandPause:
		if !d.arbitrator.Dispatch(control.ActionPause) {
			return false
		}
		d.driver.Pause()
		return true
	case event.CommandStop:
		if !d.arbitrator.Dispatch(control.ActionStop) {
			return false
		}
		d.driver.Stop()
		return true
	case event.CommandSeek:
		if !d.arbitrator.Dispatch(control.ActionSeek) {
			return false
		}
		d.driver.Seek(c.PositionMS)
		return true
	case event.CommandSetVolume:
		if !d.arbitrator.Dispatch(control.ActionSetVolume) {
			return false
		}
		d.driver.SetVolume(c.Volume)
		return true
	case event.CommandToggleMute:
		if !d.arbitrator.Dispatch(control.ActionToggleMute) {
			return false
		}
		d.driver.ToggleMute()
		return true
	case event.CommandNextTrack, event.CommandPreviousTrack:
		// No queue is attached to the player yet.
		d.logger.Debug("Ignoring queue navigation command", "cmd", cmd.Name())
		return false
	case event.CommandInitiateTransfer:
		d.arbitrator.InitiateTransfer(c.FromSource, c.ToSource)
		return true
	case event.CommandConfirmTransfer:
		d.arbitrator.ConfirmTransfer()
		return true
	case event.CommandCancelTransfer:
		d.arbitrator.CancelTransfer()
		return true
	default:
		d.logger.Warn("Unhandled command", "cmd", cmd.Name())
		return false
	}
}
