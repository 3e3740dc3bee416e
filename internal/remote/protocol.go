package remote

import (
	"fmt"

	"github.com/playhead/playhead/internal/domain"
	"github.com/playhead/playhead/internal/event"
)

// commandMessage is the inbound wire format. Type selects the command;
// the remaining fields are read only where the command needs them.
type commandMessage struct {
	Type       string `json:"type"`
	PositionMS int64  `json:"positionMs,omitempty"`
	Volume     int    `json:"volume,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
}

// eventMessage is the outbound wire format.
type eventMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func parseCommand(msg commandMessage) (event.Command, error) {
	switch msg.Type {
	case "play":
		return event.CommandPlay{}, nil
	case "pause":
		return event.CommandPause{}, nil
	case "stop":
		return event.CommandStop{}, nil
	case "seek":
		return event.CommandSeek{PositionMS: msg.PositionMS}, nil
	case "set_volume":
		return event.CommandSetVolume{Volume: msg.Volume}, nil
	case "toggle_mute":
		return event.CommandToggleMute{}, nil
	case "next_track":
		return event.CommandNextTrack{}, nil
	case "previous_track":
		return event.CommandPreviousTrack{}, nil
	case "initiate_transfer":
		from, err := parseControlSource(msg.From)
		if err != nil {
			return nil, err
		}
		to, err := parseControlSource(msg.To)
		if err != nil {
			return nil, err
		}
		return event.CommandInitiateTransfer{FromSource: from, ToSource: to}, nil
	case "confirm_transfer":
		return event.CommandConfirmTransfer{}, nil
	case "cancel_transfer":
		return event.CommandCancelTransfer{}, nil
	default:
		return nil, fmt.Errorf("unknown command type: %q", msg.Type)
	}
}

func parseControlSource(s string) (domain.ControlSource, error) {
	switch s {
	case "local":
		return domain.ControlSourceLocal, nil
	case "remote":
		return domain.ControlSourceRemote, nil
	case "server":
		return domain.ControlSourceServer, nil
	default:
		return domain.ControlSourceLocal, fmt.Errorf("unknown control source: %q", s)
	}
}

// buildEventMessage converts a bus event into its wire representation.
// Events with no remote-facing payload map to ok=false and are not sent.
func buildEventMessage(evt event.Event) (eventMessage, bool) {
	switch evt := evt.(type) {
	case event.ConnectionStateChangedEvent:
		return eventMessage{
			Type: string(evt.EventName()),
			Data: map[string]any{
				"state":      evt.State.String(),
				"serverId":   evt.ServerID,
				"serverName": evt.ServerName,
			},
		}, true
	case event.SignedOutEvent:
		return eventMessage{Type: string(evt.EventName())}, true
	case event.ControlSourceChangedEvent:
		return eventMessage{
			Type: string(evt.EventName()),
			Data: map[string]any{"source": evt.Source.String(), "name": evt.Name},
		}, true
	case event.TransferPendingEvent:
		return eventMessage{
			Type: string(evt.EventName()),
			Data: map[string]any{
				"from":             evt.FromSource.String(),
				"to":               evt.ToSource.String(),
				"secondsRemaining": evt.SecondsRemaining,
			},
		}, true
	case event.TransferResolvedEvent:
		return eventMessage{
			Type: string(evt.EventName()),
			Data: map[string]any{"accepted": evt.Accepted, "activeSource": evt.ActiveSource.String()},
		}, true
	case event.PlaybackProgressEvent:
		return eventMessage{
			Type: string(evt.EventName()),
			Data: map[string]any{"positionMs": evt.PositionMS, "durationMs": evt.DurationMS},
		}, true
	case event.PlaybackStatusChangedEvent:
		data := map[string]any{"status": evt.Status.String()}
		if evt.Item != nil {
			data["itemId"] = evt.Item.ID
			data["itemName"] = evt.Item.Name
		}
		if evt.Err != nil {
			data["error"] = evt.Err.Error()
		}
		return eventMessage{Type: string(evt.EventName()), Data: data}, true
	case event.VolumeChangedEvent:
		return eventMessage{
			Type: string(evt.EventName()),
			Data: map[string]any{"volume": evt.Volume, "muted": evt.Muted},
		}, true
	default:
		return eventMessage{}, false
	}
}
