package domain

import (
	"time"
)

// AppName is the name of the application.
const AppName = "playhead"

// ConnectionState is the state of the session with a media server. Exactly
// one state is current at any time; it is a projection of the most recent
// connection attempt's outcome.
type ConnectionState int

const (
	ConnectionStateUnavailable ConnectionState = iota
	ConnectionStateServerSelection
	ConnectionStateServerSignIn
	ConnectionStateSignedIn
	ConnectionStateServerUpdateNeeded
)

// String implements the fmt.Stringer interface.
func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateSignedIn:
		return "signed_in"
	case ConnectionStateServerSignIn:
		return "server_sign_in"
	case ConnectionStateServerSelection:
		return "server_selection"
	case ConnectionStateServerUpdateNeeded:
		return "server_update_needed"
	default:
		return "unavailable"
	}
}

// ConnectionMode identifies which address candidate won a connection race.
type ConnectionMode int

const (
	ConnectionModeLocal ConnectionMode = iota
	ConnectionModeManual
	ConnectionModeRemote
)

// String implements the fmt.Stringer interface.
func (m ConnectionMode) String() string {
	switch m {
	case ConnectionModeManual:
		return "manual"
	case ConnectionModeRemote:
		return "remote"
	default:
		return "local"
	}
}

// ControlSource is the logical owner currently authorized to issue playback
// commands.
type ControlSource int

const (
	ControlSourceLocal ControlSource = iota
	ControlSourceRemote
	ControlSourceServer
)

// String implements the fmt.Stringer interface.
func (s ControlSource) String() string {
	switch s {
	case ControlSourceRemote:
		return "remote"
	case ControlSourceServer:
		return "server"
	default:
		return "local"
	}
}

// MediaType is the coarse media classification used for playback routing and
// transcode policy.
type MediaType string

const (
	MediaTypeAudio   MediaType = "Audio"
	MediaTypeVideo   MediaType = "Video"
	MediaTypePhoto   MediaType = "Photo"
	MediaTypeBook    MediaType = "Book"
	MediaTypeUnknown MediaType = ""
)

// PlayMethod is the delivery method for a stream.
type PlayMethod string

const (
	PlayMethodDirectPlay PlayMethod = "DirectPlay"
	PlayMethodTranscode  PlayMethod = "Transcode"
)

// MediaItem is the minimal description of a playable item.
type MediaItem struct {
	ID        string
	Name      string
	MediaType MediaType
	RuntimeMS int64
}

// PlaybackStatus reflects the high-level status of the active player.
type PlaybackStatus int

const (
	PlaybackStatusStopped PlaybackStatus = iota
	PlaybackStatusPlaying
	PlaybackStatusPaused
	PlaybackStatusBuffering
)

// String implements the fmt.Stringer interface.
func (s PlaybackStatus) String() string {
	switch s {
	case PlaybackStatusPlaying:
		return "playing"
	case PlaybackStatusPaused:
		return "paused"
	case PlaybackStatusBuffering:
		return "buffering"
	default:
		return "stopped"
	}
}

// PlayerState is the externally visible state of the player driver.
type PlayerState struct {
	Item       *MediaItem
	Status     PlaybackStatus
	PositionMS int64
	DurationMS int64
	Volume     int // 0-100
	Muted      bool
	StreamURL  string
	PlayMethod PlayMethod
}

// Clone performs a deep copy of PlayerState.
func (s *PlayerState) Clone() PlayerState {
	out := *s
	if s.Item != nil {
		item := *s.Item
		out.Item = &item
	}
	return out
}

// AppState holds application state.
type AppState struct {
	Connection   ConnectionState
	ServerName   string
	ServerID     string
	ActiveSource ControlSource
	Player       PlayerState
	BuildInfo    BuildInfo
}

// Clone performs a deep copy of AppState.
func (s *AppState) Clone() AppState {
	out := *s
	out.Player = s.Player.Clone()
	return out
}

// BuildInfo holds information about the build.
type BuildInfo struct {
	GoVersion string
	Version   string
	Commit    string
	Date      string
}

// NetAddr holds a network address.
type NetAddr struct {
	IP   string
	Port int
}

// IsZero returns true if the NetAddr is zero value.
func (n NetAddr) IsZero() bool {
	return n.IP == "" && n.Port == 0
}

// Token holds a hashed pairing token.
type Token struct {
	Hashed    string
	ExpiresAt time.Time
}

// ServerInfo is the public identity of a media server, as reported by its
// unauthenticated info endpoint.
type ServerInfo struct {
	ID           string
	Name         string
	Version      string
	LocalAddress string
}
