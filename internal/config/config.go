package config

// LogFile holds the configuration for the log file.
type LogFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// Remote holds the configuration for the remote-control listener.
type Remote struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listenAddr,omitempty"`
}

// Discovery holds the configuration for LAN server discovery.
type Discovery struct {
	Disabled bool `yaml:"disabled"`
}

// Playback holds the configuration for playback.
type Playback struct {
	// MaxStreamingBitrate is the device-level streaming limit in bits per
	// second. Zero means no device limit.
	MaxStreamingBitrate int64 `yaml:"maxStreamingBitrate,omitempty"`
}

// Config holds the configuration for the application.
type Config struct {
	LogFile LogFile `yaml:"logfile"`
	// DisableAutoLogin stops access tokens from being persisted across
	// sessions.
	DisableAutoLogin bool      `yaml:"disableAutoLogin,omitempty"`
	Remote           Remote    `yaml:"remote"`
	Discovery        Discovery `yaml:"discovery"`
	Playback         Playback  `yaml:"playback"`
}

// AutoLogin reports whether access tokens may be persisted and reused.
func (c Config) AutoLogin() bool {
	return !c.DisableAutoLogin
}
