package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/playhead/playhead/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestService(t *testing.T) (*config.Service, string) {
	t.Helper()

	configDir := t.TempDir()
	service, err := config.NewService(func() (string, error) { return configDir, nil })
	require.NoError(t, err)

	return service, configDir
}

func TestConfigServiceCreateConfig(t *testing.T) {
	service, configDir := newTestService(t)

	cfg, err := service.ReadOrCreateConfig()
	require.NoError(t, err)
	require.False(t, cfg.LogFile.Enabled, "expected logging to be disabled")
	require.Empty(t, cfg.LogFile.Path, "expected no log file")
	assert.True(t, cfg.AutoLogin(), "expected auto-login by default")

	p := filepath.Join(configDir, "playhead", "config.yaml")
	cfgBytes, err := os.ReadFile(p)
	require.NoError(t, err, "config file was not created")

	var readCfg config.Config
	require.NoError(t, yaml.Unmarshal(cfgBytes, &readCfg))
	assert.False(t, readCfg.Remote.Enabled)
}

func TestConfigServiceReadConfig(t *testing.T) {
	testCases := []struct {
		name       string
		configYAML string
		want       func(*testing.T, config.Config)
		wantErr    string
	}{
		{
			name: "complete",
			configYAML: `
logfile:
  enabled: true
  path: test.log
disableAutoLogin: true
remote:
  enabled: true
  listenAddr: 127.0.0.1:9001
discovery:
  disabled: true
playback:
  maxStreamingBitrate: 20000000
`,
			want: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, "test.log", cfg.LogFile.Path)
				assert.False(t, cfg.AutoLogin())
				assert.Equal(t, "127.0.0.1:9001", cfg.Remote.ListenAddr)
				assert.True(t, cfg.Discovery.Disabled)
				assert.Equal(t, int64(20_000_000), cfg.Playback.MaxStreamingBitrate)
			},
		},
		{
			name:       "logging enabled, no logfile",
			configYAML: "logfile:\n  enabled: true\n",
			want: func(t *testing.T, cfg config.Config) {
				assert.True(t, strings.HasSuffix(cfg.LogFile.Path, "/playhead/playhead.log"), "expected %q to end with /playhead/playhead.log", cfg.LogFile.Path)
			},
		},
		{
			name:       "remote enabled, no listen address",
			configYAML: "remote:\n  enabled: true\n",
			want: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, "127.0.0.1:9955", cfg.Remote.ListenAddr)
			},
		},
		{
			name:       "remote listen address not valid",
			configYAML: "remote:\n  enabled: true\n  listenAddr: not an address\n",
			wantErr:    "invalid remote listen address: address not an address: missing port in address",
		},
		{
			name:       "negative bitrate",
			configYAML: "playback:\n  maxStreamingBitrate: -1\n",
			wantErr:    "maxStreamingBitrate cannot be negative",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			service, configDir := newTestService(t)

			configPath := filepath.Join(configDir, "playhead", "config.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(tc.configYAML), 0644))

			cfg, err := service.ReadOrCreateConfig()

			if tc.wantErr == "" {
				require.NoError(t, err)
				tc.want(t, cfg)
			} else {
				require.EqualError(t, err, tc.wantErr)
			}
		})
	}
}

func TestConfigServiceSetConfig(t *testing.T) {
	service, _ := newTestService(t)

	cfg := config.Config{LogFile: config.LogFile{Enabled: true, Path: "test.log"}}
	require.NoError(t, service.SetConfig(cfg))

	cfg, err := service.ReadOrCreateConfig()
	require.NoError(t, err)

	assert.Equal(t, "test.log", cfg.LogFile.Path)
	assert.True(t, cfg.LogFile.Enabled)
}
