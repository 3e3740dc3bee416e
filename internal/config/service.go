package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/playhead/playhead/internal/domain"
	"github.com/playhead/playhead/internal/xdg"
)

const defaultRemoteListenAddr = "127.0.0.1:9955"

// Service provides configuration services.
type Service struct {
	appConfigDir string
	appStateDir  string
}

// ConfigDirFunc is a function that returns the user configuration directory.
type ConfigDirFunc func() (string, error)

// NewDefaultService creates a new service with the default configuration
// file location.
func NewDefaultService() (*Service, error) {
	return NewService(os.UserConfigDir)
}

// NewService creates a new service with the provided ConfigDirFunc.
//
// The app data directories (config and state) are created if they do not
// exist.
func NewService(configDirFunc ConfigDirFunc) (*Service, error) {
	configDir, err := configDirFunc()
	if err != nil {
		return nil, fmt.Errorf("user config dir: %w", err)
	}

	appConfigDir := filepath.Join(configDir, domain.AppName)
	if err := os.MkdirAll(appConfigDir, 0744); err != nil {
		return nil, fmt.Errorf("app config dir: %w", err)
	}

	appStateDir, err := xdg.CreateAppStateDir()
	if err != nil {
		return nil, fmt.Errorf("app state dir: %w", err)
	}

	return &Service{
		appConfigDir: appConfigDir,
		appStateDir:  appStateDir,
	}, nil
}

// ReadOrCreateConfig reads the configuration file or creates it with
// default values.
func (s *Service) ReadOrCreateConfig() (cfg Config, _ error) {
	if _, err := os.Stat(s.Path()); os.IsNotExist(err) {
		return s.createConfig()
	} else if err != nil {
		return cfg, fmt.Errorf("stat: %w", err)
	}

	return s.readConfig()
}

// SetConfig validates and writes the configuration file.
func (s *Service) SetConfig(cfg Config) error {
	s.setDefaults(&cfg)

	if err := validate(cfg); err != nil {
		return err
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if err := os.WriteFile(s.Path(), yamlBytes, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

func (s *Service) readConfig() (cfg Config, _ error) {
	contents, err := os.ReadFile(s.Path())
	if err != nil {
		return cfg, fmt.Errorf("read file: %w", err)
	}

	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal: %w", err)
	}

	s.setDefaults(&cfg)

	if err = validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (s *Service) createConfig() (cfg Config, _ error) {
	s.setDefaults(&cfg)

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("marshal: %w", err)
	}

	if err = os.WriteFile(s.Path(), yamlBytes, 0644); err != nil {
		return cfg, fmt.Errorf("write file: %w", err)
	}

	return cfg, nil
}

// Path returns the path of the configuration file.
func (s *Service) Path() string {
	return filepath.Join(s.appConfigDir, "config.yaml")
}

// AppStateDir returns the directory holding credentials, tokens and logs.
func (s *Service) AppStateDir() string {
	return s.appStateDir
}

func (s *Service) setDefaults(cfg *Config) {
	if cfg.LogFile.Enabled && cfg.LogFile.Path == "" {
		cfg.LogFile.Path = filepath.Join(s.appStateDir, domain.AppName+".log")
	}

	if cfg.Remote.Enabled {
		if cfg.Remote.ListenAddr == "" {
			cfg.Remote.ListenAddr = defaultRemoteListenAddr
		}
	}
}

func validate(cfg Config) error {
	var err error

	if cfg.Remote.Enabled {
		if _, _, addrErr := net.SplitHostPort(cfg.Remote.ListenAddr); addrErr != nil {
			err = errors.Join(err, fmt.Errorf("invalid remote listen address: %w", addrErr))
		}
	}

	if cfg.Playback.MaxStreamingBitrate < 0 {
		err = errors.Join(err, errors.New("maxStreamingBitrate cannot be negative"))
	}

	return err
}
