// Package app wires the application together and runs its event loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/playhead/playhead/internal/config"
	"github.com/playhead/playhead/internal/connection"
	"github.com/playhead/playhead/internal/control"
	"github.com/playhead/playhead/internal/domain"
	"github.com/playhead/playhead/internal/event"
	"github.com/playhead/playhead/internal/httpclient"
	"github.com/playhead/playhead/internal/optional"
	"github.com/playhead/playhead/internal/player"
	"github.com/playhead/playhead/internal/remote"
	"github.com/playhead/playhead/internal/store"
)

// RunParams holds the parameters for running the application.
type RunParams struct {
	ConfigService *config.Service
	AudioElement  player.Element
	VideoElement  player.Element
	// MediaSession may be nil.
	MediaSession player.MediaSession
	// Discoverer may be nil, in which case UDP discovery is used unless
	// disabled in the config.
	Discoverer connection.Discoverer
	// RemoteListener overrides the configured remote listen address. It is
	// intended for tests.
	RemoteListener net.Listener
	BuildInfo      domain.BuildInfo
	Logger         *slog.Logger
}

// Run starts the application, and blocks until it exits.
func Run(ctx context.Context, params RunParams) error {
	cfg, err := params.ConfigService.ReadOrCreateConfig()
	if err != nil {
		return fmt.Errorf("read or create config: %w", err)
	}

	logger := params.Logger
	stateDir := params.ConfigService.AppStateDir()

	credStore, err := store.New(filepath.Join(stateDir, "credentials.json"))
	if err != nil {
		return fmt.Errorf("create credential store: %w", err)
	}
	tokenStore := store.NewTokenStore(stateDir)

	bus := event.NewBus(logger.With("component", "bus"))

	httpClient := httpclient.New(httpclient.NewParams{
		UserAgent: domain.AppName + "/" + params.BuildInfo.Version,
		Logger:    logger.With("component", "http"),
	})

	discoverer := params.Discoverer
	if discoverer == nil && !cfg.Discovery.Disabled {
		discoverer = connection.NewUDPDiscoverer(logger.With("component", "discovery"))
	}

	manager := connection.NewManager(connection.NewManagerParams{
		CredentialStore: credStore,
		HTTPClient:      httpClient,
		Discoverer:      discoverer,
		Logger:          logger.With("component", "connection"),
	})

	facade := connection.NewFacade(connection.NewFacadeParams{
		Manager: manager,
		Bus:     bus,
		Logger:  logger.With("component", "connection_facade"),
	})

	arbitrator := control.NewArbitrator(control.NewArbitratorParams{
		Bus:    bus,
		Logger: logger.With("component", "control"),
	})

	driver := player.NewDriver(player.NewDriverParams{
		AudioElement: params.AudioElement,
		VideoElement: params.VideoElement,
		Bus:          bus,
		Session:      params.MediaSession,
		Logger:       logger.With("component", "player"),
	})

	dispatcher := NewDispatcher(arbitrator, driver, logger.With("component", "dispatch"))

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Remote.Enabled {
		rawToken, created, err := remote.EnsurePairingToken(tokenStore)
		if err != nil {
			return fmt.Errorf("ensure pairing token: %w", err)
		}
		if created {
			// The raw token cannot be recovered after this point.
			logger.Info("Generated remote pairing token", "token", string(rawToken))
		}

		remoteServer := remote.NewServer(remote.NewServerParams{
			ListenAddr: cfg.Remote.ListenAddr,
			Listener:   params.RemoteListener,
			Bus:        bus,
			TokenStore: tokenStore,
			Dispatcher: dispatcher,
			Observer:   arbitrator.SetRemoteConnected,
			Logger:     logger,
		})

		g.Go(func() error { return remoteServer.Run(ctx) })
	}

	g.Go(func() error { return runEventLoop(ctx, bus, driver, logger) })

	var opts connection.ConnectOptions
	if !cfg.AutoLogin() {
		opts.EnableAutoLogin = optional.New(false)
	}

	if _, err := facade.Connect(ctx, opts); err != nil {
		logger.Error("Initial connection failed", "err", err)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// runEventLoop folds bus events into the application state until the
// context is cancelled.
func runEventLoop(ctx context.Context, bus *event.Bus, driver *player.Driver, logger *slog.Logger) error {
	eventsC := bus.Register()
	defer bus.Deregister(eventsC)

	state := new(domain.AppState)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-eventsC:
			if fatal, msg := applyEvent(evt, state, driver); fatal {
				return errors.New(msg)
			}
			logger.Debug("Event received", "name", evt.EventName())
		}
	}
}

// applyEvent updates the application state from a bus event. It returns
// fatal=true when the event requires the application to exit.
func applyEvent(evt event.Event, state *domain.AppState, driver *player.Driver) (fatal bool, msg string) {
	switch evt := evt.(type) {
	case event.ConnectionStateChangedEvent:
		state.Connection = evt.State
		state.ServerID = evt.ServerID
		state.ServerName = evt.ServerName
	case event.SignedOutEvent:
		state.Connection = domain.ConnectionStateServerSelection
		state.ServerID = ""
		state.ServerName = ""
	case event.ControlSourceChangedEvent:
		state.ActiveSource = evt.Source
	case event.PlaybackStatusChangedEvent, event.PlaybackProgressEvent, event.VolumeChangedEvent:
		state.Player = driver.State()
	case event.FatalErrorOccurredEvent:
		return true, evt.Message
	}

	return false, ""
}
