package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/playhead/playhead/internal/app"
	"github.com/playhead/playhead/internal/config"
	"github.com/playhead/playhead/internal/connection"
	"github.com/playhead/playhead/internal/domain"
	"github.com/playhead/playhead/internal/httpclient"
	"github.com/playhead/playhead/internal/player"
	"github.com/playhead/playhead/internal/remote"
	"github.com/playhead/playhead/internal/store"
)

// set via ldflags
var (
	version string
	commit  string
	date    string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:    domain.AppName,
		Usage:   "Media client runtime",
		Version: buildInfo().Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Connect to a media server and run the playback runtime",
				Action: runApp,
			},
			{
				Name:  "servers",
				Usage: "Manage known media servers",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List known media servers",
						Action: listServers,
					},
					{
						Name:  "delete",
						Usage: "Forget a media server",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "id",
								Usage:    "server ID",
								Required: true,
							},
						},
						Action: deleteServer,
					},
				},
			},
			{
				Name:   "logout",
				Usage:  "Sign out of all media servers",
				Action: logout,
			},
			{
				Name:   "pair",
				Usage:  "Generate a new remote-control pairing token",
				Action: pair,
			},
		},
		DefaultCommand: "run",
	}

	return cmd.Run(ctx, args)
}

func runApp(ctx context.Context, cmd *cli.Command) error {
	configService, err := config.NewDefaultService()
	if err != nil {
		return fmt.Errorf("build config service: %w", err)
	}

	cfg, err := configService.ReadOrCreateConfig()
	if err != nil {
		return fmt.Errorf("read or create config: %w", err)
	}

	logger, closeLogger, err := buildLogger(cfg, cmd.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer closeLogger()

	return app.Run(ctx, app.RunParams{
		ConfigService: configService,
		AudioElement:  player.NewNullElement(),
		VideoElement:  player.NewNullElement(),
		BuildInfo:     buildInfo(),
		Logger:        logger,
	})
}

func listServers(ctx context.Context, _ *cli.Command) error {
	credStore, _, err := buildStores()
	if err != nil {
		return err
	}

	servers := credStore.Get().Servers
	if len(servers) == 0 {
		fmt.Println("No known servers.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tADDRESS\tLAST ACCESSED")
	for _, server := range servers {
		lastAccessed := ""
		if !server.DateLastAccessed.IsZero() {
			lastAccessed = server.DateLastAccessed.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", server.ID, server.Name, server.Address(server.LastConnectionMode), lastAccessed)
	}
	return w.Flush()
}

func deleteServer(ctx context.Context, cmd *cli.Command) error {
	credStore, _, err := buildStores()
	if err != nil {
		return err
	}

	if err := credStore.DeleteServer(cmd.String("id")); err != nil {
		return err
	}

	fmt.Println("Server deleted.")
	return nil
}

func logout(ctx context.Context, cmd *cli.Command) error {
	credStore, _, err := buildStores()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := connection.NewManager(connection.NewManagerParams{
		CredentialStore: credStore,
		HTTPClient:      httpclient.New(httpclient.NewParams{Logger: logger}),
		Logger:          logger,
	})

	if err := manager.Logout(ctx); err != nil {
		return err
	}

	fmt.Println("Signed out.")
	return nil
}

func pair(ctx context.Context, _ *cli.Command) error {
	_, tokenStore, err := buildStores()
	if err != nil {
		return err
	}

	rawToken, created, err := remote.EnsurePairingToken(tokenStore)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("a pairing token already exists; delete it from the state directory to regenerate")
	}

	fmt.Printf("Pairing token (shown once): %s\n", rawToken)
	return nil
}

func buildStores() (*store.CredentialStore, *store.TokenStore, error) {
	configService, err := config.NewDefaultService()
	if err != nil {
		return nil, nil, fmt.Errorf("build config service: %w", err)
	}

	stateDir := configService.AppStateDir()
	credStore, err := store.New(filepath.Join(stateDir, "credentials.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("create credential store: %w", err)
	}

	return credStore, store.NewTokenStore(stateDir), nil
}

func buildLogger(cfg config.Config, verbose bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if !cfg.LogFile.Enabled {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() {}, nil
	}

	logFile, err := os.OpenFile(cfg.LogFile.Path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	return slog.New(slog.NewTextHandler(logFile, opts)), func() { _ = logFile.Close() }, nil
}

func buildInfo() domain.BuildInfo {
	return domain.BuildInfo{
		GoVersion: runtime.Version(),
		Version:   version,
		Commit:    commit,
		Date:      date,
	}
}
