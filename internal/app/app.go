package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/akovalev/netchat-server/internal/config"
	"github.com/akovalev/netchat-server/internal/core"
	"github.com/akovalev/netchat-server/internal/store"
	"github.com/akovalev/netchat-server/internal/store/sqlite"
	"github.com/akovalev/netchat-server/internal/transfer"
	transporthttp "github.com/akovalev/netchat-server/internal/transport/http"
	"github.com/akovalev/netchat-server/internal/transport/tcp"
)

// App wires together the chat core, transfer pipeline, and transports.
// Registry, directory, and queue exist exactly once per process and
// are passed by reference into everything that needs them.
type App struct {
	cfg       config.Config
	registry  *core.Registry
	directory *core.Directory
	transfers *transfer.Queue
	server    *tcp.Server
	admin     *stdhttp.Server
	store     store.Store
	log       *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	var st store.Store
	var audit store.TransferLog
	if cfg.DatabasePath != "" {
		sqliteStore, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		st = sqliteStore
		audit = sqliteStore
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("transfer audit trail enabled")
	}

	registry := core.NewRegistry(cfg.MaxSessions)
	directory := core.NewDirectory(cfg.MaxRooms, cfg.RoomCapacity)
	transfers := transfer.NewQueue(transfer.Config{
		Workers:           cfg.Transfer.Workers,
		Backlog:           cfg.Transfer.Backlog,
		MaxFileSize:       cfg.Transfer.MaxFileSize,
		AllowedExtensions: cfg.Transfer.AllowedExtensions,
		ProcessDelay:      cfg.Transfer.ProcessDelay,
	}, registry, audit, logger)

	server := tcp.NewServer(cfg.Addr, registry, directory, transfers, cfg.ShutdownTimeout, logger)

	a := &App{
		cfg:       cfg,
		registry:  registry,
		directory: directory,
		transfers: transfers,
		server:    server,
		store:     st,
		log:       logger,
	}
	if cfg.AdminAddr != "" {
		a.admin = transporthttp.NewServer(cfg.AdminAddr, a, audit, logger)
	}
	return a, nil
}

// Run starts every component and blocks until context cancellation or
// a fatal server error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	queueDone := make(chan struct{})

	go func() {
		a.transfers.Run(ctx)
		close(queueDone)
	}()

	go func() {
		serverErr <- a.server.Run(ctx)
	}()

	if a.admin != nil {
		go func() {
			a.log.Info().Str("addr", a.cfg.AdminAddr).Msg("admin server listening")
			if err := a.admin.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
				a.log.Error().Err(err).Msg("admin server failed")
			}
		}()
	}

	select {
	case err := <-serverErr:
		a.shutdownAdmin()
		a.cleanup()
		return err
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
		err := <-serverErr

		a.shutdownAdmin()
		select {
		case <-queueDone:
		case <-time.After(a.cfg.ShutdownTimeout):
			a.log.Warn().Msg("transfer workers did not drain in time")
		}
		a.cleanup()
		return err
	}
}

func (a *App) shutdownAdmin() {
	if a.admin == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.admin.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("failed to stop admin server")
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

// Stats surface for the admin server.

// Sessions returns the number of connected sessions.
func (a *App) Sessions() int { return a.registry.Len() }

// ActiveUsers returns the usernames of logged-in sessions.
func (a *App) ActiveUsers() []string { return a.registry.ActiveNames() }

// Rooms returns the names of all rooms created so far.
func (a *App) Rooms() []string { return a.directory.RoomNames() }

// PendingTransfers returns the transfer backlog depth.
func (a *App) PendingTransfers() int { return a.transfers.Pending() }

// InFlightTransfers returns the number of transfers being processed.
func (a *App) InFlightTransfers() int { return a.transfers.InFlight() }
