package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/music-copyright-registry/cmd/appcommon"
	"github.com/ruteri/music-copyright-registry/cmd/flags"
	"github.com/ruteri/music-copyright-registry/httpserver"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "musicreg-server",
		Usage: "Serve the music copyright registry read API",
		Flags: flags.Join(
			flags.LedgerFlags,
			flags.CertificateFlags,
			flags.ServerFlags,
			flags.LogFlags,
			[]cli.Flag{flags.LogServiceFlagFn("musicreg-server")},
		),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			registryApp, err := appcommon.Setup(cCtx, logger)
			if err != nil {
				logger.Error("Failed to set up registry client", "err", err)
				return err
			}
			defer registryApp.Close()

			ctx, cancel := context.WithCancel(cCtx.Context)
			defer cancel()

			// Readiness reports the failure until a later refresh succeeds.
			refresh(ctx, registryApp, logger)

			handler := httpserver.NewHandler(registryApp.Fees, registryApp.Catalog, registryApp.Gate, logger)
			server, err := httpserver.New(flags.ConfigureServer(cCtx, logger), handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			if interval := cCtx.Duration(flags.RefreshIntervalFlag.Name); interval > 0 {
				go refreshLoop(ctx, registryApp, interval, logger)
			}

			logger.Info("Starting server")
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			cancel()
			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func refresh(ctx context.Context, app *appcommon.App, logger *slog.Logger) {
	if err := app.Fees.Refresh(ctx); err != nil {
		logger.Warn("Fee refresh failed", "err", err)
	}
	if err := app.Catalog.RefreshAll(ctx); err != nil {
		logger.Warn("Catalog refresh failed", "err", err)
	}
}

func refreshLoop(ctx context.Context, app *appcommon.App, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh(ctx, app, logger)
		}
	}
}
