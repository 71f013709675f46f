package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"guildkit/adapters/discord"
)

func main() {
	var f flags
	pflag.StringVarP(&f.configPath, "config", "c", "", "path to a JSON config file")
	pflag.StringVarP(&f.profile, "profile", "p", "", "deployment profile (development, testing, staging, production)")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := BuildApp(ctx, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	err = run(ctx, app)
	cleanup()
	if err != nil {
		slog.Error("guildkit stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app *App) error {
	cfg := app.Config

	slog.Info("starting guildkit",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter,
		"discord", app.Session != nil)

	if app.Session != nil {
		app.Session.AddHandler(discord.InteractionHandler(app.Router))
		app.Session.AddHandler(app.Messages.OnMessageCreate)
		if err := app.Session.Open(); err != nil {
			return fmt.Errorf("open discord gateway: %w", err)
		}
		defer app.Session.Close()
	} else {
		slog.Warn("no discord token configured; serving admin API only")
	}

	go pruneCooldowns(ctx, app)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "address", cfg.Server.Address)
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve admin API: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// pruneCooldowns drops expired message cooldown entries once per window.
func pruneCooldowns(ctx context.Context, app *App) {
	window := app.Config.Leveling.Cooldown
	if window <= 0 {
		return
	}
	t := time.NewTicker(window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			app.Cooldown.Prune()
		}
	}
}
