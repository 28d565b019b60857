package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"strzcam.com/recognizer/capture"
	"strzcam.com/recognizer/config"
	"strzcam.com/recognizer/gateway"
	"strzcam.com/recognizer/hub"
	"strzcam.com/recognizer/identity"
	"strzcam.com/recognizer/storage"
	"strzcam.com/recognizer/vision"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the recognition stream server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(log)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	crops, err := storage.NewCropStore(cfg.FacesDir())
	if err != nil {
		return err
	}

	engine := identity.NewEngine(store, crops, log)
	detector := vision.NewRemoteDetector(cfg.DetectorURL, log)
	frames := hub.NewFrameHub()
	events := hub.NewEventBus()
	server := gateway.NewServer(cfg.Listen, engine, detector, frames, events, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Capture.Enabled {
		if err := runCapture(ctx, cfg, engine, server, log); err != nil {
			return err
		}
	}

	return server.Start(ctx)
}

// runCapture wires the optional local shared-memory producer into the same
// pipeline the websocket producers use.
func runCapture(ctx context.Context, cfg *config.Config, engine *identity.Engine, server *gateway.Server, log *slog.Logger) error {
	source, err := capture.NewShmSource(cfg.Capture.Dir, cfg.Capture.Name, log)
	if err != nil {
		return fmt.Errorf("start capture source: %w", err)
	}
	if err := engine.SetActiveOwner(ctx, cfg.Capture.Owner); err != nil {
		source.Close()
		return err
	}

	go source.Watch(ctx)
	go func() {
		defer source.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case frame := <-source.Frames:
				if _, err := server.IngestLocal(ctx, frame); err != nil {
					log.Warn("local frame failed", "error", err)
				}
			}
		}
	}()
	return nil
}
