package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreengine/internal/config"
	"github.com/coreengine/internal/discovery"
	"github.com/coreengine/internal/engine"
	"github.com/coreengine/internal/jsonrpc"
	"github.com/coreengine/internal/local"
	"github.com/coreengine/internal/logging"
	"github.com/coreengine/internal/state"
	"github.com/coreengine/internal/tables"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the 'serve' subcommand.
func NewServeCommand(version string, load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the cloud (HTTP) and local (TCP) channels until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, version)
		},
	}
}

// newEngine builds the tables, device state and engine for cfg
func newEngine(cfg *config.Config) (*engine.CoreEngine, *state.DeviceState, error) {
	tbl, err := tables.New(cfg.Tables)
	if err != nil {
		return nil, nil, fmt.Errorf("could not build tables: %w", err)
	}
	deviceState := state.NewDeviceState(cfg, tbl)
	return engine.New(tbl, deviceState), deviceState, nil
}

// runServe runs both transports until ctx is done or one of them fails
func runServe(ctx context.Context, cfg *config.Config, version string) error {
	logCloser := logging.Setup(cfg.Logging)
	defer logCloser.Close()

	log.Printf("Starting coreengine %s: mode=%s http=%d local=%d", version, cfg.Mode, cfg.Network.HTTP.Port, cfg.Network.Local.Port)

	eng, deviceState, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := deviceState.Close(); err != nil {
			log.Printf("Device state shutdown error: %v", err)
		}
	}()

	cloudServer, err := jsonrpc.NewServer(cfg, eng)
	if err != nil {
		return err
	}
	localServer, err := local.NewServer(cfg, eng)
	if err != nil {
		return err
	}
	httpServer := cloudServer.HTTPServer()

	errCh := make(chan error, 2)

	go func() {
		log.Printf("Starting HTTP server on %s%s", httpServer.Addr, cfg.Network.HTTP.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	go func() {
		if err := localServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("local server failed: %w", err)
		}
	}()

	if cfg.Network.Local.Advertise {
		advertiser, err := discovery.NewAdvertiser(advertiserConfig(cfg, version))
		if err == nil {
			err = advertiser.Start()
		}
		if err != nil {
			log.Printf("mDNS advertisement disabled: %v", err)
		} else {
			defer advertiser.Stop()
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		log.Printf("%v", runErr)
	}

	log.Println("Shutting down servers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := localServer.Close(); err != nil {
		log.Printf("Local server shutdown error: %v", err)
	}

	log.Println("Servers stopped")
	return runErr
}

// advertiserConfig maps the local channel settings onto the mDNS advertiser
func advertiserConfig(cfg *config.Config, version string) discovery.AdvertiserConfig {
	return discovery.AdvertiserConfig{
		InstanceName: cfg.Network.Local.InstanceName,
		Port:         cfg.Network.Local.Port,
		Version:      version,
		Interface:    cfg.Network.Local.AdvertiseInterface,
		TTL:          uint32(cfg.Network.Local.AdvertiseTTLSec),
	}
}
