package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atriumhq/atrium/internal/client"
	"github.com/atriumhq/atrium/internal/config"
	"github.com/atriumhq/atrium/internal/db"
	"github.com/atriumhq/atrium/internal/fleet"
	"github.com/atriumhq/atrium/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Atrium backend server",
		Long:  "Serves the rooms API and the live session feed. With a gateway configured, the server keeps its own session collection synchronized and re-broadcasts fleet events to connected clients.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "atrium.yaml", "path to Atrium config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	gormDB, err := db.Open(cfg.Server.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := db.SeedHQ(gormDB); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	hub := server.NewHub()

	var fleetStore *fleet.Store
	if cfg.Gateway.URL != "" {
		fleetStore, err = startGatewaySync(ctx, cfg, hub)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Synchronizing sessions from gateway at %s\n", cfg.Gateway.URL)
	}

	return server.Start(ctx, server.StartOpts{
		DB:    gormDB,
		Fleet: fleetStore,
		Hub:   hub,
		Port:  port,
		Out:   out,
	})
}

// startGatewaySync runs the session synchronizer against the upstream
// gateway and wires its output into the SSE hub. Granular session events
// are forwarded verbatim; store changes that arrive without an event
// (polled snapshots) reach clients as a full sessions-refresh.
func startGatewaySync(ctx context.Context, cfg *config.Config, hub *server.Hub) (*fleet.Store, error) {
	gw, err := client.New(client.Opts{BaseURL: cfg.Gateway.URL})
	if err != nil {
		return nil, fmt.Errorf("gateway client: %w", err)
	}

	store := fleet.NewStore()
	ctrl, err := fleet.NewController(fleet.ControllerOpts{
		Source:          fleet.NewSSESource(gw.EventsURL(), nil),
		Fetcher:         gw,
		Store:           store,
		PollInterval:    cfg.Poll.Interval(),
		MaxPollInterval: cfg.Poll.MaxInterval(),
		OnEvent: func(ev fleet.Event) {
			if strings.HasPrefix(ev.Name, "session-") {
				hub.BroadcastRaw(ev.Name, ev.Data)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	go func() {
		if err := ctrl.Run(ctx); err != nil {
			log.Printf("serve: gateway sync stopped: %v", err)
		}
	}()

	sub, cancelSub := store.Subscribe()
	go func() {
		defer cancelSub()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub:
				if !ok {
					return
				}
				sessions := store.Read().Sessions
				if sessions == nil {
					sessions = []fleet.Session{}
				}
				hub.Broadcast(fleet.EventSessionsRefresh, map[string]any{"sessions": sessions})
			}
		}
	}()

	return store, nil
}
