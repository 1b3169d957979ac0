package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"lobbynet/internal/config"
	"lobbynet/internal/lobby"
	"lobbynet/internal/packetlog"
	"lobbynet/internal/proto"
	"lobbynet/internal/state"
	"lobbynet/internal/status"
	"lobbynet/internal/udp"
)

func serveCmd(verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := setupLogging(*verbose)
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				fatal("config load failed", err)
			}
			return runServer(cmd.Context(), runID, cfg)
		},
	}
	f := cmd.Flags()
	f.Int("port", 54321, "UDP port to listen on")
	f.String("host-name", "", "Seat the host in slot 1 under this name")
	f.Int("status-port", 0, "HTTP status/metrics port (0 disables)")
	f.String("packet-log", "", "NDJSON packet log path")
	f.Duration("tick", 16*time.Millisecond, "Dispatcher tick interval")
	f.Bool("advertise", false, "Answer Query with GameStatus")
	f.String("course", "", "Course name reported in GameStatus")
	f.Uint8("hole", 0, "Hole number reported in GameStatus")
	f.Duration("idle-timeout", 0, "Evict members idle for this long (0 disables)")
	f.Duration("ping-interval", 2*time.Second, "Ping members this often (0 disables)")
	return cmd
}

func runServer(parent context.Context, runID string, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Shutdown watch: once a shutdown signal is received, allow a bounded window
	// for goroutines to exit cleanly before forcing termination.
	go func() {
		<-ctx.Done()
		t := time.NewTimer(10 * time.Second)
		defer t.Stop()
		<-t.C
		slog.Error("shutdown timed out after 10s, forcing exit")
		os.Exit(2)
	}()

	slog.Info(
		"starting lobby server",
		"port", cfg.ServerPort,
		"protocol_version", cfg.Proto.Version,
		"status_port", cfg.StatusPort,
		"tick", cfg.TickInterval,
	)

	var pl *packetlog.Logger
	if cfg.PacketLogPath != "" {
		var err error
		pl, err = packetlog.New(cfg.PacketLogPath, cfg.PacketLogMaxMB)
		if err != nil {
			fatal("open ndjson telemetry file failed", err, "path", cfg.PacketLogPath)
		}
		defer func() { _ = pl.Close() }()
		slog.Info("ndjson telemetry enabled", "path", cfg.PacketLogPath)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := lobby.NewMetrics(reg)

	roster := state.NewRoster()
	if cfg.HostName != "" {
		roster.ClaimSelf(cfg.HostName, time.Now())
		slog.Info("host seated", "slot", 1, "name", cfg.HostName)
	}
	engine := proto.NewEngine(cfg.Proto, roster)

	conn, err := udp.Open(udp.RoleServer, cfg.ServerPort)
	if err != nil {
		fatal("server socket failed", err, "port", cfg.ServerPort)
	}
	srv, err := lobby.NewServer(conn, engine, lobby.ServerOptions{
		RunID:        runID,
		PacketLog:    pl,
		Metrics:      metrics,
		PingInterval: cfg.PingInterval,
	})
	if err != nil {
		fatal("server init failed", err)
	}
	defer func() { _ = srv.Close() }()

	if cfg.StatusPort != 0 {
		_, err := status.Start(ctx, fmt.Sprintf(":%d", cfg.StatusPort), func() status.Data {
			st := engine.Stats()
			return status.Data{
				Role:          "server",
				Version:       cfg.Proto.Version,
				ServerTime:    time.Now().UTC().Format(time.RFC3339),
				Listen:        conn.LocalEndpoint().String(),
				PlayersOnline: st.PlayersOnline,
				Course:        cfg.Proto.Course,
				Hole:          st.Hole,
				Slots:         serverSlots(roster),
			}
		}, reg)
		if err != nil {
			fatal("status server start failed", err, "port", cfg.StatusPort)
		}
	}

	if err := srv.Run(ctx, cfg.TickInterval); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	slog.Info("shutdown requested")
	return nil
}

func serverSlots(r *state.Roster) []status.Slot {
	snap := r.Snapshot()
	out := make([]status.Slot, len(snap))
	for i, s := range snap {
		out[i] = status.Slot{Index: i + 1, Active: s.Active, Name: s.Name}
	}
	return out
}
