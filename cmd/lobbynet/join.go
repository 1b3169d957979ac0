package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"lobbynet/internal/config"
	"lobbynet/internal/lobby"
	"lobbynet/internal/packetlog"
	"lobbynet/internal/proto"
	"lobbynet/internal/status"
	"lobbynet/internal/udp"
)

type retryPolicy struct {
	every time.Duration
	max   int
}

func joinCmd(verbose *bool) *cobra.Command {
	var retry retryPolicy
	cmd := &cobra.Command{
		Use:   "join <host>",
		Short: "Join a session hosted at <host>[:port]",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := setupLogging(*verbose)
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				fatal("config load failed", err)
			}
			return runClient(cmd.Context(), runID, cfg, args[0], retry)
		},
	}
	f := cmd.Flags()
	f.String("name", "Player", "Player name sent in Knock")
	f.Int("server-port", 54321, "Server port used when <host> has none")
	f.Int("client-port", 54322, "Local UDP port (0 picks any)")
	f.Int("version-proto", 1, "Protocol version sent in Knock")
	f.Int("status-port", 0, "HTTP status/metrics port (0 disables)")
	f.String("packet-log", "", "NDJSON packet log path")
	f.Duration("tick", 16*time.Millisecond, "Dispatcher tick interval")
	f.Duration("ping-interval", 2*time.Second, "Ping the server this often once connected (0 disables)")
	_ = f.SetAnnotation("ping-interval", config.KeyAnnotation, []string{"client.ping_interval"})
	f.DurationVar(&retry.every, "retry-every", time.Second, "Re-send Knock this often while connecting (0 disables)")
	f.IntVar(&retry.max, "retry-max", 5, "Give up after this many unanswered Knocks")
	return cmd
}

func runClient(parent context.Context, runID string, cfg config.Config, host string, retry retryPolicy) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pl *packetlog.Logger
	if cfg.PacketLogPath != "" {
		var err error
		pl, err = packetlog.New(cfg.PacketLogPath, cfg.PacketLogMaxMB)
		if err != nil {
			fatal("open ndjson telemetry file failed", err, "path", cfg.PacketLogPath)
		}
		defer func() { _ = pl.Close() }()
	}

	reg := prometheus.NewRegistry()
	metrics := lobby.NewMetrics(reg)

	conn, err := udp.Open(udp.RoleClient, cfg.ClientPort)
	if err != nil {
		fatal("client socket failed", err, "port", cfg.ClientPort)
	}
	session := proto.NewSession(cfg.Proto.Version, cfg.PlayerName)
	client, err := lobby.NewClient(conn, session, lobby.ClientOptions{
		RunID:      runID,
		PacketLog:  pl,
		Metrics:    metrics,
		ServerPort: uint16(cfg.ServerPort),
	})
	if err != nil {
		fatal("client init failed", err)
	}
	defer func() { _ = client.Close() }()

	if cfg.StatusPort != 0 {
		_, err := status.Start(ctx, fmt.Sprintf(":%d", cfg.StatusPort), func() status.Data {
			roster := client.CurrentRoster()
			slots := make([]status.Slot, len(roster))
			online := 0
			for i, e := range roster {
				slots[i] = status.Slot{Index: i + 1, Active: e.Active, Name: e.Name}
				if e.Active {
					online++
				}
			}
			return status.Data{
				Role:          "client",
				Version:       cfg.Proto.Version,
				ServerTime:    time.Now().UTC().Format(time.RFC3339),
				Listen:        conn.LocalEndpoint().String(),
				Status:        client.CurrentStatus().String(),
				PlayersOnline: online,
				Slots:         slots,
			}
		}, reg)
		if err != nil {
			fatal("status server start failed", err, "port", cfg.StatusPort)
		}
	}

	slog.Info("starting lobby client", "name", cfg.PlayerName, "local", conn.LocalEndpoint().String(), "protocol_version", cfg.Proto.Version)
	if err := client.Join(ctx, host); err != nil {
		return fmt.Errorf("join %s: %w", host, err)
	}

	err = clientLoop(ctx, client, cfg, retry)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.Info("leaving", "status", client.CurrentStatus().String())
		return nil
	}
	return err
}

func clientLoop(ctx context.Context, client *lobby.Client, cfg config.Config, retry retryPolicy) error {
	tick := time.NewTicker(cfg.TickInterval)
	defer tick.Stop()

	knocks := 1
	lastKnock := time.Now()
	lastPing := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tick.C:
			if _, err := client.Process(); err != nil {
				return err
			}
			if err := client.LastError(); err != nil {
				var remote *proto.RemoteError
				if errors.As(err, &remote) && client.CurrentStatus() == proto.StatusConnecting {
					return err
				}
			}

			switch client.CurrentStatus() {
			case proto.StatusConnecting:
				if retry.every <= 0 || now.Sub(lastKnock) < retry.every {
					continue
				}
				if knocks >= retry.max {
					return fmt.Errorf("no answer after %d knocks", knocks)
				}
				if err := client.Knock(); err != nil {
					return err
				}
				knocks++
				lastKnock = now
				slog.Debug("knock re-sent", "attempt", knocks)
			case proto.StatusConnected:
				if cfg.ClientPingInterval > 0 && now.Sub(lastPing) >= cfg.ClientPingInterval {
					if err := client.Ping(); err != nil {
						return err
					}
					lastPing = now
				}
			}
		}
	}
}
