package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"lobbynet/internal/proto"
)

const (
	defaultConfigName = "config"
)

type Config struct {
	ServerPort int
	ClientPort int

	PlayerName string
	// HostName, when set, seats the hosting player in slot 0.
	HostName string

	// PingInterval is how often the server pings members; ClientPingInterval
	// is how often a connected client pings its server.
	PingInterval       time.Duration
	ClientPingInterval time.Duration
	TickInterval       time.Duration

	// StatusPort enables the HTTP status/metrics endpoint when non-zero.
	StatusPort int

	// PacketLogPath enables NDJSON telemetry when set. Leave empty to disable file logging.
	PacketLogPath  string
	PacketLogMaxMB int

	Proto proto.EngineConfig
}

// KeyAnnotation names the pflag annotation that overrides flagKeys for one
// flag, so the same flag name can feed a different key per command.
const KeyAnnotation = "lobbynet_config_key"

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"port":          "server.port",
	"server-port":   "server.port",
	"client-port":   "client.port",
	"name":          "player.name",
	"host-name":     "server.host_name",
	"version-proto": "protocol.version",
	"status-port":   "status.port",
	"packet-log":    "telemetry.ndjson_path",
	"tick":          "tick.interval",
	"advertise":     "server.advertise",
	"course":        "server.course",
	"hole":          "server.hole",
	"idle-timeout":  "server.idle_timeout",
	"ping-interval": "server.ping_interval",
}

// Load reads configuration. Flags in fs that were set explicitly take
// precedence over environment and file values; fs may be nil.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetConfigName(defaultConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	v.SetEnvPrefix("LOBBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 54321)
	v.SetDefault("client.port", 54322)
	v.SetDefault("client.ping_interval", "2s")
	v.SetDefault("protocol.version", 1)
	v.SetDefault("player.name", "Player")

	v.SetDefault("server.host_name", "")
	v.SetDefault("server.idle_timeout", "0s")
	v.SetDefault("server.ping_interval", "2s")
	v.SetDefault("server.advertise", false)
	v.SetDefault("server.course", "")
	v.SetDefault("server.hole", 0)
	v.SetDefault("server.welcome_snapshot", false)

	v.SetDefault("tick.interval", "16ms")
	v.SetDefault("status.port", 0)

	v.SetDefault("telemetry.ndjson_path", "")
	v.SetDefault("telemetry.max_size_mb", 10)

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if keys := f.Annotations[KeyAnnotation]; len(keys) > 0 {
					key = keys[0]
				}
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Config file is optional; env-only is fine.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	version := v.GetInt("protocol.version")
	hole := v.GetInt("server.hole")
	cfg := Config{
		ServerPort:         v.GetInt("server.port"),
		ClientPort:         v.GetInt("client.port"),
		PlayerName:         strings.TrimSpace(v.GetString("player.name")),
		HostName:           strings.TrimSpace(v.GetString("server.host_name")),
		PingInterval:       v.GetDuration("server.ping_interval"),
		ClientPingInterval: v.GetDuration("client.ping_interval"),
		TickInterval:       v.GetDuration("tick.interval"),
		StatusPort:         v.GetInt("status.port"),
		PacketLogPath:      strings.TrimSpace(v.GetString("telemetry.ndjson_path")),
		PacketLogMaxMB:     v.GetInt("telemetry.max_size_mb"),
		Proto: proto.EngineConfig{
			Advertise:       v.GetBool("server.advertise"),
			Course:          strings.TrimSpace(v.GetString("server.course")),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			WelcomeSnapshot: v.GetBool("server.welcome_snapshot"),
		},
	}

	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return Config{}, fmt.Errorf("invalid server.port %d", cfg.ServerPort)
	}
	if cfg.ClientPort < 0 || cfg.ClientPort > 65535 {
		return Config{}, fmt.Errorf("invalid client.port %d", cfg.ClientPort)
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return Config{}, fmt.Errorf("invalid status.port %d", cfg.StatusPort)
	}
	if version < 0 || version > 0xffff {
		return Config{}, fmt.Errorf("invalid protocol.version %d", version)
	}
	cfg.Proto.Version = uint16(version)
	if hole < 0 || hole > 0xff {
		return Config{}, fmt.Errorf("invalid server.hole %d", hole)
	}
	cfg.Proto.Hole = uint8(hole)
	if cfg.PlayerName == "" {
		return Config{}, fmt.Errorf("player.name must not be empty")
	}
	if cfg.TickInterval <= 0 {
		return Config{}, fmt.Errorf("tick.interval must be positive, got %s", cfg.TickInterval)
	}
	if cfg.PingInterval < 0 || cfg.ClientPingInterval < 0 || cfg.Proto.IdleTimeout < 0 {
		return Config{}, fmt.Errorf("server.ping_interval, client.ping_interval and server.idle_timeout must not be negative")
	}

	if cfg.PacketLogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.PacketLogPath), 0o755); err != nil {
			return Config{}, fmt.Errorf("create telemetry dir: %w", err)
		}
	}
	return cfg, nil
}
