// Package config loads and validates runtime configuration for lobbynet.
//
// Configuration is read from `config/config.yaml` (or `./config.yaml`), can be
// overridden via LOBBY_* environment variables, and finally by command-line
// flags bound through Load.
package config
