// Package config holds the environment-driven settings of the relay and the
// codecrush client.
package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

// RelayConfig configures the reference relay (root main.go).
type RelayConfig struct {
	ServerAddr     string        `env:"SERVER_ADDR,default=:7777"`
	NatsURL        string        `env:"NATS_URL,default=nats://127.0.0.1:4222"`
	StreamName     string        `env:"STREAM_NAME,default=CODECRUSH_CHAT"`
	SubjectPrefix  string        `env:"SUBJECT_PREFIX,default=chat"`
	StreamMaxAge   time.Duration `env:"STREAM_MAX_AGE,default=24h"`
	PongWait       time.Duration `env:"PONG_WAIT,default=60s"`
	PingPeriod     time.Duration `env:"PING_PERIOD,default=54s"`
	WriteWait      time.Duration `env:"WRITE_WAIT,default=10s"`
	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE,default=4096"`
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT,default=5s"`
	BadgerFilepath string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret      string        `env:"JWT_SECRET,required=true"`
	TokenDuration  time.Duration `env:"TOKEN_DURATION,default=168h"`
	HistoryLimit   int           `env:"HISTORY_LIMIT,default=500"`
	LogLevel       string        `env:"LOG_LEVEL,default=INFO"`
}

// ClientConfig configures the codecrush client.
type ClientConfig struct {
	BaseURL        string        `env:"CODECRUSH_BASE_URL,default=http://localhost:7777"`
	SocketPath     string        `env:"CODECRUSH_SOCKET_PATH,default=/socket"`
	HTTPTimeout    time.Duration `env:"CODECRUSH_HTTP_TIMEOUT,default=10s"`
	PendingTimeout time.Duration `env:"CODECRUSH_PENDING_TIMEOUT,default=15s"`
	PingPeriod     time.Duration `env:"CODECRUSH_PING_PERIOD,default=54s"`
	PongWait       time.Duration `env:"CODECRUSH_PONG_WAIT,default=60s"`
	WriteWait      time.Duration `env:"CODECRUSH_WRITE_WAIT,default=10s"`
	SessionFile    string        `env:"CODECRUSH_SESSION_FILE"`
	LogLevel       string        `env:"CODECRUSH_LOG_LEVEL,default=INFO"`
	LogFile        string        `env:"CODECRUSH_LOG_FILE,default=codecrush.log"`
}

// LoadRelay reads RelayConfig from the process environment.
func LoadRelay() (RelayConfig, error) {
	var cfg RelayConfig
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return RelayConfig{}, fmt.Errorf("relay config: %w", err)
	}
	if cfg.PingPeriod >= cfg.PongWait {
		return RelayConfig{}, fmt.Errorf("relay config: PING_PERIOD (%s) must be shorter than PONG_WAIT (%s)",
			cfg.PingPeriod, cfg.PongWait)
	}
	return cfg, nil
}

// LoadClient reads ClientConfig from the process environment.
func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("client config: %w", err)
	}
	if cfg.PingPeriod >= cfg.PongWait {
		return ClientConfig{}, fmt.Errorf("client config: CODECRUSH_PING_PERIOD (%s) must be shorter than CODECRUSH_PONG_WAIT (%s)",
			cfg.PingPeriod, cfg.PongWait)
	}
	return cfg, nil
}
