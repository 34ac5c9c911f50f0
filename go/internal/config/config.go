// Package config loads musiguessr settings from a YAML file, a .env file and
// MUSIGUESSR_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "musiguessr.yaml"
	EnvPrefix   = "MUSIGUESSR_"
)

type Config struct {
	API     APIConfig     `yaml:"api" envPrefix:"API_"`
	Game    GameConfig    `yaml:"game" envPrefix:"GAME_"`
	Auth    AuthConfig    `yaml:"auth"`
	Gateway GatewayConfig `yaml:"gateway" envPrefix:"GATEWAY_"`
	NATS    NATSConfig    `yaml:"nats" envPrefix:"NATS_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
}

// APIConfig describes the backend.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url" env:"URL"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RateLimitRPS float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateBurst    int           `yaml:"rate_burst" env:"RATE_BURST"`
	// CatalogToken authenticates the gateway's shared catalog load. Leave it
	// empty when the backend serves GET /api/musics anonymously.
	CatalogToken string `yaml:"catalog_token" env:"CATALOG_TOKEN"`
}

type GameConfig struct {
	RoundSeconds  int           `yaml:"round_seconds" env:"ROUND_SECONDS"`
	SearchLimit   int           `yaml:"search_limit" env:"SEARCH_LIMIT"`
	FinishTimeout time.Duration `yaml:"finish_timeout" env:"FINISH_TIMEOUT"`
	// PlayerCommand is run with the preview URL appended, e.g. "mpv --no-video".
	PlayerCommand string `yaml:"player_command" env:"PLAYER_COMMAND"`
}

type AuthConfig struct {
	TokenFile string `yaml:"token_file" env:"TOKEN_FILE"`
}

type GatewayConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	ReadBufferSize  int           `yaml:"read_buffer_size" env:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" env:"WRITE_BUFFER_SIZE"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	PongTimeout     time.Duration `yaml:"pong_timeout" env:"PONG_TIMEOUT"`
	PingInterval    time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	URL           string `yaml:"url" env:"URL"`
	Stream        string `yaml:"stream" env:"STREAM"`
	SubjectPrefix string `yaml:"subject_prefix" env:"SUBJECT_PREFIX"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Pretty bool   `yaml:"pretty" env:"PRETTY"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8080",
			Timeout:   30 * time.Second,
			RateBurst: 1,
		},
		Game: GameConfig{
			RoundSeconds:  30,
			SearchLimit:   10,
			FinishTimeout: 10 * time.Second,
			PlayerCommand: "mpv --no-video --really-quiet",
		},
		Auth: AuthConfig{
			TokenFile: defaultTokenFile(),
		},
		Gateway: GatewayConfig{
			Addr:            ":8081",
			AllowedOrigins:  []string{"http://localhost:3000"},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			WriteTimeout:    10 * time.Second,
			PongTimeout:     60 * time.Second,
			PingInterval:    54 * time.Second,
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			Stream:        "MUSIGUESSR_EVENTS",
			SubjectPrefix: "musiguessr.events",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads path over the defaults and then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.RateLimitRPS < 0 {
		errs = append(errs, errors.New("api.rate_limit_rps must not be negative"))
	}
	if c.Game.RoundSeconds <= 0 {
		errs = append(errs, fmt.Errorf("game.round_seconds must be positive, got %d", c.Game.RoundSeconds))
	}
	if c.Game.SearchLimit <= 0 {
		errs = append(errs, fmt.Errorf("game.search_limit must be positive, got %d", c.Game.SearchLimit))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required when nats is enabled"))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// LogLevel returns the configured zerolog level, defaulting to info.
func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".musiguessr-token.json"
	}
	return filepath.Join(dir, "musiguessr", "token.json")
}
