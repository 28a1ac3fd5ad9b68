package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/praisehq/praise/internal/rating"
)

type Config struct {
	Env    string       `env:"ENV" env-default:"dev"`
	Server HTTPServer   `env-prefix:"SERVER_"`
	GitHub GitHubConfig `env-prefix:"GITHUB_"`
	Redis  RedisConfig  `env-prefix:"REDIS_"`
	Rating RatingConfig `env-prefix:"RATING_"`
}

type HTTPServer struct {
	Port            string        `env:"PORT" env-default:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type GitHubConfig struct {
	Token string `env:"TOKEN" env-default:""`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" env-default:""`
	Password string `env:"PASSWORD" env-default:""`
	DB       int    `env:"DB" env-default:"0"`
}

// RatingConfig allows the component weights to be tuned at deploy time.
// The weights must sum to 1.0 or startup fails.
type RatingConfig struct {
	DataDir    string  `env:"DATA_DIR" env-default:"./data"`
	CacheTTL   int     `env:"CACHE_TTL_MINUTES" env-default:"15"`
	Priority   float64 `env:"WEIGHT_PRIORITY" env-default:"0.25"`
	CodeAmount float64 `env:"WEIGHT_CODE_AMOUNT" env-default:"0.20"`
	TimeFactor float64 `env:"WEIGHT_TIME_FACTOR" env-default:"0.20"`
	Relevance  float64 `env:"WEIGHT_RELEVANCE" env-default:"0.15"`
	Quality    float64 `env:"WEIGHT_QUALITY" env-default:"0.10"`
	Impact     float64 `env:"WEIGHT_IMPACT" env-default:"0.10"`
}

// Weights assembles the configured rating weights.
func (rc RatingConfig) Weights() rating.Weights {
	return rating.Weights{
		Priority:   rc.Priority,
		CodeAmount: rc.CodeAmount,
		TimeFactor: rc.TimeFactor,
		Relevance:  rc.Relevance,
		Quality:    rc.Quality,
		Impact:     rc.Impact,
	}
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	if err := cfg.Rating.Weights().Validate(); err != nil {
		return nil, fmt.Errorf("invalid rating weights: %w", err)
	}

	return &cfg, nil
}
