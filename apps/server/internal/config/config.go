// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"nightcourt/game"
)

// Config is read once at startup. A local .env file, when present, seeds
// variables that are not already set.
type Config struct {
	Addr string `env:"NIGHTCOURT_ADDR" envDefault:":8080"`

	HistoryMode string `env:"NIGHTCOURT_HISTORY_MODE" envDefault:"memory"`
	SQLitePath  string `env:"NIGHTCOURT_SQLITE_PATH"  envDefault:"data/nightcourt.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	PublicBaseURL string `env:"NIGHTCOURT_PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	Deadlines Deadlines
	Rules     Rules

	RoomIdleTTL   time.Duration `env:"NIGHTCOURT_ROOM_IDLE_TTL"   envDefault:"30m"`
	SessionTTL    time.Duration `env:"NIGHTCOURT_SESSION_TTL"     envDefault:"720h"`
	MaxRooms      int           `env:"NIGHTCOURT_MAX_ROOMS"       envDefault:"200"`
	AllowedOrigin []string      `env:"NIGHTCOURT_ALLOWED_ORIGINS" envSeparator:","`
}

// Deadlines drive the room scheduler. Zero disables the timer.
type Deadlines struct {
	Night  time.Duration `env:"NIGHTCOURT_NIGHT_DEADLINE"  envDefault:"60s"`
	Speech time.Duration `env:"NIGHTCOURT_SPEECH_DEADLINE" envDefault:"90s"`
	Vote   time.Duration `env:"NIGHTCOURT_VOTE_DEADLINE"   envDefault:"45s"`
}

// Rules are the table-wide engine switches.
type Rules struct {
	NeedleThreshold    int  `env:"NIGHTCOURT_NEEDLE_THRESHOLD"     envDefault:"2"`
	DelayedNeedleDeath bool `env:"NIGHTCOURT_DELAYED_NEEDLE_DEATH"`
	DarkVoteWeight     int  `env:"NIGHTCOURT_DARK_VOTE_WEIGHT"     envDefault:"1"`
	SkipDiscussion     bool `env:"NIGHTCOURT_SKIP_DISCUSSION"`
	EarlyVoting        bool `env:"NIGHTCOURT_EARLY_VOTING"`
}

// GameConfig builds the engine config for one new game.
func (r Rules) GameConfig() game.Config {
	return game.Config{
		NeedleThreshold:    r.NeedleThreshold,
		DelayedNeedleDeath: r.DelayedNeedleDeath,
		DarkVoteWeight:     r.DarkVoteWeight,
		SkipDiscussion:     r.SkipDiscussion,
		EarlyVoting:        r.EarlyVoting,
	}
}

// Load reads dotenvPath (if it exists) and then the process environment.
func Load(dotenvPath string) (Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.HistoryMode = strings.ToLower(strings.TrimSpace(cfg.HistoryMode))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.HistoryMode {
	case "memory", "noop", "sqlite", "postgres", "pgx":
	default:
		return fmt.Errorf("NIGHTCOURT_HISTORY_MODE: unsupported mode %q", c.HistoryMode)
	}
	if (c.HistoryMode == "postgres" || c.HistoryMode == "pgx") && strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("NIGHTCOURT_HISTORY_MODE=%s requires DATABASE_URL", c.HistoryMode)
	}
	if c.Deadlines.Night < 0 || c.Deadlines.Speech < 0 || c.Deadlines.Vote < 0 {
		return fmt.Errorf("deadlines must be >= 0")
	}
	if c.Rules.NeedleThreshold < 0 || c.Rules.DarkVoteWeight < 0 {
		return fmt.Errorf("rules: needle threshold and dark vote weight must be >= 0")
	}
	if c.MaxRooms <= 0 {
		return fmt.Errorf("NIGHTCOURT_MAX_ROOMS must be > 0")
	}
	return nil
}
