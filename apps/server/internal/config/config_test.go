package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.HistoryMode != "memory" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Deadlines.Night != 60*time.Second || cfg.Deadlines.Vote != 45*time.Second {
		t.Fatalf("unexpected deadlines %+v", cfg.Deadlines)
	}
	gc := cfg.Rules.GameConfig()
	if gc.NeedleThreshold != 2 || gc.DarkVoteWeight != 1 || gc.EarlyVoting {
		t.Fatalf("unexpected game config %+v", gc)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("NIGHTCOURT_ADDR", ":9090")
	t.Setenv("NIGHTCOURT_NIGHT_DEADLINE", "5s")
	t.Setenv("NIGHTCOURT_NEEDLE_THRESHOLD", "3")
	t.Setenv("NIGHTCOURT_EARLY_VOTING", "true")
	t.Setenv("NIGHTCOURT_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.Deadlines.Night != 5*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Rules.NeedleThreshold != 3 || !cfg.Rules.EarlyVoting {
		t.Fatalf("rules not applied: %+v", cfg.Rules)
	}
	if len(cfg.AllowedOrigin) != 2 || cfg.AllowedOrigin[1] != "https://b.example" {
		t.Fatalf("origins not split: %v", cfg.AllowedOrigin)
	}
}

func TestParseRejectsPostgresWithoutDSN(t *testing.T) {
	t.Setenv("NIGHTCOURT_HISTORY_MODE", "pgx")
	t.Setenv("DATABASE_URL", "")
	if _, err := Parse(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}

func TestParseRejectsUnknownMode(t *testing.T) {
	t.Setenv("NIGHTCOURT_HISTORY_MODE", "redis")
	if _, err := Parse(); err == nil {
		t.Fatalf("expected error for unknown history mode")
	}
}

func TestParseAcceptsNoopMode(t *testing.T) {
	t.Setenv("NIGHTCOURT_HISTORY_MODE", " NOOP ")
	cfg, err := Parse()
	if err != nil || cfg.HistoryMode != "noop" {
		t.Fatalf("expected noop mode, got %q %v", cfg.HistoryMode, err)
	}
}

func TestLoadReadsDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("NIGHTCOURT_MAX_ROOMS=7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// register cleanup so the value loaded from the file does not leak
	t.Setenv("NIGHTCOURT_MAX_ROOMS", "")
	os.Unsetenv("NIGHTCOURT_MAX_ROOMS")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxRooms != 7 {
		t.Fatalf("expected 7 rooms from .env, got %d", cfg.MaxRooms)
	}
}

func TestLoadMissingDotenvIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}
