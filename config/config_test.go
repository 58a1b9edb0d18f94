package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"uxcellence/models"
)

// setRequiredEnv sets the secrets Load refuses to default.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("API_KEY", "state-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("COUNTDOWN_SECONDS", "")
	t.Setenv("ROUNDS_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if cfg.StoreDriver != DriverRedis {
		t.Fatalf("expected driver %q, got %q", DriverRedis, cfg.StoreDriver)
	}
	if cfg.CountdownSeconds != 3 {
		t.Fatalf("expected countdown 3, got %d", cfg.CountdownSeconds)
	}
	if cfg.AdminName != "uxcellence" {
		t.Fatalf("expected admin name uxcellence, got %q", cfg.AdminName)
	}
	if len(cfg.Rounds) != 3 || cfg.Rounds[2].MaxTeams != 10 {
		t.Fatalf("expected default rounds, got %#v", cfg.Rounds)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Fatalf("expected 12h session ttl, got %s", cfg.SessionTTL)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORE_DRIVER", "mongo")
	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	for _, key := range []string{"JWT_SECRET", "API_KEY"} {
		t.Run(key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("STORE_DRIVER", "redis")
			t.Setenv(key, "")

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("expected error naming %s, got %v", key, err)
			}
		})
	}
}

func TestLoadRoundsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rounds.yaml")
	content := `rounds:
  - number: 2
    name: Finals
    max_teams: 4
  - number: 1
    name: Qualifiers
    max_teams: 12
    description: Everyone plays
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rounds file: %v", err)
	}

	rounds, err := LoadRounds(path)
	if err != nil {
		t.Fatalf("expected rounds to load, got %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}
	if rounds[0].Name != "Qualifiers" || rounds[0].MaxTeams != 12 {
		t.Fatalf("expected sorted rounds, got %#v", rounds)
	}
}

func TestValidateRoundsRejectsGap(t *testing.T) {
	rounds := DefaultRounds()
	rounds[1].Number = 5
	if err := models.ValidateRounds(rounds); err == nil {
		t.Fatal("expected gap to be rejected")
	}
}
