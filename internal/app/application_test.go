package app

import (
	"path/filepath"
	"testing"

	"chatrelay/internal/config"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Moderation.Secret = "s3cret"
	cfg.AuditDB = filepath.Join(t.TempDir(), "audit.db")
	return cfg
}

func TestNewApplication(t *testing.T) {
	application, err := NewApplication(validConfig(t))
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	if application.Addr() != "0.0.0.0:8080" {
		t.Errorf("unexpected address %q", application.Addr())
	}
}

func TestNewApplication_RejectsInvalidConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.HTTP.Port = -1

	if _, err := NewApplication(cfg); err == nil {
		t.Error("invalid configuration should be rejected")
	}
}

func TestNewApplication_RejectsMissingSecret(t *testing.T) {
	// The nil-config path falls back to defaults, which carry no secret.
	if _, err := NewApplication(nil); err == nil {
		t.Error("default configuration has no secret and should be rejected")
	}
}

func TestNewApplication_AuditDisabled(t *testing.T) {
	cfg := validConfig(t)
	cfg.AuditDB = ""

	application, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("construction without audit trail failed: %v", err)
	}
	if application.auditLog != nil {
		t.Error("audit trail should be absent when no path is configured")
	}
}

func TestNewApplication_BotOnlyWithToken(t *testing.T) {
	cfg := validConfig(t)
	application, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	if application.botRelay != nil {
		t.Error("bot relay should be absent without a token")
	}

	cfg = validConfig(t)
	cfg.Bot.Token = "123:token"
	cfg.Bot.Moderator = "mod_jane"
	application, err = NewApplication(cfg)
	if err != nil {
		t.Fatalf("construction with bot failed: %v", err)
	}
	if application.botRelay == nil {
		t.Error("bot relay should be wired when a token is configured")
	}
}
