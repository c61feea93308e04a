package config

import (
	"strings"
	"testing"
	"time"
)

const testCursorKey = "lfQVRuulcL2iOhOJ2r8BYTweoSKwVAJnIF9U+AL+M60="

func validConfig(t *testing.T) *Config {
	t.Helper()
	v := NewViper()
	v.Set(EnvJWTSecret, strings.Repeat("s", 32))
	v.Set(EnvCursorKey, testCursorKey)
	return FromViper(v, "test")
}

func TestFromViper_Defaults(t *testing.T) {
	cfg := validConfig(t)

	if cfg.StoreDriver != StoreMongo {
		t.Errorf("StoreDriver = %s, want %s", cfg.StoreDriver, StoreMongo)
	}
	if cfg.SlotPageSize != DefaultSlotPageSize {
		t.Errorf("SlotPageSize = %d, want %d", cfg.SlotPageSize, DefaultSlotPageSize)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %s, want 30m", cfg.SessionTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestFromViper_ParsesStrings(t *testing.T) {
	v := NewViper()
	v.Set(EnvClaimTTL, "45s")
	v.Set(EnvSlotPageSize, "7")
	v.Set(EnvEventsEnabled, "false")
	cfg := FromViper(v, "test")

	if cfg.ClaimTTL != 45*time.Second {
		t.Errorf("ClaimTTL = %s, want 45s", cfg.ClaimTTL)
	}
	if cfg.SlotPageSize != 7 {
		t.Errorf("SlotPageSize = %d, want 7", cfg.SlotPageSize)
	}
	if cfg.EventsEnabled {
		t.Errorf("EventsEnabled should be false")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Port = "99999" },
			wantErr: "Port must be between",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.StoreDriver = "postgres" },
			wantErr: "StoreDriver must be one of",
		},
		{
			name:    "firestore without project",
			mutate:  func(c *Config) { c.StoreDriver = StoreFirestore },
			wantErr: "FirebaseProjectID is required when StoreDriver",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.JWTSecret = "short" },
			wantErr: "JWTSecret must be at least 32",
		},
		{
			name:    "bad cursor key",
			mutate:  func(c *Config) { c.CursorKey = "not-base64" },
			wantErr: "CursorKey must be",
		},
		{
			name:    "page size above max",
			mutate:  func(c *Config) { c.SlotPageSize = 100 },
			wantErr: "MaxSlotPageSize",
		},
		{
			name:    "bad cron",
			mutate:  func(c *Config) { c.SweepSchedule = "whenever" },
			wantErr: "SweepSchedule",
		},
		{
			name:    "zero claim ttl",
			mutate:  func(c *Config) { c.ClaimTTL = 0 },
			wantErr: "ClaimTTL must be positive",
		},
		{
			name:   "memory store skips redis",
			mutate: func(c *Config) { c.StoreDriver = StoreMemory; c.RedisAddr = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNormalizeSlotPageSize(t *testing.T) {
	cfg := validConfig(t)

	if got := cfg.NormalizeSlotPageSize(0); got != DefaultSlotPageSize {
		t.Errorf("NormalizeSlotPageSize(0) = %d", got)
	}
	if got := cfg.NormalizeSlotPageSize(12); got != 12 {
		t.Errorf("NormalizeSlotPageSize(12) = %d", got)
	}
	if got := cfg.NormalizeSlotPageSize(1000); got != DefaultMaxSlotPageSize {
		t.Errorf("NormalizeSlotPageSize(1000) = %d", got)
	}
}

func TestRedactMongoURI(t *testing.T) {
	got := redactMongoURI("mongodb://admin:secret@db:27017")
	if strings.Contains(got, "secret") {
		t.Errorf("credentials leaked: %s", got)
	}
}
