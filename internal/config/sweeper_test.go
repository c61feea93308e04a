package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadSweeper_Defaults(t *testing.T) {
	cfg := LoadSweeper(viper.New(), "slot-occupancy")

	if cfg.GroupID != DefaultSweeperGroupID {
		t.Errorf("expected group %q, got %q", DefaultSweeperGroupID, cfg.GroupID)
	}
	if cfg.DLQTopic != "slot-occupancy.dlq" {
		t.Errorf("expected derived dlq topic, got %q", cfg.DLQTopic)
	}
	if !cfg.RunOnStart {
		t.Error("expected run on start by default")
	}
}

func TestLoadSweeper_Overrides(t *testing.T) {
	v := viper.New()
	v.Set(EnvSweeperGroupID, "ops-sweeper")
	v.Set(EnvSweeperDLQTopic, "dead")
	v.Set(EnvSweeperRunOnStart, false)

	cfg := LoadSweeper(v, "slot-occupancy")

	if cfg.GroupID != "ops-sweeper" || cfg.DLQTopic != "dead" || cfg.RunOnStart {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}
