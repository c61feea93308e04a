package config

import (
	"github.com/spf13/viper"
)

type Sweeper struct {
	GroupID    string
	DLQTopic   string
	RunOnStart bool
}

// LoadSweeper reads the sweeper keys. The dead-letter topic defaults to the
// occupancy topic with a ".dlq" suffix.
func LoadSweeper(v *viper.Viper, occupancyTopic string) Sweeper {
	v.SetDefault(EnvSweeperGroupID, DefaultSweeperGroupID)
	v.SetDefault(EnvSweeperDLQTopic, occupancyTopic+".dlq")
	v.SetDefault(EnvSweeperRunOnStart, DefaultSweeperRunOnStart)

	return Sweeper{
		GroupID:    v.GetString(EnvSweeperGroupID),
		DLQTopic:   v.GetString(EnvSweeperDLQTopic),
		RunOnStart: v.GetBool(EnvSweeperRunOnStart),
	}
}
