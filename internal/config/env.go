package config

// Keys read only by the sweeper service. Shared keys live in pkg/config.
const (
	EnvSweeperGroupID    = "SWEEPER_GROUP_ID"
	EnvSweeperDLQTopic   = "SWEEPER_DLQ_TOPIC"
	EnvSweeperRunOnStart = "SWEEPER_RUN_ON_START"
)

const (
	DefaultSweeperGroupID    = "clinicbook-sweeper"
	DefaultSweeperRunOnStart = true
)
