package scheduler

import (
	"time"
)

// Config controls how generation runs are bounded and who they run as.
type Config struct {
	JobTimeout    time.Duration
	SystemActorID string
	LockPrefix    string
}

func DefaultConfig() Config {
	return Config{
		JobTimeout:    20 * time.Minute,
		SystemActorID: "scheduler",
		LockPrefix:    "societybill:generate",
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.SystemActorID == "" {
		c.SystemActorID = defaults.SystemActorID
	}
	if c.LockPrefix == "" {
		c.LockPrefix = defaults.LockPrefix
	}
	return c
}
