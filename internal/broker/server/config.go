package server

import (
	"time"

	"github.com/asyncbroker/jobbroker/internal/broker/keys"
	"github.com/asyncbroker/jobbroker/internal/platform/envutil"
	"github.com/asyncbroker/jobbroker/internal/platform/logger"
)

// Config holds the scalar options recognized on server construction
// (prefix, resolution, delay, factor; codec and parent are constructor
// arguments rather than Config fields since they are collaborator
// objects, not scalars).
type Config struct {
	Prefix     string
	Resolution time.Duration
	Delay      time.Duration
	Factor     float64
	// Concurrency bounds how many job handlers the default idler runs at
	// once; exposed here so operators can tune the default idler without
	// supplying their own Scheduler.
	Concurrency int64
}

const (
	DefaultResolution  = 10 * time.Second
	DefaultDelay       = 5 * time.Second
	DefaultFactor      = 2.0
	DefaultConcurrency = 8
)

func DefaultConfig() Config {
	return Config{
		Prefix:      keys.DefaultPrefix,
		Resolution:  DefaultResolution,
		Delay:       DefaultDelay,
		Factor:      DefaultFactor,
		Concurrency: DefaultConcurrency,
	}
}

// LoadConfig reads overrides from the process environment, logging
// whenever a variable fails to parse.
func LoadConfig(log *logger.Logger) Config {
	cfg := DefaultConfig()
	cfg.Prefix = envutil.String("BROKER_PREFIX", cfg.Prefix, log)
	cfg.Resolution = envutil.Seconds("BROKER_RESOLUTION", cfg.Resolution, log)
	cfg.Delay = envutil.Seconds("BROKER_DELAY", cfg.Delay, log)
	cfg.Factor = envutil.Float("BROKER_FACTOR", cfg.Factor, log)
	cfg.Concurrency = int64(envutil.Int("BROKER_CONCURRENCY", int(cfg.Concurrency), log))
	return cfg
}
