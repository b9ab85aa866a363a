// Package envutil reads process-environment configuration with typed
// defaults, logging whenever a numeric value fails to parse. A missing or
// blank variable silently yields the default.
package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/asyncbroker/jobbroker/internal/platform/logger"
)

func String(key, def string, log *logger.Logger) string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func Int(key string, def int, log *logger.Logger) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Warn("invalid int env var, using default", "env_var", key, "value", v, "default", def)
		}
		return def
	}
	return i
}

func Float(key string, def float64, log *logger.Logger) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		if log != nil {
			log.Warn("invalid float env var, using default", "env_var", key, "value", v, "default", def)
		}
		return def
	}
	return f
}

// Seconds reads a variable expressed in seconds (fractions allowed, e.g.
// "0.1") into a time.Duration.
func Seconds(key string, def time.Duration, log *logger.Logger) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		if log != nil {
			log.Warn("invalid duration env var, using default", "env_var", key, "value", v, "default", def)
		}
		return def
	}
	return time.Duration(f * float64(time.Second))
}
