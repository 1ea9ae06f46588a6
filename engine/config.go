package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config holds configuration for engine creation
type Config struct {
	// Logger receives engine logs. Nil falls back to the package Logger.
	Logger *zap.Logger

	// Registerer registers the engine's metrics. Nil leaves them
	// unregistered; they are still collected.
	Registerer prometheus.Registerer

	// Observer is notified of execution context lifecycle events.
	Observer ContextObserver

	// CacheDir enables wazero's on-disk compilation cache when set.
	CacheDir string

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

func (c *Config) logger() *zap.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return Logger()
}
