// Package metrics provides Prometheus collectors for the SafeGuard components.
package metrics

import "github.com/tphakala/safeguard-go/internal/logger"

// GetLogger returns the module logger for metrics.
func GetLogger() logger.Logger { return logger.Global().Module("metrics") }
