package dispatch

import "github.com/tphakala/safeguard-go/internal/logger"

// GetLogger returns the module logger for dispatch.
func GetLogger() logger.Logger { return logger.Global().Module("dispatch") }
