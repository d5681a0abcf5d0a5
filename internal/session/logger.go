package session

import "github.com/tphakala/safeguard-go/internal/logger"

// GetLogger returns the module logger for sessions.
func GetLogger() logger.Logger { return logger.Global().Module("session") }
