package httpserver

import "github.com/tphakala/safeguard-go/internal/logger"

// GetLogger returns the module logger for the HTTP server.
func GetLogger() logger.Logger { return logger.Global().Module("httpserver") }
