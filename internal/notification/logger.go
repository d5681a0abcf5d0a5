package notification

import "github.com/tphakala/safeguard-go/internal/logger"

// GetLogger returns the module logger for notifications.
func GetLogger() logger.Logger { return logger.Global().Module("notification") }
