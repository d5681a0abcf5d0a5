package processor

import "github.com/tphakala/safeguard-go/internal/logger"

// GetLogger returns the module logger for the frame processor.
func GetLogger() logger.Logger { return logger.Global().Module("processor") }
