// Package logging builds the goakt logger shared by the actor system, the handlers
// and the accelerator device.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/tochemey/goakt/v3/log"
)

// Levels lists the accepted level names.
var Levels = []string{"debug", "info", "warn", "error"}

// ParseLevel maps a level name to a goakt level.
func ParseLevel(name string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarningLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InvalidLevel, fmt.Errorf("unknown log level %q, want one of %s", name, strings.Join(Levels, ", "))
	}
}

// New returns a logger writing to w at the named level. The "off" level discards
// everything.
func New(level string, w io.Writer) (log.Logger, error) {
	if strings.EqualFold(level, "off") {
		return log.DiscardLogger, nil
	}
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return log.New(l, w), nil
}
