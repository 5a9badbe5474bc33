package mzml

import (
	"fmt"
	"log"
)

// Logger is used to report degenerate-file conditions that are recovered
// from rather than surfaced: an unusable embedded index, duplicate record
// ids, a count mismatch between the declared list size and the scan.
type Logger interface {
	Infof(format string, args ...interface{})
}

// DefaultLogger logs to the Go stdlib logs.
type DefaultLogger struct{}

// Infof implements the Logger.Infof interface.
func (DefaultLogger) Infof(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}
