package plugins

import (
	"io"
	"log"
)

var opsLogger *log.Logger

// SetLogWriters configures logging for built-in composition. Only failures
// are reported, on the ops stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	if ops == nil {
		opsLogger = nil
		return
	}
	opsLogger = log.New(ops, "[plugins] ", log.LstdFlags|log.Lmicroseconds)
}

func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}
