package output

import (
	"io"
	"log"
)

var diagLogger *log.Logger

// SetLogWriters configures logging for the output package. Failures are
// returned to the caller, so only the diag stream is used.
func SetLogWriters(ops, diag, trace io.Writer) {
	if diag == nil {
		diagLogger = nil
		return
	}
	diagLogger = log.New(diag, "[output] ", log.LstdFlags|log.Lmicroseconds)
}

func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}
