package wget

import (
	"io"
	"log"

	"github.com/cognusion/go-sequence"
)

// seq mints short correlation ids for log lines, one per download attempt.
var seq = sequence.New(0)

// discardLogger returns a *log.Logger that throws everything away, used
// whenever a caller leaves TimingsOut/DebugOut nil.
func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func loggerOrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return discardLogger()
	}
	return l
}
