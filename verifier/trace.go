package verifier

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// trace accumulates the per-result diagnostic lines. Lines are captured only
// in verbose mode; they are always mirrored to the engine logger at debug
// level.
type trace struct {
	verbose bool
	log     logrus.FieldLogger
	lines   []string
}

func newTrace(verbose bool, log logrus.FieldLogger) *trace {
	return &trace{verbose: verbose, log: log}
}

func (t *trace) logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	t.log.Debug(msg)
	if t.verbose {
		t.lines = append(t.lines, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg))
	}
}
