package logger

import (
	"fmt"
	"strings"
	"testing"
)

var _ Logger = Test{}

// Test is a Logger writing through testing.TB, so that the logs of a
// snapshot Writer or Reconciler show up next to the failing test.
type Test struct{ t testing.TB }

// NewTest returns a Test logger bound to the provided test.
func NewTest(t testing.TB) Test {
	return Test{t: t}
}

func (t Test) log(level, msg string, fields []Field) {
	t.t.Helper()

	var b strings.Builder
	for _, field := range fields {
		fmt.Fprintf(&b, " %s=%v", field.Key, field.Value)
	}

	t.t.Logf("[%s] %s%s", level, msg, b.String())
}

// Debug implements the Logger interface.
func (t Test) Debug(msg string, fields ...Field) {
	t.t.Helper()
	t.log("debug", msg, fields)
}

// Info implements the Logger interface.
func (t Test) Info(msg string, fields ...Field) {
	t.t.Helper()
	t.log("info", msg, fields)
}

// Error implements the Logger interface.
func (t Test) Error(msg string, fields ...Field) {
	t.t.Helper()
	t.log("error", msg, fields)
}
