// Package logging provides level-based logging for the server. All output
// goes to stderr so nothing on stdout is ever polluted by server chatter —
// the executor's own stdout/stderr capture (internal/executor) depends on
// this discipline staying clean end to end.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type Logger struct {
	debugEnabled bool
	infoLogger   *log.Logger
	debugLogger  *log.Logger
}

var globalLogger *Logger

// Initialize sets up the global logger. Safe to call more than once (tests
// do, to flip debugMode).
func Initialize(debugMode bool) {
	var output io.Writer = os.Stderr

	globalLogger = &Logger{
		debugEnabled: debugMode,
		infoLogger:   log.New(output, "", log.LstdFlags),
		debugLogger:  log.New(output, "", log.LstdFlags),
	}
}

func ensure() {
	if globalLogger == nil {
		Initialize(false)
	}
}

// Fields formats key=value pairs for appending to a log line, e.g.
// logging.Info("pipeline transition" + logging.Fields("job", id, "state", s))
func Fields(kv ...interface{}) string {
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(" [")
	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%v=%v", kv[i], kv[i+1])
	}
	b.WriteString("]")
	return b.String()
}

func Info(format string, args ...interface{}) {
	ensure()
	globalLogger.infoLogger.Printf(format, args...)
}

func Debug(format string, args ...interface{}) {
	ensure()
	if globalLogger.debugEnabled {
		globalLogger.debugLogger.Printf("DEBUG: "+format, args...)
	}
}

func Error(format string, args ...interface{}) {
	ensure()
	globalLogger.infoLogger.Printf("ERROR: "+format, args...)
}

func IsDebugEnabled() bool {
	ensure()
	return globalLogger.debugEnabled
}
