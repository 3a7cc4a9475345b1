package config

import (
	"fmt"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var availableLoggingLevels = []string{"panic", "fatal", "error", "warn", "info", "debug"}
var availableLoggingLevelsString = strings.Join(availableLoggingLevels, ", ")

func validateLoggingLevel(loggingLevel string) bool {
	for _, l := range availableLoggingLevels {
		if l == loggingLevel {
			return true
		}
	}
	return false
}

var (
	loggersMu sync.Mutex
	loggers   = map[string]*logrus.Logger{}
	logLevel  = logrus.InfoLevel
)

// NamedLogger creates named package logger. Every named logger follows the
// level set with SetLogLevel.
func NamedLogger(name string) *logrus.Logger {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[name]; ok {
		return l
	}
	l := &logrus.Logger{
		Out: os.Stderr,
		Formatter: &CustomTextFormatter{
			TextFormatter: logrus.TextFormatter{
				FullTimestamp: true,
				CallerPrettyfier: func(*runtime.Frame) (string, string) {
					return "", ""
				},
			},
			name: name,
		},
		Hooks:        make(logrus.LevelHooks),
		Level:        logLevel,
		ReportCaller: true,
		ExitFunc:     os.Exit,
	}
	loggers[name] = l
	return l
}

// SetLogLevel applies level to every named logger, current and future
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()

	logLevel = lvl
	for _, l := range loggers {
		l.SetLevel(lvl)
	}
	return nil
}

// CustomTextFormatter prefixes messages with the logger name and call site
type CustomTextFormatter struct {
	logrus.TextFormatter
	name string
}

// Format renders a single log entry
func (f *CustomTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry.HasCaller() {
		entry.Message = fmt.Sprintf("[%s %-15s:%03d] %s", f.name, path.Base(entry.Caller.File), entry.Caller.Line, entry.Message)
	} else {
		entry.Message = fmt.Sprintf("[%s] %s", f.name, entry.Message)
	}
	return f.TextFormatter.Format(entry)
}
