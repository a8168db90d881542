package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

// LogBuild collects logger settings before the logger is made.
type LogBuild struct {
	writer  io.Writer
	path    string
	level   string
	console bool
}

// LogData is a constructed logger and the file it writes to, if any.
type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{level: "info"}
}

func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromWriter(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

func (build *LogBuild) WithLevel(level string) *LogBuild {
	if level != "" {
		build.level = level
	}
	return build
}

// Console switches to human readable output instead of JSON lines.
func (build *LogBuild) Console(enabled bool) *LogBuild {
	build.console = enabled
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	level, err := zerolog.ParseLevel(strings.ToLower(build.level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", build.level, err)
	}

	logData = new(LogData)
	var writer io.Writer = os.Stderr
	if build.writer != nil {
		writer = build.writer
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		writer = zerolog.SyncWriter(logData.LogFile)
	}
	if build.console {
		writer = zerolog.ConsoleWriter{Out: writer, NoColor: build.path != ""}
	}
	logData.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return
}

// Close closes the log file if one was opened.
func (logData *LogData) Close() error {
	if logData == nil || logData.LogFile == nil {
		return nil
	}
	return logData.LogFile.Close()
}

// Component returns a child logger tagged with a component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
