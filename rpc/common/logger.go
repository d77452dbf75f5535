package common

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

// levels maps the accepted level names to dragonboat levels
var levels = map[string]logger.LogLevel{
	"debug":   logger.DEBUG,
	"info":    logger.INFO,
	"warn":    logger.WARNING,
	"warning": logger.WARNING,
	"error":   logger.ERROR,
}

// levelTags are the fixed width tags written in front of every line
var levelTags = map[logger.LogLevel]string{
	logger.DEBUG:    "DBG",
	logger.INFO:     "INF",
	logger.WARNING:  "WRN",
	logger.ERROR:    "ERR",
	logger.CRITICAL: "CRT",
}

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return lvl, nil
	}
	return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
}

// --------------------------------------------------------------------------
// Output shared by all loggers
// --------------------------------------------------------------------------

// sink serializes the lines of all named loggers onto one writer
type sink struct {
	mu  sync.Mutex
	out io.Writer
}

var output = &sink{out: os.Stdout}

// SetLogOutput redirects the output of all loggers created by CreateLogger
func SetLogOutput(w io.Writer) {
	output.mu.Lock()
	defer output.mu.Unlock()
	output.out = w
}

func (s *sink) write(tag, name, msg string) {
	line := fmt.Sprintf("%s %s %-13s %s\n", time.Now().Format("2006-01-02 15:04:05.000"), tag, name, msg)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.out, line)
}

// --------------------------------------------------------------------------
// Named logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

type namedLogger struct {
	name  string
	level atomic.Int32
}

// CreateLogger is the dragonboat logger factory. New loggers start at INFO.
func CreateLogger(name string) logger.ILogger {
	l := &namedLogger{name: name}
	l.level.Store(int32(logger.INFO))
	return l
}

func (l *namedLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *namedLogger) Debugf(format string, args ...any) { l.logf(logger.DEBUG, format, args) }

func (l *namedLogger) Infof(format string, args ...any) { l.logf(logger.INFO, format, args) }

func (l *namedLogger) Warningf(format string, args ...any) { l.logf(logger.WARNING, format, args) }

func (l *namedLogger) Errorf(format string, args ...any) { l.logf(logger.ERROR, format, args) }

// Panicf logs at CRITICAL and panics regardless of the level
func (l *namedLogger) Panicf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	output.write(levelTags[logger.CRITICAL], l.name, msg)
	panic(msg)
}

func (l *namedLogger) logf(level logger.LogLevel, format string, args []any) {
	if logger.LogLevel(l.level.Load()) < level {
		return
	}
	output.write(levelTags[level], l.name, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// loggerNames lists the dragonboat internals followed by the loggers of this module
var loggerNames = []string{
	"raft", "raftdb", "rsm", "transport", "dragonboat", "grpc", "util", "logdb",
	"store", "database", "client", "transport/rpc", "rpc",
}

// factoryOnce guards the factory installation, dragonboat panics when it is set twice
var factoryOnce sync.Once

// InitLoggers installs the custom format for all loggers and sets their level.
// It may be called repeatedly (e.g. by every server of a process).
// An invalid level is reported as an error and leaves the loggers at INFO.
func InitLoggers(level string) error {
	factoryOnce.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})

	lvl, err := ParseLogLevel(level)
	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return err
}
