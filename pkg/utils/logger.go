package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Level         string `json:"level" yaml:"level"`
	Format        string `json:"format" yaml:"format"` // text or json
	FileLocation  string `json:"file_location" yaml:"file_location"`
	MaxSize       int    `json:"max_size" yaml:"max_size"` // megabytes
	MaxBackups    int    `json:"max_backups" yaml:"max_backups"`
	MaxAge        int    `json:"max_age" yaml:"max_age"` // days
	Compress      bool   `json:"compress" yaml:"compress"`
	EnableConsole bool   `json:"enable_console" yaml:"enable_console"`
}

// Logger is the run-wide logrus logger. It stamps every line with the
// process identity and owns the rotating file sink when one is configured.
type Logger struct {
	*logrus.Logger
	fileSink io.Closer
}

func NewLogger(config LogConfig, service, version string) (*Logger, error) {
	l := &Logger{Logger: logrus.New()}

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(config.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.SetFormatter(newFormatter(config.Format))

	var writers []io.Writer
	if config.FileLocation != "" {
		if err := os.MkdirAll(filepath.Dir(config.FileLocation), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		sink := &lumberjack.Logger{
			Filename:   config.FileLocation,
			MaxSize:    maxSizeOrDefault(config.MaxSize),
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		l.fileSink = sink
		writers = append(writers, sink)
	}
	if config.EnableConsole || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	l.SetOutput(io.MultiWriter(writers...))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	l.AddHook(&runFieldsHook{service: service, version: version, hostname: hostname})

	return l, nil
}

func newFormatter(format string) logrus.Formatter {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "severity",
				logrus.FieldKeyMsg:   "message",
			},
		}
	}
	return &logrus.TextFormatter{
		TimestampFormat: time.RFC3339Nano,
		FullTimestamp:   true,
		DisableColors:   true,
	}
}

func maxSizeOrDefault(mb int) int {
	if mb > 0 {
		return mb
	}
	return 50
}

// Close releases the rotating file sink, if any. Safe to call once at the
// end of a run.
func (l *Logger) Close() error {
	if l.fileSink == nil {
		return nil
	}
	return l.fileSink.Close()
}

// WithComponent scopes an entry to one pipeline stage (snapshot, status,
// ctlag, reporting).
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.WithField("component", component)
}

// WithSlot scopes an entry to one snapshot slot.
func (l *Logger) WithSlot(slot fmt.Stringer) *logrus.Entry {
	return l.WithField("slot", slot.String())
}

// runFieldsHook stamps every entry with the identity of the emitting
// process so aggregated log streams stay attributable.
type runFieldsHook struct {
	service  string
	version  string
	hostname string
}

func (h *runFieldsHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *runFieldsHook) Fire(entry *logrus.Entry) error {
	entry.Data["service"] = h.service
	entry.Data["version"] = h.version
	entry.Data["hostname"] = h.hostname
	return nil
}
