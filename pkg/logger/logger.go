// Package logger holds rig's global zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogConfig configures Init.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level" yaml:"level"`    // debug, info, warn, error, off
	Format string `json:"format" mapstructure:"format" yaml:"format"` // console or json
	File   string `json:"file" mapstructure:"file" yaml:"file,omitempty"`
}

var (
	mu   sync.RWMutex
	base *zerolog.Logger
	file *os.File
)

// levelAliases are accepted in addition to zerolog's own level names.
var levelAliases = map[string]zerolog.Level{
	"warning": zerolog.WarnLevel,
	"off":     zerolog.Disabled,
}

func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if l, ok := levelAliases[level]; ok {
		return l
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

// Init replaces the global logger. Console output goes to stderr; when
// File is set JSON lines are also appended there.
func Init(cfg LogConfig) error {
	mu.Lock()
	defer mu.Unlock()

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var out io.Writer = os.Stderr
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	if file != nil {
		_ = file.Close()
		file = nil
	}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", cfg.File, err)
		}
		file = f
		out = zerolog.MultiLevelWriter(out, f)
	}

	l := zerolog.New(out).With().Timestamp().Logger()
	base = &l
	return nil
}

// SetOutput sends JSON log lines to w. The global level is unchanged.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	l := zerolog.New(w).With().Timestamp().Logger()
	base = &l
}

// Get returns a copy of the global logger. Before Init it logs JSON to stderr.
func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	var l zerolog.Logger
	if base == nil {
		l = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		l = *base
	}
	return &l
}

// With returns a child of the global logger carrying fields.
func With(fields map[string]any) *zerolog.Logger {
	l := Get().With().Fields(fields).Logger()
	return &l
}

// Close closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

func Debug() *zerolog.Event { return Get().Debug() }
func Info() *zerolog.Event  { return Get().Info() }
func Warn() *zerolog.Event  { return Get().Warn() }
func Error() *zerolog.Event { return Get().Error() }
