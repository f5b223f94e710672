package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	kunlog "github.com/yaoapp/kun/log"
	"github.com/yaoapp/relay/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	gray   = color.New(color.FgHiBlack)
	cyan   = color.New(color.FgCyan)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

// Logger provides component-level logging. The listener, the store, definition
// loading and the CLI share this implementation.
//
// Dev mode  → colored stderr echo + kun/log.
// Prod mode → kun/log at matching level.
type Logger struct {
	tag string
}

// New creates a Logger tagged with the given component name
// (e.g. "listener", "store", "definition").
func New(tag string) *Logger {
	return &Logger{tag: tag}
}

func (l *Logger) prefix() string {
	return fmt.Sprintf("[relay:%s]", l.tag)
}

func (l *Logger) echo(c *color.Color, mark, msg string) {
	if config.IsDevelopment() {
		c.Fprintf(os.Stderr, "  %s %s %s\n", mark, l.prefix(), msg)
	}
}

func (l *Logger) Trace(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.echo(gray, "→", msg)
	kunlog.Trace("%s %s", l.prefix(), msg)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.echo(gray, "•", msg)
	kunlog.Debug("%s %s", l.prefix(), msg)
}

func (l *Logger) Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.echo(cyan, "ℹ", msg)
	kunlog.Info("%s %s", l.prefix(), msg)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.echo(yellow, "⚠", msg)
	kunlog.Warn("%s %s", l.prefix(), msg)
}

func (l *Logger) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.echo(red, "✗", msg)
	kunlog.Error("%s %s", l.prefix(), msg)
}

// Setup applies the log configuration to kun/log.
// Returns the closer of the log file, if one was opened.
func Setup(cfg config.Config) (io.Closer, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	kunlog.SetLevel(level)

	var closer io.Closer
	if cfg.LogFile != "" {
		rotate := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAge,
			Compress:   true,
		}
		kunlog.SetOutput(rotate)
		closer = rotate
	} else {
		kunlog.SetOutput(os.Stdout)
	}

	switch strings.ToUpper(cfg.LogMode) {
	case "JSON":
		kunlog.SetFormatter(kunlog.JSON)
	case "TEXT":
		kunlog.SetFormatter(kunlog.TEXT)
	default:
		if cfg.LogFile == "" && isatty.IsTerminal(os.Stdout.Fd()) {
			kunlog.SetFormatter(kunlog.TEXT)
		} else {
			kunlog.SetFormatter(kunlog.JSON)
		}
	}
	return closer, nil
}

func parseLevel(s string) (kunlog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return kunlog.TraceLevel, nil
	case "debug":
		return kunlog.DebugLevel, nil
	case "", "info":
		return kunlog.InfoLevel, nil
	case "warn", "warning":
		return kunlog.WarnLevel, nil
	case "error":
		return kunlog.ErrorLevel, nil
	}
	return kunlog.InfoLevel, fmt.Errorf("logger: unknown level %q", s)
}
