package log

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
)

// Config declares how to build a process logger.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // text|json
	Output string // stderr|stdout|null
}

// ApplyConfig builds a logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	var out Output
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		out = NewConsoleOutput()
	case "stdout":
		out = NewWriterOutput(os.Stdout)
	case "null":
		out = NullOutput{}
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}
	return NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(out)), nil
}

// RedirectStdLog routes the standard library logger (used by Pebble and
// grpc internals) through l at info level.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetPrefix("")
	stdlog.SetOutput(&stdWriter{l: l.With(Component("stdlog"))})
}

type stdWriter struct {
	l Logger
}

func (w *stdWriter) Write(p []byte) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(p))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			w.l.Info(line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*stdWriter)(nil)
