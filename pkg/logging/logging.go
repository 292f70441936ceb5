// Package logging builds the zerolog logger configured by config.LoggingConfig.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chmenegatti/graphorm/pkg/config"
)

// New returns a logger writing to w. Format "json" writes one JSON object per event;
// anything else uses a console writer. An empty level means info.
func New(cfg config.LoggingConfig, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("logging: %w", err)
		}
		level = parsed
	}

	out := w
	if cfg.Format != "json" {
		out = console(w)
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("component", "graphorm").Logger(), nil
}

func console(w io.Writer) zerolog.ConsoleWriter {
	c := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
		NoColor:    true,
	}
	c.FormatLevel = func(i any) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}
	c.FormatFieldName = func(i any) string {
		return fmt.Sprintf("%s=", i)
	}
	return c
}
