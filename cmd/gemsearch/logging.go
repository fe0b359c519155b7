package main

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mohammad-safakhou/gemsearch/config"
)

func setupLogging(cfg config.GeneralConfig, out io.Writer) error {
	level := zerolog.InfoLevel
	if cfg.LogLevel != "" {
		parsed, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return errors.Wrapf(err, "invalid general.log_level %q", cfg.LogLevel)
		}
		level = parsed
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("env", cfg.Environment).Logger()
	return nil
}
