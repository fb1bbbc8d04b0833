package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"hostbot/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	outputMu sync.RWMutex
	output   io.Writer = os.Stdout
)

// Init configures the global zerolog logger. A broken log file falls back to
// stdout so the host keeps running.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var sink io.Writer = os.Stdout
	var fileErr error
	if cfg.File != "" {
		w, err := newRotatingWriter(cfg.File, cfg.MaxMB, cfg.Backups)
		if err != nil {
			fileErr = err
		} else {
			sink = io.MultiWriter(os.Stdout, w)
		}
	}
	outputMu.Lock()
	output = sink
	outputMu.Unlock()

	var console io.Writer = sink
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: sink, TimeFormat: "15:04:05"}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(console).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger

	if fileErr != nil {
		log.Warn().Err(fileErr).Str("path", cfg.File).Msg("log file unavailable, logging to stdout only")
	}
}

// Writer returns the raw sink used by the global logger, for libraries that
// bring their own encoder (httplog).
func Writer() io.Writer {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return output
}
