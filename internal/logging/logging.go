package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"labyrinth-server/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	writerMu sync.RWMutex
	writer   io.Writer = os.Stdout
	file     *lumberjack.Logger
)

// Init configures the global zerolog logger and the shared sink returned by Writer.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var sink io.Writer = os.Stdout
	var fw *lumberjack.Logger
	if path := strings.TrimSpace(cfg.File); path != "" {
		fw = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    max(cfg.MaxMB, 1),
			MaxBackups: max(cfg.KeepRotated, 1),
		}
		sink = io.MultiWriter(os.Stdout, fw)
	}
	setWriter(sink, fw)

	var output io.Writer = sink
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: sink}
	}

	zerolog.SetGlobalLevel(level)
	lctx := zerolog.New(output).With().Timestamp()
	if svc := strings.TrimSpace(cfg.Service); svc != "" {
		lctx = lctx.Str("service", svc)
	}
	logger := lctx.Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

// Writer returns the raw sink used by the request logger.
func Writer() io.Writer {
	writerMu.RLock()
	defer writerMu.RUnlock()
	return writer
}

// Close closes the log file, if any.
func Close() error {
	writerMu.RLock()
	defer writerMu.RUnlock()
	if file == nil {
		return nil
	}
	return file.Close()
}

func setWriter(w io.Writer, f *lumberjack.Logger) {
	writerMu.Lock()
	prev := file
	writer, file = w, f
	writerMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
}
