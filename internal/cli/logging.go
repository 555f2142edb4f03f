package cli

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"audio-digest/internal/config"
	"audio-digest/internal/domain"
	"audio-digest/internal/jobs"
)

// newLogger builds the process logger from log.level and log.format.
func newLogger(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		return nil, domain.ConfigError("config", "invalid log.level", err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
		return logger, nil
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
		DisableColors:   !isTerminalWriter(out),
	})
	return logger, nil
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// mirrorEvents writes every job event to the log until the returned func
// is called.
func mirrorEvents(bus *jobs.EventBus, logger logrus.FieldLogger) func() {
	return bus.Subscribe(func(e jobs.Event) {
		entry := logger.WithField("job", shortID(e.JobID))
		if e.File != "" {
			entry = entry.WithField("file", e.File)
		}

		switch e.Type {
		case jobs.EventTypeStatus:
			entry.WithField("stage", e.Status).Info(e.Message)
		case jobs.EventTypeProgress:
			entry.WithFields(logrus.Fields{"stage": e.Status, "done": e.Done, "total": e.Total}).Debug(e.Message)
		case jobs.EventTypeLog:
			entry.WithFields(logrus.Fields{"command": e.Command, "exit": e.ExitCode}).Debug(e.Message)
			if e.ExitCode != 0 && e.Stderr != "" {
				entry.Debug(e.Stderr)
			}
		case jobs.EventTypeResult:
			entry.WithField("path", e.Path).Info(e.Message)
		case jobs.EventTypeError:
			entry.Error(e.Message)
		}
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
