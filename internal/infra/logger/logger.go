// internal/infra/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"

	"week_notification_agent/internal/infra/config"

	"github.com/sirupsen/logrus"
)

const serviceName = "week_notification_agent"

// Log is the agent's process-wide logger.
var Log = logrus.New()

// Init applies LOG_LEVEL and ENVIRONMENT to Log and writes to stdout.
func Init(cfg *config.AppConfig) {
	configure(Log, cfg, os.Stdout)
}

func configure(l *logrus.Logger, cfg *config.AppConfig, out io.Writer) {
	l.SetOutput(out)
	l.ReplaceHooks(make(logrus.LevelHooks))
	l.AddHook(staticFields{"service": serviceName, "env": cfg.Environment})

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		l.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", cfg.LogLevel, err)
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	// Deployed agents ship JSON to the platform's log collector.
	if cfg.Environment == "production" || cfg.Environment == "staging" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap:        logrus.FieldMap{logrus.FieldKeyMsg: "message"},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			PadLevelText:    true,
		})
	}

	l.WithField("log_level", level.String()).Debug("Logger configured")
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

// staticFields tags every entry that does not already carry the key.
type staticFields logrus.Fields

func (f staticFields) Levels() []logrus.Level { return logrus.AllLevels }

func (f staticFields) Fire(e *logrus.Entry) error {
	for k, v := range f {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return nil
}
