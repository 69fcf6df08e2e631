package telemetry

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	base *logrus.Logger
	once sync.Once
)

func logger() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stdout)
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "ts",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "msg",
			},
		})
		base.SetLevel(logrus.InfoLevel)
	})
	return base
}

// SetOutput redirects all subsequent log lines. Tests use it to capture
// output; CLIs use it to keep stdout clean for their own payload.
func SetOutput(w io.Writer) {
	logger().SetOutput(w)
}

// SetLevel adjusts the minimum level for all subsequent log lines.
func SetLevel(level string) {
	switch level {
	case "debug":
		logger().SetLevel(logrus.DebugLevel)
	case "warn":
		logger().SetLevel(logrus.WarnLevel)
	case "error":
		logger().SetLevel(logrus.ErrorLevel)
	default:
		logger().SetLevel(logrus.InfoLevel)
	}
}

// Debug writes a debug-level log line with the given fields.
func Debug(msg string, fields map[string]any) {
	logger().WithFields(logrus.Fields(fields)).Debug(msg)
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	logger().WithFields(logrus.Fields(fields)).Info(msg)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	logger().WithFields(logrus.Fields(fields)).Warn(msg)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	logger().WithFields(logrus.Fields(fields)).Error(msg)
}
