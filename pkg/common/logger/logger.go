package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is usable straight from import so library packages can log without any
// service bootstrap. Init applies env-driven configuration on startup.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init applies LOG_LEVEL from the environment to the shared logger.
func Init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Log.SetLevel(logLevel)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}
