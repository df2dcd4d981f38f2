package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
)

// Library packages log from code paths exercised in their own tests, long
// before any service main runs Init. The shared logger must work from import.
func TestLogUsableWithoutInit(t *testing.T) {
	if Log == nil {
		t.Fatal("Log is nil at import time")
	}
	Log.WithField("product", "intune").Debug("usable before Init")
	WithFields(logrus.Fields{"source": "reddit"}).Debug("usable before Init")
}

func TestInitAppliesLogLevel(t *testing.T) {
	defer Log.SetLevel(logrus.InfoLevel)

	t.Setenv("LOG_LEVEL", "warn")
	Init()
	if Log.GetLevel() != logrus.WarnLevel {
		t.Errorf("level = %v, want warn", Log.GetLevel())
	}

	t.Setenv("LOG_LEVEL", "not-a-level")
	Init()
	if Log.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want info fallback", Log.GetLevel())
	}
}
