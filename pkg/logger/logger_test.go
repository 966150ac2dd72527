package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, Init(Config{Level: "debug", OutputFile: path, MaxSize: 1, NoColor: true}))

	Infof("hello %s", "world")
	WithField("component", "test").Warn("careful")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "hello world")
	require.Contains(t, string(b), "component=test")
	require.Equal(t, path, GetCurrentLogFile())
	require.Equal(t, logrus.DebugLevel, Logger.GetLevel())
}

func TestInitBadLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init(Config{Level: "loud", NoColor: true}))
	require.Equal(t, logrus.InfoLevel, Logger.GetLevel())
}
