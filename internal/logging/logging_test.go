package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogger(t *testing.T) {
	t.Cleanup(func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
	})
}

func TestSetupLevel(t *testing.T) {
	resetLogger(t)

	closer, err := Setup(Options{Level: "debug"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	formatter, ok := logrus.StandardLogger().Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.True(t, formatter.FullTimestamp)
}

func TestSetupDefaultsToInfo(t *testing.T) {
	resetLogger(t)

	closer, err := Setup(Options{})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

func TestSetupInvalidLevel(t *testing.T) {
	resetLogger(t)

	_, err := Setup(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestSetupWritesFile(t *testing.T) {
	resetLogger(t)
	path := filepath.Join(t.TempDir(), "logs", "transport.log")

	closer, err := Setup(Options{Level: "info", File: path})
	require.NoError(t, err)

	logrus.WithField("component", "test").Info("hello rotation")
	require.NoError(t, closer.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello rotation")
	assert.Contains(t, string(content), "component=test")
}
