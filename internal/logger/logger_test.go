package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	t.Run("writes to log file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "logs", "import.log")

		closeLog, err := Setup(Options{File: file, Level: "debug"})
		require.NoError(t, err)

		NewLogger("Test").Debug("hello %s", "world")
		require.NoError(t, closeLog())

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello world")
		assert.Contains(t, string(data), "module=Test")
	})

	t.Run("level filters entries", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "import.log")

		closeLog, err := Setup(Options{File: file, Level: "warn"})
		require.NoError(t, err)

		log := NewLogger("Test")
		log.Info("dropped")
		log.Warn("kept")
		require.NoError(t, closeLog())

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "dropped")
		assert.Contains(t, string(data), "kept")
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := Setup(Options{File: Stderr, Level: "loud"})
		assert.Error(t, err)
	})

	t.Run("stderr destination", func(t *testing.T) {
		closeLog, err := Setup(Options{File: Stderr, Level: "info"})
		require.NoError(t, err)
		assert.NoError(t, closeLog())
	})
}

func TestWith(t *testing.T) {
	file := filepath.Join(t.TempDir(), "import.log")

	closeLog, err := Setup(Options{File: file, Level: "debug"})
	require.NoError(t, err)

	NewLogger("Test").With("vm", "vm-1").Error("import failed")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vm=vm-1")
	assert.Contains(t, string(data), "level=error")
}
