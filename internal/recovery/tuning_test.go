package recovery

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTuningFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "recovery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadTuning_EmptyPathReturnsDefaults(t *testing.T) {
	tuning, err := LoadTuning("")

	require.NoError(t, err)
	assert.Equal(t, DefaultTuning(), tuning)
}

func TestLoadTuning_ParsesFile(t *testing.T) {
	path := writeTuningFile(t, `
retry_delay: 250ms
max_error_history: 10
disabled_actions:
  NETWORK_ERROR:
    - offline-mode
`)

	tuning, err := LoadTuning(path)

	require.NoError(t, err)
	assert.Equal(t, Duration(250*time.Millisecond), tuning.RetryDelay)
	assert.Equal(t, 10, tuning.MaxErrorHistory)
	assert.Equal(t, []string{"offline-mode"}, tuning.DisabledActions["NETWORK_ERROR"])
}

func TestLoadTuning_PartialFileKeepsDefaults(t *testing.T) {
	path := writeTuningFile(t, "max_error_history: 25\n")

	tuning, err := LoadTuning(path)

	require.NoError(t, err)
	assert.Equal(t, Duration(defaultRetryDelay), tuning.RetryDelay)
	assert.Equal(t, 25, tuning.MaxErrorHistory)
}

func TestLoadTuning_FlooredValues(t *testing.T) {
	path := writeTuningFile(t, "retry_delay: 0s\nmax_error_history: -3\n")

	tuning, err := LoadTuning(path)

	require.NoError(t, err)
	assert.Equal(t, Duration(defaultRetryDelay), tuning.RetryDelay)
	assert.Equal(t, defaultMaxHistory, tuning.MaxErrorHistory)
}

func TestLoadTuning_MissingFile(t *testing.T) {
	tuning, err := LoadTuning(filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	// Defaults still come back so the caller can proceed.
	assert.Equal(t, DefaultTuning(), tuning)
}

func TestLoadTuning_BadDuration(t *testing.T) {
	path := writeTuningFile(t, "retry_delay: soonish\n")

	_, err := LoadTuning(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing tuning file")
}
