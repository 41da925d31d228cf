package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcapture/sessionlink/internal/recovery"
)

func openTestState(t *testing.T) *State {
	t.Helper()

	s, err := LoadAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestFlags_NotPersistedYet(t *testing.T) {
	s := openTestState(t)

	_, found, err := s.Flags()

	require.NoError(t, err)
	assert.False(t, found)
}

func TestFlags_Roundtrip(t *testing.T) {
	s := openTestState(t)

	want := recovery.FlagState{
		MediaEngine:     true,
		OfflineMode:     true,
		BasicPlayerMode: true,
	}
	require.NoError(t, s.SetFlags(want))

	got, found, err := s.Flags()

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}

func TestHistory_Roundtrip(t *testing.T) {
	s := openTestState(t)

	records := []recovery.ErrorRecord{
		{
			ID:        "r2",
			Timestamp: time.Now().UTC().Truncate(time.Millisecond),
			Message:   "websocket dropped",
			Category:  recovery.ConnectionFailed,
			Action:    "retry-connection",
			Outcome:   "failure",
		},
		{
			ID:        "r1",
			Timestamp: time.Now().UTC().Truncate(time.Millisecond),
			Message:   "thumbnail generation failed",
			Category:  recovery.ThumbnailFailed,
			Failsafe:  true,
		},
	}
	require.NoError(t, s.SetHistory(records))

	got, err := s.History()

	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestHistory_EmptyDatabase(t *testing.T) {
	s := openTestState(t)

	got, err := s.History()

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLastSession_Roundtrip(t *testing.T) {
	s := openTestState(t)

	assert.Empty(t, s.LastSession())

	require.NoError(t, s.SetLastSession("sess-42"))
	assert.Equal(t, "sess-42", s.LastSession())
}

func TestState_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := LoadAt(path)
	require.NoError(t, err)
	require.NoError(t, s.SetFlags(recovery.FlagState{LegacyMode: true}))
	require.NoError(t, s.SetLastSession("sess-7"))
	require.NoError(t, s.Close())

	s, err = LoadAt(path)
	require.NoError(t, err)

	defer s.Close()

	got, found, err := s.Flags()
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, got.LegacyMode)
	assert.Equal(t, "sess-7", s.LastSession())
}
