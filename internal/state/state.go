package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/smartcapture/sessionlink/internal/recovery"
)

const (
	// stateDirPerm is the permission mode for the state directory
	// (~/.sessionlink/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt
	// database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	appBucket  = []byte("app")
	flagsKey   = []byte("feature_flags")
	historyKey = []byte("error_history")
	sessionKey = []byte("last_session")
)

// State persists degraded-mode feature flags and recent error records.
// A workstation restarting mid-procedure comes back in the same
// degraded state instead of silently re-enabling a feature that was
// fail-safed.
type State struct {
	db *bolt.DB
}

func dbPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".sessionlink", "state.db")
}

// Load opens the state database at ~/.sessionlink/state.db, creating
// it if it does not exist.
func Load() (*State, error) {
	return LoadAt(dbPath())
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(appBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// Flags returns the persisted feature-flag state. The second return is
// false when nothing has been persisted yet.
func (s *State) Flags() (recovery.FlagState, bool, error) {
	var (
		fs    recovery.FlagState
		found bool
	)

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(flagsKey)
		if v == nil {
			return nil
		}

		found = true

		return json.Unmarshal(v, &fs)
	})
	if err != nil {
		return recovery.FlagState{}, false, fmt.Errorf("loading flags: %w", err)
	}

	return fs, found, nil
}

// SetFlags persists the feature-flag state.
func (s *State) SetFlags(fs recovery.FlagState) error {
	data, err := json.Marshal(fs)
	if err != nil {
		return fmt.Errorf("marshalling flags: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(flagsKey, data)
	})
}

// History returns the persisted error records, most recent first.
func (s *State) History() ([]recovery.ErrorRecord, error) {
	var records []recovery.ErrorRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(historyKey)
		if v == nil {
			return nil
		}

		return json.Unmarshal(v, &records)
	})
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	return records, nil
}

// SetHistory persists the error records, most recent first.
func (s *State) SetHistory(records []recovery.ErrorRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshalling history: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(historyKey, data)
	})
}

// LastSession returns the most recently connected session ID, or empty
// string.
func (s *State) LastSession() string {
	var id string

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(sessionKey)
		if v != nil {
			id = string(v)
		}

		return nil
	})

	return id
}

// SetLastSession persists the session ID.
func (s *State) SetLastSession(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(sessionKey, []byte(id))
	})
}
