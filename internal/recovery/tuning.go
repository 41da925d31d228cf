package recovery

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultRetryDelay is the wait-and-retry pause for network failures.
const defaultRetryDelay = 5 * time.Second

// Duration decodes "5s"-style strings from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}

	*d = Duration(parsed)

	return nil
}

// Tuning adjusts recovery behavior. Loaded once at startup; chains are
// immutable afterwards.
type Tuning struct {
	// RetryDelay is the fixed pause of the wait-and-retry network
	// action.
	RetryDelay Duration `yaml:"retry_delay"`

	// MaxErrorHistory bounds the error record history.
	MaxErrorHistory int `yaml:"max_error_history"`

	// DisabledActions removes named actions from a category's chain,
	// e.g. {NETWORK_ERROR: [offline-mode]}.
	DisabledActions map[string][]string `yaml:"disabled_actions"`
}

// DefaultTuning returns the built-in tuning values.
func DefaultTuning() Tuning {
	return Tuning{
		RetryDelay:      Duration(defaultRetryDelay),
		MaxErrorHistory: defaultMaxHistory,
	}
}

// LoadTuning reads the optional YAML tuning file. An empty path returns
// the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("reading tuning file: %w", err)
	}

	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parsing tuning file: %w", err)
	}

	if t.RetryDelay <= 0 {
		t.RetryDelay = Duration(defaultRetryDelay)
	}

	if t.MaxErrorHistory <= 0 {
		t.MaxErrorHistory = defaultMaxHistory
	}

	return t, nil
}
