package recovery

import "sync"

// FlagState is a point-in-time copy of the feature flags.
type FlagState struct {
	RealtimeUpdates   bool `json:"realtime_updates"`
	MediaEngine       bool `json:"media_engine"`
	UnifiedThumbnails bool `json:"unified_thumbnails"`
	OfflineMode       bool `json:"offline_mode"`
	LegacyMode        bool `json:"legacy_mode"`
	BasicPlayerMode   bool `json:"basic_player_mode"`
}

// AllEnabled is the startup flag state: every feature on, no degraded
// modes.
func AllEnabled() FlagState {
	return FlagState{
		RealtimeUpdates:   true,
		MediaEngine:       true,
		UnifiedThumbnails: true,
	}
}

// FeatureFlags gates feature paths across the application. Single-writer
// discipline: only the recovery engine and the failsafe controller
// mutate it, everything else reads. Degraded flags are never cleared
// automatically; only an explicit reconnect or manual retry resets them.
type FeatureFlags struct {
	mu       sync.RWMutex
	s        FlagState
	onChange func(FlagState)
}

// NewFeatureFlags creates flags in the all-enabled startup state.
func NewFeatureFlags() *FeatureFlags {
	return &FeatureFlags{s: AllEnabled()}
}

// OnChange registers a hook invoked with the new state after every
// mutation. Used to persist degraded state across restarts.
func (f *FeatureFlags) OnChange(fn func(FlagState)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.onChange = fn
}

// Snapshot returns the current flag state.
func (f *FeatureFlags) Snapshot() FlagState {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.s
}

// Restore replaces the flag state, e.g. from persisted state at
// startup.
func (f *FeatureFlags) Restore(s FlagState) {
	f.apply(func(fs *FlagState) { *fs = s })
}

// Reset returns every flag to the all-enabled startup state. Called on
// explicit reconnect or manual retry, never automatically.
func (f *FeatureFlags) Reset() {
	f.apply(func(fs *FlagState) { *fs = AllEnabled() })
}

func (f *FeatureFlags) SetRealtimeUpdates(v bool) {
	f.apply(func(fs *FlagState) { fs.RealtimeUpdates = v })
}

func (f *FeatureFlags) SetMediaEngine(v bool) {
	f.apply(func(fs *FlagState) { fs.MediaEngine = v })
}

func (f *FeatureFlags) SetUnifiedThumbnails(v bool) {
	f.apply(func(fs *FlagState) { fs.UnifiedThumbnails = v })
}

func (f *FeatureFlags) SetOfflineMode(v bool) {
	f.apply(func(fs *FlagState) { fs.OfflineMode = v })
}

func (f *FeatureFlags) SetLegacyMode(v bool) {
	f.apply(func(fs *FlagState) { fs.LegacyMode = v })
}

func (f *FeatureFlags) SetBasicPlayerMode(v bool) {
	f.apply(func(fs *FlagState) { fs.BasicPlayerMode = v })
}

func (f *FeatureFlags) apply(mutate func(*FlagState)) {
	f.mu.Lock()
	mutate(&f.s)
	s := f.s
	hook := f.onChange
	f.mu.Unlock()

	if hook != nil {
		hook(s)
	}
}
