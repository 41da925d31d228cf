package recovery

import (
	"context"
	"log/slog"
	"time"
)

// Reconnector retries the session channel. *session.Client satisfies
// this interface.
type Reconnector interface {
	Retry(ctx context.Context) error
}

// PollingFallback substitutes periodic polling for the realtime
// channel.
type PollingFallback interface {
	Start(ctx context.Context) error
}

// MediaEngine is the adaptive-bitrate playback engine consumed by the
// media recovery chains. Its internals are out of scope here.
type MediaEngine interface {
	Initialize(ctx context.Context) error
	RecoverFromError(ctx context.Context) error
	ReloadSource(ctx context.Context, url string) error
	SourceURL() string
}

// ThumbnailCache is the get/set/size/clear cache owned by the
// thumbnail pipeline.
type ThumbnailCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, data []byte)
	Size() int
	Clear()
}

// ThumbnailPipeline produces preview thumbnails for recorded segments.
type ThumbnailPipeline interface {
	ClearCache() error
	Regenerate(ctx context.Context) error
	FrameExtractionFallback(ctx context.Context) error
	UsePlaceholders()
}

// HostBridge is the one-way channel to the host application shell.
type HostBridge interface {
	PostMessage(data []byte) error
}

// Deps are the collaborators the default recovery chains act on. All
// fields must be non-nil; a nil collaborator makes its actions panic,
// which the engine converts to an action failure.
type Deps struct {
	Conn    Reconnector
	Polling PollingFallback
	Media   MediaEngine
	Thumbs  ThumbnailPipeline
	Flags   *FeatureFlags
	Tuning  Tuning
	Logger  *slog.Logger
}

// DefaultChains builds the category to ordered-actions mapping.
// Each chain degrades in steps: first retry the failing subsystem,
// then substitute a cheaper mechanism, finally disable the feature.
// Unknown has no chain and falls straight to the failsafe.
func DefaultChains(d Deps) map[Category][]Action {
	chains := map[Category][]Action{
		ConnectionFailed: {
			{Name: "retry-connection", Run: func(ctx context.Context, _ Failure) error {
				if err := d.Conn.Retry(ctx); err != nil {
					return err
				}
				// An explicit successful retry clears the degraded flag.
				d.Flags.SetRealtimeUpdates(true)
				return nil
			}},
			{Name: "polling-fallback", Run: func(ctx context.Context, _ Failure) error {
				return d.Polling.Start(ctx)
			}},
			{Name: "disable-realtime", Run: func(_ context.Context, _ Failure) error {
				d.Flags.SetRealtimeUpdates(false)
				return nil
			}},
		},

		MediaEngineError: {
			{Name: "retry-engine-init", Run: func(ctx context.Context, _ Failure) error {
				return d.Media.Initialize(ctx)
			}},
			{Name: "legacy-mode", Run: func(_ context.Context, _ Failure) error {
				d.Flags.SetMediaEngine(false)
				d.Flags.SetLegacyMode(true)
				return nil
			}},
			{Name: "remove-engine", Run: func(_ context.Context, _ Failure) error {
				d.Flags.SetMediaEngine(false)
				d.Flags.SetLegacyMode(false)
				d.Flags.SetBasicPlayerMode(true)
				return nil
			}},
		},

		ThumbnailFailed: {
			{Name: "clear-thumbnail-cache", Run: func(ctx context.Context, _ Failure) error {
				if err := d.Thumbs.ClearCache(); err != nil {
					return err
				}
				return d.Thumbs.Regenerate(ctx)
			}},
			{Name: "frame-extraction-thumbnails", Run: func(ctx context.Context, _ Failure) error {
				if err := d.Thumbs.FrameExtractionFallback(ctx); err != nil {
					return err
				}
				d.Flags.SetUnifiedThumbnails(false)
				return nil
			}},
			{Name: "placeholder-thumbnails", Run: func(_ context.Context, _ Failure) error {
				d.Thumbs.UsePlaceholders()
				d.Flags.SetUnifiedThumbnails(false)
				return nil
			}},
		},

		NetworkError: {
			{Name: "wait-and-retry", Run: func(ctx context.Context, _ Failure) error {
				timer := time.NewTimer(time.Duration(d.Tuning.RetryDelay))
				defer timer.Stop()

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-timer.C:
				}

				if err := d.Conn.Retry(ctx); err != nil {
					return err
				}
				d.Flags.SetOfflineMode(false)
				return nil
			}},
			{Name: "offline-mode", Run: func(_ context.Context, _ Failure) error {
				d.Flags.SetOfflineMode(true)
				return nil
			}},
			{Name: "disable-network-features", Run: func(_ context.Context, _ Failure) error {
				d.Flags.SetRealtimeUpdates(false)
				d.Flags.SetUnifiedThumbnails(false)
				d.Flags.SetOfflineMode(true)
				return nil
			}},
		},

		MediaPlaybackError: {
			{Name: "recover-playback", Run: func(ctx context.Context, _ Failure) error {
				return d.Media.RecoverFromError(ctx)
			}},
			{Name: "reload-source", Run: func(ctx context.Context, _ Failure) error {
				return d.Media.ReloadSource(ctx, d.Media.SourceURL())
			}},
			{Name: "basic-player", Run: func(_ context.Context, _ Failure) error {
				d.Flags.SetBasicPlayerMode(true)
				return nil
			}},
		},
	}

	return applyDisabled(chains, d.Tuning)
}

// applyDisabled filters out actions named in the tuning's
// disabled_actions map.
func applyDisabled(chains map[Category][]Action, t Tuning) map[Category][]Action {
	if len(t.DisabledActions) == 0 {
		return chains
	}

	for category, names := range t.DisabledActions {
		disabled := make(map[string]struct{}, len(names))
		for _, n := range names {
			disabled[n] = struct{}{}
		}

		var kept []Action

		for _, a := range chains[Category(category)] {
			if _, ok := disabled[a.Name]; !ok {
				kept = append(kept, a)
			}
		}

		chains[Category(category)] = kept
	}

	return chains
}
