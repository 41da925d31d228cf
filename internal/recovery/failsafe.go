package recovery

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smartcapture/sessionlink/internal/metrics"
)

// failsafe force-disables the feature flags under the failing
// subsystem's umbrella, appends a failsafe-tagged record and surfaces a
// degraded-mode notice. Terminal for the category until the owning
// component is explicitly reset.
func (e *Engine) failsafe(category Category, f Failure) {
	switch category {
	case ConnectionFailed, NetworkError:
		e.flags.SetRealtimeUpdates(false)

	case MediaEngineError:
		e.flags.SetMediaEngine(false)

	case MediaPlaybackError:
		e.flags.SetMediaEngine(false)
		e.flags.SetBasicPlayerMode(true)

	case ThumbnailFailed:
		e.flags.SetUnifiedThumbnails(false)

	case Unknown:
		// No umbrella to narrow down; the notice has to do.
	}

	e.history.Append(ErrorRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Message:   f.Message,
		Code:      f.Code,
		Category:  category,
		Failsafe:  true,
	})

	metrics.FailsafeActivations.WithLabelValues(string(category)).Inc()
	e.logger.Error("failsafe activated",
		slog.String("category", string(category)),
		slog.String("message", f.Message),
	)

	if e.notify != nil {
		e.notify(category, "recovery exhausted for "+string(category)+"; related features disabled")
	}
}
