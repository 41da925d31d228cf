package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smartcapture/sessionlink/internal/metrics"
)

// Action is one step in a recovery chain. Run returns nil when the
// failure is considered handled. Actions may suspend (network I/O,
// engine reinitialization); the engine imposes no timeout beyond what
// an action implements internally, so a hung action stalls its chain.
type Action struct {
	Name string
	Run  func(ctx context.Context, f Failure) error
}

// Notifier surfaces a user-visible degraded-mode notice.
type Notifier func(category Category, notice string)

// Engine classifies failures and walks the matching recovery chain
// until an action succeeds. When the chain is exhausted, or the
// category is Unknown, the failsafe controller takes over.
type Engine struct {
	logger  *slog.Logger
	chains  map[Category][]Action
	history *History
	flags   *FeatureFlags
	notify  Notifier
}

// NewEngine creates an Engine. The chain map is treated as immutable
// after this call.
func NewEngine(chains map[Category][]Action, flags *FeatureFlags, history *History, notify Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		logger:  logger,
		chains:  chains,
		history: history,
		flags:   flags,
		notify:  notify,
	}
}

// History returns the engine's error history.
func (e *Engine) History() *History {
	return e.history
}

// Flags returns the engine's feature flags.
func (e *Engine) Flags() *FeatureFlags {
	return e.flags
}

// Handle classifies the failure and runs its recovery chain. Reports
// whether any action succeeded; on false the failsafe has activated.
func (e *Engine) Handle(ctx context.Context, f Failure) bool {
	category := Classify(f)

	e.history.Append(ErrorRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Message:   f.Message,
		Code:      f.Code,
		Category:  category,
		Context:   f.Context,
		Critical:  f.Critical,
	})

	e.logger.Warn("handling failure",
		slog.String("category", string(category)),
		slog.String("message", f.Message),
		slog.String("code", f.Code),
	)

	if e.tryChain(ctx, category, e.chains[category], f) {
		return true
	}

	e.failsafe(category, f)

	return false
}

// tryChain runs actions in order, stopping at the first success. A
// panicking action counts as that action's failure, not a crashed
// chain. Every invocation lands in the history.
func (e *Engine) tryChain(ctx context.Context, category Category, actions []Action, f Failure) bool {
	for _, a := range actions {
		err := runAction(ctx, a, f)

		outcome := "success"

		rec := ErrorRecord{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Message:   f.Message,
			Code:      f.Code,
			Category:  category,
			Action:    a.Name,
		}

		if err != nil {
			outcome = "failure"
			rec.Context = map[string]any{"error": err.Error()}
		}

		rec.Outcome = outcome
		e.history.Append(rec)
		metrics.RecoveryActions.WithLabelValues(string(category), a.Name, outcome).Inc()

		if err == nil {
			e.logger.Info("recovery action succeeded",
				slog.String("category", string(category)),
				slog.String("action", a.Name),
			)

			return true
		}

		e.logger.Warn("recovery action failed",
			slog.String("category", string(category)),
			slog.String("action", a.Name),
			slog.String("error", err.Error()),
		)
	}

	return false
}

// runAction invokes a single recovery action, converting a panic into
// an ordinary failure result.
func runAction(ctx context.Context, a Action, f Failure) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovery action %s panicked: %v", a.Name, r)
		}
	}()

	return a.Run(ctx, f)
}
