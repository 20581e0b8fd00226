package sla

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/complyops/decision-engine/internal/model"
	"github.com/complyops/decision-engine/internal/store"
)

// CheckerConfig tunes the background escalation checker.
type CheckerConfig struct {
	// Interval between evaluation passes. Default 5 minutes.
	Interval time.Duration
	// EvaluationsPerSecond bounds how fast one pass walks the active
	// statuses, to keep the store scan from starving foreground work.
	EvaluationsPerSecond float64
}

// Checker periodically re-evaluates escalation levels over all stored SLA
// statuses. Each pass is a pure read-evaluate-write loop with no state
// carried between runs.
type Checker struct {
	service *Service
	store   store.Store
	cfg     CheckerConfig
	limiter *rate.Limiter
}

// NewChecker creates a background escalation checker.
func NewChecker(service *Service, st store.Store, cfg CheckerConfig) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.EvaluationsPerSecond <= 0 {
		cfg.EvaluationsPerSecond = 50
	}
	return &Checker{
		service: service,
		store:   st,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.EvaluationsPerSecond), 1),
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "sla.checker"))
	log.Info("starting escalation checker", zap.Duration("interval", c.cfg.Interval))

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("escalation checker stopped")
			return
		case <-ticker.C:
			c.CheckOnce(ctx, time.Now().UTC())
		}
	}
}

// CheckOnce runs a single evaluation pass and returns the number of
// transitions applied.
func (c *Checker) CheckOnce(ctx context.Context, now time.Time) int {
	log := zap.L().With(zap.String("component", "sla.checker"))

	statuses, err := c.store.ListSLAStatuses(ctx)
	if err != nil {
		log.Error("sla: failed to list statuses", zap.Error(err))
		return 0
	}

	transitions := 0
	for _, st := range statuses {
		if ctx.Err() != nil {
			return transitions
		}
		// Fully breached rows can't transition further.
		if st.Level == model.EscalationBreached {
			continue
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return transitions
		}

		_, changed, err := c.service.Evaluate(ctx, st, now, st.FileID)
		if err != nil {
			log.Warn("sla: evaluation failed",
				zap.String("file_id", st.FileID),
				zap.Error(err),
			)
			continue
		}
		if changed {
			transitions++
		}
	}

	if transitions > 0 {
		log.Info("sla: escalation pass complete",
			zap.Int("evaluated", len(statuses)),
			zap.Int("transitions", transitions),
		)
	}
	return transitions
}
