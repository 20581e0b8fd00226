package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/complyops/decision-engine/internal/audit"
	"github.com/complyops/decision-engine/internal/engine"
	"github.com/complyops/decision-engine/internal/identity"
	"github.com/complyops/decision-engine/internal/merge"
	"github.com/complyops/decision-engine/internal/model"
	"github.com/complyops/decision-engine/internal/review"
	"github.com/complyops/decision-engine/internal/sla"
	"github.com/complyops/decision-engine/internal/store"
)

// engineEnv holds the initialized store, services, and engine needed by the
// process/review/sla/serve/watch commands.
type engineEnv struct {
	Store   store.Store
	SLA     *sla.Service
	Checker *sla.Checker
	Engine  *engine.Engine
}

// Close releases resources held by the environment.
func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// storeSink adapts the store's audit table to the audit.Sink interface.
type storeSink struct {
	st store.Store
}

func (s storeSink) Append(ctx context.Context, event model.AuditEvent) (int, error) {
	return s.st.AppendAuditEvent(ctx, event)
}

// initEngine sets up the store, audit recorder, SLA service, and engine.
// Callers should defer env.Close().
func initEngine(ctx context.Context) (*engineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	cal, err := sla.LoadCalendar(cfg.SLA.CalendarPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	recorder := audit.NewRecorder(storeSink{st: st}, cfg.Engine.Actor)
	slaSvc := sla.NewService(st, recorder, cal)
	checker := sla.NewChecker(slaSvc, st, sla.CheckerConfig{
		Interval:             time.Duration(cfg.SLA.CheckIntervalSecs) * time.Second,
		EvaluationsPerSecond: cfg.SLA.ChecksPerSecond,
	})

	eng := engine.New(engine.Config{
		Merge: merge.Config{DisagreementFactor: cfg.Merge.DisagreementFactor},
		Identity: identity.Config{
			MaxEditDistance:         cfg.Identity.MaxEditDistance,
			NearIdentifierPenalty:   cfg.Identity.NearIdentifierPenalty,
			FuzzyNamePenalty:        cfg.Identity.FuzzyNamePenalty,
			NameSimilarityThreshold: cfg.Identity.NameSimilarityThreshold,
		},
		Review: review.Config{
			FieldConfidenceThreshold:    cfg.Review.FieldConfidenceThreshold,
			IdentityConfidenceThreshold: cfg.Review.IdentityConfidenceThreshold,
		},
		DefaultResponseDays: cfg.SLA.DefaultResponseDays,
		AtRiskThreshold:     time.Duration(cfg.SLA.AtRiskThresholdHours) * time.Hour,
	}, st, recorder, slaSvc)

	return &engineEnv{Store: st, SLA: slaSvc, Checker: checker, Engine: eng}, nil
}

// initStore creates the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store: database_url is required for the postgres driver")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "memory":
		zap.L().Warn("using in-memory store, nothing will be persisted")
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Store.Driver)
	}
}
