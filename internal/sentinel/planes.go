package sentinel

import (
	"context"
	"fmt"
	"time"

	"dnssentinel/internal/classify"
	"dnssentinel/internal/metrics"
	"dnssentinel/internal/profile"
	"dnssentinel/internal/state"
)

// startPlanes launches the analysis and training planes exactly once.
func (e *Engine) startPlanes(ctx context.Context) {
	e.planes.Do(func() {
		e.wg.Add(2)
		go func() {
			defer e.wg.Done()
			e.runPlane(ctx, "analysis", e.analysisInterval, e.analysisCycle)
		}()
		go func() {
			defer e.wg.Done()
			e.runPlane(ctx, "training", e.trainingInterval, e.trainingCycle)
		}()
	})
}

// runPlane drives one periodic plane under exception containment: a
// failed or panicked cycle is reported and the timer re-arms for the
// next tick.
func (e *Engine) runPlane(ctx context.Context, name string, interval time.Duration, cycle func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.runCycle(ctx, cycle); err != nil {
				metrics.PlaneFailures.WithLabelValues(name).Inc()
				e.log.Errorw("plane cycle failed", "plane", name, "err", err)
			}
		}
	}
}

func (e *Engine) runCycle(ctx context.Context, cycle func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return cycle(ctx)
}

// bootstrapLoop polls hourly until the configured initial training period
// has elapsed, then performs the Bootstrapping -> Training -> Active
// transition and hands over to the steady-state planes.
func (e *Engine) bootstrapLoop(ctx context.Context) {
	initialPeriod := time.Duration(e.cfg.InitialTrainingPeriodDays) * 24 * time.Hour

	ticker := time.NewTicker(e.bootstrapPoll)
	defer ticker.Stop()

	for {
		if time.Since(e.state.BootstrapStart()) >= initialPeriod {
			e.log.Info("initial training period complete, transitioning to Training phase")
			if err := e.state.Transition(state.PhaseTraining); err != nil {
				e.log.Errorw("phase transition failed", "to", state.PhaseTraining, "err", err)
			} else {
				e.finishBootstrap(ctx)
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// finishBootstrap runs the first retrain and completes the transition to
// Active. Also the restart path for a process that died mid-Training.
func (e *Engine) finishBootstrap(ctx context.Context) {
	if err := e.runCycle(ctx, e.trainingCycle); err != nil {
		metrics.PlaneFailures.WithLabelValues("training").Inc()
		e.log.Errorw("initial training failed, continuing fail-open", "err", err)
	}
	if err := e.state.Transition(state.PhaseActive); err != nil {
		e.log.Errorw("phase transition failed", "to", state.PhaseActive, "err", err)
		return
	}
	e.log.Info("initial training complete, engine is Active")
	e.startPlanes(ctx)
}

// analysisCycle rotates the profile registry and scores every detached
// client. Per-client failures are contained so one malformed profile
// cannot abort the batch.
func (e *Engine) analysisCycle(ctx context.Context) error {
	detached := e.registry.Rotate()
	metrics.RotationsTotal.Inc()
	if len(detached) == 0 {
		return nil
	}

	batch := make([]*profile.Snapshot, 0, len(detached))
	scored := 0
	for client, prof := range detached {
		if prof.QueryCount() < int64(e.cfg.MinClientQueryCount) {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Errorw("client analysis failed", "client", client, "err", r)
				}
			}()
			snap := prof.Snapshot(client)
			batch = append(batch, snap)
			scored++

			pred := e.scorer.Predict(snap)
			if !pred.IsAnomaly {
				return
			}
			alert := e.classifier.Classify(pred, snap, prof.Evidence())
			if alert == nil {
				return
			}
			e.emitAlert(alert)
			if alert.ActionTaken == classify.ActionBlock {
				if err := e.blocklist.Add(alert.Indicators); err != nil {
					e.log.Errorw("blocklist persistence failed", "client", client, "err", err)
				}
				e.publishBlocklistSizes()
			}
		}()
	}
	metrics.ProfiledClients.Set(float64(scored))

	if len(batch) == 0 {
		return nil
	}
	if err := e.repo.Save(ctx, batch); err != nil {
		return fmt.Errorf("persist snapshot batch: %w", err)
	}
	return nil
}

// trainingCycle pulls the training window from the repository, retrains
// the scorer when enough history exists, and prunes aged-out snapshots.
func (e *Engine) trainingCycle(ctx context.Context) error {
	window := time.Duration(e.cfg.TrainingWindowDays) * 24 * time.Hour
	history, err := e.repo.GetForTraining(ctx, window)
	if err != nil {
		metrics.TrainingCycles.WithLabelValues("failed").Inc()
		return fmt.Errorf("fetch training history: %w", err)
	}
	if len(history) < e.cfg.MinTrainingSamples {
		metrics.TrainingCycles.WithLabelValues("skipped").Inc()
		e.log.Infow("insufficient history for retraining, skipping cycle",
			"samples", len(history), "required", e.cfg.MinTrainingSamples)
		return nil
	}

	if err := e.scorer.Train(ctx, history); err != nil {
		metrics.TrainingCycles.WithLabelValues("failed").Inc()
		return fmt.Errorf("retrain scorer: %w", err)
	}
	metrics.TrainingCycles.WithLabelValues("trained").Inc()

	retention := time.Duration(e.cfg.RetentionDays) * 24 * time.Hour
	if err := e.repo.Prune(ctx, retention); err != nil {
		return fmt.Errorf("prune snapshot history: %w", err)
	}
	e.log.Infow("training cycle complete, new model deployed", "samples", len(history))
	return nil
}

// emitAlert writes the structured alert record to the logging sink.
func (e *Engine) emitAlert(a *classify.Alert) {
	metrics.AlertsEmitted.WithLabelValues(string(a.ThreatLevel), string(a.ActionTaken)).Inc()
	e.log.Infow("threat alert",
		"alertId", a.ID,
		"timestampUtc", a.TimestampUTC,
		"threatLevel", a.ThreatLevel,
		"threatScore", a.ThreatScore,
		"suspectedCategory", a.SuspectedCategory,
		"justification", a.Justification,
		"indicators", a.Indicators,
		"actionTaken", a.ActionTaken,
	)
}

func (e *Engine) publishBlocklistSizes() {
	domains, addrs := e.blocklist.Sizes()
	metrics.BlocklistEntries.WithLabelValues("domain").Set(float64(domains))
	metrics.BlocklistEntries.WithLabelValues("addr").Set(float64(addrs))
}
