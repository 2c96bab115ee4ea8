package anomaly

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dnssentinel/internal/profile"
)

// Detector is the default Scorer: a z-score distance detector over the
// snapshot feature vector, with a file-backed model artifact.
type Detector struct {
	path   string
	log    *zap.SugaredLogger
	active atomic.Pointer[model]
}

func NewDetector(modelPath string, log *zap.SugaredLogger) *Detector {
	return &Detector{path: modelPath, log: log}
}

// Predict scores one snapshot against the active model. With no model
// loaded it fails open: never anomalous, score 0.
func (d *Detector) Predict(snap *profile.Snapshot) Prediction {
	m := d.active.Load()
	if m == nil {
		return Prediction{}
	}
	score := m.score(snap.Features())
	return Prediction{IsAnomaly: score > m.Threshold, Score: score}
}

// Train fits a new model, persists it atomically, and swaps it in as the
// active model. In-flight predictions against the previous model are
// unaffected by the swap.
func (d *Detector) Train(ctx context.Context, snaps []*profile.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := fit(snaps)
	if err != nil {
		return err
	}
	m.TrainedAt = time.Now().UTC().Format(time.RFC3339)

	if err := d.save(m); err != nil {
		return fmt.Errorf("persist model artifact: %w", err)
	}
	d.active.Store(m)
	d.log.Infow("anomaly model trained", "samples", len(snaps), "threshold", m.Threshold)
	return nil
}

// save writes the artifact to a temporary file and publishes it with an
// atomic rename, so a crash mid-write cannot corrupt the active artifact.
func (d *Detector) save(m *model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.path)
}

// Load restores the persisted model artifact. A missing or unreadable
// artifact leaves the detector in its fail-open state and returns false.
func (d *Detector) Load() bool {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if !os.IsNotExist(err) {
			d.log.Warnw("anomaly model unreadable, running fail-open", "path", d.path, "err", err)
		}
		return false
	}
	var m model
	if err := json.Unmarshal(data, &m); err != nil {
		d.log.Warnw("anomaly model corrupt, running fail-open", "path", d.path, "err", err)
		return false
	}
	if len(m.Means) != profile.FeatureCount || len(m.Stds) != profile.FeatureCount {
		d.log.Warnw("anomaly model has stale feature schema, running fail-open", "path", d.path)
		return false
	}
	d.active.Store(&m)
	return true
}

// Loaded reports whether an active model is present.
func (d *Detector) Loaded() bool {
	return d.active.Load() != nil
}
