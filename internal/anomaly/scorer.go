// Package anomaly provides the trainable anomaly scorer used by the
// analysis plane. The detector is deliberately pluggable: the engine only
// depends on the Scorer contract, never on the model internals.
package anomaly

import (
	"context"
	"errors"
	"fmt"
	"math"

	"dnssentinel/internal/profile"
)

// ErrNoTrainingData is returned when Train is called with an empty dataset.
var ErrNoTrainingData = errors.New("anomaly: training dataset is empty")

// Prediction is the scorer output for one behavioral snapshot.
type Prediction struct {
	IsAnomaly bool
	Score     float64
}

// Scorer trains on historical snapshots and predicts on fresh ones.
// Predict must be side-effect-free and cheap enough to run synchronously
// for every rotated client inside an analysis cycle.
type Scorer interface {
	Predict(snap *profile.Snapshot) Prediction
	Train(ctx context.Context, snaps []*profile.Snapshot) error
	Load() bool
}

// model holds learned per-feature statistics plus the anomaly threshold.
// It is immutable once built; the active model reference is swapped
// atomically so in-flight predictions keep a consistent view.
type model struct {
	Means     []float64 `json:"means"`
	Stds      []float64 `json:"stds"`
	Threshold float64   `json:"threshold"`
	TrainedAt string    `json:"trainedAt"`
}

// score is the mean absolute z-score across features with measurable
// spread. Features with zero variance in the training window carry no
// signal and are skipped.
func (m *model) score(features []float64) float64 {
	if len(features) != len(m.Means) {
		return 0
	}
	const eps = 1e-9
	var sum float64
	n := 0
	for i, v := range features {
		if m.Stds[i] < eps {
			continue
		}
		sum += math.Abs(v-m.Means[i]) / m.Stds[i]
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func fit(snaps []*profile.Snapshot) (*model, error) {
	if len(snaps) == 0 {
		return nil, ErrNoTrainingData
	}

	dims := profile.FeatureCount
	means := make([]float64, dims)
	stds := make([]float64, dims)

	vectors := make([][]float64, len(snaps))
	for i, s := range snaps {
		v := s.Features()
		if len(v) != dims {
			return nil, fmt.Errorf("anomaly: feature vector has %d dimensions, want %d", len(v), dims)
		}
		vectors[i] = v
		for d, x := range v {
			means[d] += x
		}
	}
	for d := range means {
		means[d] /= float64(len(vectors))
	}
	for _, v := range vectors {
		for d, x := range v {
			stds[d] += (x - means[d]) * (x - means[d])
		}
	}
	for d := range stds {
		stds[d] = math.Sqrt(stds[d] / float64(len(vectors)))
	}

	m := &model{Means: means, Stds: stds}

	// Calibrate the anomaly threshold from the training distribution
	// itself: three standard deviations above the mean training score,
	// floored so a degenerate window does not flag everything.
	scores := make([]float64, len(vectors))
	var mean float64
	for i, v := range vectors {
		scores[i] = m.score(v)
		mean += scores[i]
	}
	mean /= float64(len(scores))
	var sq float64
	for _, s := range scores {
		sq += (s - mean) * (s - mean)
	}
	stdev := math.Sqrt(sq / float64(len(scores)))

	m.Threshold = mean + 3*stdev
	if m.Threshold < 1.0 {
		m.Threshold = 1.0
	}
	return m, nil
}
