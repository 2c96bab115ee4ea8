package anomaly

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dnssentinel/internal/profile"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	return NewDetector(filepath.Join(t.TempDir(), "model.json"), zap.NewNop().Sugar())
}

func baseline(n int) []*profile.Snapshot {
	out := make([]*profile.Snapshot, n)
	for i := range out {
		out[i] = &profile.Snapshot{
			ClientAddr:       "10.0.0.1",
			QueryCount:       100,
			TotalQueryBytes:  4000,
			AvgDomainEntropy: 2.5,
			AvgTTL:           300,
		}
	}
	return out
}

func TestTrainEmptyDatasetFails(t *testing.T) {
	d := newTestDetector(t)
	err := d.Train(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoTrainingData)
}

func TestPredictFailsOpenWithoutModel(t *testing.T) {
	d := newTestDetector(t)
	pred := d.Predict(&profile.Snapshot{QueryCount: 1e9, AvgDomainEntropy: 8})
	assert.False(t, pred.IsAnomaly)
	assert.Zero(t, pred.Score)
	assert.False(t, d.Loaded())
}

func TestLoadMissingArtifactFailsOpen(t *testing.T) {
	d := newTestDetector(t)
	assert.False(t, d.Load())
	assert.False(t, d.Loaded())
}

func TestTrainOnIdenticalSamplesSwapsModel(t *testing.T) {
	d := newTestDetector(t)
	before := d.active.Load()

	require.NoError(t, d.Train(context.Background(), baseline(100)))
	first := d.active.Load()
	assert.NotSame(t, before, first)
	assert.True(t, d.Loaded())

	// A later retrain publishes a fresh model; readers of the old pointer
	// are unaffected by the swap.
	require.NoError(t, d.Train(context.Background(), baseline(100)))
	assert.NotSame(t, first, d.active.Load())
}

func TestArtifactRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	log := zap.NewNop().Sugar()

	trained := NewDetector(path, log)
	require.NoError(t, trained.Train(context.Background(), baseline(100)))
	want := trained.Predict(&profile.Snapshot{QueryCount: 100, AvgDomainEntropy: 2.5})

	restored := NewDetector(path, log)
	require.True(t, restored.Load())
	got := restored.Predict(&profile.Snapshot{QueryCount: 100, AvgDomainEntropy: 2.5})
	assert.Equal(t, want, got)
}

func TestDetectorFlagsOutliers(t *testing.T) {
	d := newTestDetector(t)

	// Vary the baseline slightly so features carry measurable spread.
	snaps := baseline(200)
	for i, s := range snaps {
		s.QueryCount = 100 + float64(i%10)
		s.AvgDomainEntropy = 2.5 + float64(i%5)*0.01
	}
	require.NoError(t, d.Train(context.Background(), snaps))

	normal := d.Predict(&profile.Snapshot{QueryCount: 105, AvgDomainEntropy: 2.51, TotalQueryBytes: 4000, AvgTTL: 300})
	assert.False(t, normal.IsAnomaly)

	outlier := d.Predict(&profile.Snapshot{QueryCount: 100000, AvgDomainEntropy: 7.9, TotalQueryBytes: 4000, AvgTTL: 300})
	assert.True(t, outlier.IsAnomaly)
	assert.Greater(t, outlier.Score, normal.Score)
}

func TestPredictionIsSideEffectFree(t *testing.T) {
	d := newTestDetector(t)
	require.NoError(t, d.Train(context.Background(), baseline(100)))

	snap := &profile.Snapshot{QueryCount: 42}
	first := d.Predict(snap)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.Predict(snap))
	}
}
