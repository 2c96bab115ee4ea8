package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnssentinel/internal/anomaly"
	"dnssentinel/internal/profile"
)

func defaultClassifier() *Classifier {
	return NewClassifier(
		LevelPolicy{ScoreThreshold: 85, Action: ActionBlock},
		LevelPolicy{ScoreThreshold: 70, Action: ActionDetect},
		LevelPolicy{ScoreThreshold: 55, Action: ActionDetect},
	)
}

func TestScoreBounds(t *testing.T) {
	cases := []struct {
		pred anomaly.Prediction
		snap profile.Snapshot
	}{
		{anomaly.Prediction{}, profile.Snapshot{}},
		{anomaly.Prediction{IsAnomaly: true, Score: 1000}, profile.Snapshot{NxDomainRatio: 1, AvgDomainEntropy: 8}},
		{anomaly.Prediction{Score: -1000}, profile.Snapshot{}},
	}
	for _, c := range cases {
		s := Score(c.pred, &c.snap)
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, 100)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	pred := anomaly.Prediction{IsAnomaly: true, Score: 2.5}
	snap := &profile.Snapshot{NxDomainRatio: 0.7, AvgDomainEntropy: 4.5}
	first := Score(pred, snap)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(pred, snap))
	}
}

func TestScoreHeuristicBonuses(t *testing.T) {
	pred := anomaly.Prediction{Score: 0} // sigmoid(0) = 0.5 -> 25 base
	base := Score(pred, &profile.Snapshot{})
	assert.Equal(t, 25, base)

	withNx := Score(pred, &profile.Snapshot{NxDomainRatio: 0.6})
	assert.Equal(t, base+20, withNx)

	withEntropy := Score(pred, &profile.Snapshot{AvgDomainEntropy: 4.1})
	assert.Equal(t, base+15, withEntropy)

	withBoth := Score(pred, &profile.Snapshot{NxDomainRatio: 0.6, AvgDomainEntropy: 4.1})
	assert.Equal(t, base+35, withBoth)
}

// Policy lookup is highest-threshold-first; the first satisfied entry wins.
func TestPolicyLookup(t *testing.T) {
	c := defaultClassifier()

	tests := []struct {
		score     int
		wantLevel ThreatLevel
		wantHit   bool
		wantAct   Action
	}{
		{90, LevelHigh, true, ActionBlock},
		{85, LevelHigh, true, ActionBlock},
		{84, LevelMedium, true, ActionDetect},
		{60, LevelLow, true, ActionDetect},
		{40, "", false, ""},
	}
	for _, tt := range tests {
		var triggered *policyDef
		for i := range c.policies {
			if tt.score >= c.policies[i].ScoreThreshold {
				triggered = &c.policies[i]
				break
			}
		}
		if !tt.wantHit {
			assert.Nilf(t, triggered, "score %d should not fire a policy", tt.score)
			continue
		}
		require.NotNilf(t, triggered, "score %d should fire a policy", tt.score)
		assert.Equal(t, tt.wantLevel, triggered.Level)
		assert.Equal(t, tt.wantAct, triggered.Action)
	}
}

func TestClassifyBelowEveryThresholdYieldsNoAlert(t *testing.T) {
	c := defaultClassifier()
	alert := c.Classify(anomaly.Prediction{IsAnomaly: true, Score: 0}, &profile.Snapshot{}, nil)
	assert.Nil(t, alert)
}

func TestClassifyTunnelingVerdict(t *testing.T) {
	c := defaultClassifier()
	snap := &profile.Snapshot{
		ClientAddr:       "203.0.113.9",
		AvgDomainEntropy: 4.5,
		NxDomainRatio:    0.7,
	}
	evidence := map[string][]string{
		profile.EvidenceHighEntropyDomains: {"a1.test", "a2.test", "a3.test", "a4.test", "a5.test", "a6.test"},
		profile.EvidenceNxDomains:          {"n1.test", "n2.test"},
	}

	alert := c.Classify(anomaly.Prediction{IsAnomaly: true, Score: 10}, snap, evidence)
	require.NotNil(t, alert)
	assert.Equal(t, LevelHigh, alert.ThreatLevel)
	assert.Equal(t, ActionBlock, alert.ActionTaken)
	assert.Equal(t, 85, alert.ThreatScore)
	// Tunneling takes precedence over scanning even when both fire.
	assert.Equal(t, "Suspected DNS Tunneling / DGA", alert.SuspectedCategory)
	assert.Contains(t, alert.Justification, "domain entropy")
	assert.Contains(t, alert.Justification, "NXDOMAIN")
	assert.NotEmpty(t, alert.ID)

	// Client address always present; evidence capped at 5 per heuristic.
	assert.Equal(t, Indicator{Type: IndicatorAddr, Value: "203.0.113.9"}, alert.Indicators[0])
	domains := 0
	nxDomains := 0
	for _, ind := range alert.Indicators {
		switch ind.Type {
		case IndicatorDomain:
			domains++
		case IndicatorNxDomain:
			nxDomains++
		}
	}
	assert.Equal(t, 5, domains)
	assert.Equal(t, 2, nxDomains)
}

func TestClassifyScanningVerdict(t *testing.T) {
	c := defaultClassifier()
	snap := &profile.Snapshot{ClientAddr: "203.0.113.9", NxDomainRatio: 0.8}

	alert := c.Classify(anomaly.Prediction{IsAnomaly: true, Score: 10}, snap, nil)
	require.NotNil(t, alert)
	assert.Equal(t, "Suspected Network Scanning", alert.SuspectedCategory)
	assert.Equal(t, LevelMedium, alert.ThreatLevel) // 50 + 20 = 70
	assert.Equal(t, ActionDetect, alert.ActionTaken)
}

func TestClassifyGenericCategory(t *testing.T) {
	c := NewClassifier(
		LevelPolicy{ScoreThreshold: 85, Action: ActionBlock},
		LevelPolicy{ScoreThreshold: 70, Action: ActionDetect},
		LevelPolicy{ScoreThreshold: 40, Action: ActionDetect},
	)
	alert := c.Classify(anomaly.Prediction{IsAnomaly: true, Score: 10}, &profile.Snapshot{ClientAddr: "203.0.113.9"}, nil)
	require.NotNil(t, alert)
	assert.Equal(t, "General Anomalous Behavior", alert.SuspectedCategory)
	assert.Equal(t, "Anomaly detected by behavioral model.", alert.Justification)
}
