// Package classify turns scorer predictions into threat verdicts through a
// fixed, configuration-driven policy list.
package classify

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"dnssentinel/internal/anomaly"
	"dnssentinel/internal/profile"
)

const (
	mlScoreWeight = 50.0
	mlSensitivity = 2.0

	nxDomainBonusThreshold = 0.5
	entropyBonusThreshold  = 4.0

	tunnelingEntropyThreshold = 4.2
	scanningNxDomainThreshold = 0.6

	maxEvidenceIndicators = 5
)

const (
	categoryGeneric   = "General Anomalous Behavior"
	categoryTunneling = "Suspected DNS Tunneling / DGA"
	categoryScanning  = "Suspected Network Scanning"
)

// Classifier maps (prediction, snapshot, evidence) to an alert, or to no
// alert when no policy threshold is met. It is a pure function of its
// inputs and the policy list built at construction.
type Classifier struct {
	policies []policyDef
}

// NewClassifier builds the policy list once, ordered by descending
// threshold so the first satisfied entry wins.
func NewClassifier(high, medium, low LevelPolicy) *Classifier {
	policies := []policyDef{
		{Level: LevelHigh, ScoreThreshold: high.ScoreThreshold, Action: high.Action},
		{Level: LevelMedium, ScoreThreshold: medium.ScoreThreshold, Action: medium.Action},
		{Level: LevelLow, ScoreThreshold: low.ScoreThreshold, Action: low.Action},
	}
	sort.SliceStable(policies, func(i, j int) bool {
		return policies[i].ScoreThreshold > policies[j].ScoreThreshold
	})
	return &Classifier{policies: policies}
}

// Classify evaluates one scored snapshot. It returns nil when the numeric
// score stays below every configured threshold.
func (c *Classifier) Classify(pred anomaly.Prediction, snap *profile.Snapshot, evidence map[string][]string) *Alert {
	score := Score(pred, snap)

	var triggered *policyDef
	for i := range c.policies {
		if score >= c.policies[i].ScoreThreshold {
			triggered = &c.policies[i]
			break
		}
	}
	if triggered == nil {
		return nil
	}

	alert := newAlert()
	alert.ThreatLevel = triggered.Level
	alert.ThreatScore = score
	alert.ActionTaken = triggered.Action
	alert.Indicators = []Indicator{{Type: IndicatorAddr, Value: snap.ClientAddr}}

	category := categoryGeneric
	var reasons []string

	if snap.AvgDomainEntropy > tunnelingEntropyThreshold {
		category = categoryTunneling
		reasons = append(reasons, fmt.Sprintf("unusually high domain entropy (%.2f)", snap.AvgDomainEntropy))
		for _, d := range cap5(evidence[profile.EvidenceHighEntropyDomains]) {
			alert.Indicators = append(alert.Indicators, Indicator{Type: IndicatorDomain, Value: d})
		}
	}
	if snap.NxDomainRatio > scanningNxDomainThreshold {
		// Tunneling takes precedence as the suspected category; scanning
		// only replaces the generic label.
		if category == categoryGeneric {
			category = categoryScanning
		}
		reasons = append(reasons, fmt.Sprintf("excessive NXDOMAIN rate (%.0f%%)", snap.NxDomainRatio*100))
		for _, d := range cap5(evidence[profile.EvidenceNxDomains]) {
			alert.Indicators = append(alert.Indicators, Indicator{Type: IndicatorNxDomain, Value: d})
		}
	}

	alert.SuspectedCategory = category
	alert.Justification = justification(reasons)
	return &alert
}

// Score computes the numeric threat score in [0, 100]: a sigmoid-squashed
// share from the ML score plus fixed heuristic bonuses.
func Score(pred anomaly.Prediction, snap *profile.Snapshot) int {
	normalized := 1.0 / (1.0 + math.Exp(-pred.Score*mlSensitivity))
	score := normalized * mlScoreWeight

	if snap.NxDomainRatio > nxDomainBonusThreshold {
		score += 20
	}
	if snap.AvgDomainEntropy > entropyBonusThreshold {
		score += 15
	}

	return int(math.Min(100, math.Round(score)))
}

func justification(reasons []string) string {
	if len(reasons) == 0 {
		return "Anomaly detected by behavioral model."
	}
	return "Anomaly detected due to " + strings.Join(reasons, ", and ") + "."
}

func cap5(vals []string) []string {
	if len(vals) > maxEvidenceIndicators {
		return vals[:maxEvidenceIndicators]
	}
	return vals
}
