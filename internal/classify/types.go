package classify

import (
	"time"

	"github.com/google/uuid"
)

// ThreatLevel buckets the numeric threat score.
type ThreatLevel string

const (
	LevelLow    ThreatLevel = "low"
	LevelMedium ThreatLevel = "medium"
	LevelHigh   ThreatLevel = "high"
)

// Action is the enforcement verdict attached to a policy.
type Action string

const (
	ActionDetect Action = "detect"
	ActionBlock  Action = "block"
)

// Indicator is a typed IOC value attached to an alert and, for block
// verdicts, fed into the enforcement store.
type Indicator struct {
	Type  IndicatorType `json:"type"`
	Value string        `json:"value"`
}

type IndicatorType string

const (
	IndicatorDomain   IndicatorType = "domain"
	IndicatorNxDomain IndicatorType = "domain|nx"
	IndicatorAddr     IndicatorType = "ip-src"
)

// Alert is the immutable record produced when a policy threshold is met.
type Alert struct {
	ID                string      `json:"alertId"`
	TimestampUTC      time.Time   `json:"timestampUtc"`
	ThreatLevel       ThreatLevel `json:"threatLevel"`
	ThreatScore       int         `json:"threatScore"`
	SuspectedCategory string      `json:"suspectedCategory"`
	Justification     string      `json:"justification"`
	Indicators        []Indicator `json:"indicators"`
	ActionTaken       Action      `json:"actionTaken"`
}

func newAlert() Alert {
	return Alert{
		ID:           uuid.NewString(),
		TimestampUTC: time.Now().UTC(),
	}
}

// LevelPolicy is one configured threat level: the score threshold at which
// it fires and the action it mandates.
type LevelPolicy struct {
	ScoreThreshold int
	Action         Action
}

// policyDef is an entry of the descending-threshold policy list.
type policyDef struct {
	Level          ThreatLevel
	ScoreThreshold int
	Action         Action
}
