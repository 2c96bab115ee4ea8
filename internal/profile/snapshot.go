package profile

import "time"

// Snapshot is the immutable feature vector derived from one client's
// accumulated traffic over a single rotation window.
type Snapshot struct {
	ClientAddr string    `json:"clientAddr"`
	Timestamp  time.Time `json:"timestamp"`

	QueryCount           float64 `json:"queryCount"`
	TotalQueryBytes      float64 `json:"totalQueryBytes"`
	NxDomainRatio        float64 `json:"nxdomainRatio"`
	ErrorRatio           float64 `json:"errorRatio"`
	AvgTTL               float64 `json:"avgTtl"`
	AvgDomainEntropy     float64 `json:"avgDomainEntropy"`
	MaxDomainEntropy     float64 `json:"maxDomainEntropy"`
	UniqueTLDCount       float64 `json:"uniqueTldCount"`
	UniqueQTypeRatio     float64 `json:"uniqueQtypeRatio"`
	AvgRTT               float64 `json:"avgRtt"`
	TCPRatio             float64 `json:"tcpRatio"`
	AvgUDPPayloadSize    float64 `json:"avgUdpPayloadSize"`
	DNSSECOKRatio        float64 `json:"dnssecOkRatio"`
	NumericRatio         float64 `json:"numericRatio"`
	NonAlphanumericRatio float64 `json:"nonAlphanumericRatio"`
	AvgAnswerSize        float64 `json:"avgAnswerSize"`
	MaxCNAMEChainLength  float64 `json:"maxCnameChainLength"`
	AvgQueryIAT          float64 `json:"avgQueryIat"`
	StdevQueryIAT        float64 `json:"stdevQueryIat"`
}

// Features returns the numeric fields in a fixed order suitable for the
// anomaly scorer. The order is part of the persisted model contract.
func (s *Snapshot) Features() []float64 {
	return []float64{
		s.QueryCount,
		s.TotalQueryBytes,
		s.NxDomainRatio,
		s.ErrorRatio,
		s.AvgTTL,
		s.AvgDomainEntropy,
		s.MaxDomainEntropy,
		s.UniqueTLDCount,
		s.UniqueQTypeRatio,
		s.AvgRTT,
		s.TCPRatio,
		s.AvgUDPPayloadSize,
		s.DNSSECOKRatio,
		s.NumericRatio,
		s.NonAlphanumericRatio,
		s.AvgAnswerSize,
		s.MaxCNAMEChainLength,
		s.AvgQueryIAT,
		s.StdevQueryIAT,
	}
}

// FeatureCount is the length of the vector returned by Features.
const FeatureCount = 19
