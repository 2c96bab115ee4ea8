package profile

import (
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

const evidenceSampleCap = 10

// highEntropyThreshold marks query names retained as tunneling/DGA evidence.
const highEntropyThreshold = 4.2

// Event is one observed DNS message attributed to a client. Responses carry
// round-trip metadata from the transport; queries carry the wire size.
type Event struct {
	Msg   *dns.Msg
	Time  time.Time
	Proto string // "udp" or "tcp"
	Size  int    // wire size of the datagram
	RTT   time.Duration
}

// Profile accumulates per-client traffic statistics between rotations.
// All fields are guarded by a single mutex; counters only ever increase
// until the owning registry generation is detached.
type Profile struct {
	mu sync.Mutex

	queryCount      int64
	totalQueryBytes int64
	nxDomainCount   int64
	errorCount      int64
	tcpQueryCount   int64
	dnssecOKCount   int64

	ttlValues            []float64
	entropyValues        []float64
	rttValues            []float64
	udpPayloadSizes      []float64
	numericRatios        []float64
	nonAlphanumRatios    []float64
	answerSizes          []float64
	maxCNAMEChainLength  int
	queryTimestamps      []time.Time
	uniqueTLDs           map[string]struct{}
	uniqueQTypes         map[uint16]struct{}
	highEntropySamples   []string
	nxDomainSamples      []string
}

func New() *Profile {
	return &Profile{
		uniqueTLDs:   make(map[string]struct{}),
		uniqueQTypes: make(map[uint16]struct{}),
	}
}

// Update ingests one observed query or response. Safe for concurrent use.
func (p *Profile) Update(ev Event) {
	if ev.Msg == nil || len(ev.Msg.Question) == 0 {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Msg.Response {
		p.updateResponse(ev)
		return
	}
	p.updateQuery(ev)
}

func (p *Profile) updateQuery(ev Event) {
	question := ev.Msg.Question[0]
	name := strings.ToLower(strings.TrimSuffix(question.Name, "."))

	p.queryCount++
	p.totalQueryBytes += int64(ev.Size)
	p.queryTimestamps = append(p.queryTimestamps, ev.Time)

	if ev.Proto == "tcp" {
		p.tcpQueryCount++
	}

	entropy := Entropy(name)
	p.entropyValues = append(p.entropyValues, entropy)
	if entropy > highEntropyThreshold && len(p.highEntropySamples) < evidenceSampleCap {
		p.highEntropySamples = append(p.highEntropySamples, name)
	}

	p.numericRatios = append(p.numericRatios, NumericRatio(name))
	p.nonAlphanumRatios = append(p.nonAlphanumRatios, NonAlphanumericRatio(name))

	if tld := TLD(name); tld != "" {
		p.uniqueTLDs[tld] = struct{}{}
	}
	p.uniqueQTypes[question.Qtype] = struct{}{}

	if opt := ev.Msg.IsEdns0(); opt != nil {
		p.udpPayloadSizes = append(p.udpPayloadSizes, float64(opt.UDPSize()))
		if opt.Do() {
			p.dnssecOKCount++
		}
	}
}

func (p *Profile) updateResponse(ev Event) {
	if ev.RTT > 0 {
		p.rttValues = append(p.rttValues, float64(ev.RTT.Microseconds())/1000.0)
	}

	switch ev.Msg.Rcode {
	case dns.RcodeNameError:
		p.nxDomainCount++
		if len(p.nxDomainSamples) < evidenceSampleCap {
			name := strings.ToLower(strings.TrimSuffix(ev.Msg.Question[0].Name, "."))
			p.nxDomainSamples = append(p.nxDomainSamples, name)
		}
	case dns.RcodeSuccess:
	default:
		p.errorCount++
	}

	// Track the longest run of consecutive CNAME indirections in the answer.
	chain := 0
	for _, rr := range ev.Msg.Answer {
		p.ttlValues = append(p.ttlValues, float64(rr.Header().Ttl))
		p.answerSizes = append(p.answerSizes, float64(rr.Header().Rdlength))

		if rr.Header().Rrtype == dns.TypeCNAME {
			chain++
			continue
		}
		if chain > p.maxCNAMEChainLength {
			p.maxCNAMEChainLength = chain
		}
		chain = 0
	}
	if chain > p.maxCNAMEChainLength {
		p.maxCNAMEChainLength = chain
	}
}

// Snapshot derives the immutable feature vector for a detached profile.
// It is only called during rotation, after the registry generation holding
// this profile has been swapped out of the live path.
func (p *Profile) Snapshot(clientAddr string) *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	iatMean, iatStdev := iatStats(p.queryTimestamps)

	ratio := func(n int64) float64 {
		if p.queryCount == 0 {
			return 0
		}
		return float64(n) / float64(p.queryCount)
	}

	return &Snapshot{
		ClientAddr:           clientAddr,
		Timestamp:            time.Now().UTC(),
		QueryCount:           float64(p.queryCount),
		TotalQueryBytes:      float64(p.totalQueryBytes),
		NxDomainRatio:        ratio(p.nxDomainCount),
		ErrorRatio:           ratio(p.errorCount),
		AvgTTL:               avg(p.ttlValues),
		AvgDomainEntropy:     avg(p.entropyValues),
		MaxDomainEntropy:     maxOf(p.entropyValues),
		UniqueTLDCount:       float64(len(p.uniqueTLDs)),
		UniqueQTypeRatio:     ratio(int64(len(p.uniqueQTypes))),
		AvgRTT:               avg(p.rttValues),
		TCPRatio:             ratio(p.tcpQueryCount),
		AvgUDPPayloadSize:    avg(p.udpPayloadSizes),
		DNSSECOKRatio:        ratio(p.dnssecOKCount),
		NumericRatio:         avg(p.numericRatios),
		NonAlphanumericRatio: avg(p.nonAlphanumRatios),
		AvgAnswerSize:        avg(p.answerSizes),
		MaxCNAMEChainLength:  float64(p.maxCNAMEChainLength),
		AvgQueryIAT:          iatMean,
		StdevQueryIAT:        iatStdev,
	}
}

// QueryCount reports accumulated queries; used to skip idle clients.
func (p *Profile) QueryCount() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queryCount
}

// Evidence returns bounded sample sets retained for alert indicators,
// keyed by evidence kind.
func (p *Profile) Evidence() map[string][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string][]string{
		EvidenceHighEntropyDomains: append([]string(nil), p.highEntropySamples...),
		EvidenceNxDomains:          append([]string(nil), p.nxDomainSamples...),
	}
}

// Evidence map keys.
const (
	EvidenceHighEntropyDomains = "highEntropyDomains"
	EvidenceNxDomains          = "nxDomains"
)
