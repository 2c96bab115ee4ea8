// Package sentinel wires the behavioral profiler, anomaly scorer, threat
// classifier, and enforcement store into the engine's lifecycle: one
// synchronous enforcement hot path plus independently scheduled analysis
// and training planes.
package sentinel

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"dnssentinel/internal/anomaly"
	"dnssentinel/internal/blocklist"
	"dnssentinel/internal/classify"
	"dnssentinel/internal/config"
	"dnssentinel/internal/metrics"
	"dnssentinel/internal/profile"
	"dnssentinel/internal/repository"
	"dnssentinel/internal/state"
)

// Engine is the anomaly detection engine behind the host's request path.
type Engine struct {
	cfg        *config.Config
	log        *zap.SugaredLogger
	registry   *profile.Registry
	scorer     anomaly.Scorer
	classifier *classify.Classifier
	blocklist  *blocklist.Store
	repo       repository.Store
	state      *state.Store

	analysisInterval time.Duration
	trainingInterval time.Duration
	bootstrapPoll    time.Duration

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	planes  sync.Once
	started time.Time
}

func New(cfg *config.Config, log *zap.SugaredLogger, scorer anomaly.Scorer,
	bl *blocklist.Store, repo repository.Store, st *state.Store) *Engine {
	return &Engine{
		cfg:      cfg,
		log:      log,
		registry: profile.NewRegistry(),
		scorer:   scorer,
		classifier: classify.NewClassifier(
			classify.LevelPolicy{ScoreThreshold: cfg.ThreatLevels.High.ScoreThreshold, Action: classify.Action(cfg.ThreatLevels.High.Action)},
			classify.LevelPolicy{ScoreThreshold: cfg.ThreatLevels.Medium.ScoreThreshold, Action: classify.Action(cfg.ThreatLevels.Medium.Action)},
			classify.LevelPolicy{ScoreThreshold: cfg.ThreatLevels.Low.ScoreThreshold, Action: classify.Action(cfg.ThreatLevels.Low.Action)},
		),
		blocklist:        bl,
		repo:             repo,
		state:            st,
		analysisInterval: time.Duration(cfg.AnalysisIntervalMinutes) * time.Minute,
		trainingInterval: time.Duration(cfg.RetrainingPeriodDays) * 24 * time.Hour,
		bootstrapPoll:    time.Hour,
	}
}

// Initialize loads persisted artifacts and starts the background planes
// appropriate for the persisted lifecycle phase.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.blocklist.Load(); err != nil {
		return err
	}
	if e.scorer.Load() {
		e.log.Info("anomaly model loaded")
	} else {
		e.log.Warn("no anomaly model available, scoring fail-open until first training")
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.started = time.Now()

	switch e.state.Phase() {
	case state.PhaseActive:
		e.startPlanes(ctx)
	case state.PhaseTraining:
		// The previous run persisted the Training marker but died before
		// completing the first retrain. Resume the transition instead of
		// serving the bootstrap wait again.
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.finishBootstrap(ctx)
		}()
	default:
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.bootstrapLoop(ctx)
		}()
	}

	e.log.Infow("engine initialized", "phase", e.state.Phase())
	return nil
}

// Close stops every plane and waits for in-flight cycles to drain.
func (e *Engine) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// ProcessRequest is the host plugin hot path: enforcement check first,
// then profile accumulation. A nil return means "not handled, continue".
// The only synchronization here is one snapshot pointer read and the
// client's own profile mutex.
func (e *Engine) ProcessRequest(q *dns.Msg, peer net.Addr) *dns.Msg {
	if q == nil || len(q.Question) == 0 || q.Response {
		return nil
	}
	metrics.QueriesProcessed.Inc()

	snap := e.blocklist.Current()
	client := clientAddr(peer)

	if snap.BlockedAddr(client) {
		metrics.QueriesBlocked.WithLabelValues("addr").Inc()
		return refusedReply(q)
	}
	if match, ok := snap.MatchDomain(q.Question[0].Name); ok {
		metrics.QueriesBlocked.WithLabelValues("domain").Inc()
		return nxdomainReply(q, match)
	}

	e.registry.Get(client).Update(profile.Event{
		Msg:   q,
		Time:  time.Now(),
		Proto: protoOf(peer),
		Size:  q.Len(),
	})
	return nil
}

// ObserveResponse feeds an upstream response for a client back into its
// behavioral profile.
func (e *Engine) ObserveResponse(resp *dns.Msg, peer net.Addr, rtt time.Duration) {
	if resp == nil || len(resp.Question) == 0 || !resp.Response {
		return
	}
	e.registry.Get(clientAddr(peer)).Update(profile.Event{
		Msg:   resp,
		Time:  time.Now(),
		Proto: protoOf(peer),
		Size:  resp.Len(),
		RTT:   rtt,
	})
}

// Status is the read-only view served by the admin API.
type Status struct {
	Phase            state.Phase `json:"phase"`
	UptimeSeconds    int64       `json:"uptimeSeconds"`
	TrackedClients   int         `json:"trackedClients"`
	ModelLoaded      bool        `json:"modelLoaded"`
	BlocklistVersion uint64      `json:"blocklistVersion"`
	BlockedDomains   int         `json:"blockedDomains"`
	BlockedAddrs     int         `json:"blockedAddrs"`
}

func (e *Engine) Status() Status {
	domains, addrs := e.blocklist.Sizes()
	loaded := false
	if d, ok := e.scorer.(*anomaly.Detector); ok {
		loaded = d.Loaded()
	}
	return Status{
		Phase:            e.state.Phase(),
		UptimeSeconds:    int64(time.Since(e.started).Seconds()),
		TrackedClients:   e.registry.Len(),
		ModelLoaded:      loaded,
		BlocklistVersion: e.blocklist.Current().Version(),
		BlockedDomains:   domains,
		BlockedAddrs:     addrs,
	}
}

func clientAddr(peer net.Addr) string {
	if peer == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(peer.String())
	if err != nil {
		return peer.String()
	}
	return host
}

func protoOf(peer net.Addr) string {
	if _, ok := peer.(*net.TCPAddr); ok {
		return "tcp"
	}
	return "udp"
}
