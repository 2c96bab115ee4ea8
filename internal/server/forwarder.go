package server

import (
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"dnssentinel/internal/sentinel"
)

// Forwarder is a filtering DNS forwarder: every query runs through the
// engine's enforcement check; passes are resolved upstream and the
// responses are fed back into the behavioral profiler.
type Forwarder struct {
	engine   *sentinel.Engine
	upstream string
	log      *zap.SugaredLogger

	udp *dns.Server
	tcp *dns.Server

	udpClient *dns.Client
	tcpClient *dns.Client
}

func NewForwarder(engine *sentinel.Engine, listen, upstream string, log *zap.SugaredLogger) *Forwarder {
	f := &Forwarder{
		engine:    engine,
		upstream:  upstream,
		log:       log,
		udpClient: &dns.Client{Net: "udp", Timeout: 5 * time.Second},
		tcpClient: &dns.Client{Net: "tcp", Timeout: 5 * time.Second},
	}

	handler := dns.HandlerFunc(f.handle)
	f.udp = &dns.Server{Addr: listen, Net: "udp", Handler: handler}
	f.tcp = &dns.Server{Addr: listen, Net: "tcp", Handler: handler}
	return f
}

// Start runs both listeners; it returns the first listener error.
func (f *Forwarder) Start() error {
	errc := make(chan error, 2)
	go func() { errc <- f.udp.ListenAndServe() }()
	go func() { errc <- f.tcp.ListenAndServe() }()
	f.log.Infow("dns forwarder listening", "addr", f.udp.Addr, "upstream", f.upstream)
	return <-errc
}

func (f *Forwarder) Shutdown() {
	_ = f.udp.Shutdown()
	_ = f.tcp.Shutdown()
}

func (f *Forwarder) handle(w dns.ResponseWriter, req *dns.Msg) {
	peer := w.RemoteAddr()

	if reply := f.engine.ProcessRequest(req, peer); reply != nil {
		_ = w.WriteMsg(reply)
		return
	}

	client := f.udpClient
	if peer.Network() == "tcp" {
		client = f.tcpClient
	}

	resp, rtt, err := client.Exchange(req, f.upstream)
	if err != nil {
		f.log.Warnw("upstream exchange failed", "upstream", f.upstream, "err", err)
		fail := new(dns.Msg)
		fail.SetRcode(req, dns.RcodeServerFailure)
		_ = w.WriteMsg(fail)
		return
	}

	f.engine.ObserveResponse(resp, peer, rtt)
	_ = w.WriteMsg(resp)
}
