package sentinel

import "github.com/miekg/dns"

// refusedReply answers a query from a blocked client address.
func refusedReply(q *dns.Msg) *dns.Msg {
	m := new(dns.Msg)
	m.SetRcode(q, dns.RcodeRefused)
	m.RecursionAvailable = true
	return m
}

// nxdomainReply answers a query for a blocked domain with an authoritative
// NXDOMAIN carrying a synthesized SOA for the matched suffix.
func nxdomainReply(q *dns.Msg, zone string) *dns.Msg {
	m := new(dns.Msg)
	m.SetRcode(q, dns.RcodeNameError)
	m.Authoritative = true
	m.RecursionAvailable = true
	m.Ns = []dns.RR{&dns.SOA{
		Hdr: dns.RR_Header{
			Name:   dns.Fqdn(zone),
			Rrtype: dns.TypeSOA,
			Class:  dns.ClassINET,
			Ttl:    60,
		},
		Ns:      dns.Fqdn(zone),
		Mbox:    dns.Fqdn("hostmaster." + zone),
		Serial:  1,
		Refresh: 7200,
		Retry:   3600,
		Expire:  1209600,
		Minttl:  3600,
	}}
	return m
}
