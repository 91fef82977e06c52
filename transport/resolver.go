package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// DefaultDNSServer is the stub resolver used when none is configured.
const DefaultDNSServer = "127.0.0.53:53"

// SRVEndpoints resolves co-signer endpoints from DNS SRV records. Signer
// hosts register themselves under a shared service domain, for example
// _trustd._tcp.signers.example.com, and the publisher picks up membership
// changes on every resolution.
type SRVEndpoints struct {
	// Domain is the fully qualified SRV name to query.
	Domain string

	// DNSServer is the resolver address in host:port form. Empty selects
	// DefaultDNSServer.
	DNSServer string

	// Path is appended to each resolved host, typically the co-signer's
	// notification route.
	Path string
}

// Endpoints queries the SRV records and builds one HTTP endpoint per target.
func (r *SRVEndpoints) Endpoints(ctx context.Context) ([]string, error) {
	server := r.DNSServer
	if server == "" {
		server = DefaultDNSServer
	}

	m1 := new(dns.Msg)
	m1.Id = dns.Id()
	m1.RecursionDesired = true
	m1.Question = make([]dns.Question, 1)
	m1.Question[0] = dns.Question{Name: dns.Fqdn(r.Domain), Qtype: dns.TypeSRV, Qclass: dns.ClassINET}

	c := new(dns.Client)
	in, _, err := c.ExchangeContext(ctx, m1, server)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup for %s failed: %w", r.Domain, err)
	}

	endpoints := make([]string, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			host := strings.TrimSuffix(srv.Target, ".")
			endpoints = append(endpoints, fmt.Sprintf("http://%s:%d%s", host, srv.Port, r.Path))
		}
	}

	return endpoints, nil
}
