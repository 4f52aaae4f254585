package check

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"

	"github.com/mailprobe/mailprobe/types"
)

// Resolver is the DNS collaborator queried for mail-exchange records.
// Implementations may return records in any order.
type Resolver interface {
	LookupMX(ctx context.Context, domain string) ([]types.MX, error)
}

// FallbackNameserver is queried when /etc/resolv.conf is unreadable
// or lists no servers.
const FallbackNameserver = "8.8.8.8:53"

// DNSResolver resolves MX records by querying the system's configured
// nameservers directly.
type DNSResolver struct {
	client  *dns.Client
	servers []string
}

// NewDNSResolver builds a resolver over the nameservers listed in
// /etc/resolv.conf, falling back to FallbackNameserver when the file
// is unreadable.
func NewDNSResolver(timeout time.Duration) *DNSResolver {
	servers := []string{FallbackNameserver}
	if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(cfg.Servers) > 0 {
		servers = servers[:0]
		for _, s := range cfg.Servers {
			servers = append(servers, net.JoinHostPort(s, cfg.Port))
		}
	}
	return &DNSResolver{
		client:  &dns.Client{Timeout: timeout},
		servers: servers,
	}
}

// NewDNSResolverWith builds a resolver over an explicit nameserver
// list ("host:port" entries).
func NewDNSResolverWith(timeout time.Duration, servers []string) *DNSResolver {
	if len(servers) == 0 {
		servers = []string{FallbackNameserver}
	}
	return &DNSResolver{
		client:  &dns.Client{Timeout: timeout},
		servers: servers,
	}
}

// Servers returns the nameservers this resolver queries, in order.
func (r *DNSResolver) Servers() []string {
	out := make([]string, len(r.servers))
	copy(out, r.servers)
	return out
}

// LookupMX queries each configured nameserver in turn until one
// answers. NXDOMAIN is not an error: a domain that does not exist has
// no mail destination, full stop.
func (r *DNSResolver) LookupMX(ctx context.Context, domain string) ([]types.MX, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode == dns.RcodeNameError {
			return nil, nil
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("dns query for %s: rcode %s", domain, dns.RcodeToString[resp.Rcode])
			continue
		}
		var out []types.MX
		for _, ans := range resp.Answer {
			if mx, ok := ans.(*dns.MX); ok {
				out = append(out, types.MX{
					Pref: mx.Preference,
					Host: strings.TrimSuffix(mx.Mx, "."),
				})
			}
		}
		return out, nil
	}
	return nil, lastErr
}

// MXLookup wraps a Resolver with the pipeline's resolution policy:
// records come back sorted ascending by priority, and NXDOMAIN, empty
// answers and resolver timeouts all collapse to an empty slice — from
// the pipeline's point of view they are the same "no mail destination
// known". Results are never cached across calls.
type MXLookup struct {
	resolver Resolver
	log      *logrus.Logger
}

func NewMXLookup(r Resolver, log *logrus.Logger) *MXLookup {
	return &MXLookup{resolver: r, log: log}
}

// Resolve returns the domain's mail exchangers in priority order, or
// an empty slice when none can be determined.
func (l *MXLookup) Resolve(ctx context.Context, domain string) []types.MX {
	records, err := l.resolver.LookupMX(ctx, domain)
	if err != nil {
		l.log.WithFields(logrus.Fields{
			"domain": domain,
			"error":  err,
		}).Warn("MX lookup failed")
		return nil
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Pref < records[j].Pref
	})
	return records
}
