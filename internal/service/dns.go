package service

import (
	"context"
	"net"
	"sort"
	"strings"
	"time"

	"domainatlas/internal/utils"

	"github.com/miekg/dns"
)

type DNSService struct {
	Resolver string
}

// NewDNSService builds a lookup client against the given resolver ("host" or
// "host:port"). An empty resolver falls back to the system configuration,
// then to Google public DNS.
func NewDNSService(resolver string) *DNSService {
	if resolver == "" {
		if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(conf.Servers) > 0 {
			resolver = net.JoinHostPort(conf.Servers[0], conf.Port)
		} else {
			resolver = "8.8.8.8:53"
		}
	} else if !strings.Contains(resolver, ":") {
		resolver += ":53"
	}
	return &DNSService{Resolver: resolver}
}

// MX returns the domain's mail exchanger hostnames as a "; "-joined sorted
// set, without preference numbers.
func (s *DNSService) MX(ctx context.Context, domain string) string {
	return joinRecordSet(s.query(ctx, domain, dns.TypeMX))
}

// NS returns the domain's name server names as a "; "-joined sorted set.
func (s *DNSService) NS(ctx context.Context, domain string) string {
	return joinRecordSet(s.query(ctx, domain, dns.TypeNS))
}

// A returns the domain's IPv4 addresses as a "; "-joined sorted set.
func (s *DNSService) A(ctx context.Context, domain string) string {
	return joinRecordSet(s.query(ctx, domain, dns.TypeA))
}

// SPF returns the domain's sender policy records: every TXT string starting
// with v=spf1, joined with "; " in answer order.
func (s *DNSService) SPF(ctx context.Context, domain string) string {
	var spfs []string
	for _, txt := range s.query(ctx, domain, dns.TypeTXT) {
		clean := strings.Trim(txt, "'\"")
		if strings.HasPrefix(strings.ToLower(clean), "v=spf1") {
			spfs = append(spfs, clean)
		}
	}
	return strings.Join(spfs, "; ")
}

// FirstA resolves a hostname to its first IPv4 address, "" when none.
func (s *DNSService) FirstA(ctx context.Context, host string) string {
	records := s.query(ctx, host, dns.TypeA)
	if len(records) == 0 {
		return ""
	}
	return records[0]
}

func (s *DNSService) query(ctx context.Context, name string, qtype uint16) []string {
	if name == "" {
		return nil
	}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	c := new(dns.Client)
	c.Timeout = 5 * time.Second

	in, _, err := c.ExchangeContext(ctx, m, s.Resolver)
	if err != nil {
		utils.Log.Warn("dns query failed",
			utils.Field("name", name),
			utils.Field("type", dns.TypeToString[qtype]),
			utils.Field("error", err.Error()))
		return nil
	}

	var results []string
	for _, ans := range in.Answer {
		switch t := ans.(type) {
		case *dns.A:
			results = append(results, t.A.String())
		case *dns.NS:
			results = append(results, strings.TrimSuffix(t.Ns, "."))
		case *dns.MX:
			results = append(results, strings.TrimSuffix(t.Mx, "."))
		case *dns.TXT:
			results = append(results, strings.Join(t.Txt, ""))
		}
	}
	return results
}

// joinRecordSet joins a record list into the canonical "; "-separated form:
// duplicates dropped, lexically sorted.
func joinRecordSet(records []string) string {
	if len(records) == 0 {
		return ""
	}
	set := make(map[string]struct{}, len(records))
	for _, r := range records {
		set[r] = struct{}{}
	}
	uniq := make([]string, 0, len(set))
	for r := range set {
		uniq = append(uniq, r)
	}
	sort.Strings(uniq)
	return strings.Join(uniq, "; ")
}

// firstRecord returns the first element of a "; "-joined record set.
func firstRecord(joined string) string {
	first, _, _ := strings.Cut(joined, ";")
	return strings.TrimSpace(first)
}
