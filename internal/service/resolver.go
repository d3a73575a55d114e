package service

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"domainatlas/internal/model"
)

// Resolver collects the raw attribute set for one domain: record sets for
// MX, SPF, NS and A, plus the ASN attribution of the infrastructure behind
// each. Lookups that fail leave their fields empty; a domain with no data at
// all still yields a usable (all-empty) attribute set.
type Resolver struct {
	DNS *DNSService
	ASN *ASNService
}

func NewResolver(dnsSvc *DNSService, asnSvc *ASNService) *Resolver {
	return &Resolver{DNS: dnsSvc, ASN: asnSvc}
}

// Attributes runs the full lookup set for a domain. Hosting is attributed by
// the first A record's IP, DNS by the first name server's IP, inbound mail
// by the first MX host's IP, and outbound mail by the SPF policy. The four
// channels are independent and looked up concurrently; each goroutine fills
// only its own fields.
func (r *Resolver) Attributes(ctx context.Context, domain string) model.DomainAttributes {
	var attrs model.DomainAttributes

	var g errgroup.Group
	g.Go(func() error {
		attrs.A = r.DNS.A(ctx, domain)
		info := r.ASN.Lookup(ctx, firstRecord(attrs.A))
		attrs.HostingASN, attrs.HostingOrg, attrs.HostingCountry = info.ASN, info.Org, info.Country
		return nil
	})
	g.Go(func() error {
		attrs.NS = r.DNS.NS(ctx, domain)
		info := r.hostAttribution(ctx, firstRecord(attrs.NS))
		attrs.DNSASN, attrs.DNSOrg, attrs.DNSCountry = info.ASN, info.Org, info.Country
		return nil
	})
	g.Go(func() error {
		attrs.MX = r.DNS.MX(ctx, domain)
		info := r.hostAttribution(ctx, firstRecord(attrs.MX))
		attrs.MXASN, attrs.MXOrg, attrs.MXCountry = info.ASN, info.Org, info.Country
		return nil
	})
	g.Go(func() error {
		attrs.SPF = r.DNS.SPF(ctx, domain)
		info := r.spfAttribution(ctx, attrs.SPF)
		attrs.SPFASN, attrs.SPFOrg, attrs.SPFCountry = info.ASN, info.Org, info.Country
		return nil
	})
	_ = g.Wait()

	return attrs
}

// hostAttribution resolves a hostname to its first address and attributes
// that.
func (r *Resolver) hostAttribution(ctx context.Context, host string) ASNInfo {
	if host == "" {
		return ASNInfo{}
	}
	ip := r.DNS.FirstA(ctx, host)
	if ip == "" {
		return ASNInfo{}
	}
	return r.ASN.Lookup(ctx, ip)
}

// spfAttribution works out who sends a domain's outbound mail. Microsoft
// and Google policies are recognized directly; anything else is resolved
// through the policy's mechanisms in order of reliability: literal
// addresses first, then a: hosts, then include: targets. mx mechanisms are
// skipped since the MX channel is attributed separately.
func (r *Resolver) spfAttribution(ctx context.Context, spf string) ASNInfo {
	if spf == "" {
		return ASNInfo{}
	}
	lower := strings.ToLower(spf)
	if strings.Contains(lower, "protection.outlook.com") {
		return ASNInfo{ASN: "8075", Org: "Microsoft Corporation", Country: "US"}
	}
	if strings.Contains(lower, "spf.google.com") {
		return ASNInfo{ASN: "15169", Org: "Google LLC", Country: "US"}
	}

	fields := strings.Fields(spf)
	for _, f := range fields {
		rest, ok := strings.CutPrefix(f, "ip4:")
		if !ok {
			rest, ok = strings.CutPrefix(f, "ip6:")
		}
		if !ok {
			continue
		}
		ip, _, _ := strings.Cut(rest, "/")
		if info := r.ASN.Lookup(ctx, ip); info.ASN != "" {
			return info
		}
	}
	for _, f := range fields {
		if host, ok := strings.CutPrefix(f, "a:"); ok {
			if info := r.hostAttribution(ctx, host); info.ASN != "" {
				return info
			}
		}
	}
	for _, f := range fields {
		if host, ok := strings.CutPrefix(f, "include:"); ok {
			if info := r.hostAttribution(ctx, host); info.ASN != "" {
				return info
			}
		}
	}
	return ASNInfo{}
}
