package classify

import (
	"strings"

	"domainatlas/internal/model"
)

// Signal substrings that identify a provider regardless of which
// organization name the ASN lookup reported.
const (
	microsoftSPFInclude = "spf.protection.outlook.com"
	googleSPFInclude    = "spf.google.com"
	spfHardFailOnly     = "v=spf1 -all"
)

// emailSignals is the lowercased input to the email rule chain. country is
// the SPF-side country when present, the MX-side country otherwise: the
// sending infrastructure is the stronger locality signal.
type emailSignals struct {
	mx, spf       string
	mxOrg, spfOrg string
	country       string
}

type emailRule struct {
	result Category
	match  func(emailSignals) bool
}

// emailRules is evaluated top to bottom; the first match wins. Explicit SPF
// includes outrank org names, org names outrank country, and the big two
// outrank everything because their fingerprints are unambiguous.
var emailRules = []emailRule{
	{Microsoft365, func(s emailSignals) bool {
		return strings.Contains(s.spf, microsoftSPFInclude) || strings.Contains(s.spfOrg, "microsoft")
	}},
	{GoogleWorkspace, func(s emailSignals) bool {
		return strings.Contains(s.spf, googleSPFInclude) || strings.Contains(s.spfOrg, "google")
	}},
	{Microsoft365, func(s emailSignals) bool {
		return strings.Contains(s.mx, "outlook.com") || strings.Contains(s.mx, "office365") ||
			strings.Contains(s.mxOrg, "microsoft")
	}},
	{GoogleWorkspace, func(s emailSignals) bool {
		return strings.Contains(s.mx, "google") || strings.Contains(s.mxOrg, "google")
	}},
	{LocalIS, func(s emailSignals) bool {
		return s.country == "is" || strings.Contains(s.mx, ".is")
	}},
	{OtherUS, func(s emailSignals) bool {
		return s.country == "us"
	}},
	{Unknown, func(s emailSignals) bool {
		return s.mx == "" && (s.spf == "" || strings.Contains(s.spf, spfHardFailOnly))
	}},
}

// EmailProvider classifies a domain's mail service from its MX and SPF
// records and the ASN attribution of the hosts behind them. An SPF record
// that only hard-fails everything means the domain sends no mail, so with no
// MX either it counts as Unknown rather than Other.
func EmailProvider(mx, spf, mxOrg, mxCountry, spfOrg, spfCountry string) Category {
	country := spfCountry
	if country == "" {
		country = mxCountry
	}
	s := emailSignals{
		mx:      strings.ToLower(mx),
		spf:     strings.ToLower(spf),
		mxOrg:   strings.ToLower(mxOrg),
		spfOrg:  strings.ToLower(spfOrg),
		country: strings.ToLower(country),
	}
	for _, r := range emailRules {
		if r.match(s) {
			return r.result
		}
	}
	return Other
}

// channelSignals is the lowercased input to the DNS and hosting rule chains:
// the joined record set (NS names, or the hosting ASN), the ASN organization
// and the ASN country.
type channelSignals struct {
	value, org, country string
}

type channelRule struct {
	result Category
	match  func(channelSignals) bool
}

// dnsRules is evaluated top to bottom; the first match wins. Icelandic
// attribution outranks the global vendors, vendors outrank plain US
// attribution, and a trailing .is name server catches zones whose ASN data
// never resolved.
var dnsRules = []channelRule{
	{Unknown, func(s channelSignals) bool {
		return s.value == "" && s.org == "" && s.country == ""
	}},
	{LocalIS, func(s channelSignals) bool {
		return s.country == "is"
	}},
	{Cloudflare, func(s channelSignals) bool {
		return strings.Contains(s.org, "cloudflare") || strings.Contains(s.value, "cloudflare.com")
	}},
	{AWS, func(s channelSignals) bool {
		return strings.Contains(s.org, "amazon") || strings.Contains(s.org, "aws") ||
			strings.Contains(s.value, "awsdns")
	}},
	{Azure, func(s channelSignals) bool {
		return strings.Contains(s.org, "microsoft") || strings.Contains(s.org, "azure") ||
			strings.Contains(s.value, "azure-dns")
	}},
	{Google, func(s channelSignals) bool {
		return strings.Contains(s.org, "google")
	}},
	{OtherUS, func(s channelSignals) bool {
		return s.country == "us"
	}},
	{LocalIS, func(s channelSignals) bool {
		for _, part := range strings.Split(s.value, ";") {
			if strings.HasSuffix(strings.TrimSpace(part), ".is") {
				return true
			}
		}
		return false
	}},
}

// DNSCategory classifies who runs a domain's authoritative name service from
// the NS record set and the ASN attribution of the first name server.
func DNSCategory(ns, org, country string) Category {
	s := channelSignals{
		value:   strings.ToLower(ns),
		org:     strings.ToLower(org),
		country: strings.ToLower(country),
	}
	for _, r := range dnsRules {
		if r.match(s) {
			return r.result
		}
	}
	return Other
}

// hostingRules is evaluated top to bottom; the first match wins. Order
// matters for org strings that name several vendors at once, such as CDN
// resellers fronting cloud compute.
var hostingRules = []channelRule{
	{Unknown, func(s channelSignals) bool {
		return s.value == "" && s.org == "" && s.country == ""
	}},
	{LocalIS, func(s channelSignals) bool {
		return s.country == "is"
	}},
	{AWS, func(s channelSignals) bool {
		return strings.Contains(s.org, "amazon") || strings.Contains(s.org, "aws")
	}},
	{Azure, func(s channelSignals) bool {
		return strings.Contains(s.org, "microsoft") || strings.Contains(s.org, "azure")
	}},
	{Google, func(s channelSignals) bool {
		return strings.Contains(s.org, "google")
	}},
	{Cloudflare, func(s channelSignals) bool {
		return strings.Contains(s.org, "cloudflare")
	}},
	{DigitalOcean, func(s channelSignals) bool {
		return strings.Contains(s.org, "digitalocean")
	}},
	{OtherUS, func(s channelSignals) bool {
		return s.country == "us"
	}},
}

// HostingCategory classifies who hosts a domain's web presence from the ASN
// number, organization and country of its first A record.
func HostingCategory(asn, org, country string) Category {
	s := channelSignals{
		value:   strings.ToLower(asn),
		org:     strings.ToLower(org),
		country: strings.ToLower(country),
	}
	for _, r := range hostingRules {
		if r.match(s) {
			return r.result
		}
	}
	return Other
}

// ClassifyRedirect labels how a domain's web traffic moves: not at all,
// within the same domain, between two Icelandic domains, out of the .is
// zone, or between two foreign domains. Comparisons are case-insensitive.
func ClassifyRedirect(redirectCount int, domain, finalDomain string) RedirectStatus {
	d := strings.ToLower(strings.TrimSpace(domain))
	f := strings.ToLower(strings.TrimSpace(finalDomain))
	switch {
	case redirectCount == 0 || f == "":
		return NoRedirect
	case d == f:
		return InternalRedirect
	case strings.HasSuffix(d, ".is") && strings.HasSuffix(f, ".is"):
		return InternalISRedirect
	case strings.HasSuffix(d, ".is"):
		return CrossBorderRedirect
	}
	return ExternalRedirect
}

// Apply classifies a record in place: the original domain's email, DNS and
// hosting categories, the redirect status, and, only when a redirect
// produced a final domain, the same three categories for that final domain.
// Final categories are cleared when there is no final domain, so downstream
// reconciliation can tell "no redirect" apart from "redirect to unknown".
func Apply(rec *model.Record) {
	rec.EmailProvider = string(EmailProvider(rec.MX, rec.SPF, rec.MXOrg, rec.MXCountry, rec.SPFOrg, rec.SPFCountry))
	rec.DNSCategory = string(DNSCategory(rec.NS, rec.DNSOrg, rec.DNSCountry))
	rec.HostingCategory = string(HostingCategory(rec.HostingASN, rec.HostingOrg, rec.HostingCountry))
	rec.RedirectStatus = string(ClassifyRedirect(rec.RedirectCount, rec.Domain, rec.FinalDomain))

	if strings.TrimSpace(rec.FinalDomain) == "" {
		rec.FinalEmailProvider = ""
		rec.FinalDNSCategory = ""
		rec.FinalHostingCategory = ""
		return
	}
	rec.FinalEmailProvider = string(EmailProvider(rec.FinalMX, rec.FinalSPF, rec.FinalMXOrg, rec.FinalMXCountry, rec.FinalSPFOrg, rec.FinalSPFCountry))
	rec.FinalDNSCategory = string(DNSCategory(rec.FinalNS, rec.FinalDNSOrg, rec.FinalDNSCountry))
	rec.FinalHostingCategory = string(HostingCategory(rec.FinalHostingASN, rec.FinalHostingOrg, rec.FinalHostingCountry))
}
