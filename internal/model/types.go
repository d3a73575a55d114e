package model

// Organization is one entry from the island.is directory, in both languages.
type Organization struct {
	NameIcelandic string `json:"name_icelandic"`
	NameEnglish   string `json:"name_english"`
	TagIcelandic  string `json:"tag_icelandic"`
	TagEnglish    string `json:"tag_english"`
	URL           string `json:"url"`
	Domain        string `json:"domain"`
}

// DomainAttributes holds the raw per-domain lookup results for one domain.
// Multi-value records (MX, NS, A) are "; "-joined sorted sets. Absent values
// are empty strings, never a distinct null sentinel.
type DomainAttributes struct {
	MX             string `json:"mx"`
	SPF            string `json:"spf"`
	MXASN          string `json:"mx_asn"`
	MXOrg          string `json:"mx_org"`
	MXCountry      string `json:"mx_country"`
	SPFASN         string `json:"spf_asn"`
	SPFOrg         string `json:"spf_org"`
	SPFCountry     string `json:"spf_country"`
	NS             string `json:"ns"`
	DNSASN         string `json:"dns_asn"`
	DNSOrg         string `json:"dns_org"`
	DNSCountry     string `json:"dns_country"`
	A              string `json:"a"`
	HostingASN     string `json:"hosting_asn"`
	HostingOrg     string `json:"hosting_org"`
	HostingCountry string `json:"hosting_country"`
}

// Record is one fully enriched row of the result set: organization metadata,
// redirect info, raw attributes for the original and (when a redirect leads
// elsewhere) the final domain, classifier categories, and effective verdicts.
type Record struct {
	Organization

	FinalURL      string `json:"final_url"`
	FinalDomain   string `json:"final_domain"`
	RedirectCount int    `json:"redirect_count"`
	RedirectCodes string `json:"redirect_codes"`

	Registrar string `json:"registrar"`

	MX             string `json:"mx"`
	SPF            string `json:"spf"`
	MXASN          string `json:"mx_asn"`
	MXOrg          string `json:"mx_org"`
	MXCountry      string `json:"mx_country"`
	SPFASN         string `json:"spf_asn"`
	SPFOrg         string `json:"spf_org"`
	SPFCountry     string `json:"spf_country"`
	NS             string `json:"ns"`
	DNSASN         string `json:"dns_asn"`
	DNSOrg         string `json:"dns_org"`
	DNSCountry     string `json:"dns_country"`
	A              string `json:"a"`
	HostingASN     string `json:"hosting_asn"`
	HostingOrg     string `json:"hosting_org"`
	HostingCountry string `json:"hosting_country"`

	FinalMX             string `json:"final_mx"`
	FinalSPF            string `json:"final_spf"`
	FinalMXASN          string `json:"final_mx_asn"`
	FinalMXOrg          string `json:"final_mx_org"`
	FinalMXCountry      string `json:"final_mx_country"`
	FinalSPFASN         string `json:"final_spf_asn"`
	FinalSPFOrg         string `json:"final_spf_org"`
	FinalSPFCountry     string `json:"final_spf_country"`
	FinalNS             string `json:"final_ns"`
	FinalDNSASN         string `json:"final_dns_asn"`
	FinalDNSOrg         string `json:"final_dns_org"`
	FinalDNSCountry     string `json:"final_dns_country"`
	FinalA              string `json:"final_a"`
	FinalHostingASN     string `json:"final_hosting_asn"`
	FinalHostingOrg     string `json:"final_hosting_org"`
	FinalHostingCountry string `json:"final_hosting_country"`

	EmailProvider        string `json:"email_provider"`
	DNSCategory          string `json:"dns_category"`
	HostingCategory      string `json:"hosting_category"`
	FinalEmailProvider   string `json:"final_email_provider"`
	FinalDNSCategory     string `json:"final_dns_category"`
	FinalHostingCategory string `json:"final_hosting_category"`
	RedirectStatus       string `json:"redirect_status"`

	EffectiveEmailProvider   string `json:"effective_email_provider"`
	EmailDisclaimer          bool   `json:"email_disclaimer"`
	EmailDisclaimerText      string `json:"email_disclaimer_text"`
	EffectiveDNSCategory     string `json:"effective_dns_category"`
	DNSDisclaimer            bool   `json:"dns_disclaimer"`
	DNSDisclaimerText        string `json:"dns_disclaimer_text"`
	EffectiveHostingCategory string `json:"effective_hosting_category"`
	HostingDisclaimer        bool   `json:"hosting_disclaimer"`
	HostingDisclaimerText    string `json:"hosting_disclaimer_text"`
}

// SetAttributes copies raw attributes into the record's original-domain columns.
func (r *Record) SetAttributes(a DomainAttributes) {
	r.MX = a.MX
	r.SPF = a.SPF
	r.MXASN = a.MXASN
	r.MXOrg = a.MXOrg
	r.MXCountry = a.MXCountry
	r.SPFASN = a.SPFASN
	r.SPFOrg = a.SPFOrg
	r.SPFCountry = a.SPFCountry
	r.NS = a.NS
	r.DNSASN = a.DNSASN
	r.DNSOrg = a.DNSOrg
	r.DNSCountry = a.DNSCountry
	r.A = a.A
	r.HostingASN = a.HostingASN
	r.HostingOrg = a.HostingOrg
	r.HostingCountry = a.HostingCountry
}

// Attributes returns the original-domain attribute columns.
func (r *Record) Attributes() DomainAttributes {
	return DomainAttributes{
		MX:             r.MX,
		SPF:            r.SPF,
		MXASN:          r.MXASN,
		MXOrg:          r.MXOrg,
		MXCountry:      r.MXCountry,
		SPFASN:         r.SPFASN,
		SPFOrg:         r.SPFOrg,
		SPFCountry:     r.SPFCountry,
		NS:             r.NS,
		DNSASN:         r.DNSASN,
		DNSOrg:         r.DNSOrg,
		DNSCountry:     r.DNSCountry,
		A:              r.A,
		HostingASN:     r.HostingASN,
		HostingOrg:     r.HostingOrg,
		HostingCountry: r.HostingCountry,
	}
}

// SetFinalAttributes copies raw attributes into the final-domain columns.
func (r *Record) SetFinalAttributes(a DomainAttributes) {
	r.FinalMX = a.MX
	r.FinalSPF = a.SPF
	r.FinalMXASN = a.MXASN
	r.FinalMXOrg = a.MXOrg
	r.FinalMXCountry = a.MXCountry
	r.FinalSPFASN = a.SPFASN
	r.FinalSPFOrg = a.SPFOrg
	r.FinalSPFCountry = a.SPFCountry
	r.FinalNS = a.NS
	r.FinalDNSASN = a.DNSASN
	r.FinalDNSOrg = a.DNSOrg
	r.FinalDNSCountry = a.DNSCountry
	r.FinalA = a.A
	r.FinalHostingASN = a.HostingASN
	r.FinalHostingOrg = a.HostingOrg
	r.FinalHostingCountry = a.HostingCountry
}

// HistoryEntry is one stored attribution snapshot for a domain.
type HistoryEntry struct {
	Timestamp string `json:"timestamp"`
	Result    string `json:"result"`
}

// RunSummary describes one pipeline run.
type RunSummary struct {
	StartedAt     string         `json:"started_at"`
	FinishedAt    string         `json:"finished_at"`
	Organizations int            `json:"organizations"`
	Domains       int            `json:"domains"`
	Redirects     int            `json:"redirects"`
	Email         map[string]int `json:"email"`
	DNS           map[string]int `json:"dns"`
	Hosting       map[string]int `json:"hosting"`
	Disclaimers   map[string]int `json:"disclaimers"`
}
