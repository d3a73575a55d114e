// Package export writes result snapshots as timestamped CSV and JSON files
// and imports raw attribute snapshots for reclassification.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"domainatlas/internal/model"
)

// columns is the stable output order. Raw attribute columns keep the order
// the resolver collects them in; classified and effective columns follow.
var columns = []string{
	"name_icelandic", "name_english", "tag_icelandic", "tag_english", "url", "domain",
	"final_url", "final_domain", "redirect_count", "redirect_codes",
	"registrar",
	"mx", "spf", "mx_asn", "mx_org", "mx_country",
	"spf_asn", "spf_org", "spf_country",
	"ns", "dns_asn", "dns_org", "dns_country",
	"a", "hosting_asn", "hosting_org", "hosting_country",
	"final_mx", "final_spf", "final_mx_asn", "final_mx_org", "final_mx_country",
	"final_spf_asn", "final_spf_org", "final_spf_country",
	"final_ns", "final_dns_asn", "final_dns_org", "final_dns_country",
	"final_a", "final_hosting_asn", "final_hosting_org", "final_hosting_country",
	"email_provider", "dns_category", "hosting_category",
	"final_email_provider", "final_dns_category", "final_hosting_category",
	"redirect_status",
	"effective_email_provider", "email_disclaimer", "email_disclaimer_text",
	"effective_dns_category", "dns_disclaimer", "dns_disclaimer_text",
	"effective_hosting_category", "hosting_disclaimer", "hosting_disclaimer_text",
}

// requiredRaw are the columns a raw snapshot must carry before
// reclassification; a missing column aborts the whole batch.
var requiredRaw = []string{
	"domain", "final_domain", "redirect_count",
	"mx", "spf", "mx_org", "mx_country", "spf_org", "spf_country",
	"ns", "dns_org", "dns_country",
	"a", "hosting_asn", "hosting_org", "hosting_country",
	"final_mx", "final_spf", "final_mx_org", "final_mx_country", "final_spf_org", "final_spf_country",
	"final_ns", "final_dns_org", "final_dns_country",
	"final_a", "final_hosting_asn", "final_hosting_org", "final_hosting_country",
}

// Write saves the record set as results-YYYYMMDD_HHMMSS.csv and .json under
// dir, creating dir if needed, and returns both paths.
func Write(dir string, records []model.Record, now time.Time) (csvPath, jsonPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	stamp := now.Format("20060102_150405")

	csvPath = filepath.Join(dir, fmt.Sprintf("results-%s.csv", stamp))
	f, err := os.Create(csvPath)
	if err != nil {
		return "", "", err
	}
	if err := WriteCSV(f, records); err != nil {
		_ = f.Close()
		return "", "", err
	}
	if err := f.Close(); err != nil {
		return "", "", err
	}

	jsonPath = filepath.Join(dir, fmt.Sprintf("results-%s.json", stamp))
	jf, err := os.Create(jsonPath)
	if err != nil {
		return "", "", err
	}
	enc := json.NewEncoder(jf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		_ = jf.Close()
		return "", "", err
	}
	if err := jf.Close(); err != nil {
		return "", "", err
	}
	return csvPath, jsonPath, nil
}

// WriteCSV streams the record set in the fixed column order.
func WriteCSV(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for i := range records {
		if err := cw.Write(row(&records[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(r *model.Record) []string {
	return []string{
		r.NameIcelandic, r.NameEnglish, r.TagIcelandic, r.TagEnglish, r.URL, r.Domain,
		r.FinalURL, r.FinalDomain, strconv.Itoa(r.RedirectCount), r.RedirectCodes,
		r.Registrar,
		r.MX, r.SPF, r.MXASN, r.MXOrg, r.MXCountry,
		r.SPFASN, r.SPFOrg, r.SPFCountry,
		r.NS, r.DNSASN, r.DNSOrg, r.DNSCountry,
		r.A, r.HostingASN, r.HostingOrg, r.HostingCountry,
		r.FinalMX, r.FinalSPF, r.FinalMXASN, r.FinalMXOrg, r.FinalMXCountry,
		r.FinalSPFASN, r.FinalSPFOrg, r.FinalSPFCountry,
		r.FinalNS, r.FinalDNSASN, r.FinalDNSOrg, r.FinalDNSCountry,
		r.FinalA, r.FinalHostingASN, r.FinalHostingOrg, r.FinalHostingCountry,
		r.EmailProvider, r.DNSCategory, r.HostingCategory,
		r.FinalEmailProvider, r.FinalDNSCategory, r.FinalHostingCategory,
		r.RedirectStatus,
		r.EffectiveEmailProvider, strconv.FormatBool(r.EmailDisclaimer), r.EmailDisclaimerText,
		r.EffectiveDNSCategory, strconv.FormatBool(r.DNSDisclaimer), r.DNSDisclaimerText,
		r.EffectiveHostingCategory, strconv.FormatBool(r.HostingDisclaimer), r.HostingDisclaimerText,
	}
}

// ReadRawCSV imports a raw attribute snapshot. It fails when any column the
// classifier consumes is absent; per-row gaps stay empty strings.
func ReadRawCSV(path string) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, "\uFEFF")
		}
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var missing []string
	for _, col := range requiredRaw {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	var records []model.Record
	for {
		line, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(col string) string {
			if i, ok := idx[col]; ok && i < len(line) {
				return line[i]
			}
			return ""
		}

		rec := model.Record{
			Organization: model.Organization{
				NameIcelandic: get("name_icelandic"),
				NameEnglish:   get("name_english"),
				TagIcelandic:  get("tag_icelandic"),
				TagEnglish:    get("tag_english"),
				URL:           get("url"),
				Domain:        get("domain"),
			},
			FinalURL:      get("final_url"),
			FinalDomain:   get("final_domain"),
			RedirectCount: atoiLoose(get("redirect_count")),
			RedirectCodes: get("redirect_codes"),
			Registrar:     get("registrar"),
		}
		rec.SetAttributes(model.DomainAttributes{
			MX:             get("mx"),
			SPF:            get("spf"),
			MXASN:          get("mx_asn"),
			MXOrg:          get("mx_org"),
			MXCountry:      get("mx_country"),
			SPFASN:         get("spf_asn"),
			SPFOrg:         get("spf_org"),
			SPFCountry:     get("spf_country"),
			NS:             get("ns"),
			DNSASN:         get("dns_asn"),
			DNSOrg:         get("dns_org"),
			DNSCountry:     get("dns_country"),
			A:              get("a"),
			HostingASN:     get("hosting_asn"),
			HostingOrg:     get("hosting_org"),
			HostingCountry: get("hosting_country"),
		})
		rec.SetFinalAttributes(model.DomainAttributes{
			MX:             get("final_mx"),
			SPF:            get("final_spf"),
			MXASN:          get("final_mx_asn"),
			MXOrg:          get("final_mx_org"),
			MXCountry:      get("final_mx_country"),
			SPFASN:         get("final_spf_asn"),
			SPFOrg:         get("final_spf_org"),
			SPFCountry:     get("final_spf_country"),
			NS:             get("final_ns"),
			DNSASN:         get("final_dns_asn"),
			DNSOrg:         get("final_dns_org"),
			DNSCountry:     get("final_dns_country"),
			A:              get("final_a"),
			HostingASN:     get("final_hosting_asn"),
			HostingOrg:     get("final_hosting_org"),
			HostingCountry: get("final_hosting_country"),
		})
		records = append(records, rec)
	}
	return records, nil
}

// atoiLoose tolerates the float form some tabular tools write for integer
// columns; unparseable values normalize to 0.
func atoiLoose(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
