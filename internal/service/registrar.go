package service

import (
	"strings"

	"domainatlas/internal/utils"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
)

// Registrar resolves the registrar name for a domain. Registry answers that
// point at a registrar WHOIS server are followed once, since the registrar's
// record is usually the one that names itself. Any failure returns "": the
// registrar column is enrichment, never a reason to drop a domain.
func Registrar(domain string) string {
	raw, err := whois.Whois(domain)
	if err != nil && strings.Contains(err.Error(), "no whois server found") {
		raw, err = whoisViaIANA(domain)
	}
	if err != nil {
		utils.Log.Warn("whois lookup failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
		return ""
	}

	if strings.Contains(raw, "Registrar WHOIS Server:") {
		for _, line := range strings.Split(raw, "\n") {
			if !strings.Contains(line, "Registrar WHOIS Server:") {
				continue
			}
			_, server, _ := strings.Cut(line, ":")
			server = strings.TrimSpace(server)
			if server != "" {
				if refRaw, refErr := whois.Whois(domain, server); refErr == nil && len(refRaw) > len(raw)/2 {
					raw = refRaw
				}
			}
			break
		}
	}

	result, err := whoisparser.Parse(stripWhoisComments(raw))
	if err != nil || result.Registrar == nil {
		return ""
	}
	return result.Registrar.Name
}

// whoisViaIANA asks the IANA root for the TLD's referral server and retries
// there.
func whoisViaIANA(domain string) (string, error) {
	ianaRaw, err := whois.Whois(domain, "whois.iana.org")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(ianaRaw, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		if !strings.HasPrefix(lower, "whois:") && !strings.HasPrefix(lower, "refer:") {
			continue
		}
		_, server, _ := strings.Cut(line, ":")
		server = strings.TrimSpace(server)
		if server != "" {
			return whois.Whois(domain, server)
		}
	}
	return ianaRaw, nil
}

// stripWhoisComments drops % and # comment lines and collapses blank runs,
// which trips up the parser on some registry output.
func stripWhoisComments(raw string) string {
	lines := strings.Split(raw, "\n")
	var filtered []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "%") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if trimmed == "" && (len(filtered) == 0 || filtered[len(filtered)-1] == "") {
			continue
		}
		filtered = append(filtered, line)
	}
	return strings.Join(filtered, "\n")
}
