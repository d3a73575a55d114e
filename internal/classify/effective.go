package classify

import (
	"fmt"
	"strings"

	"domainatlas/internal/model"
)

// Verdict is one reconciled classification: the category to present, whether
// a disclaimer applies, and the disclaimer text when it does.
type Verdict struct {
	Category    Category `json:"category"`
	Disclosed   bool     `json:"disclosed"`
	Explanation string   `json:"explanation"`
}

// channelCategory classifies a single mail channel (the MX record set or the
// SPF record) on its own, so the two can be compared. Unlike the combined
// email chain it treats a country-only signal as attribution, and calls the
// channel Unknown only when both the record value and the org are empty.
func channelCategory(value, org, country string) Category {
	v := strings.ToLower(strings.TrimSpace(value))
	o := strings.ToLower(strings.TrimSpace(org))
	c := strings.ToLower(strings.TrimSpace(country))
	switch {
	case strings.Contains(o, "microsoft"),
		strings.Contains(v, "outlook.com"),
		strings.Contains(v, "office365"),
		strings.Contains(v, "protection.outlook.com"):
		return Microsoft365
	case strings.Contains(o, "google"), strings.Contains(v, "google.com"):
		return GoogleWorkspace
	case c == "is", strings.Contains(v, ".is"):
		return LocalIS
	case c == "us":
		return OtherUS
	case v == "" && o == "":
		return Unknown
	}
	return Other
}

// DetermineEmailProvider reconciles the MX and SPF channels into one email
// verdict. Email is judged on the original domain only: a web redirect says
// nothing about where mail flows. Microsoft org attribution on either
// channel is decisive even when the combined classifier said otherwise,
// because filtering services often hide Microsoft behind their own MX while
// SPF still discloses it (or the reverse).
func DetermineEmailProvider(emailCategory Category, mx, mxOrg, mxCountry, spf, spfOrg, spfCountry string) Verdict {
	if emailCategory == "" {
		emailCategory = Unknown
	}
	mxMicrosoft := strings.Contains(strings.ToLower(strings.TrimSpace(mxOrg)), "microsoft")
	spfMicrosoft := strings.Contains(strings.ToLower(strings.TrimSpace(spfOrg)), "microsoft")
	switch {
	case mxMicrosoft && spfMicrosoft:
		return Verdict{Microsoft365, true, "Microsoft 365 detected in both MX and SPF."}
	case mxMicrosoft:
		return Verdict{Microsoft365, true, "Microsoft 365 detected in MX. SPF does not clearly point to Microsoft 365."}
	case spfMicrosoft:
		return Verdict{Microsoft365, true, "SPF includes Microsoft 365 for sending. MX points elsewhere."}
	}

	if emailCategory == Unknown {
		return Verdict{Category: Unknown}
	}

	mxCat := channelCategory(mx, mxOrg, mxCountry)
	spfCat := channelCategory(spf, spfOrg, spfCountry)
	mxKnown := mxCat != Unknown
	spfKnown := spfCat != Unknown
	switch {
	case mxKnown && spfKnown && mxCat == spfCat:
		return Verdict{emailCategory, true, fmt.Sprintf("%s detected in both MX and SPF.", emailCategory)}
	case mxKnown && spfKnown:
		return Verdict{emailCategory, true, fmt.Sprintf("%s detected. MX uses %s, SPF uses %s.",
			emailCategory, sentenceForm(mxCat), sentenceForm(spfCat))}
	case mxKnown:
		return Verdict{emailCategory, true, fmt.Sprintf("%s detected in MX. SPF is unknown.", emailCategory)}
	case spfKnown:
		return Verdict{emailCategory, true, fmt.Sprintf("%s detected in SPF. MX is unknown.", emailCategory)}
	}
	return Verdict{Category: emailCategory}
}

// DetermineEffectiveProvider reconciles the original domain's category with
// the redirect target's category for a redirect-sensitive service (DNS or
// hosting). An empty final category means no redirect happened and the
// original verdict stands undisclosed; every path through an actual redirect
// carries a disclaimer, agreement included, because the reader should know
// two domains were measured.
func DetermineEffectiveProvider(original, final Category, finalDomain string) Verdict {
	orig := Category(strings.TrimSpace(string(original)))
	fin := Category(strings.TrimSpace(string(final)))
	target := strings.TrimSpace(finalDomain)
	switch {
	case fin == "":
		return Verdict{Category: orig}
	case fin == Unknown:
		return Verdict{orig, true, "Domain redirects but final provider is unknown. Showing original provider."}
	case orig == Unknown:
		return Verdict{fin, true, fmt.Sprintf("Original provider unknown. Showing provider after redirect to %s.", target)}
	case orig != fin:
		return Verdict{fin, true, fmt.Sprintf("Original domain used %s, but redirect target uses %s.", orig, sentenceForm(fin))}
	}
	return Verdict{orig, true, fmt.Sprintf("%s is used on both domains.", orig)}
}

// Resolve fills a record's effective columns from its classifier columns.
// Apply must have run first.
func Resolve(rec *model.Record) {
	email := DetermineEmailProvider(Category(rec.EmailProvider),
		rec.MX, rec.MXOrg, rec.MXCountry, rec.SPF, rec.SPFOrg, rec.SPFCountry)
	rec.EffectiveEmailProvider = string(email.Category)
	rec.EmailDisclaimer = email.Disclosed
	rec.EmailDisclaimerText = email.Explanation

	dns := DetermineEffectiveProvider(Category(rec.DNSCategory), Category(rec.FinalDNSCategory), rec.FinalDomain)
	rec.EffectiveDNSCategory = string(dns.Category)
	rec.DNSDisclaimer = dns.Disclosed
	rec.DNSDisclaimerText = dns.Explanation

	hosting := DetermineEffectiveProvider(Category(rec.HostingCategory), Category(rec.FinalHostingCategory), rec.FinalDomain)
	rec.EffectiveHostingCategory = string(hosting.Category)
	rec.HostingDisclaimer = hosting.Disclosed
	rec.HostingDisclaimerText = hosting.Explanation
}
