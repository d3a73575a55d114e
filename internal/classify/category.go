// Package classify turns raw per-domain DNS/WHOIS attribute strings into
// closed provider categories and reconciles conflicting signals into one
// effective, explainable verdict per service (email, DNS, hosting).
//
// Every function is total and pure: defined for any input, no side effects,
// same output for the same input. Missing upstream values must be normalized
// to empty strings before they reach this package.
package classify

// Category is a provider classification label. The sets per service are
// closed: classification never produces a value outside EmailCategories,
// DNSCategories or HostingCategories.
type Category string

const (
	Microsoft365    Category = "Microsoft 365"
	GoogleWorkspace Category = "Google Workspace"
	LocalIS         Category = "Local (.is)"
	OtherUS         Category = "Other US"
	Other           Category = "Other"
	Unknown         Category = "Unknown"
	Cloudflare      Category = "Cloudflare"
	AWS             Category = "AWS"
	Azure           Category = "Azure"
	Google          Category = "Google"
	DigitalOcean    Category = "DigitalOcean"
)

// RedirectStatus labels the relationship between a domain and the final
// domain its web traffic resolves to.
type RedirectStatus string

const (
	NoRedirect          RedirectStatus = "No redirect"
	InternalRedirect    RedirectStatus = "Internal redirect"
	InternalISRedirect  RedirectStatus = "Internal .is redirect"
	CrossBorderRedirect RedirectStatus = "Cross-border redirect"
	ExternalRedirect    RedirectStatus = "External redirect"
)

// EmailCategories is every value EmailProvider can return.
var EmailCategories = []Category{
	Microsoft365, GoogleWorkspace, LocalIS, OtherUS, Other, Unknown,
}

// DNSCategories is every value DNSCategory can return.
var DNSCategories = []Category{
	LocalIS, Cloudflare, AWS, Azure, Google, OtherUS, Other, Unknown,
}

// HostingCategories is every value HostingCategory can return.
var HostingCategories = []Category{
	LocalIS, AWS, Azure, Google, Cloudflare, DigitalOcean, OtherUS, Other, Unknown,
}

// RedirectStatuses is every value ClassifyRedirect can return.
var RedirectStatuses = []RedirectStatus{
	NoRedirect, InternalRedirect, InternalISRedirect, CrossBorderRedirect, ExternalRedirect,
}

// sentenceForm lowercases generic category names for mid-sentence use in
// disclaimer text. Brand names keep their capitalization.
func sentenceForm(c Category) string {
	switch c {
	case Other:
		return "other"
	case OtherUS:
		return "other US"
	case LocalIS:
		return "local (.is)"
	case Unknown:
		return "unknown"
	}
	return string(c)
}
