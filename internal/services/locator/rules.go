package locator

import (
	"net/url"
	"strings"
)

// siteRule maps a known publisher page URL to its PDF sibling. Rules are
// pure URL -> URL functions; a rule returns "" when it does not apply.
type siteRule struct {
	name    string
	resolve func(page *url.URL) string
}

// siteRules is tried in order; the first non-empty result wins
var siteRules = []siteRule{
	{
		// arxiv.org/abs/<id> -> arxiv.org/pdf/<id>.pdf
		name: "arxiv",
		resolve: func(page *url.URL) string {
			host := strings.ToLower(page.Hostname())
			if !strings.HasSuffix(host, "arxiv.org") || !strings.HasPrefix(page.Path, "/abs/") {
				return ""
			}
			identifier := strings.Trim(strings.TrimPrefix(page.Path, "/abs/"), "/")
			if identifier == "" {
				return ""
			}
			suffix := ".pdf"
			if strings.HasSuffix(identifier, ".pdf") {
				suffix = ""
			}
			return resolveAgainst(page, "/pdf/"+identifier+suffix)
		},
	},
	{
		// aclanthology.org/<id> -> aclanthology.org/<id>.pdf
		name: "aclanthology",
		resolve: func(page *url.URL) string {
			host := strings.ToLower(page.Hostname())
			if !strings.HasSuffix(host, "aclanthology.org") {
				return ""
			}
			normalized := strings.TrimRight(page.Path, "/")
			if normalized == "" {
				return ""
			}
			return resolveAgainst(page, normalized+".pdf")
		},
	},
	{
		// openreview.net/forum?id=<id> -> openreview.net/pdf?id=<id>
		name: "openreview",
		resolve: func(page *url.URL) string {
			host := strings.ToLower(page.Hostname())
			if !strings.HasSuffix(host, "openreview.net") {
				return ""
			}
			paperID := page.Query().Get("id")
			if paperID == "" {
				return ""
			}
			return resolveAgainst(page, "/pdf?id="+url.QueryEscape(paperID))
		},
	},
	{
		// dl.acm.org/doi/<suffix> -> dl.acm.org/doi/pdf/<suffix>?download=true
		name: "acm",
		resolve: func(page *url.URL) string {
			host := strings.ToLower(page.Hostname())
			if !strings.HasSuffix(host, "dl.acm.org") || !strings.Contains(page.Path, "/doi/") {
				return ""
			}
			parts := strings.SplitN(page.Path, "/doi/", 2)
			doiPart := strings.Trim(parts[1], "/")
			if doiPart == "" {
				return ""
			}
			return resolveAgainst(page, "/doi/pdf/"+doiPart+"?download=true")
		},
	},
}

// resolveKnownSite applies the known publisher rules in priority order
func resolveKnownSite(page *url.URL) string {
	for _, rule := range siteRules {
		if pdfURL := rule.resolve(page); pdfURL != "" {
			return pdfURL
		}
	}
	return ""
}

// resolveAgainst resolves a reference against the page URL, urljoin-style
func resolveAgainst(page *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return page.ResolveReference(parsed).String()
}
