package notes

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildPageURL formats the destination note URL:
// <base>/<project>/<title>?body=<summary>, everything percent-encoded and
// any trailing slash stripped from the base first.
func BuildPageURL(baseURL, project, title, summary string) string {
	base := strings.TrimRight(baseURL, "/")
	return fmt.Sprintf("%s/%s/%s?body=%s",
		base,
		encodeComponent(project),
		encodeComponent(title),
		encodeComponent(strings.TrimSpace(summary)),
	)
}

// encodeComponent percent-encodes every reserved character, including "/"
// and "+", so titles with slashes or spaces survive as a single path
// segment. url.PathEscape alone leaves sub-delims like "+" bare.
func encodeComponent(s string) string {
	escaped := url.QueryEscape(s)
	return strings.ReplaceAll(escaped, "+", "%20")
}
