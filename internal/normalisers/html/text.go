package html

import (
	"html"
	"regexp"
	"strings"
)

// Pre-compiled regular expressions for HTML parsing performance.
var (
	titleTag          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	lineBreaks        = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t\r\x{00a0}]+`)
)

// Title returns the decoded contents of the <title> element, or "".
func Title(markup string) string {
	m := titleTag.FindStringSubmatch(markup)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m[1]))
}

// ToText removes markup and returns one trimmed line per block element.
// Consecutive blank lines collapse into a single paragraph break.
func ToText(markup string) string {
	s := scriptTag.ReplaceAllString(markup, "")
	s = styleTag.ReplaceAllString(s, "")
	s = noscriptTag.ReplaceAllString(s, "")
	s = headTag.ReplaceAllString(s, "")
	s = htmlComments.ReplaceAllString(s, "")

	s = openBlockElements.ReplaceAllString(s, "\n")
	s = blockElements.ReplaceAllString(s, "\n")
	s = lineBreaks.ReplaceAllString(s, "\n")
	s = allTags.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = multiSpaces.ReplaceAllString(s, " ")

	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
