package classify

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// wafSignatures are known CDN/WAF challenge-page phrases (§4.4 rule 5).
// Checked against the raw snippet text and, when the snippet parses as
// HTML, against the goquery text content of the whole document, where
// entities are decoded and tags no longer split a phrase.
var wafSignatures = []string{
	"access denied",
	"request blocked",
	"attention required",
	"checking your browser",
	"cloudflare ray id",
	"sucuri website firewall",
	"incapsula incident",
}

// botSignatures are CAPTCHA / automated-traffic challenge phrases (§4.4 rule 6).
var botSignatures = []string{
	"recaptcha",
	"hcaptcha",
	"verify you are human",
	"are you a robot",
	"unusual traffic",
	"complete the security check",
}

// matchesAny reports whether the snippet — scanned as plaintext and, if it
// parses, as an HTML document's text content — contains any of the given
// lower-cased signature phrases.
func matchesAny(snippet string, signatures []string) bool {
	if snippet == "" {
		return false
	}
	lower := strings.ToLower(snippet)
	for _, sig := range signatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return false
	}
	text := strings.ToLower(doc.Text())
	for _, sig := range signatures {
		if strings.Contains(text, sig) {
			return true
		}
	}

	// Last pass: an xpath scan over text nodes outside <script>/<style>.
	// It runs only when the two passes above found nothing, so it never
	// overrules a match they made; script and style contents still count
	// in those earlier passes.
	return matchesVisibleText(snippet, signatures)
}

// matchesVisibleText parses the snippet as a detached HTML fragment via
// htmlquery and walks only text nodes outside <script>/<style>.
func matchesVisibleText(snippet string, signatures []string) bool {
	root, err := htmlquery.Parse(strings.NewReader(snippet))
	if err != nil {
		return false
	}
	nodes, err := htmlquery.QueryAll(root, "//body//*[not(self::script or self::style)]/text()")
	if err != nil || len(nodes) == 0 {
		// xpath.Compile failures or an unselectable fragment fall back to
		// whatever was already decided by the plaintext/goquery passes.
		return false
	}
	var sb strings.Builder
	for _, n := range nodes {
		sb.WriteString(htmlquery.InnerText(n))
		sb.WriteByte(' ')
	}
	lower := strings.ToLower(sb.String())
	for _, sig := range signatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

func matchesWAFSignature(snippet string) bool { return matchesAny(snippet, wafSignatures) }
func matchesBotSignature(snippet string) bool { return matchesAny(snippet, botSignatures) }
