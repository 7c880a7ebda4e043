package classify

import "testing"

func TestMatchesWAFSignaturePlaintext(t *testing.T) {
	if !matchesWAFSignature("Attention Required! | Cloudflare Ray ID: abc123") {
		t.Error("expected cloudflare ray id snippet to match WAF signatures")
	}
}

func TestMatchesWAFSignatureInsideMarkup(t *testing.T) {
	html := `<html><head><title>Sucuri WebSite Firewall - Access Denied</title></head><body><p>blocked</p></body></html>`
	if !matchesWAFSignature(html) {
		t.Error("expected markup-embedded WAF phrase to match")
	}
}

func TestMatchesBotSignatureRecaptcha(t *testing.T) {
	html := `<html><body><div class="g-recaptcha" data-sitekey="x"></div>Please complete the security check</body></html>`
	if !matchesBotSignature(html) {
		t.Error("expected recaptcha/security-check snippet to match bot signatures")
	}
}

func TestMatchesVisibleTextIgnoresScriptAndStyleNoise(t *testing.T) {
	html := `<html><body><script>var cloudflare = "ray id";</script><style>.recaptcha{display:none}</style><p>Welcome to our site</p></body></html>`
	if matchesVisibleText(html, wafSignatures) {
		t.Error("expected script/style-only occurrences to be excluded from visible-text matching")
	}
}

func TestMatchesAnyEmptySnippetNeverMatches(t *testing.T) {
	if matchesWAFSignature("") || matchesBotSignature("") {
		t.Error("expected an empty snippet to never match any signature")
	}
}
