package automation

import "testing"

func TestScanForProtectionDetectsKnownSignatures(t *testing.T) {
	d := &RodDriver{}
	cases := []string{
		"<html>Please complete the CAPTCHA</html>",
		"<title>Are You a Robot?</title>",
		"Access Denied by administrator",
		"Attention Required! | Cloudflare",
	}
	for _, html := range cases {
		if detected, hint := d.scanForProtection(html); !detected || hint != "BOT_DETECTED" {
			t.Errorf("expected detection for %q, got detected=%v hint=%q", html, detected, hint)
		}
	}
}

func TestScanForProtectionIgnoresOrdinaryPage(t *testing.T) {
	d := &RodDriver{}
	if detected, _ := d.scanForProtection("<html><body>Thank you for contacting us</body></html>"); detected {
		t.Error("expected no detection on an ordinary page")
	}
}
