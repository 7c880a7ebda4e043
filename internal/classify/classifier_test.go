package classify

import "testing"

func TestClassifyHTTPRules(t *testing.T) {
	cases := []struct {
		name string
		in   Input
		code string
	}{
		{"unauthorized", Input{HTTPStatus: 401}, "AUTH_REQUIRED"},
		{"forbidden", Input{HTTPStatus: 403}, "AUTH_REQUIRED"},
		{"not found status", Input{HTTPStatus: 404}, "NOT_FOUND"},
		{"not found hint", Input{ErrorTypeHint: "NOT_FOUND"}, "NOT_FOUND"},
		{"rate limited", Input{HTTPStatus: 429}, "RATE_LIMITED"},
		{"server error", Input{HTTPStatus: 502}, "SERVER_ERROR"},
		{"no form url", Input{ErrorTypeHint: "NO_FORM_URL"}, "NO_FORM_URL"},
		{"default unknown", Input{ErrorMessage: "something weird"}, "UNKNOWN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyPure(tc.in)
			if got.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, got.Code)
			}
		})
	}
}

func TestClassifyBotDetection(t *testing.T) {
	in := Input{PageContentSnippet: "<html><body>Please verify you are human to continue</body></html>"}
	got := classifyPure(in)
	if got.Code != "BOT_DETECTED" {
		t.Fatalf("expected BOT_DETECTED, got %s", got.Code)
	}
	if got.Category != CategoryBot || got.Retryable {
		t.Errorf("expected non-retryable BOT category, got %+v", got)
	}
}

func TestClassifyWAFChallenge(t *testing.T) {
	in := Input{PageContentSnippet: "Access Denied\nYou don't have permission to access this resource."}
	got := classifyPure(in)
	if got.Code != "WAF_CHALLENGE" {
		t.Fatalf("expected WAF_CHALLENGE, got %s", got.Code)
	}
}

func TestClassifyNetworkPatterns(t *testing.T) {
	if got := classifyPure(Input{ErrorMessage: "context deadline exceeded"}); got.Code != "TIMEOUT" {
		t.Errorf("expected TIMEOUT, got %s", got.Code)
	}
	if got := classifyPure(Input{ErrorMessage: "dial tcp: connection refused"}); got.Code != "CONNECT_ERROR" {
		t.Errorf("expected CONNECT_ERROR, got %s", got.Code)
	}
}

func TestClassifyTruncation(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	in := Input{ErrorMessage: string(long)}
	got := classifyPure(in) // still UNKNOWN, just verifying no panic on long input
	if got.Code != "UNKNOWN" {
		t.Errorf("expected UNKNOWN for long garbage message, got %s", got.Code)
	}
}

func TestClassifierPurityAcrossCalls(t *testing.T) {
	c := New(0, 0)
	in := Input{HTTPStatus: 403}
	first := c.Classify(in)
	second := c.Classify(in)
	if first != second {
		t.Errorf("expected identical classification across calls, got %+v vs %+v", first, second)
	}
}

func TestClassifierTTLExpiry(t *testing.T) {
	c := New(10, 1)
	var clock int64 = 1000
	c.now = func() int64 { return clock }

	in := Input{ErrorMessage: "some transient glitch"}
	c.Classify(in)
	if c.Len() != 1 {
		t.Fatalf("expected 1 cached entry, got %d", c.Len())
	}

	clock += 2 // past the 1s TTL
	c.Classify(in)
	// Recomputed, still a single key since it's the same input tuple.
	if c.Len() != 1 {
		t.Fatalf("expected cache to still hold exactly 1 key after TTL refresh, got %d", c.Len())
	}
}

func TestClassifierEvictsOldestOnOverflow(t *testing.T) {
	c := New(3, 600)
	for i := 0; i < 5; i++ {
		c.Classify(Input{ErrorMessage: string(rune('a' + i))})
	}
	if c.Len() > 3 {
		t.Errorf("expected cache bounded to 3 entries, got %d", c.Len())
	}
}
