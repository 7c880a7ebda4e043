// Package classify implements §4.4 FailureClassifier: a deterministic,
// side-effect-free mapping from raw worker failure signals to a stable
// taxonomy, fronted by a bounded TTL cache with FIFO eviction.
package classify

import (
	"strings"
)

const truncateLen = 160

// Category groups classification codes (§3 Classification record).
type Category string

const (
	CategoryHTTP    Category = "HTTP"
	CategoryBot     Category = "BOT"
	CategoryNetwork Category = "NETWORK"
	CategoryConfig  Category = "CONFIG"
	CategoryUnknown Category = "UNKNOWN"
)

// Input is the tuple a classification is a pure function of (§4.4).
type Input struct {
	ErrorMessage       string
	HTTPStatus         int // 0 means absent
	ErrorTypeHint      string
	PageContentSnippet string
}

// Detail is the output of a classification (§3 Classification record).
type Detail struct {
	Code            string   `json:"code"`
	Category        Category `json:"category"`
	Retryable       bool     `json:"retryable"`
	CooldownSeconds int      `json:"cooldown_seconds"`
	Confidence      float64  `json:"confidence"`
}

var (
	timeoutPatterns = []string{"timeout", "timed out", "deadline exceeded", "context deadline"}
	connectPatterns = []string{"connection refused", "no such host", "dns", "econnrefused", "network is unreachable"}
)

func truncate(s string) string {
	if len(s) <= truncateLen {
		return s
	}
	return s[:truncateLen]
}

// classifyPure applies the ordered rule table of §4.4. It performs no I/O
// and touches no clock — only the cache wrapper in cache.go does that —
// so the same input always yields byte-identical output (§8 property 3).
func classifyPure(in Input) Detail {
	msg := strings.ToLower(truncate(in.ErrorMessage))
	hint := strings.ToUpper(strings.TrimSpace(in.ErrorTypeHint))
	snippet := truncate(in.PageContentSnippet)

	switch {
	case in.HTTPStatus == 401 || in.HTTPStatus == 403:
		return Detail{Code: "AUTH_REQUIRED", Category: CategoryHTTP, Retryable: false, Confidence: 1.0}
	case in.HTTPStatus == 404 || hint == "NOT_FOUND":
		return Detail{Code: "NOT_FOUND", Category: CategoryHTTP, Retryable: false, Confidence: 1.0}
	case in.HTTPStatus == 429:
		return Detail{Code: "RATE_LIMITED", Category: CategoryHTTP, Retryable: true, CooldownSeconds: 60, Confidence: 1.0}
	case in.HTTPStatus >= 500 && in.HTTPStatus > 0:
		return Detail{Code: "SERVER_ERROR", Category: CategoryHTTP, Retryable: true, CooldownSeconds: 30, Confidence: 1.0}
	case matchesWAFSignature(snippet):
		return Detail{Code: "WAF_CHALLENGE", Category: CategoryBot, Retryable: false, Confidence: 0.8}
	case matchesBotSignature(snippet):
		return Detail{Code: "BOT_DETECTED", Category: CategoryBot, Retryable: false, Confidence: 0.8}
	case containsAny(msg, timeoutPatterns):
		return Detail{Code: "TIMEOUT", Category: CategoryNetwork, Retryable: true, CooldownSeconds: 15, Confidence: 0.6}
	case containsAny(msg, connectPatterns):
		return Detail{Code: "CONNECT_ERROR", Category: CategoryNetwork, Retryable: true, CooldownSeconds: 30, Confidence: 0.6}
	case hint == "NO_FORM_URL":
		return Detail{Code: "NO_FORM_URL", Category: CategoryConfig, Retryable: false, Confidence: 1.0}
	default:
		return Detail{Code: "UNKNOWN", Category: CategoryUnknown, Retryable: true, CooldownSeconds: 0, Confidence: 0.3}
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
