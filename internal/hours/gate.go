// Package hours implements §4.6 BusinessHoursGate: a pure function over a
// campaign policy and the current JST time. It performs no I/O and never
// consults the wall clock itself — the caller supplies "now".
package hours

import (
	"time"

	"github.com/neurify-goto/formsender-runner/internal/campaign"
)

// JST is the fixed offset used for the canonical day boundary (GLOSSARY).
var JST = time.FixedZone("JST", 9*60*60)

// IsOpen evaluates (policy, nowJST) and returns true iff sends are allowed
// right now. Malformed or absent schedule fields default to open — a
// benign policy gap should never silently stop a campaign (§4.6).
func IsOpen(policy campaign.Policy, nowJST time.Time) bool {
	if len(policy.SendDaysOfWeek) > 0 {
		weekday := isoWeekday(nowJST)
		allowed := false
		for _, d := range policy.SendDaysOfWeek {
			if d == weekday {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	start, okStart := campaign.MinutesOfDay(policy.SendStart)
	end, okEnd := campaign.MinutesOfDay(policy.SendEnd)
	if !okStart || !okEnd {
		return true
	}

	nowMinutes := nowJST.Hour()*60 + nowJST.Minute()
	return nowMinutes >= start && nowMinutes < end
}

// isoWeekday returns 0=Monday .. 6=Sunday, matching §3's "0=Monday"
// convention (time.Weekday uses 0=Sunday).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	return (wd + 6) % 7
}
