package hours

import (
	"testing"
	"time"

	"github.com/neurify-goto/formsender-runner/internal/campaign"
)

func weekdayPolicy() campaign.Policy {
	return campaign.Policy{
		SendDaysOfWeek: []int{0, 1, 2, 3, 4}, // Mon..Fri
		SendStart:      "09:00",
		SendEnd:        "18:00",
	}
}

func TestIsOpenWithinWindow(t *testing.T) {
	// Monday 2024-01-01 is a Monday.
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, JST)
	if !IsOpen(weekdayPolicy(), now) {
		t.Error("expected open on Monday 10:00 JST")
	}
}

func TestIsOpenOutsideHours(t *testing.T) {
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, JST)
	if IsOpen(weekdayPolicy(), now) {
		t.Error("expected closed at 20:00 JST")
	}
}

func TestIsOpenWeekend(t *testing.T) {
	// 2024-01-06 is a Saturday.
	now := time.Date(2024, 1, 6, 10, 0, 0, 0, JST)
	if IsOpen(weekdayPolicy(), now) {
		t.Error("expected closed on Saturday")
	}
}

func TestIsOpenBoundaryInclusiveStart(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, JST)
	if !IsOpen(weekdayPolicy(), now) {
		t.Error("expected open exactly at send_start")
	}
}

func TestIsOpenBoundaryExclusiveEnd(t *testing.T) {
	now := time.Date(2024, 1, 1, 18, 0, 0, 0, JST)
	if IsOpen(weekdayPolicy(), now) {
		t.Error("expected closed exactly at send_end")
	}
}

func TestIsOpenDefaultsOpenOnMalformedPolicy(t *testing.T) {
	p := campaign.Policy{SendStart: "not-a-time", SendEnd: "also-bad"}
	now := time.Date(2024, 1, 6, 3, 0, 0, 0, JST)
	if !IsOpen(p, now) {
		t.Error("expected fail-safe open on malformed policy")
	}
}

func TestIsOpenStable(t *testing.T) {
	p := weekdayPolicy()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, JST)
	first := IsOpen(p, now)
	second := IsOpen(p, now)
	if first != second {
		t.Error("expected repeated calls with identical input to agree")
	}
}
