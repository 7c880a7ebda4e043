package campaign

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/neurify-goto/formsender-runner/internal/types"
)

var hhmmPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// Transform validates a raw campaign document the way
// ClientConfigStore.transform does in §4.7: presence of sender and policy
// sections, non-blank required sender fields, valid HH:MM times, a
// 0..6 weekday list, and a positive max_daily_sends if present.
func Transform(doc map[string]json.RawMessage, path string) (*Profile, error) {
	invalid := func(field string, err error) error {
		return &types.ConfigError{Kind: types.ConfigErrorInvalidField, Field: field, Path: path, Err: err}
	}

	rawID, ok := doc["campaign_id"]
	if !ok {
		return nil, invalid("campaign_id", fmt.Errorf("missing"))
	}
	var campaignID int64
	if err := json.Unmarshal(rawID, &campaignID); err != nil {
		return nil, invalid("campaign_id", err)
	}

	rawSender, ok := doc["sender"]
	if !ok {
		return nil, invalid("sender", fmt.Errorf("missing section"))
	}
	var sender Sender
	if err := json.Unmarshal(rawSender, &sender); err != nil {
		return nil, invalid("sender", err)
	}
	if err := validateSender(&sender); err != nil {
		return nil, invalid("sender", err)
	}

	rawPolicy, ok := doc["policy"]
	if !ok {
		return nil, invalid("policy", fmt.Errorf("missing section"))
	}
	var policy Policy
	if err := json.Unmarshal(rawPolicy, &policy); err != nil {
		return nil, invalid("policy", err)
	}
	if err := validatePolicy(&policy); err != nil {
		return nil, invalid("policy", err)
	}

	return &Profile{CampaignID: campaignID, Sender: sender, Policy: policy}, nil
}

func validateSender(s *Sender) error {
	required := map[string]string{
		"name":           s.Name,
		"kana":           s.Kana,
		"hiragana":       s.Hiragana,
		"position":       s.Position,
		"gender":         s.Gender,
		"primary_email":  s.PrimaryEmail,
		"primary_postal": s.PrimaryPostal,
		"address1":       s.Address1,
		"address2":       s.Address2,
		"address3":       s.Address3,
		"primary_phone":  s.PrimaryPhone,
	}
	var blank []string
	for field, val := range required {
		if strings.TrimSpace(val) == "" {
			blank = append(blank, field)
		}
	}
	if len(blank) > 0 {
		return fmt.Errorf("blank required fields: %s", strings.Join(blank, ", "))
	}
	if !strings.Contains(s.PrimaryEmail, "@") {
		return fmt.Errorf("primary_email is not a valid address: %q", s.PrimaryEmail)
	}
	return nil
}

func validatePolicy(p *Policy) error {
	if !hhmmPattern.MatchString(p.SendStart) {
		return fmt.Errorf("send_start must be HH:MM, got %q", p.SendStart)
	}
	if !hhmmPattern.MatchString(p.SendEnd) {
		return fmt.Errorf("send_end must be HH:MM, got %q", p.SendEnd)
	}
	for _, d := range p.SendDaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("send_days_of_week entries must be 0..6, got %d", d)
		}
	}
	if p.MaxDailySends != nil && *p.MaxDailySends <= 0 {
		return fmt.Errorf("max_daily_sends must be a positive integer, got %d", *p.MaxDailySends)
	}
	return nil
}

// MinutesOfDay parses an "HH:MM" string into minutes since midnight.
// Returns ok=false for malformed input so callers can fail open (§4.6).
func MinutesOfDay(hhmm string) (int, bool) {
	m := hhmmPattern.FindStringSubmatch(hhmm)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return h*60 + min, true
}
