// Package campaign holds the campaign profile data model and the
// ConfigResolver / validation logic described in spec §3 and §4.7.
package campaign

// Sender carries the identity and address fields used to fill a contact
// form. Every field here is required and non-blank per §4.7.
type Sender struct {
	Name          string `json:"name"`
	Kana          string `json:"kana"`
	Hiragana      string `json:"hiragana"`
	Position      string `json:"position"`
	Gender        string `json:"gender"`
	PrimaryEmail  string `json:"primary_email"`
	PrimaryPostal string `json:"primary_postal"`
	Address1      string `json:"address1"`
	Address2      string `json:"address2"`
	Address3      string `json:"address3"`
	PrimaryPhone  string `json:"primary_phone"`
}

// Policy carries the send-schedule gate and free-form campaign content.
type Policy struct {
	MaxDailySends  *int   `json:"max_daily_sends,omitempty"`
	SendDaysOfWeek []int  `json:"send_days_of_week,omitempty"` // 0=Monday .. 6=Sunday
	SendStart      string `json:"send_start"`                  // HH:MM
	SendEnd        string `json:"send_end"`                    // HH:MM
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

// Profile is the immutable, validated record for one marketing campaign
// (§3 Campaign profile). Loaded once per worker and owned exclusively by
// the worker that loaded it.
type Profile struct {
	CampaignID int64  `json:"campaign_id"`
	Sender     Sender `json:"sender"`
	Policy     Policy `json:"policy"`
}
