package campaign

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/neurify-goto/formsender-runner/internal/types"
)

func validDoc() map[string]json.RawMessage {
	doc := map[string]any{
		"campaign_id": 7,
		"sender": map[string]string{
			"name": "Taro Yamada", "kana": "ヤマダ タロウ", "hiragana": "やまだ たろう",
			"position": "Sales", "gender": "male", "primary_email": "taro@example.com",
			"primary_postal": "100-0001", "address1": "Chiyoda", "address2": "1-1",
			"address3": "Bldg 2F", "primary_phone": "03-1234-5678",
		},
		"policy": map[string]any{
			"send_start": "09:00", "send_end": "18:00",
			"send_days_of_week": []int{0, 1, 2, 3, 4},
			"subject": "Hello", "body": "World",
		},
	}
	raw := map[string]json.RawMessage{}
	for k, v := range doc {
		b, _ := json.Marshal(v)
		raw[k] = b
	}
	return raw
}

func TestTransformAcceptsValidDoc(t *testing.T) {
	p, err := Transform(validDoc(), "test.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CampaignID != 7 || p.Sender.Name != "Taro Yamada" {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestTransformRejectsMissingSenderSection(t *testing.T) {
	doc := validDoc()
	delete(doc, "sender")
	_, err := Transform(doc, "test.json")
	var ce *types.ConfigError
	if err == nil {
		t.Fatal("expected error for missing sender section")
	}
	if ok := asConfigError(err, &ce); !ok || ce.Field != "sender" {
		t.Errorf("expected ConfigError for field sender, got %v", err)
	}
}

func TestTransformRejectsBlankRequiredField(t *testing.T) {
	doc := map[string]any{}
	raw := validDoc()
	_ = json.Unmarshal(raw["sender"], &doc)
	doc["name"] = ""
	b, _ := json.Marshal(doc)
	raw["sender"] = b

	_, err := Transform(raw, "test.json")
	if err == nil {
		t.Fatal("expected error for blank sender.name")
	}
}

func TestTransformRejectsEmailWithoutAt(t *testing.T) {
	doc := map[string]any{}
	raw := validDoc()
	_ = json.Unmarshal(raw["sender"], &doc)
	doc["primary_email"] = "not-an-email"
	b, _ := json.Marshal(doc)
	raw["sender"] = b

	_, err := Transform(raw, "test.json")
	if err == nil {
		t.Fatal("expected error for malformed email")
	}
}

func TestTransformRejectsMalformedSendStart(t *testing.T) {
	doc := map[string]any{}
	raw := validDoc()
	_ = json.Unmarshal(raw["policy"], &doc)
	doc["send_start"] = "9am"
	b, _ := json.Marshal(doc)
	raw["policy"] = b

	_, err := Transform(raw, "test.json")
	if err == nil {
		t.Fatal("expected error for malformed send_start")
	}
}

func TestTransformRejectsOutOfRangeWeekday(t *testing.T) {
	doc := map[string]any{}
	raw := validDoc()
	_ = json.Unmarshal(raw["policy"], &doc)
	doc["send_days_of_week"] = []int{7}
	b, _ := json.Marshal(doc)
	raw["policy"] = b

	_, err := Transform(raw, "test.json")
	if err == nil {
		t.Fatal("expected error for weekday 7")
	}
}

func TestTransformRejectsNonPositiveMaxDailySends(t *testing.T) {
	doc := map[string]any{}
	raw := validDoc()
	_ = json.Unmarshal(raw["policy"], &doc)
	doc["max_daily_sends"] = 0
	b, _ := json.Marshal(doc)
	raw["policy"] = b

	_, err := Transform(raw, "test.json")
	if err == nil {
		t.Fatal("expected error for max_daily_sends=0")
	}
}

func TestMinutesOfDayParsesValidAndRejectsMalformed(t *testing.T) {
	if m, ok := MinutesOfDay("09:30"); !ok || m != 570 {
		t.Errorf("expected 570 minutes, got %d ok=%v", m, ok)
	}
	if _, ok := MinutesOfDay("25:00"); ok {
		t.Error("expected malformed hour to fail")
	}
}

func TestResolverLiteralPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "campaign.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	r := NewResolver()
	got, err := r.Resolve(path)
	if err != nil || got != path {
		t.Fatalf("expected literal path, got %q err=%v", got, err)
	}
}

func TestResolverGlobPicksNewestFile(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "campaign-1.json")
	newer := filepath.Join(dir, "campaign-2.json")
	if err := os.WriteFile(older, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(newer, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	r := NewResolver()
	got, err := r.Resolve(filepath.Join(dir, "campaign-*.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != newer {
		t.Errorf("expected newest file %q, got %q", newer, got)
	}
}

func TestResolverGlobNoMatchFails(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver()
	_, err := r.Resolve(filepath.Join(dir, "missing-*.json"))
	var ce *types.ConfigError
	if !asConfigError(err, &ce) || ce.Kind != types.ConfigErrorGlobNoMatch {
		t.Fatalf("expected glob_no_match ConfigError, got %v", err)
	}
}

func TestResolverAmbiguousWildcardFails(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve("a*b*c")
	var ce *types.ConfigError
	if !asConfigError(err, &ce) || ce.Kind != types.ConfigErrorGlobAmbiguous {
		t.Fatalf("expected glob_ambiguous ConfigError, got %v", err)
	}
}

func asConfigError(err error, target **types.ConfigError) bool {
	ce, ok := err.(*types.ConfigError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
