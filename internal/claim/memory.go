package claim

import (
	"context"
	"sync"
)

// MemoryProtocol is an in-process Protocol implementation used by tests
// and by the runner's local-dev mode. It enforces the same invariants
// the Postgres implementation gets from SQL (§3, §8): at most one terminal
// per triple, and no two ClaimNext calls ever return the same pending id.
type MemoryProtocol struct {
	mu        sync.Mutex
	pending   map[string][]int64 // "date|campaign" -> pending company ids, in order
	claimed   map[string]bool    // "date|campaign|company" -> claimed
	terminals map[string]MarkDoneInput
	companies map[int64]Company
}

// NewMemoryProtocol creates an empty in-memory backing store.
func NewMemoryProtocol() *MemoryProtocol {
	return &MemoryProtocol{
		pending:   make(map[string][]int64),
		claimed:   make(map[string]bool),
		terminals: make(map[string]MarkDoneInput),
		companies: make(map[int64]Company),
	}
}

// Seed registers a company as pending for a given (date, campaign).
func (m *MemoryProtocol) Seed(targetDate string, campaignID int64, company Company) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[company.ID] = company
	key := queueKey(targetDate, campaignID)
	m.pending[key] = append(m.pending[key], company.ID)
}

// SeedCompanyOnly registers a company record without enqueuing it as
// pending, for fixed-company-mode tests that must never call ClaimNext.
func (m *MemoryProtocol) SeedCompanyOnly(company Company) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[company.ID] = company
}

func queueKey(targetDate string, campaignID int64) string {
	return targetDate + "|" + itoa(campaignID)
}

func terminalKey(targetDate string, campaignID, companyID int64) string {
	return targetDate + "|" + itoa(campaignID) + "|" + itoa(companyID)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (m *MemoryProtocol) ClaimNext(_ context.Context, targetDate string, campaignID int64, _ string, limit int, _ *int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := queueKey(targetDate, campaignID)
	queue := m.pending[key]
	var claimed []int64
	var remaining []int64
	for _, id := range queue {
		tk := terminalKey(targetDate, campaignID, id)
		if len(claimed) < limit && !m.claimed[tk] {
			m.claimed[tk] = true
			claimed = append(claimed, id)
			continue
		}
		remaining = append(remaining, id)
	}
	m.pending[key] = remaining
	return claimed, nil
}

func (m *MemoryProtocol) FetchCompany(_ context.Context, companyID int64) (Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[companyID]
	if !ok {
		return Company{}, ErrCompanyNotFound
	}
	return c, nil
}

func (m *MemoryProtocol) MarkDone(_ context.Context, in MarkDoneInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tk := terminalKey(in.TargetDate, in.CampaignID, in.CompanyID)
	if _, exists := m.terminals[tk]; exists {
		return nil // idempotent no-op, first write wins
	}
	m.terminals[tk] = in
	return nil
}

func (m *MemoryProtocol) CountToday(_ context.Context, campaignID int64, targetDate string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.terminals {
		if t.CampaignID == campaignID && t.TargetDate == targetDate && t.Success {
			n++
		}
	}
	return n, nil
}

// Terminal returns the recorded terminal for a triple, for test assertions.
func (m *MemoryProtocol) Terminal(targetDate string, campaignID, companyID int64) (MarkDoneInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terminals[terminalKey(targetDate, campaignID, companyID)]
	return t, ok
}

// TerminalCount returns the total number of distinct terminals recorded.
func (m *MemoryProtocol) TerminalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.terminals)
}
