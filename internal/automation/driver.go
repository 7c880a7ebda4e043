// Package automation defines the BrowserDriver contract WorkerActor drives
// (§6 EXTERNAL INTERFACES) and ships one reference implementation built on
// go-rod. Anything smarter than "navigate, fill known selectors, submit" —
// DOM scoring, field-semantic inference, anti-bot evasion — is explicitly
// out of scope; a production deployment supplies its own FormAnalyzer-aware
// driver behind this same interface.
package automation

import (
	"context"
	"time"

	"github.com/neurify-goto/formsender-runner/internal/campaign"
)

// ProcessInput is everything BrowserDriver.Process needs to attempt one
// submission (§4.2 step 5).
type ProcessInput struct {
	CompanyID int64
	FormURL   string
	Profile   *campaign.Profile
	WorkerID  int
}

// ProcessResult reports the outcome of one submission attempt. Detail
// fields are only meaningful when Success is false; they feed directly
// into classify.Input.
type ProcessResult struct {
	Success            bool
	ErrorMessage       string
	HTTPStatus         int
	ErrorTypeHint      string
	PageContentSnippet string
	BotProtection      bool
}

// BrowserDriver is the external collaborator WorkerActor delegates actual
// form submission to (§6). Process must enforce its own time budget
// internally; the worker imposes no separate timer (§5).
type BrowserDriver interface {
	Process(ctx context.Context, in ProcessInput) (ProcessResult, error)
	Close() error
}

// DefaultProcessBudget bounds a single Process call when the concrete
// driver has no more specific deadline of its own.
const DefaultProcessBudget = 45 * time.Second
