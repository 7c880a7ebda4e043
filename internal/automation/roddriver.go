package automation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// HeadlessMode mirrors the runner's --headless tri-state (§6).
type HeadlessMode string

const (
	HeadlessOn   HeadlessMode = "on"
	HeadlessOff  HeadlessMode = "off"
	HeadlessAuto HeadlessMode = "auto"
)

// FieldMap names the CSS selectors a campaign's landing form exposes for
// each sender attribute. A real deployment derives this per-site from a
// FormAnalyzer; the reference driver accepts it as a fixed convention so
// Process has something concrete to fill.
type FieldMap struct {
	NameSelector    string
	EmailSelector   string
	PhoneSelector   string
	SubjectSelector string
	BodySelector    string
	SubmitSelector  string
}

// DefaultFieldMap is a common convention for simple contact forms.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		NameSelector:    `input[name="name"], input[id="name"]`,
		EmailSelector:   `input[name="email"], input[type="email"]`,
		PhoneSelector:   `input[name="phone"], input[name="tel"]`,
		SubjectSelector: `input[name="subject"]`,
		BodySelector:    `textarea[name="message"], textarea[name="body"]`,
		SubmitSelector:  `button[type="submit"], input[type="submit"]`,
	}
}

// RodDriver is the reference BrowserDriver (§6), one headless Chromium
// instance per worker with a small page pool, adapted from the teacher's
// launcher/page-pool wiring.
type RodDriver struct {
	browser  *rod.Browser
	logger   *slog.Logger
	fields   FieldMap
	budget   time.Duration
	mu       sync.Mutex
	pagePool chan *rod.Page
	maxPages int
}

// RodDriverOption configures a RodDriver at construction time.
type RodDriverOption func(*RodDriver)

// WithFieldMap overrides the default selector convention.
func WithFieldMap(fm FieldMap) RodDriverOption {
	return func(d *RodDriver) { d.fields = fm }
}

// WithProcessBudget overrides DefaultProcessBudget.
func WithProcessBudget(d time.Duration) RodDriverOption {
	return func(rd *RodDriver) { rd.budget = d }
}

// NewRodDriver launches a headless (or headful, per mode) Chromium instance
// and returns a ready-to-use driver.
func NewRodDriver(mode HeadlessMode, logger *slog.Logger, opts ...RodDriverOption) (*RodDriver, error) {
	d := &RodDriver{
		logger:   logger.With("component", "rod_driver"),
		fields:   DefaultFieldMap(),
		budget:   DefaultProcessBudget,
		maxPages: 1,
	}
	for _, opt := range opts {
		opt(d)
	}

	headless := mode != HeadlessOff // auto defaults to headless in a worker process

	l := launcher.New().
		Headless(headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	d.browser = browser
	d.pagePool = make(chan *rod.Page, d.maxPages)
	d.logger.Info("browser driver ready", "headless", headless)
	return d, nil
}

func (d *RodDriver) getPage() (*rod.Page, error) {
	select {
	case page := <-d.pagePool:
		return page, nil
	default:
		page, err := stealth.Page(d.browser)
		if err != nil {
			return d.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
		}
		return page, nil
	}
}

func (d *RodDriver) putPage(page *rod.Page) {
	_ = page.Navigate("about:blank")
	select {
	case d.pagePool <- page:
	default:
		_ = page.Close()
	}
}

// Process navigates to the company's form URL, fills the sender's fields
// by the configured convention, and submits (§4.2 step 5). Any failure is
// returned as a ProcessResult with enough signal for classify.Input to act
// on; Process never panics across the worker boundary.
func (d *RodDriver) Process(ctx context.Context, in ProcessInput) (ProcessResult, error) {
	budget := d.budget
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < budget {
			budget = remaining
		}
	}

	page, err := d.getPage()
	if err != nil {
		return ProcessResult{ErrorMessage: err.Error(), ErrorTypeHint: "BROWSER_ERROR"}, nil
	}
	defer d.putPage(page)

	page = page.Timeout(budget)

	if err := page.Navigate(in.FormURL); err != nil {
		return ProcessResult{ErrorMessage: err.Error(), ErrorTypeHint: "NAVIGATE_FAILED"}, nil
	}
	if err := page.WaitStable(300 * time.Millisecond); err != nil {
		d.logger.Debug("page stability timeout, continuing", "company_id", in.CompanyID)
	}

	html, err := page.HTML()
	if err != nil {
		return ProcessResult{ErrorMessage: err.Error(), ErrorTypeHint: "READ_FAILED"}, nil
	}
	if detected, hint := d.scanForProtection(html); detected {
		return ProcessResult{
			ErrorMessage:       "protection page detected before submission",
			ErrorTypeHint:      hint,
			PageContentSnippet: html,
			BotProtection:      true,
		}, nil
	}

	sender := in.Profile.Sender
	policy := in.Profile.Policy
	fills := []struct {
		selector string
		value    string
	}{
		{d.fields.NameSelector, sender.Name},
		{d.fields.EmailSelector, sender.PrimaryEmail},
		{d.fields.PhoneSelector, sender.PrimaryPhone},
		{d.fields.SubjectSelector, policy.Subject},
		{d.fields.BodySelector, policy.Body},
	}
	for _, f := range fills {
		if f.selector == "" || f.value == "" {
			continue
		}
		if err := fillField(page, f.selector, f.value); err != nil {
			d.logger.Debug("optional field not present", "selector", f.selector, "error", err)
		}
	}

	if err := submitForm(page, d.fields.SubmitSelector); err != nil {
		return ProcessResult{ErrorMessage: err.Error(), ErrorTypeHint: "SUBMIT_FAILED"}, nil
	}

	_ = page.WaitStable(500 * time.Millisecond)
	final, err := page.HTML()
	if err == nil {
		if detected, hint := d.scanForProtection(final); detected {
			return ProcessResult{
				ErrorMessage:       "protection page detected after submission",
				ErrorTypeHint:      hint,
				PageContentSnippet: final,
				BotProtection:      true,
			}, nil
		}
	}

	return ProcessResult{Success: true}, nil
}

// scanForProtection gives the driver a cheap first-pass signal; the
// authoritative classification still happens in classify.Classifier from
// the snippet this returns.
func (d *RodDriver) scanForProtection(html string) (bool, string) {
	lower := strings.ToLower(html)
	for _, sig := range []string{"captcha", "are you a robot", "access denied", "cloudflare"} {
		if strings.Contains(lower, sig) {
			return true, "BOT_DETECTED"
		}
	}
	return false, ""
}

func fillField(page *rod.Page, selector, value string) error {
	el, err := page.Element(selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

func submitForm(page *rod.Page, selector string) error {
	el, err := page.Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Close releases the browser and all pooled pages.
func (d *RodDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	close(d.pagePool)
	for page := range d.pagePool {
		_ = page.Close()
	}
	if d.browser != nil {
		return d.browser.Close()
	}
	return nil
}
