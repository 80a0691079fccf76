// Package static is a browserless page backend. It fetches HTML over plain
// HTTP and applies task actions to an in-memory DOM, which is enough for dry
// runs of task files and for tests. No scripts run.
package static

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/internal/dispatcher"
)

const userAgent = "taskpilot/1.0 (static)"

// ErrNotLoaded is returned when an operation needs a document and none has been loaded yet.
var ErrNotLoaded = errors.New("no document loaded")

// Event is a DOM event the document would have fired in a live browser.
type Event struct {
	Type     string
	Selector string
	Bubbles  bool
}

// Document is a single page, usable as both a dispatcher.Page and a scheduler target.
type Document struct {
	name   string
	client *http.Client
	logger *zap.Logger

	mu     sync.Mutex
	doc    *goquery.Document
	base   *url.URL
	events []Event
}

var _ dispatcher.Page = (*Document)(nil)

// NewDocument creates an empty document. A nil client gets a default one with a 15s timeout.
func NewDocument(name string, client *http.Client, logger *zap.Logger) *Document {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Document{
		name:   name,
		client: client,
		logger: logger.Named("static").With(zap.String("target", name)),
	}
}

// Name is the document's address on the channel.
func (d *Document) Name() string { return d.name }

// Load replaces the document with html. baseURL is used to resolve hrefs and may be empty.
func (d *Document) Load(html, baseURL string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	var base *url.URL
	if baseURL != "" {
		if base, err = url.Parse(baseURL); err != nil {
			return fmt.Errorf("invalid base url '%s': %w", baseURL, err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = doc
	d.base = base
	d.events = nil
	return nil
}

// Navigate fetches rawURL and replaces the document with the response.
// "about:blank" loads an empty page.
func (d *Document) Navigate(ctx context.Context, rawURL string) error {
	if rawURL == "about:blank" {
		return d.Load("<html><head></head><body></body></html>", "")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid url provided: '%s'", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("received status code %d from '%s'", resp.StatusCode, parsed)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = doc
	// Follow redirects for href resolution.
	d.base = resp.Request.URL
	d.events = nil
	d.logger.Debug("Document loaded.", zap.String("url", d.base.String()), zap.Int("status", resp.StatusCode))
	return nil
}

// Ready reports whether a document is loaded. Static documents settle as soon as they are parsed.
func (d *Document) Ready(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return ErrNotLoaded
	}
	return ctx.Err()
}

// SetValue sets the value of an input (its value attribute) or a textarea (its text).
// On a select it selects the first option with that value. An unknown value
// leaves the selection unchanged.
func (d *Document) SetValue(_ context.Context, selector, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, err := d.first(selector)
	if err != nil {
		return err
	}
	switch {
	case el.Is("textarea"):
		el.SetText(value)
	case el.Is("select"):
		options := el.Find("option")
		match := options.FilterFunction(func(_ int, opt *goquery.Selection) bool {
			return optionValue(opt) == value
		}).First()
		if match.Length() > 0 {
			options.RemoveAttr("selected")
			match.SetAttr("selected", "selected")
		}
	default:
		el.SetAttr("value", value)
	}
	return nil
}

// Click records a click event on the element. Nothing else happens without scripts.
func (d *Document) Click(_ context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.first(selector); err != nil {
		return err
	}
	d.events = append(d.events, Event{Type: "click", Selector: selector, Bubbles: true})
	return nil
}

// Read returns the text content, the current value, the resolved href, or a named attribute.
func (d *Document) Read(_ context.Context, selector, attribute string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, err := d.first(selector)
	if err != nil {
		return "", err
	}

	switch attribute {
	case "", "innerText":
		return el.Text(), nil
	case "value":
		return valueOf(el), nil
	case "href":
		href, ok := el.Attr("href")
		if !ok {
			return "", nil
		}
		return d.resolve(href), nil
	default:
		return el.AttrOr(attribute, ""), nil
	}
}

// SelectByText marks the first option whose trimmed text equals text as selected.
func (d *Document) SelectByText(_ context.Context, selector, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.doc == nil {
		return ErrNotLoaded
	}
	el := d.doc.Find(selector).First()
	if el.Length() == 0 || !el.Is("select") {
		return dispatcher.ErrDropdownNotFound
	}

	options := el.Find("option")
	match := options.FilterFunction(func(_ int, opt *goquery.Selection) bool {
		return strings.TrimSpace(opt.Text()) == text
	}).First()
	if match.Length() == 0 {
		return dispatcher.ErrOptionNotFound
	}

	options.RemoveAttr("selected")
	match.SetAttr("selected", "selected")
	d.events = append(d.events, Event{Type: "change", Selector: selector, Bubbles: true})
	return nil
}

// Events returns the events fired since the document was loaded.
func (d *Document) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// SelectedText returns the trimmed text of the selected option of a select element.
func (d *Document) SelectedText(selector string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, err := d.first(selector)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(selectedOption(el).Text()), nil
}

func (d *Document) first(selector string) (*goquery.Selection, error) {
	if d.doc == nil {
		return nil, ErrNotLoaded
	}
	el := d.doc.Find(selector).First()
	if el.Length() == 0 {
		return nil, dispatcher.ErrElementNotFound
	}
	return el, nil
}

func (d *Document) resolve(href string) string {
	href = strings.TrimSpace(href)
	if d.base == nil {
		return href
	}
	resolved, err := d.base.Parse(href)
	if err != nil {
		return href
	}
	return resolved.String()
}

func valueOf(el *goquery.Selection) string {
	switch {
	case el.Is("textarea"):
		return el.Text()
	case el.Is("select"):
		opt := selectedOption(el)
		if opt.Length() == 0 {
			return ""
		}
		return optionValue(opt)
	default:
		return el.AttrOr("value", "")
	}
}

// optionValue is the option's value attribute, or its trimmed text without one.
func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.Text())
}

// selectedOption mirrors browser behaviour: the option marked selected, else the first option.
func selectedOption(el *goquery.Selection) *goquery.Selection {
	if opt := el.Find("option[selected]").First(); opt.Length() > 0 {
		return opt
	}
	return el.Find("option").First()
}
