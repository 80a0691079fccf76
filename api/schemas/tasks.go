package schemas

import "fmt"

// -- Task Schemas --

// ActionKind identifies the UI action a task performs.
type ActionKind string

const (
	ActionNavigate     ActionKind = "navigate"
	ActionUpdate       ActionKind = "update"
	ActionClick        ActionKind = "click"
	ActionScrape       ActionKind = "scrape"
	ActionSelectByText ActionKind = "selectByText"
)

// Known reports whether the action is one of the supported kinds.
func (a ActionKind) Known() bool {
	switch a {
	case ActionNavigate, ActionUpdate, ActionClick, ActionScrape, ActionSelectByText:
		return true
	}
	return false
}

// Scrape attribute names with special meaning. Any other non-empty value
// is read as a plain element attribute.
const (
	ScrapeInnerText = "innerText"
	ScrapeValue     = "value"
	ScrapeHref      = "href"
)

// TaskDescriptor is one automation instruction. Which optional fields are
// meaningful depends on Action; nothing beyond presence is validated.
type TaskDescriptor struct {
	Action          ActionKind `json:"action"`
	URL             string     `json:"url,omitempty"`
	Selector        string     `json:"selector,omitempty"`
	Value           string     `json:"value,omitempty"`
	ScrapeAttribute string     `json:"scrapeAttribute,omitempty"`
}

// IsLocalNavigation reports whether the controller performs the task itself
// instead of delegating it to the executor.
func (t TaskDescriptor) IsLocalNavigation() bool {
	return t.Action == ActionNavigate && t.URL != ""
}

// Subject returns the field that best identifies the task in logs.
func (t TaskDescriptor) Subject() string {
	if t.Selector != "" {
		return t.Selector
	}
	return t.URL
}

func (t TaskDescriptor) String() string {
	return fmt.Sprintf("%s(%s)", t.Action, t.Subject())
}

// ScrapeResult is the payload returned by a successful scrape.
type ScrapeResult struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}
