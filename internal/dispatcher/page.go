package dispatcher

import (
	"context"
	"errors"
)

// Failure reasons reported to the controller. They are part of the wire
// contract and must not change.
const (
	ReasonElementNotFound  = "element not found"
	ReasonDropdownNotFound = "dropdown not found"
	ReasonOptionNotFound   = "option text not found"
	ReasonUnknownAction    = "unknown action"
)

var (
	// ErrElementNotFound is returned by a Page when no element matches the selector.
	ErrElementNotFound = errors.New(ReasonElementNotFound)
	// ErrDropdownNotFound is returned when the selector does not match a select element.
	ErrDropdownNotFound = errors.New(ReasonDropdownNotFound)
	// ErrOptionNotFound is returned when no option's trimmed text equals the requested text.
	ErrOptionNotFound = errors.New(ReasonOptionNotFound)
)

// Page is the element tree an executor acts on. Selectors are CSS selectors;
// only the first matching element is used.
type Page interface {
	// SetValue assigns value to the element's value property.
	SetValue(ctx context.Context, selector, value string) error
	// Click activates the element.
	Click(ctx context.Context, selector string) error
	// Read returns the element's text content, value, resolved href, or the
	// named attribute, depending on attribute.
	Read(ctx context.Context, selector, attribute string) (string, error)
	// SelectByText selects the first option whose trimmed text equals text and
	// fires a bubbling change event. The selection is unchanged on failure.
	SelectByText(ctx context.Context, selector, text string) error
}
