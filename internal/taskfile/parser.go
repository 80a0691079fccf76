// Package taskfile turns XML task documents into task lists.
//
// A document holds any number of <task> elements, each with optional
// <action>, <url>, <selector>, <value> and <scrapeAttribute> children:
//
//	<tasks>
//	  <task><action>navigate</action><url>https://example.com</url></task>
//	  <task><action>update</action><selector>#q</selector><value>go</value></task>
//	</tasks>
package taskfile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/taskpilot/api/schemas"
)

// ErrEmptyDocument is returned when the input has no root element.
var ErrEmptyDocument = errors.New("task document has no root element")

// Parse reads every <task> element of the document, in document order.
// Missing children leave the corresponding field empty. A well-formed
// document without tasks yields an empty list.
func Parse(raw string) ([]schemas.TaskDescriptor, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return nil, fmt.Errorf("failed to parse task document: %w", err)
	}
	if doc.Root() == nil {
		return nil, ErrEmptyDocument
	}

	elements := collect(doc.Root(), "task", nil)
	tasks := make([]schemas.TaskDescriptor, 0, len(elements))
	for _, el := range elements {
		tasks = append(tasks, schemas.TaskDescriptor{
			Action:          schemas.ActionKind(strings.TrimSpace(childText(el, "action"))),
			URL:             strings.TrimSpace(childText(el, "url")),
			Selector:        strings.TrimSpace(childText(el, "selector")),
			Value:           childText(el, "value"),
			ScrapeAttribute: strings.TrimSpace(childText(el, "scrapeAttribute")),
		})
	}
	return tasks, nil
}

// ParseFile reads and parses a task document from disk.
func ParseFile(path string) ([]schemas.TaskDescriptor, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read task file '%s': %w", path, err)
	}
	tasks, err := Parse(string(raw))
	if err != nil {
		return nil, "", err
	}
	return tasks, string(raw), nil
}

// Validate reports whether raw is a well-formed task document.
func Validate(raw string) error {
	_, err := Parse(raw)
	return err
}

// collect appends el and its descendants named tag to out in document order.
func collect(el *etree.Element, tag string, out []*etree.Element) []*etree.Element {
	if el.Tag == tag {
		out = append(out, el)
	}
	for _, child := range el.ChildElements() {
		out = collect(child, tag, out)
	}
	return out
}

// childText returns the text of the first descendant named tag in document
// order, or "".
func childText(el *etree.Element, tag string) string {
	for _, child := range el.ChildElements() {
		if found := collect(child, tag, nil); len(found) > 0 {
			return found[0].Text()
		}
	}
	return ""
}
