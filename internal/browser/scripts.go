package browser

import (
	json "github.com/json-iterator/go"
)

// Every action script returns {status, value}. The status separates
// "nothing matched" from evaluation errors.
const (
	statusOK         = "ok"
	statusNotFound   = "not_found"
	statusNoDropdown = "no_dropdown"
	statusNoOption   = "no_option"
)

type actionResult struct {
	Status string `json:"status"`
	Value  string `json:"value"`
}

const jsSetValue = `(function(selector, value) {
    const el = document.querySelector(selector);
    if (!el) { return {status: "not_found"}; }
    el.value = value;
    return {status: "ok"};
})(%s, %s)`

const jsClick = `(function(selector) {
    const el = document.querySelector(selector);
    if (!el) { return {status: "not_found"}; }
    el.click();
    return {status: "ok"};
})(%s)`

const jsRead = `(function(selector, attribute) {
    const el = document.querySelector(selector);
    if (!el) { return {status: "not_found"}; }
    let v;
    switch (attribute) {
    case "":
    case "innerText": v = el.innerText; break;
    case "value": v = el.value; break;
    case "href": v = el.href; break;
    default: v = el.getAttribute(attribute);
    }
    return {status: "ok", value: v == null ? "" : String(v)};
})(%s, %s)`

const jsSelectByText = `(function(selector, text) {
    const el = document.querySelector(selector);
    if (!el || el.tagName !== "SELECT") { return {status: "no_dropdown"}; }
    for (let i = 0; i < el.options.length; i++) {
        if (el.options[i].textContent.trim() === text) {
            el.selectedIndex = i;
            el.dispatchEvent(new Event("change", {bubbles: true}));
            return {status: "ok"};
        }
    }
    return {status: "no_option"};
})(%s, %s)`

// jsonEncode is a helper to safely encode a value (especially strings) for JS injection.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
