// CLAUDE:SUMMARY Fixed table of named selectors for the assessor UI (steps, login, results), overridable from config.
// Package locator maps logical names (workflow steps, login fields, result
// cells) to browser selectors. The defaults address the assessor layout the
// tool was built against; deployments override individual entries from the
// YAML config when the site layout shifts.
package locator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/eriflow/browser"
)

// ErrUnknown is returned when a key has no selector.
var ErrUnknown = errors.New("locator: unknown key")

// Step keys, in full-sequence order.
const (
	Navigate         = "navigate"
	OpenForm         = "open_form"
	OpenCodeDropdown = "open_code_dropdown"
	SelectCodeType   = "select_code_type"
	TypeCode         = "type_code"
	ConfirmCode      = "confirm_code"
	TypeLocation     = "type_location"
	TypeIndustry     = "type_industry"
	TypeRevenue      = "type_revenue"
)

// Page-level keys.
const (
	Overlay      = "overlay"
	Body         = "body"
	ResultsView  = "results_view"
	ResultsTable = "results_table"
	SummaryValue = "summary_value"
	// ResultCell is a template with {row} and {col} placeholders, both 1-based.
	ResultCell = "result_cell"
	// OptionByText is a template with a {text} placeholder.
	OptionByText = "option_by_text"
	Logout       = "logout"
)

// Login candidate list keys.
const (
	LoginUsername = "login_username"
	LoginPassword = "login_password"
	LoginSubmit   = "login_submit"
)

const (
	formRoot    = "/html/body/div[1]/div[3]/div[1]/div/div[1]/div/div"
	codeDialog  = "/html/body/div[59]/div/div"
	resultsRoot = "/html/body/div[1]/div[3]/div[2]"
	tableBody   = resultsRoot + "/div[2]/div[1]/div[1]/div[1]/div/div[1]/div[2]/div/div/table/tbody"
)

var defaultEntries = map[string]string{
	Navigate:         "/html/body/div[1]/div[3]/div/div/div/div[1]/div[3]/a",
	OpenForm:         formRoot + "/div[2]/div/div[2]/button",
	OpenCodeDropdown: codeDialog + "[3]/table/tbody/tr/td[1]/div[2]/span/span",
	TypeCode:         codeDialog + "[3]/table/tbody/tr/td[1]/div[1]/div[2]/input",
	ConfirmCode:      codeDialog + "[4]/div/div[2]/button[2]",
	TypeLocation:     formRoot + "/div[36]/div[1]/div[1]/div[1]/div/input",
	TypeIndustry:     formRoot + "/div[38]/div[2]/div[1]/input[2]",
	TypeRevenue:      formRoot + "/div[40]/div[2]/div[1]/div[1]/input",

	Overlay:      "#mask",
	Body:         "body",
	ResultsView:  resultsRoot,
	ResultsTable: tableBody + "/..",
	SummaryValue: resultsRoot + "/div[1]/div[1]/div[2]/span[3]",
	ResultCell:   tableBody + "/tr[{row}]/td[{col}]",
	OptionByText: "//li[normalize-space(.)={text}] | //option[normalize-space(.)={text}]",
	Logout:       "//a[contains(@href,'Logout') or contains(@href,'logout') or contains(.,'Log out') or contains(.,'Sign out')]",
}

var defaultLists = map[string][]string{
	LoginUsername: {
		"input#Email", "input#UserName", "input#Username",
		"input[name='Email']", "input[name='UserName']", "input[name='Username']",
		"input[type='email']", "input[type='text']",
	},
	LoginPassword: {
		"input#Password", "input[name='Password']", "input[type='password']",
	},
	LoginSubmit: {
		"button[type='submit']", "input[type='submit']",
		"//button[contains(., 'Log in') or contains(., 'Login') or contains(., 'Sign in')]",
		"//input[@value='Log in' or @value='Login' or @value='Sign in']",
	},
}

// Table is an immutable-after-build lookup of selectors.
type Table struct {
	entries map[string]string
	lists   map[string][]string
}

// Default returns the built-in table.
func Default() *Table {
	t := &Table{
		entries: make(map[string]string, len(defaultEntries)),
		lists:   make(map[string][]string, len(defaultLists)),
	}
	for k, v := range defaultEntries {
		t.entries[k] = v
	}
	for k, v := range defaultLists {
		t.lists[k] = append([]string(nil), v...)
	}
	return t
}

// New returns the default table with entries and lists overridden. Empty
// values are ignored.
func New(entries map[string]string, lists map[string][]string) *Table {
	t := Default()
	for k, v := range entries {
		if strings.TrimSpace(v) != "" {
			t.entries[k] = v
		}
	}
	for k, v := range lists {
		if len(v) > 0 {
			t.lists[k] = append([]string(nil), v...)
		}
	}
	return t
}

// Get returns the selector for key.
func (t *Table) Get(key string) (browser.Selector, error) {
	expr, ok := t.entries[key]
	if !ok {
		return browser.Selector{}, fmt.Errorf("%w: %q", ErrUnknown, key)
	}
	return browser.ParseSelector(expr), nil
}

// Candidates returns the ordered selector list for key.
func (t *Table) Candidates(key string) []browser.Selector {
	exprs := t.lists[key]
	out := make([]browser.Selector, len(exprs))
	for i, e := range exprs {
		out[i] = browser.ParseSelector(e)
	}
	return out
}

// Cell returns the selector of a result table cell.
func (t *Table) Cell(row, col int) (browser.Selector, error) {
	tmpl, ok := t.entries[ResultCell]
	if !ok {
		return browser.Selector{}, fmt.Errorf("%w: %q", ErrUnknown, ResultCell)
	}
	expr := strings.NewReplacer("{row}", strconv.Itoa(row), "{col}", strconv.Itoa(col)).Replace(tmpl)
	return browser.ParseSelector(expr), nil
}

// Option returns the selector of the dropdown option whose visible text is text.
func (t *Table) Option(text string) (browser.Selector, error) {
	tmpl, ok := t.entries[OptionByText]
	if !ok {
		return browser.Selector{}, fmt.Errorf("%w: %q", ErrUnknown, OptionByText)
	}
	return browser.ParseSelector(strings.ReplaceAll(tmpl, "{text}", xpathLiteral(text))), nil
}

// xpathLiteral quotes s as an XPath 1.0 string literal.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	var b strings.Builder
	b.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'" + p + "'")
	}
	b.WriteString(")")
	return b.String()
}
