// CLAUDE:SUMMARY Scripted in-memory Page/Element fakes for testing the automation core without Chrome.
// Package browsertest provides a scripted, in-memory implementation of
// browser.Page for tests. Elements are registered under the exact selector
// expression the code under test will use; every interaction is appended
// to an action log that tests assert on.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/eriflow/browser"
)

// Element is a scripted element. Zero value is a visible, enabled,
// interactable element with no text.
type Element struct {
	Hidden          bool
	Disabled        bool
	NotInteractable bool  // WaitInteractable fails
	ClickErr        error // returned by Click
	ScriptClickErr  error // returned by ClickScript
	TextValue       string
	InputValue      string
	InnerHTML       string
	// Sticky makes select-all + Delete leave the value in place, so the
	// backspace fallback has to clear it.
	Sticky bool
	// OnClick runs after a successful Click or ClickScript.
	OnClick func(p *Page)

	expr string
	page *Page
}

// Page is a scripted browser.Page.
type Page struct {
	mu       sync.Mutex
	elements map[string][]*Element
	log      []string
	url      string
	cookies  []browser.Cookie
	focused  *Element
	selected bool

	Document  string
	ReadyErr  error
	StableErr error
	// CookieErr is returned by SetCookies.
	CookieErr error
	// OnNavigate runs after Navigate updates the URL.
	OnNavigate func(p *Page, url string)
	// OnKey runs after each key press.
	OnKey func(p *Page, k browser.Key)
	// OnExec runs after Exec.
	OnExec func(p *Page, js string)
}

var _ browser.Page = (*Page)(nil)

// NewPage returns an empty page at url.
func NewPage(url string) *Page {
	return &Page{elements: make(map[string][]*Element), url: url}
}

// Add registers els under the selector expression expr (XPath or CSS text).
func (p *Page) Add(expr string, els ...*Element) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, el := range els {
		el.expr = expr
		el.page = p
		p.elements[expr] = append(p.elements[expr], el)
	}
	return p
}

// Remove drops every element registered under expr.
func (p *Page) Remove(expr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, expr)
}

// SetURL moves the page without logging a navigation.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

// Log returns a copy of the action log.
func (p *Page) Log() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.log...)
}

// Count returns how many log entries equal entry.
func (p *Page) Count(entry string) int {
	n := 0
	for _, e := range p.Log() {
		if e == entry {
			n++
		}
	}
	return n
}

// StoredCookies returns the cookies currently set on the page.
func (p *Page) StoredCookies() []browser.Cookie {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Cookie(nil), p.cookies...)
}

// Seed sets cookies without going through SetCookies.
func (p *Page) Seed(cookies ...browser.Cookie) {
	p.mu.Lock()
	p.cookies = append(p.cookies, cookies...)
	p.mu.Unlock()
}

func (p *Page) record(format string, args ...any) {
	p.log = append(p.log, fmt.Sprintf(format, args...))
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	p.url = url
	p.record("navigate:%s", url)
	hook := p.OnNavigate
	p.mu.Unlock()
	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *Page) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) WaitReady(context.Context) error { return p.ReadyErr }

func (p *Page) WaitStable(_ context.Context, _ time.Duration) error {
	p.mu.Lock()
	p.record("stable")
	p.mu.Unlock()
	return p.StableErr
}

// Find polls until expr is registered or ctx is done.
func (p *Page) Find(ctx context.Context, sel browser.Selector) (browser.Element, error) {
	for {
		p.mu.Lock()
		els := p.elements[sel.Expr]
		p.mu.Unlock()
		if len(els) > 0 {
			return els[0], nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", browser.ErrNotFound, sel, ctx.Err())
		case <-time.After(time.Millisecond):
		}
	}
}

func (p *Page) FindAll(_ context.Context, sel browser.Selector) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]browser.Element, 0, len(p.elements[sel.Expr]))
	for _, el := range p.elements[sel.Expr] {
		out = append(out, el)
	}
	return out, nil
}

func (p *Page) Press(_ context.Context, keys ...browser.Key) error {
	for _, k := range keys {
		p.mu.Lock()
		p.record("key:%s", keyName(k))
		switch k {
		case browser.KeyDelete:
			if p.focused != nil && p.selected && !p.focused.Sticky {
				p.focused.InputValue = ""
			}
			p.selected = false
		case browser.KeyBackspace:
			if f := p.focused; f != nil && f.InputValue != "" {
				r := []rune(f.InputValue)
				f.InputValue = string(r[:len(r)-1])
			}
		}
		hook := p.OnKey
		p.mu.Unlock()
		if hook != nil {
			hook(p, k)
		}
	}
	return nil
}

func (p *Page) SelectAll(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("select-all")
	p.selected = true
	return nil
}

func (p *Page) InsertText(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("text:%s", text)
	if p.focused != nil {
		p.focused.InputValue += text
	}
	return nil
}

func (p *Page) Exec(_ context.Context, js string) error {
	p.mu.Lock()
	p.record("exec:%s", js)
	hook := p.OnExec
	p.mu.Unlock()
	if hook != nil {
		hook(p, js)
	}
	return nil
}

func (p *Page) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Document, nil
}

func (p *Page) Screenshot(context.Context) ([]byte, error) {
	return []byte("\x89PNG fake"), nil
}

func (p *Page) Cookies(_ context.Context, _ ...string) ([]browser.Cookie, error) {
	return p.StoredCookies(), nil
}

func (p *Page) SetCookies(_ context.Context, cookies []browser.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CookieErr != nil {
		return p.CookieErr
	}
	p.cookies = append(p.cookies, cookies...)
	return nil
}

func (p *Page) ClearCookies(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = nil
	return nil
}

func (p *Page) Close() error { return nil }

// --- Element ---

func (e *Element) WaitInteractable(ctx context.Context) error {
	if e.NotInteractable || e.Hidden {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (e *Element) ScrollIntoView(context.Context) error {
	e.page.mu.Lock()
	e.page.record("scroll:%s", e.expr)
	e.page.mu.Unlock()
	return nil
}

func (e *Element) Click(context.Context) error {
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.activate("click")
	return nil
}

func (e *Element) ClickScript(context.Context) error {
	if e.ScriptClickErr != nil {
		return e.ScriptClickErr
	}
	e.activate("script-click")
	return nil
}

func (e *Element) activate(kind string) {
	e.page.mu.Lock()
	e.page.record("%s:%s", kind, e.expr)
	e.page.focused = e
	e.page.mu.Unlock()
	if e.OnClick != nil {
		e.OnClick(e.page)
	}
}

func (e *Element) Visible(context.Context) (bool, error) { return !e.Hidden, nil }

func (e *Element) Enabled(context.Context) (bool, error) { return !e.Disabled, nil }

func (e *Element) Text(context.Context) (string, error) { return e.TextValue, nil }

func (e *Element) Value(context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.InputValue, nil
}

func (e *Element) HTML(context.Context) (string, error) { return e.InnerHTML, nil }

// Entries filters the log to entries with the given prefix.
func (p *Page) Entries(prefix string) []string {
	var out []string
	for _, e := range p.Log() {
		if strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return out
}

func keyName(k browser.Key) string {
	switch k {
	case browser.KeyArrowDown:
		return "down"
	case browser.KeyEnter:
		return "enter"
	case browser.KeyBackspace:
		return "backspace"
	case browser.KeyDelete:
		return "delete"
	case browser.KeyEscape:
		return "escape"
	}
	return "unknown"
}
