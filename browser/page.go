// CLAUDE:SUMMARY Driver interfaces (Page, Element), selectors, keys and cookies used by the automation core.
package browser

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotInteractable is returned by Element.Click when the element exists
// but cannot receive a real pointer event (covered, zero-size, pointer-events:none).
var ErrNotInteractable = errors.New("browser: element not interactable")

// ErrNotFound is returned when a selector matches nothing before the
// context deadline.
var ErrNotFound = errors.New("browser: element not found")

// SelectorKind tells the driver how to evaluate Selector.Expr.
type SelectorKind int

const (
	CSS SelectorKind = iota
	XPath
)

// Selector addresses one or more elements.
type Selector struct {
	Kind SelectorKind
	Expr string
}

// ParseSelector infers the kind from the expression: anything starting with
// "/" or "(" is an XPath, the rest is CSS.
func ParseSelector(expr string) Selector {
	e := strings.TrimSpace(expr)
	if strings.HasPrefix(e, "/") || strings.HasPrefix(e, "(") {
		return Selector{Kind: XPath, Expr: e}
	}
	return Selector{Kind: CSS, Expr: e}
}

func (s Selector) String() string {
	if s.Kind == XPath {
		return "xpath:" + s.Expr
	}
	return "css:" + s.Expr
}

// Key is a non-printable keyboard key.
type Key int

const (
	KeyArrowDown Key = iota
	KeyEnter
	KeyBackspace
	KeyDelete
	KeyEscape
)

// Cookie is the driver-neutral cookie shape. A zero Expires marks a
// session cookie.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
}

// Element is a located DOM element. Every call is bounded by ctx.
type Element interface {
	WaitInteractable(ctx context.Context) error
	ScrollIntoView(ctx context.Context) error
	// Click dispatches a real mouse click. It returns an error wrapping
	// ErrNotInteractable when the element cannot take the event.
	Click(ctx context.Context) error
	// ClickScript calls element.click() in page JS, bypassing hit testing.
	ClickScript(ctx context.Context) error
	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	Text(ctx context.Context) (string, error)
	Value(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
}

// Page is one browser tab. The automation core only talks to this
// interface; the go-rod implementation lives in rod.go and a scripted fake
// in browsertest.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	// WaitReady waits for document.readyState == "complete".
	WaitReady(ctx context.Context) error
	// WaitStable waits until the DOM stops changing for window.
	WaitStable(ctx context.Context, window time.Duration) error
	// Find waits until sel matches and returns the first match.
	Find(ctx context.Context, sel Selector) (Element, error)
	// FindAll returns the current matches without waiting.
	FindAll(ctx context.Context, sel Selector) ([]Element, error)
	Press(ctx context.Context, keys ...Key) error
	SelectAll(ctx context.Context) error
	InsertText(ctx context.Context, text string) error
	// Exec runs a JS function expression such as "() => window.scrollTo(0, 0)".
	Exec(ctx context.Context, js string) error
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Cookies(ctx context.Context, urls ...string) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	ClearCookies(ctx context.Context) error
	Close() error
}

// FirstVisible returns the first element across sels that is displayed and
// enabled. Selectors are tried in order; within a selector, matches are
// tried in document order.
func FirstVisible(ctx context.Context, p Page, sels ...Selector) (Element, bool) {
	for _, sel := range sels {
		els, err := p.FindAll(ctx, sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			vis, err := el.Visible(ctx)
			if err != nil || !vis {
				continue
			}
			en, err := el.Enabled(ctx)
			if err != nil || !en {
				continue
			}
			return el, true
		}
	}
	return nil, false
}
