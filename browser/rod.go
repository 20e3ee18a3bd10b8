// CLAUDE:SUMMARY go-rod implementation of the Page and Element driver interfaces.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// clickProbe bounds a real click. rod's Click waits for the element to
// become hit-testable; a covered element would otherwise block until the
// caller's deadline instead of reporting ErrNotInteractable.
const clickProbe = 3 * time.Second

// rodPage adapts a *rod.Page to Page.
type rodPage struct {
	page *rod.Page
}

// WrapPage exposes an existing rod page through the Page interface.
func WrapPage(p *rod.Page) Page {
	return &rodPage{page: p}
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.URL, nil
}

func (p *rodPage) WaitReady(ctx context.Context) error {
	return p.page.Context(ctx).WaitLoad()
}

func (p *rodPage) WaitStable(ctx context.Context, window time.Duration) error {
	return p.page.Context(ctx).WaitDOMStable(window, 0)
}

func (p *rodPage) Find(ctx context.Context, sel Selector) (Element, error) {
	pg := p.page.Context(ctx)
	var (
		el  *rod.Element
		err error
	)
	if sel.Kind == XPath {
		el, err = pg.ElementX(sel.Expr)
	} else {
		el, err = pg.Element(sel.Expr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, sel, err)
	}
	return &rodElement{el: el}, nil
}

func (p *rodPage) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	pg := p.page.Context(ctx)
	var (
		els rod.Elements
		err error
	)
	if sel.Kind == XPath {
		els, err = pg.ElementsX(sel.Expr)
	} else {
		els, err = pg.Elements(sel.Expr)
	}
	if err != nil {
		return nil, fmt.Errorf("browser: find all %s: %w", sel, err)
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out, nil
}

func (p *rodPage) Press(ctx context.Context, keys ...Key) error {
	ka := p.page.Context(ctx).KeyActions()
	for _, k := range keys {
		ka = ka.Type(rodKey(k))
	}
	return ka.Do()
}

func (p *rodPage) SelectAll(ctx context.Context) error {
	return p.page.Context(ctx).KeyActions().Press(input.ControlLeft).Type('a').Do()
}

func (p *rodPage) InsertText(ctx context.Context, text string) error {
	return p.page.Context(ctx).InsertText(text)
}

func (p *rodPage) Exec(ctx context.Context, js string) error {
	_, err := p.page.Context(ctx).Eval(js)
	return err
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(true, nil)
}

func (p *rodPage) Cookies(ctx context.Context, urls ...string) ([]Cookie, error) {
	raw, err := p.page.Context(ctx).Cookies(urls)
	if err != nil {
		return nil, fmt.Errorf("browser: get cookies: %w", err)
	}
	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		ck := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Session && c.Expires > 0 {
			ck.Expires = time.Unix(int64(c.Expires), 0).UTC()
		}
		out = append(out, ck)
	}
	return out, nil
}

func (p *rodPage) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Expires.IsZero() {
			param.Expires = proto.TimeSinceEpoch(c.Expires.Unix())
		}
		params = append(params, param)
	}
	if err := p.page.Context(ctx).SetCookies(params); err != nil {
		return fmt.Errorf("browser: set cookies: %w", err)
	}
	return nil
}

func (p *rodPage) ClearCookies(ctx context.Context) error {
	return proto.NetworkClearBrowserCookies{}.Call(p.page.Context(ctx))
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

// rodElement adapts a *rod.Element to Element.
type rodElement struct {
	el *rod.Element
}

func (e *rodElement) WaitInteractable(ctx context.Context) error {
	_, err := e.el.Context(ctx).WaitInteractable()
	return err
}

func (e *rodElement) ScrollIntoView(ctx context.Context) error {
	return e.el.Context(ctx).ScrollIntoView()
}

func (e *rodElement) Click(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, clickProbe)
	defer cancel()

	err := e.el.Context(cctx).Click(proto.InputMouseButtonLeft, 1)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", ErrNotInteractable, err)
}

func (e *rodElement) ClickScript(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`() => this.click()`)
	return err
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

func (e *rodElement) Enabled(ctx context.Context) (bool, error) {
	res, err := e.el.Context(ctx).Eval(`() => !this.disabled`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Value(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`() => this.value == null ? "" : String(this.value)`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *rodElement) HTML(ctx context.Context) (string, error) {
	return e.el.Context(ctx).HTML()
}

func rodKey(k Key) input.Key {
	switch k {
	case KeyArrowDown:
		return input.ArrowDown
	case KeyEnter:
		return input.Enter
	case KeyBackspace:
		return input.Backspace
	case KeyDelete:
		return input.Delete
	case KeyEscape:
		return input.Escape
	}
	return input.Enter
}
