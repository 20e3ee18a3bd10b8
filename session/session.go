// CLAUDE:SUMMARY Establishes one authenticated assessor session: profile, cookie snapshot, then credential login, with snapshot persistence.
// Package session produces an authenticated browser page. Strategies run
// in order and stop at the first that yields an authenticated page:
// persistent profile, cookie snapshot, credential login.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/eriflow/browser"
	"github.com/hazyhaar/eriflow/locator"
)

// State is the session lifecycle state.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	Closed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Session is one browser page owned by the Manager.
type Session struct {
	Page browser.Page

	mu       sync.Mutex
	state    State
	strategy string
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Strategy names the strategy that authenticated the session, empty if none.
func (s *Session) Strategy() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy
}

func (s *Session) set(st State, strategy string) {
	s.mu.Lock()
	s.state = st
	s.strategy = strategy
	s.mu.Unlock()
}

// Close closes the page. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return nil
	}
	s.state = Closed
	return s.Page.Close()
}

// Opener opens browser pages. *browser.Manager implements it.
type Opener interface {
	OpenPage(ctx context.Context) (browser.Page, error)
}

// Config configures a Manager.
type Config struct {
	HomeURL  string
	LoginURL string
	// CookieHosts are the URLs snapshot cookies are filtered against and
	// read back from.
	CookieHosts []string

	// UseProfile enables the persistent-profile strategy.
	UseProfile bool
	// CredentialsFile is a JSON5 {username, password} file, used when the
	// environment does not provide credentials.
	CredentialsFile string

	Locators     *locator.Table
	AuthPolls    int
	PollInterval time.Duration
	LoadTimeout  time.Duration
	FieldTimeout time.Duration

	Getenv func(string) string
	Now    func() time.Time
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.HomeURL == "" {
		c.HomeURL = "https://online.erieri.com/"
	}
	if c.LoginURL == "" {
		c.LoginURL = "https://online.erieri.com/Account/Login"
	}
	if len(c.CookieHosts) == 0 {
		c.CookieHosts = []string{"https://online.erieri.com/", "https://erieri.com/"}
	}
	if c.Locators == nil {
		c.Locators = locator.Default()
	}
	if c.AuthPolls <= 0 {
		c.AuthPolls = 60
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 30 * time.Second
	}
	if c.FieldTimeout <= 0 {
		c.FieldTimeout = 15 * time.Second
	}
	if c.Getenv == nil {
		c.Getenv = os.Getenv
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager acquires sessions.
type Manager struct {
	opener Opener
	cfg    Config
}

// NewManager returns a Manager opening pages through opener.
func NewManager(opener Opener, cfg Config) *Manager {
	cfg.defaults()
	return &Manager{opener: opener, cfg: cfg}
}

// Acquire opens a page and tries each strategy. authenticated is false when
// every strategy failed; the page is then left on the login endpoint. err
// is reserved for failures to open the page at all.
func (m *Manager) Acquire(ctx context.Context, credentialStorePath string) (*Session, bool, error) {
	log := m.cfg.Logger
	page, err := m.opener.OpenPage(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("session: open page: %w", err)
	}
	sess := &Session{Page: page}

	strategies := []struct {
		name string
		try  func(context.Context, browser.Page, string) bool
	}{
		{"profile", m.tryProfile},
		{"cookies", m.tryCookies},
		{"credentials", m.tryCredentials},
	}
	for _, st := range strategies {
		if ctx.Err() != nil {
			return sess, false, ctx.Err()
		}
		if st.try(ctx, page, credentialStorePath) {
			sess.set(Authenticated, st.name)
			log.Info("session: authenticated", "strategy", st.name)
			m.persist(ctx, page, credentialStorePath)
			return sess, true, nil
		}
		log.Debug("session: strategy did not authenticate", "strategy", st.name)
	}

	log.Warn("session: all strategies failed")
	if err := m.load(ctx, page, m.cfg.LoginURL); err != nil {
		log.Debug("session: navigate to login", "error", err)
	}
	return sess, false, nil
}

// WaitManual polls authentication for up to d, for an operator logging in
// by hand in the headed browser. Success persists cookies and marks the
// session authenticated.
func (m *Manager) WaitManual(ctx context.Context, sess *Session, d time.Duration, credentialStorePath string) bool {
	if d <= 0 {
		return false
	}
	m.cfg.Logger.Info("session: waiting for manual login", "timeout", d)
	wctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	t := time.NewTicker(m.cfg.PollInterval)
	defer t.Stop()
	for {
		if m.IsAuthenticated(wctx, sess.Page) {
			sess.set(Authenticated, "manual")
			m.persist(ctx, sess.Page, credentialStorePath)
			return true
		}
		select {
		case <-wctx.Done():
			return false
		case <-t.C:
		}
	}
}

// IsAuthenticated reports whether page shows an authenticated view: not on
// a login page, and either a logout control is visible or the URL is not
// the login endpoint.
func (m *Manager) IsAuthenticated(ctx context.Context, page browser.Page) bool {
	u, err := page.URL(ctx)
	if err != nil {
		return false
	}
	lu := strings.ToLower(u)
	if !strings.HasPrefix(lu, "http://") && !strings.HasPrefix(lu, "https://") {
		return false
	}
	if strings.Contains(lu, "login") || strings.Contains(lu, "signin") {
		return false
	}
	if _, ok := browser.FirstVisible(ctx, page, browser.ParseSelector("input[type='password']")); ok {
		return false
	}
	if sel, err := m.cfg.Locators.Get(locator.Logout); err == nil {
		if _, ok := browser.FirstVisible(ctx, page, sel); ok {
			return true
		}
	}
	return !strings.HasPrefix(lu, strings.ToLower(m.cfg.LoginURL))
}

func (m *Manager) tryProfile(ctx context.Context, page browser.Page, _ string) bool {
	if !m.cfg.UseProfile {
		return false
	}
	if err := m.load(ctx, page, m.cfg.HomeURL); err != nil {
		m.cfg.Logger.Warn("session: profile: load home", "error", err)
		return false
	}
	return m.IsAuthenticated(ctx, page)
}

func (m *Manager) tryCookies(ctx context.Context, page browser.Page, path string) bool {
	if path == "" {
		return false
	}
	log := m.cfg.Logger
	cookies, dropped, err := LoadSnapshot(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	if err != nil {
		log.Warn("session: cookie snapshot unreadable", "path", path, "error", err)
		return false
	}
	if dropped > 0 {
		log.Warn("session: dropped snapshot cookies with unparseable expiry", "count", dropped)
	}

	applied := 0
	seen := make(map[string]bool)
	for _, host := range m.cfg.CookieHosts {
		var batch []browser.Cookie
		for _, c := range FilterForHost(cookies, host, m.cfg.Now()) {
			key := c.Name + "\x00" + c.Domain + "\x00" + c.Path
			if seen[key] {
				continue
			}
			seen[key] = true
			batch = append(batch, c)
		}
		if len(batch) == 0 {
			continue
		}
		if err := page.SetCookies(ctx, batch); err != nil {
			log.Warn("session: set cookies", "host", host, "error", err)
			continue
		}
		applied += len(batch)
	}
	if applied == 0 {
		log.Info("session: no applicable cookies in snapshot", "path", path)
		return false
	}

	if err := m.load(ctx, page, m.cfg.HomeURL); err != nil {
		log.Warn("session: cookies: load home", "error", err)
		return false
	}
	return m.IsAuthenticated(ctx, page)
}

func (m *Manager) tryCredentials(ctx context.Context, page browser.Page, _ string) bool {
	log := m.cfg.Logger
	creds, ok, err := ResolveCredentials(m.cfg.Getenv, m.cfg.CredentialsFile)
	if err != nil {
		log.Warn("session: credentials", "error", err)
		return false
	}
	if !ok {
		log.Info("session: no credentials available")
		return false
	}

	if err := m.login(ctx, page, creds); err != nil {
		log.Warn("session: login form", "error", err)
		return false
	}

	for i := 0; i < m.cfg.AuthPolls; i++ {
		if err := sleep(ctx, m.cfg.PollInterval); err != nil {
			return false
		}
		if m.IsAuthenticated(ctx, page) {
			return true
		}
	}
	log.Warn("session: login did not authenticate", "polls", m.cfg.AuthPolls)
	return false
}

// login fills and submits the login form.
func (m *Manager) login(ctx context.Context, page browser.Page, creds Credentials) error {
	if err := m.load(ctx, page, m.cfg.LoginURL); err != nil {
		return err
	}
	tab := m.cfg.Locators

	user, err := m.waitVisible(ctx, page, tab.Candidates(locator.LoginUsername))
	if err != nil {
		return fmt.Errorf("username field: %w", err)
	}
	if err := fill(ctx, page, user, creds.Username); err != nil {
		return fmt.Errorf("username field: %w", err)
	}

	pass, ok := browser.FirstVisible(ctx, page, tab.Candidates(locator.LoginPassword)...)
	if !ok {
		return fmt.Errorf("password field: %w", browser.ErrNotFound)
	}
	if err := fill(ctx, page, pass, creds.Password); err != nil {
		return fmt.Errorf("password field: %w", err)
	}

	submit, ok := browser.FirstVisible(ctx, page, tab.Candidates(locator.LoginSubmit)...)
	if !ok {
		m.cfg.Logger.Debug("session: no submit control, pressing Enter")
		return page.Press(ctx, browser.KeyEnter)
	}
	err = submit.Click(ctx)
	if errors.Is(err, browser.ErrNotInteractable) {
		err = submit.ClickScript(ctx)
	}
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}

// waitVisible polls FirstVisible until a candidate shows up or
// FieldTimeout expires.
func (m *Manager) waitVisible(ctx context.Context, page browser.Page, sels []browser.Selector) (browser.Element, error) {
	wctx, cancel := context.WithTimeout(ctx, m.cfg.FieldTimeout)
	defer cancel()
	for {
		if el, ok := browser.FirstVisible(wctx, page, sels...); ok {
			return el, nil
		}
		if err := sleep(wctx, 250*time.Millisecond); err != nil {
			return nil, browser.ErrNotFound
		}
	}
}

func fill(ctx context.Context, page browser.Page, el browser.Element, text string) error {
	if err := el.Click(ctx); err != nil && !errors.Is(err, browser.ErrNotInteractable) {
		return err
	}
	if err := page.SelectAll(ctx); err != nil {
		return err
	}
	if err := page.Press(ctx, browser.KeyDelete); err != nil {
		return err
	}
	return page.InsertText(ctx, text)
}

func (m *Manager) load(ctx context.Context, page browser.Page, url string) error {
	lctx, cancel := context.WithTimeout(ctx, m.cfg.LoadTimeout)
	defer cancel()
	if err := page.Navigate(lctx, url); err != nil {
		return err
	}
	return page.WaitReady(lctx)
}

// persist writes the current cookies back to path. Failures are logged.
func (m *Manager) persist(ctx context.Context, page browser.Page, path string) {
	if path == "" {
		return
	}
	cookies, err := page.Cookies(ctx, m.cfg.CookieHosts...)
	if err != nil {
		m.cfg.Logger.Warn("session: read cookies for snapshot", "error", err)
		return
	}
	if err := SaveSnapshot(path, cookies); err != nil {
		m.cfg.Logger.Warn("session: save cookie snapshot", "path", path, "error", err)
		return
	}
	m.cfg.Logger.Info("session: cookie snapshot saved", "path", path, "count", len(cookies))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
