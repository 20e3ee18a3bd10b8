package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/eriflow/browser"
	"github.com/hazyhaar/eriflow/browser/browsertest"
	"github.com/hazyhaar/eriflow/locator"
)

const (
	home  = "https://online.erieri.com/"
	login = "https://online.erieri.com/Account/Login"
)

type fakeOpener struct{ page *browsertest.Page }

func (o fakeOpener) OpenPage(context.Context) (browser.Page, error) { return o.page, nil }

func noEnv(string) string { return "" }

func testConfig() Config {
	return Config{
		AuthPolls:    3,
		PollInterval: time.Millisecond,
		FieldTimeout: 20 * time.Millisecond,
		Getenv:       noEnv,
	}
}

func hasAuthCookie(p *browsertest.Page) bool {
	for _, c := range p.StoredCookies() {
		if c.Name == ".ASPXAUTH" {
			return true
		}
	}
	return false
}

// sitePage redirects home to the login page unless the auth cookie is set.
func sitePage() *browsertest.Page {
	p := browsertest.NewPage("about:blank")
	p.OnNavigate = func(p *browsertest.Page, url string) {
		if url == home && !hasAuthCookie(p) {
			p.SetURL(login)
		}
	}
	return p
}

func writeSnapshot(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFilterForHost(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []browser.Cookie{
		{Name: "exact", Domain: "online.erieri.com"},
		{Name: "parent", Domain: ".erieri.com"},
		{Name: "foreign", Domain: "evil.example"},
		{Name: "boundary", Domain: "rieri.com"},
		{Name: "tld", Domain: ".com"},
		{Name: "hostonly"},
		{Name: "expired", Domain: "erieri.com", Expires: now.Add(-time.Hour)},
		{Name: "future", Domain: "erieri.com", Expires: now.Add(time.Hour)},
	}
	got := FilterForHost(in, home, now)
	var names []string
	for _, c := range got {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{"exact", "parent", "hostonly", "future"}, names)
	require.Equal(t, "online.erieri.com", got[2].Domain)
}

func TestLoadSnapshot_Expiry(t *testing.T) {
	path := writeSnapshot(t, `[
		{"name":"a","value":"1","domain":".erieri.com","path":"/","expiry":1893456000,"secure":true,"httpOnly":true},
		{"name":"b","value":"2","domain":".erieri.com","expiry":null},
		{"name":"c","value":"3","domain":".erieri.com"},
		{"name":"d","value":"4","domain":".erieri.com","expiry":"soon"},
		{"name":"e","value":"5","domain":".erieri.com","expiry":"1893456000"}
	]`)
	cookies, dropped, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Equal(t, 1, dropped)
	require.Len(t, cookies, 4)
	require.Equal(t, time.Unix(1893456000, 0).UTC(), cookies[0].Expires)
	require.True(t, cookies[0].HTTPOnly)
	require.True(t, cookies[1].Expires.IsZero(), "null expiry is a session cookie")
	require.True(t, cookies[2].Expires.IsZero(), "absent expiry is a session cookie")
	require.Equal(t, "e", cookies[3].Name)
}

func TestSaveSnapshot_ThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cookies.json")
	exp := time.Unix(1893456000, 0).UTC()
	require.NoError(t, SaveSnapshot(path, []browser.Cookie{
		{Name: "s", Value: "v", Domain: ".erieri.com", Path: "/", Expires: exp, Secure: true},
		{Name: "sess", Value: "x", Domain: "online.erieri.com"},
	}))
	got, dropped, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Zero(t, dropped)
	require.Len(t, got, 2)
	require.Equal(t, exp, got[0].Expires)
	require.True(t, got[1].Expires.IsZero())
}

func TestResolveCredentials(t *testing.T) {
	env := map[string]string{EnvUser: "u", EnvPass: "p"}
	c, ok, err := ResolveCredentials(func(k string) string { return env[k] }, "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Credentials{Username: "u", Password: "p"}, c)

	path := filepath.Join(t.TempDir(), "creds.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// operator account
		username: "ops@example.com",
		password: "s3cret",
	}`), 0o600))
	c, ok, err = ResolveCredentials(noEnv, path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ops@example.com", c.Username)

	_, ok, err = ResolveCredentials(noEnv, filepath.Join(t.TempDir(), "missing.json5"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAcquire_Profile(t *testing.T) {
	page := browsertest.NewPage("about:blank")
	logout, _ := locator.Default().Get(locator.Logout)
	page.Add(logout.Expr, &browsertest.Element{})

	cfg := testConfig()
	cfg.UseProfile = true
	sess, ok, err := NewManager(fakeOpener{page}, cfg).Acquire(context.Background(), "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "profile", sess.Strategy())
	require.Equal(t, Authenticated, sess.State())
	require.Equal(t, 1, page.Count("navigate:"+home))
}

func TestAcquire_CookieSnapshot(t *testing.T) {
	page := sitePage()
	path := writeSnapshot(t, `[
		{"name":".ASPXAUTH","value":"tok","domain":".erieri.com","path":"/","expiry":4102444800},
		{"name":"tracker","value":"x","domain":".ads.example","path":"/"}
	]`)

	sess, ok, err := NewManager(fakeOpener{page}, testConfig()).Acquire(context.Background(), path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "cookies", sess.Strategy())

	stored := page.StoredCookies()
	require.Len(t, stored, 1, "foreign-domain cookie must not be applied; the same cookie matches both hosts once")
	require.Equal(t, ".ASPXAUTH", stored[0].Name)

	saved, _, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, saved, 1, "snapshot is rewritten from the browser cookies")
}

func TestAcquire_Credentials(t *testing.T) {
	page := sitePage()
	page.Add("input#Email", &browsertest.Element{})
	page.Add("input#Password", &browsertest.Element{})
	page.Add("button[type='submit']", &browsertest.Element{OnClick: func(p *browsertest.Page) {
		p.Seed(browser.Cookie{Name: ".ASPXAUTH", Value: "tok", Domain: ".erieri.com"})
		p.Remove("input#Password")
		p.SetURL(home)
	}})

	cfg := testConfig()
	cfg.Getenv = func(k string) string {
		return map[string]string{EnvUser: "ops", EnvPass: "pw"}[k]
	}
	path := filepath.Join(t.TempDir(), "cookies.json")

	sess, ok, err := NewManager(fakeOpener{page}, cfg).Acquire(context.Background(), path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "credentials", sess.Strategy())
	require.Equal(t, []string{"text:ops", "text:pw"}, page.Entries("text:"))

	saved, _, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, saved, 1)
}

func TestAcquire_AllFail(t *testing.T) {
	page := sitePage()
	sess, ok, err := NewManager(fakeOpener{page}, testConfig()).Acquire(context.Background(), "")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, Unauthenticated, sess.State())
	url, _ := page.URL(context.Background())
	require.Equal(t, login, url)
}

func TestIsAuthenticated_PasswordFieldVisible(t *testing.T) {
	page := browsertest.NewPage("https://online.erieri.com/Home")
	m := NewManager(fakeOpener{page}, testConfig())
	require.True(t, m.IsAuthenticated(context.Background(), page))

	page.Add("input[type='password']", &browsertest.Element{})
	require.False(t, m.IsAuthenticated(context.Background(), page))
}

func TestWaitManual(t *testing.T) {
	page := browsertest.NewPage(login)
	m := NewManager(fakeOpener{page}, testConfig())
	sess := &Session{Page: page}

	go func() {
		time.Sleep(5 * time.Millisecond)
		page.SetURL(home)
	}()
	require.True(t, m.WaitManual(context.Background(), sess, time.Second, ""))
	require.Equal(t, "manual", sess.Strategy())

	page.SetURL(login)
	require.False(t, m.WaitManual(context.Background(), &Session{Page: page}, 10*time.Millisecond, ""))
}

func TestSession_CloseIdempotent(t *testing.T) {
	s := &Session{Page: browsertest.NewPage("")}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.Equal(t, Closed, s.State())
}
