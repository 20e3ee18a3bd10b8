// CLAUDE:SUMMARY Failure diagnostics: numbered screenshots plus a sanitized markdown rendering of the page.
// Package diag saves what the browser showed when a step failed: a
// full-page screenshot and the page rendered to markdown, numbered in
// capture order.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/eriflow/browser"
)

// Config configures a Capturer.
type Config struct {
	// Dir receives the artifacts. Created if missing.
	Dir string
	// SkipMarkdown disables the page rendering.
	SkipMarkdown bool
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.Dir == "" {
		c.Dir = "screenshots"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Capturer writes diagnostics for failed steps.
type Capturer struct {
	cfg    Config
	seq    atomic.Int64
	policy *bluemonday.Policy
	md     *converter.Converter
}

// New creates the output directory and returns a Capturer.
func New(cfg Config) (*Capturer, error) {
	cfg.defaults()
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("diag: create dir: %w", err)
	}
	return &Capturer{
		cfg:    cfg,
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Capture saves <n>_<label>.png and <n>_<label>.md. The screenshot is
// attempted even when the markdown rendering fails, and vice versa.
func (c *Capturer) Capture(ctx context.Context, page browser.Page, label string) error {
	n := c.seq.Add(1)
	stem := filepath.Join(c.cfg.Dir, fmt.Sprintf("%03d_%s", n, unsafeChars.ReplaceAllString(label, "_")))

	var errs []string
	png, err := page.Screenshot(ctx)
	if err == nil {
		err = os.WriteFile(stem+".png", png, 0o644)
	}
	if err != nil {
		errs = append(errs, "screenshot: "+err.Error())
	}

	if !c.cfg.SkipMarkdown {
		if err := c.writeMarkdown(ctx, page, stem+".md"); err != nil {
			errs = append(errs, "markdown: "+err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("diag: %s", strings.Join(errs, "; "))
	}
	c.cfg.Logger.Info("diag: captured", "path", stem)
	return nil
}

func (c *Capturer) writeMarkdown(ctx context.Context, page browser.Page, path string) error {
	raw, err := page.HTML(ctx)
	if err != nil {
		return err
	}
	u, _ := page.URL(ctx)
	md, err := c.Render(raw, u)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte("<!-- "+u+" -->\n\n"+md+"\n"), 0o644)
}

// Render sanitizes html and converts it to markdown, resolving relative
// links against pageURL.
func (c *Capturer) Render(html, pageURL string) (string, error) {
	clean := c.policy.Sanitize(html)
	var (
		out string
		err error
	)
	if pageURL != "" {
		out, err = c.md.ConvertString(clean, converter.WithDomain(pageURL))
	} else {
		out, err = c.md.ConvertString(clean)
	}
	if err != nil {
		return "", fmt.Errorf("diag: convert: %w", err)
	}
	return strings.TrimSpace(out), nil
}
