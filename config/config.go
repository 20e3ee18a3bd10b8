// CLAUDE:SUMMARY YAML configuration with a .local override merged by mergo, defaults, validation and per-component config builders.
// Package config loads the eriflow YAML configuration. A file next to the
// main one named <name>.local.<ext> overrides it field by field.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/eriflow/browser"
	"github.com/hazyhaar/eriflow/extract"
	"github.com/hazyhaar/eriflow/interact"
	"github.com/hazyhaar/eriflow/locator"
	"github.com/hazyhaar/eriflow/record"
	"github.com/hazyhaar/eriflow/sequence"
	"github.com/hazyhaar/eriflow/session"
)

// Config is the top-level configuration.
type Config struct {
	Browser  BrowserConfig   `yaml:"browser"`
	Session  SessionConfig   `yaml:"session"`
	Timing   interact.Timing `yaml:"timing"`
	Sequence SequenceConfig  `yaml:"sequence"`
	Extract  ExtractConfig   `yaml:"extract"`
	Locators LocatorConfig   `yaml:"locators"`
	Batch    BatchConfig     `yaml:"batch"`
	Output   OutputConfig    `yaml:"output"`
	Sheets   SheetsConfig    `yaml:"sheets"`
	Journal  JournalConfig   `yaml:"journal"`
	Diag     DiagConfig      `yaml:"diag"`
	Serve    ServeConfig     `yaml:"serve"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Bin              string   `yaml:"bin"`
	UserDataDir      string   `yaml:"user_data_dir"`
	ResourceBlocking []string `yaml:"resource_blocking"`
}

// SessionConfig controls authentication.
type SessionConfig struct {
	HomeURL         string        `yaml:"home_url"`
	LoginURL        string        `yaml:"login_url"`
	CookieHosts     []string      `yaml:"cookie_hosts"`
	UseProfile      bool          `yaml:"use_profile"`
	CredentialsFile string        `yaml:"credentials_file"`
	CredentialStore string        `yaml:"credential_store"`
	ManualLoginWait time.Duration `yaml:"manual_login_wait"`
	AuthPolls       int           `yaml:"auth_polls"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	LoadTimeout     time.Duration `yaml:"load_timeout"`
}

// SequenceConfig controls the form steps.
type SequenceConfig struct {
	OrdinalDowns int                      `yaml:"ordinal_downs"`
	CodeOption   string                   `yaml:"code_option"`
	StableWindow time.Duration            `yaml:"stable_window"`
	ReadyTimeout time.Duration            `yaml:"ready_timeout"`
	Settle       map[string]time.Duration `yaml:"settle"`
}

// ExtractConfig controls result reading. Columns maps statistic tokens
// ("Mean", "75th Percentile") to 1-based table columns.
type ExtractConfig struct {
	Reader      string         `yaml:"reader"`
	MaxRows     int            `yaml:"max_rows"`
	ResultsWait time.Duration  `yaml:"results_wait"`
	Columns     map[string]int `yaml:"columns"`
}

// LocatorConfig overrides built-in selectors by key.
type LocatorConfig struct {
	Entries map[string]string   `yaml:"entries"`
	Lists   map[string][]string `yaml:"lists"`
}

// BatchConfig controls the batch runner.
type BatchConfig struct {
	RequireAuth bool `yaml:"require_auth"`
}

// OutputConfig controls the CSV result log. An empty ResultLog gets a
// timestamped name inside Dir.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	ResultLog string `yaml:"result_log"`
}

// SheetsConfig enables pushing results to Google Sheets.
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Range           string `yaml:"range"`
	CredentialsFile string `yaml:"credentials_file"`
	Push            bool   `yaml:"push"`
}

// JournalConfig locates the SQLite run journal.
type JournalConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// DiagConfig controls failure screenshots.
type DiagConfig struct {
	Dir          string `yaml:"dir"`
	Disabled     bool   `yaml:"disabled"`
	SkipMarkdown bool   `yaml:"skip_markdown"`
}

// ServeConfig controls the read-only HTTP API.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LocalPath returns the override path for path: eriflow.yaml gives
// eriflow.local.yaml.
func LocalPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// Load reads path and its local override. Missing files are not an error;
// the configuration is optional.
func Load(path string) (*Config, error) {
	var cfg Config
	found, err := readYAML(path, &cfg)
	if err != nil {
		return nil, err
	}

	local := LocalPath(path)
	var override Config
	ok, err := readYAML(local, &override)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("config: merge %s: %w", local, err)
		}
		slog.Info("config: merged local overrides", "local", local)
	}
	if !found && !ok {
		slog.Debug("config: no configuration file, using defaults", "path", path)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readYAML(path string, out *Config) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return true, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.UserDataDir == "" {
		c.Browser.UserDataDir = ".eri_profile"
	}
	if c.Session.CredentialsFile == "" {
		c.Session.CredentialsFile = "eri_credentials.json"
	}
	if c.Session.CredentialStore == "" {
		c.Session.CredentialStore = "eri_cookies.json"
	}

	def := interact.DefaultTiming()
	t := &c.Timing
	for _, f := range []struct {
		v *time.Duration
		d time.Duration
	}{
		{&t.ElementTimeout, def.ElementTimeout},
		{&t.OptionTimeout, def.OptionTimeout},
		{&t.ScrollSettle, def.ScrollSettle},
		{&t.AfterClick, def.AfterClick},
		{&t.KeyInterval, def.KeyInterval},
		{&t.AfterSelect, def.AfterSelect},
		{&t.ClearInterval, def.ClearInterval},
		{&t.TypeInterval, def.TypeInterval},
		{&t.AfterSubmit, def.AfterSubmit},
	} {
		if *f.v <= 0 {
			*f.v = f.d
		}
	}

	if c.Sequence.OrdinalDowns <= 0 {
		c.Sequence.OrdinalDowns = 3
	}
	if c.Sequence.CodeOption == "" {
		c.Sequence.CodeOption = "ERI Code"
	}
	if c.Sequence.StableWindow <= 0 {
		c.Sequence.StableWindow = 500 * time.Millisecond
	}
	if c.Sequence.ReadyTimeout <= 0 {
		c.Sequence.ReadyTimeout = 20 * time.Second
	}
	if c.Sequence.Settle == nil {
		c.Sequence.Settle = sequence.DefaultSettle()
	}

	if c.Extract.Reader == "" {
		c.Extract.Reader = string(extract.ReaderSnapshot)
	}
	if c.Extract.MaxRows <= 0 {
		c.Extract.MaxRows = 20
	}
	if c.Extract.ResultsWait <= 0 {
		c.Extract.ResultsWait = 30 * time.Second
	}
	if c.Extract.Columns == nil {
		c.Extract.Columns = map[string]int{}
		for s, col := range extract.DefaultColumns() {
			c.Extract.Columns[s.String()] = col
		}
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	if c.Sheets.Range == "" {
		c.Sheets.Range = "Sheet1"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "eriflow.db"
	}
	if c.Diag.Dir == "" {
		c.Diag.Dir = "screenshots"
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = "127.0.0.1:8088"
	}
}

// Validate checks values defaults cannot repair.
func (c *Config) Validate() error {
	switch extract.Reader(c.Extract.Reader) {
	case extract.ReaderSnapshot, extract.ReaderLive:
	default:
		return fmt.Errorf("config: extract.reader: unknown reader %q", c.Extract.Reader)
	}
	if _, err := c.columns(); err != nil {
		return err
	}
	if c.Sheets.Push && c.Sheets.SpreadsheetID == "" {
		return errors.New("config: sheets.push requires sheets.spreadsheet_id")
	}
	return nil
}

func (c *Config) columns() (extract.ColumnMap, error) {
	m := make(extract.ColumnMap, len(c.Extract.Columns))
	for tok, col := range c.Extract.Columns {
		s, err := record.ParseStatistic(tok)
		if err != nil {
			return nil, fmt.Errorf("config: extract.columns: %w", err)
		}
		if col <= 0 {
			return nil, fmt.Errorf("config: extract.columns: column for %q must be positive", tok)
		}
		m[s] = col
	}
	return m, nil
}

// LocatorTable builds the selector table with overrides applied.
func (c *Config) LocatorTable() *locator.Table {
	return locator.New(c.Locators.Entries, c.Locators.Lists)
}

// BrowserManager builds the browser manager configuration.
func (c *Config) BrowserManager(logger *slog.Logger) browser.Config {
	return browser.Config{
		RemoteURL:        c.Browser.Remote,
		UserDataDir:      c.Browser.UserDataDir,
		Bin:              c.Browser.Bin,
		ResourceBlocking: c.Browser.ResourceBlocking,
		Logger:           logger,
	}
}

// SessionManager builds the session manager configuration.
func (c *Config) SessionManager(locs *locator.Table, logger *slog.Logger) session.Config {
	return session.Config{
		HomeURL:         c.Session.HomeURL,
		LoginURL:        c.Session.LoginURL,
		CookieHosts:     c.Session.CookieHosts,
		UseProfile:      c.Session.UseProfile,
		CredentialsFile: c.Session.CredentialsFile,
		Locators:        locs,
		AuthPolls:       c.Session.AuthPolls,
		PollInterval:    c.Session.PollInterval,
		LoadTimeout:     c.Session.LoadTimeout,
		FieldTimeout:    c.Timing.ElementTimeout,
		Logger:          logger,
	}
}

// Sequencer builds the sequencer configuration. diag may be nil.
func (c *Config) Sequencer(locs *locator.Table, diag sequence.Capturer, logger *slog.Logger) sequence.Config {
	return sequence.Config{
		Locators:     locs,
		Timing:       c.Timing,
		OrdinalDowns: c.Sequence.OrdinalDowns,
		CodeOption:   c.Sequence.CodeOption,
		Settle:       c.Sequence.Settle,
		StableWindow: c.Sequence.StableWindow,
		ReadyTimeout: c.Sequence.ReadyTimeout,
		Diag:         diag,
		Logger:       logger,
	}
}

// Extractor builds the extractor configuration.
func (c *Config) Extractor(locs *locator.Table, logger *slog.Logger) extract.Config {
	cols, _ := c.columns()
	return extract.Config{
		Locators:    locs,
		Columns:     cols,
		MaxRows:     c.Extract.MaxRows,
		Reader:      extract.Reader(c.Extract.Reader),
		ResultsWait: c.Extract.ResultsWait,
		Logger:      logger,
	}
}
