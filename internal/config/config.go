package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"catchup/internal/derive"
	"catchup/internal/gcal"
	"catchup/internal/ics"
	"catchup/internal/participant"
)

const (
	defaultListen    = "127.0.0.1:8080"
	defaultRefresh   = "0 0 * * *"
	defaultExportDir = "./var/exports"
)

// PairConfig is a participant pair the publisher keeps an export for.
type PairConfig struct {
	// ID names the exported file. If empty, "<localA>-<localB>" is used.
	ID string `yaml:"id" json:"id"`
	A  string `yaml:"a" json:"a"`
	B  string `yaml:"b" json:"b"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// HorizonYears is how many consecutive years a schedule covers.
	HorizonYears int `yaml:"horizon_years" json:"horizon_years"`

	// Digest names the 256-bit hash used to seed schedules. Changing it
	// changes every derived instant.
	Digest string `yaml:"digest" json:"digest"`

	// ProductID is written as PRODID in exported calendars.
	ProductID string `yaml:"product_id" json:"product_id"`

	// UIDDomain is the right-hand side of exported event UIDs.
	UIDDomain string `yaml:"uid_domain" json:"uid_domain"`

	// CalendarURL is the base of provider "create event" links.
	CalendarURL string `yaml:"calendar_url" json:"calendar_url"`

	// RefreshCron is a standard 5-field cron spec, evaluated in UTC, for
	// re-publishing exports (e.g. "0 0 * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ExportDir receives one .ics file per configured pair.
	ExportDir string `yaml:"export_dir" json:"export_dir"`

	// Pairs lists the participant pairs published on every refresh.
	Pairs []PairConfig `yaml:"pairs" json:"pairs"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// envOverrides are applied on top of the file when set.
type envOverrides struct {
	Listen       string `env:"CATCHUP_LISTEN"`
	HorizonYears int    `env:"CATCHUP_HORIZON_YEARS"`
	Digest       string `env:"CATCHUP_DIGEST"`
	ExportDir    string `env:"CATCHUP_EXPORT_DIR"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		HorizonYears: derive.DefaultHorizonYears,
		Digest:       derive.DefaultDigest,
		ProductID:    ics.DefaultProductID,
		UIDDomain:    ics.DefaultUIDDomain,
		CalendarURL:  gcal.DefaultBaseURL,
		RefreshCron:  defaultRefresh,
		ExportDir:    defaultExportDir,
		Pairs:        []PairConfig{},
		BasicAuth:    nil,
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.HorizonYears <= 0 {
		c.HorizonYears = d.HorizonYears
	}
	if c.Digest == "" {
		c.Digest = d.Digest
	}
	if c.ProductID == "" {
		c.ProductID = d.ProductID
	}
	if c.UIDDomain == "" {
		c.UIDDomain = d.UIDDomain
	}
	if c.CalendarURL == "" {
		c.CalendarURL = d.CalendarURL
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.ExportDir == "" {
		c.ExportDir = d.ExportDir
	}
	if c.Pairs == nil {
		c.Pairs = []PairConfig{}
	}
	for i := range c.Pairs {
		c.Pairs[i].A = participant.Normalize(c.Pairs[i].A)
		c.Pairs[i].B = participant.Normalize(c.Pairs[i].B)
	}
}

// Validate reports values Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := derive.ParseDigest(c.Digest); err != nil {
		errs = append(errs, err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err))
	}
	seen := make(map[string]bool, len(c.Pairs))
	for i, p := range c.Pairs {
		if _, err := participant.Parse(p.A, p.B); err != nil {
			errs = append(errs, fmt.Errorf("config: pairs[%d]: %w", i, err))
			continue
		}
		id := p.FileID()
		if seen[id] {
			errs = append(errs, fmt.Errorf("config: pairs[%d]: duplicate id %q", i, id))
		}
		seen[id] = true
	}
	return errors.Join(errs...)
}

// FileID is the configured ID, or "<localA>-<localB>" when unset.
func (p PairConfig) FileID() string {
	if p.ID != "" {
		return p.ID
	}
	return localPart(p.A) + "-" + localPart(p.B)
}

func localPart(addr string) string {
	local, _, _ := strings.Cut(addr, "@")
	return local
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//   - Environment overrides (CATCHUP_*) are applied last, then the result
//     is validated.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadOrDefault is Load without the first-run write: a missing file yields
// the defaults and nothing is created on disk.
func LoadOrDefault(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, create bool) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := loadFile(path, create)
	if err != nil {
		return cfg, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, create bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if !create {
				return cfg, nil
			}
			// First run: create default config file.
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	if o.Listen != "" {
		cfg.Listen = o.Listen
	}
	if o.HorizonYears > 0 {
		cfg.HorizonYears = o.HorizonYears
	}
	if o.Digest != "" {
		cfg.Digest = o.Digest
	}
	if o.ExportDir != "" {
		cfg.ExportDir = o.ExportDir
	}
	return nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, ".catchup-config-*.tmp")
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place with 0600 permissions. pattern is the os.CreateTemp pattern.
func WriteFileAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
