package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file at the root of a books directory.
const FileName = "gl.yaml"

// Config represents the top-level gl.yaml configuration.
type Config struct {
	Business     BusinessConfig `yaml:"business"`
	Ledger       LedgerConfig   `yaml:"ledger"`
	Database     DatabaseConfig `yaml:"database"`
	Activity     ActivityConfig `yaml:"activity"`
	Log          LogConfig      `yaml:"log"`
	Git          GitConfig      `yaml:"git"`
	BankAccounts []BankAccount  `yaml:"bank_accounts,omitempty"`
}

// BusinessConfig identifies the business entity.
type BusinessConfig struct {
	Name  string `yaml:"name"`
	Chart string `yaml:"chart"`
}

// LedgerConfig controls amounts and journal numbering.
type LedgerConfig struct {
	Currency        string `yaml:"currency"`
	Precision       int32  `yaml:"precision"` // minor-unit places
	ReferencePrefix string `yaml:"reference_prefix"`
}

// DatabaseConfig selects the repository backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite3 or postgres
	DSN    string `yaml:"dsn"`    // sqlite paths are relative to the books directory
}

// ActivityConfig locates the activity log.
type ActivityConfig struct {
	Path      string `yaml:"path"`
	QueueSize int    `yaml:"queue_size"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Mode string `yaml:"mode"` // debug or production
}

// GitConfig controls committing snapshots of the books.
type GitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// BankAccount maps a bank feed to chart-of-accounts entries.
type BankAccount struct {
	Name         string `yaml:"name"`
	Format       string `yaml:"format"`
	AccountCode  string `yaml:"account_code"`
	SuspenseCode string `yaml:"suspense_code"`
}

// Load reads a gl.yaml file from disk. Missing settings take their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for new books.
func Default(businessName string) *Config {
	cfg := &Config{
		Business: BusinessConfig{Name: businessName},
		BankAccounts: []BankAccount{
			{Name: "chase", Format: "chase", AccountCode: "1010", SuspenseCode: "1900"},
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Business.Chart == "" {
		c.Business.Chart = "small_business"
	}
	if c.Ledger.Currency == "" {
		c.Ledger.Currency = "USD"
	}
	if c.Ledger.Precision == 0 {
		c.Ledger.Precision = 2
	}
	if c.Ledger.ReferencePrefix == "" {
		c.Ledger.ReferencePrefix = "J"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite3" {
		c.Database.DSN = "gl.db"
	}
	if c.Activity.Path == "" {
		c.Activity.Path = filepath.Join("logs", "activity.csv")
	}
	if c.Activity.QueueSize == 0 {
		c.Activity.QueueSize = 256
	}
	if c.Log.Mode == "" {
		c.Log.Mode = "production"
	}
	if c.Git.AuthorName == "" {
		c.Git.AuthorName = "gl"
	}
	if c.Git.AuthorEmail == "" {
		c.Git.AuthorEmail = "gl@localhost"
	}
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	var errs []error
	if c.Ledger.Precision < 0 || c.Ledger.Precision > 8 {
		errs = append(errs, fmt.Errorf("ledger.precision %d out of range 0..8", c.Ledger.Precision))
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be sqlite3 or postgres", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	for i, b := range c.BankAccounts {
		if b.Name == "" || b.AccountCode == "" || b.SuspenseCode == "" {
			errs = append(errs, fmt.Errorf("bank_accounts[%d]: name, account_code and suspense_code are required", i))
		}
	}
	return errors.Join(errs...)
}

// DatabaseDSN resolves the DSN against the books directory. Only relative
// SQLite paths change.
func (c *Config) DatabaseDSN(root string) string {
	dsn := c.Database.DSN
	if c.Database.Driver != "sqlite3" || dsn == ":memory:" || filepath.IsAbs(dsn) || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return filepath.Join(root, dsn)
}

// ActivityPath resolves the activity log path against the books directory.
func (c *Config) ActivityPath(root string) string {
	if filepath.IsAbs(c.Activity.Path) {
		return c.Activity.Path
	}
	return filepath.Join(root, c.Activity.Path)
}
