// Package config loads clerk's YAML configuration: the account list,
// cache freshness windows, and send-safety settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order. An
// explicit path (from a caller's -config flag) is checked first by
// FindConfig; this list is the fallback order: ./config.yaml, then
// the XDG base directory, then the conventional fallback under
// ~/.config when XDG_CONFIG_HOME is unset.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "clerk", "config.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "clerk", "config.yaml"))
	}

	return paths
}

// searchPathsFunc is DefaultSearchPaths indirected through a variable
// so tests can substitute a sandboxed list instead of touching the
// real home directory.
var searchPathsFunc = DefaultSearchPaths

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise, searches searchPathsFunc() and returns the first
// that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	paths := searchPathsFunc()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", paths)
}

// Config holds all clerk configuration.
type Config struct {
	DefaultAccount string                   `yaml:"default_account"`
	Accounts       map[string]AccountConfig `yaml:"accounts"`
	Cache          CacheConfig              `yaml:"cache"`
	Send           SendConfig               `yaml:"send"`
	LogLevel       string                   `yaml:"log_level"`
}

// Protocol identifies how an account authenticates to IMAP/SMTP.
type Protocol string

const (
	ProtocolIMAP  Protocol = "imap"
	ProtocolGmail Protocol = "gmail"
)

// FromAddress is the account's outgoing sender identity.
type FromAddress struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
}

// AccountConfig describes one configured mailbox.
type AccountConfig struct {
	Protocol Protocol    `yaml:"protocol"`
	From     FromAddress `yaml:"from"`
	IMAP     IMAPConfig  `yaml:"imap"`
	SMTP     SMTPConfig  `yaml:"smtp"`
	OAuth    OAuthConfig `yaml:"oauth"`

	// PasswordCmd, when set, is a shell command whose stdout (trimmed)
	// is the account password. PasswordFile, when set, names a file
	// whose contents are the password; clerk itself neither reads the
	// file nor checks its permissions. Validation requires at least one
	// of the two for protocol "imap"; resolving either
	// into an imapsync.Credentials is the caller's job, not clerk's —
	// see internal/imapsync.Credentials.
	PasswordCmd  string `yaml:"password_cmd"`
	PasswordFile string `yaml:"password_file"`
}

// IMAPConfig holds IMAP connection settings for a password-auth
// account. Gmail OAuth accounts ignore this and dial
// imap.gmail.com:993 directly.
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	SSL      *bool  `yaml:"ssl"`
}

// SSLEnabled reports whether the connection should use implicit TLS,
// defaulting to true when unset.
func (c IMAPConfig) SSLEnabled() bool { return c.SSL == nil || *c.SSL }

// SMTPConfig holds SMTP connection settings for a password-auth
// account. Gmail OAuth accounts ignore this and dial
// smtp.gmail.com:587 with STARTTLS directly.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	StartTLS *bool  `yaml:"starttls"`
}

// StartTLSEnabled reports whether STARTTLS should be negotiated,
// defaulting to true when unset.
func (c SMTPConfig) StartTLSEnabled() bool { return c.StartTLS == nil || *c.StartTLS }

// OAuthConfig names where a Gmail account's OAuth client credentials
// live. clerk does not perform the browser flow or token refresh
// itself; it only declares where the caller should look, matching the
// imapsync.TokenSource contract the caller satisfies.
type OAuthConfig struct {
	ClientIDFile string `yaml:"client_id_file"`
}

// CacheConfig controls how long local data is trusted before clerk
// refetches from IMAP.
type CacheConfig struct {
	WindowDays        int `yaml:"window_days"`
	InboxFreshnessMin int `yaml:"inbox_freshness_min"`
	BodyFreshnessMin  int `yaml:"body_freshness_min"`
}

// SendConfig controls the send-safety gates shared by every account
// unless overridden per account in a future revision.
type SendConfig struct {
	RequireConfirmation bool     `yaml:"require_confirmation"`
	RateLimit           int      `yaml:"rate_limit"`
	BlockedRecipients   []string `yaml:"blocked_recipients"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates the
// result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${HOME}, ${GMAIL_CLIENT_SECRET}).
	// This is a convenience for container deployments; the recommended
	// approach is to put values directly in the config file.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. After this, callers can read any
// field without checking for empty strings or zero values.
func (c *Config) applyDefaults() {
	if c.Cache.WindowDays == 0 {
		c.Cache.WindowDays = 7
	}
	if c.Cache.InboxFreshnessMin == 0 {
		c.Cache.InboxFreshnessMin = 5
	}
	if c.Cache.BodyFreshnessMin == 0 {
		c.Cache.BodyFreshnessMin = 60
	}
	if c.Send.RateLimit == 0 {
		c.Send.RateLimit = 20
	}

	for name, acc := range c.Accounts {
		if acc.IMAP.Port == 0 {
			acc.IMAP.Port = 993
		}
		if acc.SMTP.Port == 0 {
			acc.SMTP.Port = 587
		}
		c.Accounts[name] = acc
	}

	if c.DefaultAccount == "" && len(c.Accounts) == 1 {
		for name := range c.Accounts {
			c.DefaultAccount = name
		}
	}
}

// Validate checks that the configuration is internally consistent. It
// runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.Cache.WindowDays < 1 || c.Cache.WindowDays > 365 {
		return fmt.Errorf("cache.window_days %d out of range (1-365)", c.Cache.WindowDays)
	}
	if c.Cache.InboxFreshnessMin < 1 {
		return fmt.Errorf("cache.inbox_freshness_min must be >= 1")
	}
	if c.Cache.BodyFreshnessMin < 1 {
		return fmt.Errorf("cache.body_freshness_min must be >= 1")
	}
	if c.Send.RateLimit < 1 {
		return fmt.Errorf("send.rate_limit must be >= 1")
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.DefaultAccount != "" {
		if _, ok := c.Accounts[c.DefaultAccount]; !ok {
			return fmt.Errorf("default_account %q is not a configured account", c.DefaultAccount)
		}
	}
	for name, acc := range c.Accounts {
		if err := acc.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (a AccountConfig) validate(name string) error {
	if a.From.Address == "" {
		return fmt.Errorf("accounts.%s.from.address is required", name)
	}
	switch a.Protocol {
	case ProtocolIMAP:
		if a.IMAP.Host == "" {
			return fmt.Errorf("accounts.%s.imap.host is required for protocol %q", name, a.Protocol)
		}
		if a.SMTP.Host == "" {
			return fmt.Errorf("accounts.%s.smtp.host is required for protocol %q", name, a.Protocol)
		}
		if a.PasswordCmd == "" && a.PasswordFile == "" {
			return fmt.Errorf("accounts.%s needs password_cmd or password_file for protocol %q", name, a.Protocol)
		}
	case ProtocolGmail:
		if a.OAuth.ClientIDFile == "" {
			return fmt.Errorf("accounts.%s.oauth.client_id_file is required for protocol %q", name, a.Protocol)
		}
	default:
		return fmt.Errorf("accounts.%s has unknown protocol %q", name, a.Protocol)
	}
	return nil
}

// Default returns a default configuration suitable for local
// development: no accounts configured, conservative cache and send
// defaults. Callers add accounts before use.
func Default() *Config {
	cfg := &Config{
		Accounts: map[string]AccountConfig{},
		Send: SendConfig{
			RequireConfirmation: true,
		},
	}
	cfg.applyDefaults()
	return cfg
}
