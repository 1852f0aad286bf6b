package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Vault      VaultConfig       `yaml:"vault"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Remote     RemoteConfig      `yaml:"remote"`
	DailyNotes DailyNotesConfig  `yaml:"daily_notes"`
	Sync       SyncConfig        `yaml:"sync"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Remote.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level    `yaml:"log_level"`
	LogFile  LogFileConfig `yaml:"log_file"`
	HTTP     HTTPConfig    `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.LogFile.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// LogFileConfig enables an additional size-rotated log file.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Validate validates the log file configuration.
func (c *LogFileConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

var httpURL = regexp.MustCompile(`^https?://[^\s/]+`)

// RemoteConfig points at the note service.
//
// Token, when set, overrides the token stored in the sync settings.
type RemoteConfig struct {
	BaseURL   string        `yaml:"base_url"`
	AIBaseURL string        `yaml:"ai_base_url"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.Match(httpURL)),
		validation.Field(&c.AIBaseURL, validation.Required, validation.Match(httpURL)),
		validation.Field(&c.Timeout, validation.Min(time.Second)),
	)
}

// DailyNotesConfig is the vault's daily notes feature: where daily notes
// live and how their file names are formatted (moment.js tokens).
type DailyNotesConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Folder   string `yaml:"folder"`
	Format   string `yaml:"format"`
	Template string `yaml:"template"`
}

// SyncConfig controls background syncing in serve mode.
//
// Interval overrides the auto-sync interval from the sync settings when
// non-zero.
type SyncConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	if c.Interval != 0 && c.Interval < time.Minute {
		return fmt.Errorf("sync: interval %s is below one minute", c.Interval)
	}
	return nil
}

// AuthConfig holds authentication configuration for the control API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for localhost.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			LogFile: LogFileConfig{
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
			HTTP: HTTPConfig{
				Port: 8787,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./dinosync.db",
		},
		Remote: RemoteConfig{
			BaseURL:   "https://dinoai.chatgo.pro",
			AIBaseURL: "https://aisdk.chatgo.pro",
			Timeout:   30 * time.Second,
		},
		DailyNotes: DailyNotesConfig{
			Enabled: true,
			Folder:  "Daily",
			Format:  "YYYY-MM-DD",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
