package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appLog "invitecal/internal/log"
)

// Default values shared by DefaultConfig and Normalize.
const (
	DefaultListen   = "127.0.0.1:8080"
	DefaultTimezone = "Asia/Seoul"
	DefaultTheme    = ThemeClassic

	ThemeClassic = "classic"
	ThemeGarden  = "garden"

	defaultStorePath    = "/var/lib/invitecal/store.json"
	defaultFeedRefresh  = "*/30 * * * *"
	defaultFeedCacheDir = "/var/lib/invitecal/ics-cache"
	defaultPreviewCron  = "0 * * * *"
	defaultPreviewPath  = "/var/lib/invitecal/preview.png"
	defaultSignageCron  = "*/5 * * * *"
	defaultSignageDump  = "/var/lib/invitecal/signage"
	defaultBatteryAddr  = 0x57
	defaultPreviewW     = 1200
	defaultPreviewH     = 630
	defaultSignageW     = 800
	defaultSignageH     = 480
)

// CoupleConfig holds the names printed on the invitation.
type CoupleConfig struct {
	First   string `yaml:"first" json:"first"`
	Second  string `yaml:"second" json:"second"`
	Hashtag string `yaml:"hashtag,omitempty" json:"hashtag,omitempty"`
}

// Title joins the names for headings, e.g. "Jiwoo & Sam".
func (c CoupleConfig) Title() string {
	if c.First != "" && c.Second != "" {
		return c.First + " & " + c.Second
	}
	return strings.TrimSpace(c.First + c.Second)
}

// EventConfig describes one occasion of the day.
type EventConfig struct {
	Name string `yaml:"name" json:"name"`
	// Date is the calendar day, YYYY-MM-DD.
	Date string `yaml:"date" json:"date"`
	// Start / End are wall clock times, HH:MM, in the display timezone.
	// An End at or before Start means the event runs past midnight.
	Start   string `yaml:"start" json:"start"`
	End     string `yaml:"end" json:"end"`
	Venue   string `yaml:"venue,omitempty" json:"venue,omitempty"`
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
}

// FeedConfig points at an organiser calendar (ICS) that replaces Events
// when set.
type FeedConfig struct {
	URL      string `yaml:"url" json:"url"`
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// Refresh is a cron-style schedule (e.g. "*/30 * * * *").
	Refresh string `yaml:"refresh" json:"refresh"`
}

// StoreConfig selects where guestbook messages and RSVPs go.
type StoreConfig struct {
	// Path is the JSON file used by the built-in store.
	Path string `yaml:"path" json:"path"`
	// RemoteURL, if set, sends everything to an external backend instead.
	RemoteURL string `yaml:"remote_url,omitempty" json:"remote_url,omitempty"`
	// Moderate hides new guestbook entries until an admin approves them.
	Moderate bool `yaml:"moderate" json:"moderate"`
}

// PreviewConfig controls the share preview image (og:image).
type PreviewConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Cron    string `yaml:"cron" json:"cron"`
	Path    string `yaml:"path" json:"path"`
	Width   int    `yaml:"width" json:"width"`
	Height  int    `yaml:"height" json:"height"`
}

// SignageConfig controls the e-paper countdown sign at the venue.
type SignageConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Cron    string `yaml:"cron" json:"cron"`
	// Panel is "spi" for real hardware or "file" to dump planes to DumpDir.
	Panel   string `yaml:"panel" json:"panel"`
	DumpDir string `yaml:"dump_dir" json:"dump_dir"`
	Width   int    `yaml:"width" json:"width"`
	Height  int    `yaml:"height" json:"height"`
	// BatteryBus is the periph I2C bus name ("" for the default bus).
	BatteryBus  string `yaml:"battery_bus" json:"battery_bus"`
	BatteryAddr uint16 `yaml:"battery_addr" json:"battery_addr"`
}

// AdminConfig enables the moderation API behind Basic Auth.
type AdminConfig struct {
	Username string `yaml:"username" json:"username"`
	// PasswordHash is an argon2id hash produced by `invitecal hash-password`.
	PasswordHash string `yaml:"password_hash" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the invitation site.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone the countdown is evaluated in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Theme selects the page template: "classic" or "garden".
	Theme string `yaml:"theme" json:"theme"`

	// LogLevel is "debug", "info" or "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	// PublicURL is the externally reachable base URL, used in the calendar
	// export and for screenshots. Defaults to http://<Listen>.
	PublicURL string `yaml:"public_url,omitempty" json:"public_url,omitempty"`

	Couple  CoupleConfig  `yaml:"couple" json:"couple"`
	Events  []EventConfig `yaml:"events" json:"events"`
	Gallery []string      `yaml:"gallery" json:"gallery"`

	Feed    *FeedConfig   `yaml:"feed,omitempty" json:"feed,omitempty"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Preview PreviewConfig `yaml:"preview" json:"preview"`
	Signage SignageConfig `yaml:"signage" json:"signage"`
	Admin   *AdminConfig  `yaml:"admin,omitempty" json:"admin,omitempty"`
}

// DefaultConfig returns an in-memory default configuration with a sample
// two-event day so a fresh install renders something.
func DefaultConfig() *Config {
	cfg := &Config{
		Listen:   DefaultListen,
		Timezone: DefaultTimezone,
		Theme:    DefaultTheme,
		LogLevel: "info",
		Couple:   CoupleConfig{First: "Jiwoo", Second: "Sam"},
		Events: []EventConfig{
			{Name: "Welcome dinner", Date: "2026-04-16", Start: "19:00", End: "21:00", Venue: "Garden House"},
			{Name: "Ceremony & reception", Date: "2026-04-18", Start: "16:30", End: "23:59", Venue: "Riverside Hall"},
		},
		Gallery: []string{},
		Store:   StoreConfig{Path: defaultStorePath, Moderate: true},
	}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	switch c.Theme {
	case ThemeClassic, ThemeGarden:
	default:
		c.Theme = DefaultTheme
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Events == nil {
		c.Events = []EventConfig{}
	}
	if c.Gallery == nil {
		c.Gallery = []string{}
	}
	if c.Feed != nil {
		if c.Feed.Refresh == "" {
			c.Feed.Refresh = defaultFeedRefresh
		}
		if c.Feed.CacheDir == "" {
			c.Feed.CacheDir = defaultFeedCacheDir
		}
	}
	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}
	if c.Preview.Cron == "" {
		c.Preview.Cron = defaultPreviewCron
	}
	if c.Preview.Path == "" {
		c.Preview.Path = defaultPreviewPath
	}
	if c.Preview.Width <= 0 {
		c.Preview.Width = defaultPreviewW
	}
	if c.Preview.Height <= 0 {
		c.Preview.Height = defaultPreviewH
	}
	if c.Signage.Cron == "" {
		c.Signage.Cron = defaultSignageCron
	}
	switch c.Signage.Panel {
	case "spi", "file":
	default:
		c.Signage.Panel = "file"
	}
	if c.Signage.DumpDir == "" {
		c.Signage.DumpDir = defaultSignageDump
	}
	if c.Signage.Width <= 0 {
		c.Signage.Width = defaultSignageW
	}
	if c.Signage.Height <= 0 {
		c.Signage.Height = defaultSignageH
	}
	if c.Signage.BatteryAddr == 0 {
		c.Signage.BatteryAddr = defaultBatteryAddr
	}
}

// BaseURL returns PublicURL, or http://<Listen> when unset.
func (c *Config) BaseURL() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	return "http://" + c.Listen
}

// AdminEnabled reports whether the moderation API is protected and on.
func (c *Config) AdminEnabled() bool {
	return c.Admin != nil && c.Admin.Username != "" && c.Admin.PasswordHash != ""
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
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
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			// Even if save fails, return cfg with error so caller can decide.
			return cfg, err
		}
		appLog.Info("wrote default config", "path", path)
		return cfg, nil
	}
	return cfg, err
}

// Read parses an existing config file without creating one.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to path atomically (temp file +
// rename) with 0600 permissions, creating the parent directory as 0700.
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
	return WriteFileAtomic(path, data, 0o600)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data next to path and renames it into place so
// readers never observe a half-written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
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
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
