package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Notifier kinds understood by internal/notify.
const (
	NotifierLog      = "log"
	NotifierTelegram = "telegram"
	NotifierNone     = "none"
)

// LanguageAuto as default_language picks en or ar from the LANG environment
// variable.
const LanguageAuto = "auto"

// TelegramConfig configures the Telegram bot notifier.
type TelegramConfig struct {
	Token  string `yaml:"token" json:"-"`
	ChatID int64  `yaml:"chat_id" json:"chat_id"`
}

// NotifierConfig selects the platform notification backend.
type NotifierConfig struct {
	// Kind is one of "log", "telegram" or "none".
	Kind     string         `yaml:"kind" json:"kind"`
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to decide "today" and to interpret
	// lecture start times.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DataPath is the SQLite file backing the persisted key-value store.
	DataPath string `yaml:"data_path" json:"data_path"`

	// LocalesDir overrides the embedded en.json / ar.json dictionaries.
	LocalesDir string `yaml:"locales_dir" json:"locales_dir"`

	// LocalesURL, if set, is a base URL serving en.json and ar.json.
	// It takes precedence over LocalesDir.
	LocalesURL string `yaml:"locales_url" json:"locales_url"`

	// LocalesCacheDir stores ETag metadata and bodies for LocalesURL.
	LocalesCacheDir string `yaml:"locales_cache_dir" json:"locales_cache_dir"`

	// DefaultLanguage is used when no language has been persisted yet.
	DefaultLanguage string `yaml:"default_language" json:"default_language"`

	// LectureDuration is the DTEND offset used by the iCalendar export.
	LectureDuration time.Duration `yaml:"lecture_duration" json:"lecture_duration"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Notifier NotifierConfig `yaml:"notifier" json:"notifier"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultPath returns the config location used when neither --config nor
// JAMATI_CONFIG is given.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv("JAMATI_CONFIG")); p != "" {
		return p
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "jamati", "config.yaml")
	}
	return "./jamati.yaml"
}

func defaultDataPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "jamati", "jamati.db")
	}
	return "./jamati.db"
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		Timezone:        "Local",
		DataPath:        defaultDataPath(),
		DefaultLanguage: "en",
		LectureDuration: 90 * time.Minute,
		LogLevel:        "info",
		Notifier:        NotifierConfig{Kind: NotifierLog},
		BasicAuth:       nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.DataPath == "" {
		c.DataPath = defaultDataPath()
	}
	switch c.DefaultLanguage {
	case "en", "ar", LanguageAuto:
	default:
		c.DefaultLanguage = "en"
	}
	if c.LectureDuration <= 0 {
		c.LectureDuration = 90 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.Notifier.Kind {
	case NotifierLog, NotifierTelegram, NotifierNone:
	default:
		c.Notifier.Kind = NotifierLog
	}
	if c.LocalesURL != "" && c.LocalesCacheDir == "" {
		c.LocalesCacheDir = filepath.Join(filepath.Dir(c.DataPath), "locales-cache")
	}
}

// ApplyEnv overlays secrets that should not live in the YAML file.
func (c *Config) ApplyEnv() {
	if tok := strings.TrimSpace(os.Getenv("JAMATI_TELEGRAM_TOKEN")); tok != "" {
		c.Notifier.Telegram.Token = tok
	}
}

// Location resolves Timezone, falling back to time.Local for "Local" or
// unknown names.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
//
// Environment overrides (ApplyEnv) are applied in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			saveErr := Save(path, cfg)
			cfg.ApplyEnv()
			// Even if save fails, return cfg with error so caller can decide.
			return cfg, saveErr
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return cfg, nil
}

// Save writes the given configuration atomically (temp file + rename) with
// 0600 permissions, creating the parent directory (0700) if needed.
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

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".jamati-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
