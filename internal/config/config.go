package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	BackendGoogle = "google"
	BackendICS    = "ics"
)

// ReminderConfig controls the daily reminder.
type ReminderConfig struct {
	// At is the local time of day ("HH:MM") in Config.Timezone. Empty
	// disables the reminder.
	At      string `yaml:"at" json:"at"`
	Message string `yaml:"message" json:"message"`

	// EmailTo, if set, also mails the reminder through the email provider.
	EmailTo string `yaml:"email_to,omitempty" json:"email_to,omitempty"`
	Subject string `yaml:"subject" json:"subject"`
}

// CalendarConfig selects and configures the calendar backend.
type CalendarConfig struct {
	// Backend is "google" (Google Calendar API) or "ics" (one .ics file per
	// event in ICSDir).
	Backend string `yaml:"backend" json:"backend"`

	CalendarID      string `yaml:"calendar_id" json:"calendar_id"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	TokenFile       string `yaml:"token_file" json:"token_file"`
	// AuthPort is the loopback port used by "assistant auth".
	AuthPort int `yaml:"auth_port" json:"auth_port"`

	ICSDir string `yaml:"ics_dir" json:"ics_dir"`
	// Organizer is written as ORGANIZER on generated invites.
	Organizer string `yaml:"organizer,omitempty" json:"organizer,omitempty"`

	// Subscriptions are read-only ICS feeds merged into the daily agenda.
	Subscriptions []SubscriptionConfig `yaml:"subscriptions,omitempty" json:"subscriptions,omitempty"`
	// CacheDir keeps the last good copy of each subscription.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// SubscriptionConfig describes a single ICS subscription source.
type SubscriptionConfig struct {
	// ID is an internal identifier used for logging.
	ID  string `yaml:"id" json:"id"`
	URL string `yaml:"url" json:"url"`
}

// EmailConfig configures the transactional email provider.
type EmailConfig struct {
	APIURL      string `yaml:"api_url" json:"api_url"`
	APIKey      string `yaml:"api_key,omitempty" json:"-"`
	SenderName  string `yaml:"sender_name" json:"sender_name"`
	SenderEmail string `yaml:"sender_email" json:"sender_email"`
}

// LLMConfig configures the optional language-model interpreter.
type LLMConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	BaseURL string `yaml:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key,omitempty" json:"-"`
	Model   string `yaml:"model" json:"model"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the command API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone all day references resolve in.
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// DefaultDurationMinutes applies when a command has no "for N minutes".
	DefaultDurationMinutes int `yaml:"default_duration_minutes" json:"default_duration_minutes"`

	// Contacts maps display names (case-insensitive) to email addresses.
	Contacts map[string]string `yaml:"contacts" json:"contacts"`

	Reminder ReminderConfig `yaml:"reminder" json:"reminder"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Email    EmailConfig    `yaml:"email" json:"email"`
	LLM      LLMConfig      `yaml:"llm" json:"llm"`

	// Listen, if set, serves the command API on this address.
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Contacts: map[string]string{},
		Reminder: ReminderConfig{At: "09:00"},
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "Africa/Addis_Ababa"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = 30
	}
	if c.Contacts == nil {
		c.Contacts = map[string]string{}
	}

	if c.Reminder.Message == "" {
		c.Reminder.Message = "Daily Reminder: Review your tasks and meetings for today."
	}
	if c.Reminder.Subject == "" {
		c.Reminder.Subject = "Daily Reminder"
	}

	c.Calendar.Backend = strings.ToLower(strings.TrimSpace(c.Calendar.Backend))
	if c.Calendar.Backend == "" {
		c.Calendar.Backend = BackendICS
	}
	if c.Calendar.CalendarID == "" {
		c.Calendar.CalendarID = "primary"
	}
	if c.Calendar.CredentialsFile == "" {
		c.Calendar.CredentialsFile = "./credentials.json"
	}
	if c.Calendar.TokenFile == "" {
		c.Calendar.TokenFile = "./token.json"
	}
	if c.Calendar.AuthPort == 0 {
		c.Calendar.AuthPort = 8080
	}
	if c.Calendar.ICSDir == "" {
		c.Calendar.ICSDir = "./var/events"
	}
	if c.Calendar.CacheDir == "" {
		c.Calendar.CacheDir = "./var/ics-cache"
	}
	for i := range c.Calendar.Subscriptions {
		if c.Calendar.Subscriptions[i].ID == "" {
			c.Calendar.Subscriptions[i].ID = fmt.Sprintf("feed-%d", i+1)
		}
	}

	if c.Email.APIURL == "" {
		c.Email.APIURL = "https://api.brevo.com/v3/smtp/email"
	}
	if c.Email.SenderName == "" {
		c.Email.SenderName = "Executive Assistant"
	}

	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-1.5-flash"
	}
}

// ApplyEnv overrides secrets from the environment so they need not live in
// the config file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BREVO_API_KEY"); v != "" {
		c.Email.APIKey = v
	}
	for _, name := range []string{"LLM_API_KEY", "GEMINI_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			c.LLM.APIKey = v
			break
		}
	}
}

// Validate reports the first setting the assistant cannot run with.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if c.Reminder.At != "" {
		if _, _, err := c.Reminder.Clock(); err != nil {
			return err
		}
	}
	switch c.Calendar.Backend {
	case BackendGoogle, BackendICS:
	default:
		return fmt.Errorf("calendar.backend %q: want %q or %q", c.Calendar.Backend, BackendGoogle, BackendICS)
	}
	for _, sub := range c.Calendar.Subscriptions {
		if !strings.HasPrefix(sub.URL, "http://") && !strings.HasPrefix(sub.URL, "https://") {
			return fmt.Errorf("calendar.subscriptions %s: url must be http(s)", sub.ID)
		}
	}
	if c.Calendar.AuthPort < 0 || c.Calendar.AuthPort > 65535 {
		return fmt.Errorf("calendar.auth_port %d out of range", c.Calendar.AuthPort)
	}
	if c.Reminder.EmailTo != "" && c.Email.SenderEmail == "" {
		return errors.New("reminder.email_to is set but email.sender_email is empty")
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		return errors.New("basic_auth needs both username and password")
	}
	return nil
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Clock parses At as a 24-hour "HH:MM".
func (r ReminderConfig) Clock() (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(r.At), ":")
	if !ok {
		return 0, 0, fmt.Errorf("reminder.at %q: want HH:MM", r.At)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("reminder.at %q: bad hour", r.At)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("reminder.at %q: bad minute", r.At)
	}
	return hour, minute, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is read and defaults are filled in.
//
// Environment overrides are applied after the file is written, so a first
// run never persists secrets taken from the environment.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".assistant-config-*.tmp")
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

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
