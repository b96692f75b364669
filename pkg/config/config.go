package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 587
)

// FileConfig is the optional local configuration file. It is JSON or YAML,
// chosen by extension.
type FileConfig struct {
	MailUser   string `yaml:"mail_user" json:"mail_user"`
	MailPass   string `yaml:"mail_pass" json:"mail_pass"`
	MailTo     string `yaml:"mail_to" json:"mail_to"`
	SMTPHost   string `yaml:"smtp_host" json:"smtp_host"`
	SMTPPort   int    `yaml:"smtp_port" json:"smtp_port"`
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`
}

type Config struct {
	// Files
	ProductsFile string
	HistoryFile  string
	MailTemplate string
	ConfigFile   string

	// Fetching
	PriceSelector string
	UserAgent     string
	FetchTimeout  time.Duration
	Fetcher       string

	// Run options
	Persist bool
	Notify  bool

	// Persistence
	Stores          []string
	SnapshotDir     string
	DatabaseURL     string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	// Run lock
	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration

	// Notification
	SMTPHost   string
	SMTPPort   int
	WebhookURL string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	File FileConfig
}

// Load reads .env (if present), the config file (if present) and the
// environment. Environment values win over the file, the file over defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := envStr("CONFIG_FILE", "config.json")
	file, err := ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{
		ProductsFile: envStr("PRODUCTS_FILE", "products.csv"),
		HistoryFile:  envStr("HISTORY_FILE", "prices.csv"),
		MailTemplate: envStr("MAIL_TEMPLATE", ""),
		ConfigFile:   path,

		PriceSelector: envStr("PRICE_SELECTOR", ".price_color"),
		UserAgent:     envStr("USER_AGENT", ""),
		FetchTimeout:  envSeconds("FETCH_TIMEOUT_SECONDS", 20),
		Fetcher:       strings.ToLower(envStr("FETCHER", "http")),

		Persist: envBool("PERSIST", true),
		Notify:  envBool("NOTIFY", true),

		Stores:          envList("STORE", []string{"csv"}),
		SnapshotDir:     envStr("SNAPSHOT_DIR", "data"),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		MongoURI:        envStr("MONGO_URI", ""),
		MongoDatabase:   envStr("MONGO_DATABASE", "price_alert"),
		MongoCollection: envStr("MONGO_COLLECTION", "observations"),

		RedisAddr:     envStr("REDIS_ADDR", ""),
		RedisPassword: envStr("REDIS_PASSWORD", ""),
		LockTTL:       envSeconds("LOCK_TTL_SECONDS", 30*60),

		SMTPHost:   envStr("SMTP_HOST", or(file.SMTPHost, DefaultSMTPHost)),
		SMTPPort:   envInt("SMTP_PORT", orInt(file.SMTPPort, DefaultSMTPPort)),
		WebhookURL: envStr("WEBHOOK_URL", file.WebhookURL),

		LogLevel:  strings.ToLower(envStr("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(envStr("LOG_FORMAT", "text")),
		LogFile:   envStr("LOG_FILE", "tracker.log"),

		File: file,
	}

	return cfg, nil
}

// ReadFile parses a config file. A missing file returns fs.ErrNotExist and a
// zero FileConfig.
func ReadFile(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return fc, fs.ErrNotExist
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &fc)
	} else {
		err = yaml.Unmarshal(data, &fc)
	}
	if err != nil {
		return FileConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

var knownStores = map[string]bool{"csv": true, "snapshot": true, "postgres": true, "mongo": true}

func (c *Config) Validate() error {
	var errs []string

	if c.ProductsFile == "" {
		errs = append(errs, "PRODUCTS_FILE is required")
	}
	if c.Fetcher != "http" && c.Fetcher != "browser" {
		errs = append(errs, fmt.Sprintf("FETCHER must be http or browser, got %q", c.Fetcher))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, "FETCH_TIMEOUT_SECONDS must be positive")
	}
	for _, s := range c.Stores {
		if !knownStores[s] {
			errs = append(errs, fmt.Sprintf("unknown STORE %q", s))
		}
	}
	if c.HasStore("csv") && c.HistoryFile == "" {
		errs = append(errs, "HISTORY_FILE is required for the csv store")
	}
	if c.HasStore("postgres") && c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required for the postgres store")
	}
	if c.HasStore("mongo") && c.MongoURI == "" {
		errs = append(errs, "MONGO_URI is required for the mongo store")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		errs = append(errs, fmt.Sprintf("SMTP_PORT %d out of range", c.SMTPPort))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) HasStore(name string) bool {
	for _, s := range c.Stores {
		if s == name {
			return true
		}
	}
	return false
}

// Credentials resolves the mail credentials from the process environment
// and the config file.
func (c *Config) Credentials() (Credentials, error) {
	return ResolveCredentials(os.LookupEnv, c.File)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func orInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}
