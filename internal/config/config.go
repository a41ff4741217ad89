// Package config handles application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"red_bot/internal/model"
)

// Default size ceiling for downloaded media: 50 MiB.
const defaultMaxMediaBytes = 50 * 1048576

// PatternSet holds the URL suffixes and prefixes matched for one media kind.
type PatternSet struct {
	Suffixes []string `yaml:"suffixes"`
	Prefixes []string `yaml:"prefixes"`
}

// Patterns holds the URL classification tables.
type Patterns struct {
	Image PatternSet `yaml:"image"`
	Video PatternSet `yaml:"video"`
}

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string  `yaml:"telegram_bot_token" envconfig:"TELEGRAM_BOT_TOKEN"`
	DatabasePath     string  `yaml:"database_path" envconfig:"DATABASE_PATH"`
	LogLevel         string  `yaml:"log_level" envconfig:"LOG_LEVEL"`
	AllowedChats     []int64 `yaml:"allowed_chats" envconfig:"ALLOWED_CHATS"`

	// ScratchDir is the shared directory for in-flight media downloads.
	ScratchDir string `yaml:"scratch_dir" envconfig:"SCRATCH_DIR"`
	// MaxMediaBytes is the delivery size ceiling; a file exactly at the
	// ceiling is still deliverable.
	MaxMediaBytes          int64 `yaml:"max_media_bytes"`
	DownloadTimeoutSeconds int   `yaml:"download_timeout_seconds"`
	// MaxUploadBytes caps uploaded preference documents.
	MaxUploadBytes int `yaml:"max_upload_bytes"`
	// SkipSelfPosts drops text-only self entries from listings.
	SkipSelfPosts bool `yaml:"skip_self_posts" envconfig:"SKIP_SELF_POSTS"`

	Sources   model.CatSources `yaml:"sources"`
	Patterns  Patterns         `yaml:"patterns"`
	PageSizes []int            `yaml:"page_sizes"`
}

// Load reads configuration from the YAML file at path (optional, "" skips
// it), applies environment variable overrides, and fills in defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "./data/bot.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = "/tmp/red_fetch"
	}
	if cfg.MaxMediaBytes <= 0 {
		cfg.MaxMediaBytes = defaultMaxMediaBytes
	}
	if cfg.DownloadTimeoutSeconds <= 0 {
		cfg.DownloadTimeoutSeconds = 120
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20000
	}
	if len(cfg.PageSizes) == 0 {
		cfg.PageSizes = []int{1, 2, 3, 5, 7, 10, 20, 40}
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = model.CatSources{
			"News": {"news", "worldnews", "technology"},
			"Pics": {"pics", "EarthPorn", "itookapicture"},
			"Vids": {"videos", "gifs"},
			"Fun":  {"funny", "aww"},
		}
	}
	if len(cfg.Patterns.Video.Suffixes) == 0 && len(cfg.Patterns.Video.Prefixes) == 0 {
		cfg.Patterns.Video = PatternSet{
			Suffixes: []string{".mp4", ".gifv", ".webm"},
			Prefixes: []string{
				"https://v.redd.it/",
				"https://www.youtube.com/",
				"https://youtu.be/",
			},
		}
	}
	if len(cfg.Patterns.Image.Suffixes) == 0 && len(cfg.Patterns.Image.Prefixes) == 0 {
		cfg.Patterns.Image = PatternSet{
			Suffixes: []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
			Prefixes: []string{
				"https://i.redd.it/",
				"https://i.imgur.com/",
			},
		}
	}
}

// IsChatAllowed checks whether a chat ID is in the allow list.
// Returns true if the allow list is empty (all chats permitted).
func (c *Config) IsChatAllowed(chatID int64) bool {
	if len(c.AllowedChats) == 0 {
		return true
	}
	for _, id := range c.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}

// Categories returns the default category labels in sorted order.
func (c *Config) Categories() []string {
	cats := make([]string, 0, len(c.Sources))
	for cat := range c.Sources {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}
