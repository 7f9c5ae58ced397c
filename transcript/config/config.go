// Package config loads the optional YAML settings file shared by the pipeline tools.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBudget is the wall-clock ceiling used when neither a flag nor the file sets one.
const DefaultBudget = 5*time.Hour + 30*time.Minute

// File mirrors the YAML settings file. Every field is optional; command-line flags win over it.
type File struct {
	Model struct {
		Backend     string        `yaml:"backend"`
		Name        string        `yaml:"name"`
		BaseURL     string        `yaml:"base_url"`
		APIKey      string        `yaml:"api_key"`
		Temperature *float64      `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
		Path        string        `yaml:"path"`
		URL         string        `yaml:"url"`
		FallbackURL string        `yaml:"fallback_url"`
	} `yaml:"model"`

	Generation struct {
		MaxTokens int `yaml:"max_tokens"`
		// Budget is a pointer so that an explicit 0 ("run nothing") differs from unset.
		Budget    *time.Duration `yaml:"budget"`
		Delay     time.Duration  `yaml:"delay"`
		ParseMode string         `yaml:"parse_mode"`
		MaxPages  int            `yaml:"max_pages"`
		MaxWords  int            `yaml:"max_words"`
	} `yaml:"generation"`

	Prompt struct {
		File   string `yaml:"file"`
		Strict bool   `yaml:"strict"`
	} `yaml:"prompt"`

	Delivery struct {
		TelegramToken  string `yaml:"telegram_token"`
		TelegramChatID string `yaml:"telegram_chat_id"`
		ArchiveDir     string `yaml:"archive_dir"`
	} `yaml:"delivery"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Load reads path (when non-empty), merges the environment and fills defaults.
func Load(path string) (*File, error) {
	f, err := Read(path)
	if err != nil {
		return nil, err
	}
	applyDefaults(f)
	return f, nil
}

// Read reads path (when non-empty) and merges the environment, without defaults.
func Read(path string) (*File, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	f.MergeEnv()
	return f, nil
}

// ReadFile parses path only. An empty path yields a zero File. Tools use it to overlay file
// values onto flags that were not set explicitly, then call MergeEnv once the backend is known.
func ReadFile(path string) (*File, error) {
	f := &File{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return f, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none) into the process
// environment. Missing files are ignored; variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

func applyDefaults(f *File) {
	if f.Model.Backend == "" {
		f.Model.Backend = "ollama"
	}
	if f.Model.Name == "" {
		f.Model.Name = "llama3"
	}
	if f.Generation.MaxTokens == 0 {
		f.Generation.MaxTokens = 1024
	}
	if f.Generation.Budget == nil {
		b := DefaultBudget
		f.Generation.Budget = &b
	}
	if f.Generation.Delay == 0 {
		f.Generation.Delay = 2 * time.Second
	}
	if f.Generation.MaxWords == 0 {
		f.Generation.MaxWords = 1500
	}
	if f.Logging.Level == "" {
		f.Logging.Level = "info"
	}
}

// MergeEnv fills endpoint and credential fields from the environment. Endpoint variables are
// chosen by f.Model.Backend.
func (f *File) MergeEnv() {
	backend := strings.ToLower(strings.TrimSpace(f.Model.Backend))
	switch backend {
	case "", "ollama":
		if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
			f.Model.BaseURL = v
		}
	case "openai":
		if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
			f.Model.BaseURL = v
		}
		if v := os.Getenv("OPENAI_API_KEY"); v != "" && f.Model.APIKey == "" {
			f.Model.APIKey = v
		}
	case "gemini":
		if v := os.Getenv("GEMINI_API_KEY"); v != "" && f.Model.APIKey == "" {
			f.Model.APIKey = v
		}
	}

	if v := firstEnv("TELEGRAM_BOT_TOKEN", "TOKEN"); v != "" {
		f.Delivery.TelegramToken = v
	}
	if v := firstEnv("TELEGRAM_CHAT_ID", "C_ID"); v != "" {
		f.Delivery.TelegramChatID = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
