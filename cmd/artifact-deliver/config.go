package main

import (
	"errors"
	"time"

	"github.com/theimaginaryfoundation/page-scribe/transcript/logger"
)

type Config struct {
	FilePath   string
	ConfigPath string
	EnvFile    string

	TelegramToken  string
	TelegramChatID string
	TelegramURL    string
	ArchiveDir     string
	Overwrite      bool
	Timeout        time.Duration

	LookupChatID bool
	LogLevel     string
}

func (c Config) Validate() error {
	if c.LookupChatID {
		if c.TelegramToken == "" {
			return errors.New("-lookup-chat-id requires a bot token (-telegram-token or TELEGRAM_BOT_TOKEN)")
		}
		return nil
	}
	if c.FilePath == "" {
		return errors.New("missing -file")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be >= 0")
	}
	if !logger.ValidLevel(c.LogLevel) {
		return errors.New("unknown -log-level")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		FilePath:  "output.json",
		EnvFile:   ".env",
		Overwrite: true,
		Timeout:   2 * time.Minute,
		LogLevel:  "info",
	}
}
