package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/theimaginaryfoundation/page-scribe/transcript/config"
	"github.com/theimaginaryfoundation/page-scribe/transcript/delivery"
	"github.com/theimaginaryfoundation/page-scribe/transcript/fileutils"
	"github.com/theimaginaryfoundation/page-scribe/transcript/logger"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.NewWithWriter(cfg.LogLevel, os.Stderr)
	if err := run(ctx, cfg, log, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, log logger.Logger, stdout io.Writer) error {
	tg := delivery.Telegram{
		Token:   cfg.TelegramToken,
		ChatID:  cfg.TelegramChatID,
		BaseURL: cfg.TelegramURL,
		Client:  &http.Client{Timeout: cfg.Timeout},
	}

	if cfg.LookupChatID {
		id, err := tg.LookupChatID(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "chat_id=%s\n", id)
		return nil
	}

	if !fileutils.FileExists(cfg.FilePath) {
		return fmt.Errorf("artifact %s not found", cfg.FilePath)
	}
	var targets []delivery.Deliverer
	if cfg.ArchiveDir != "" {
		targets = append(targets, delivery.ArchiveDir{Dir: cfg.ArchiveDir, Overwrite: cfg.Overwrite})
	}
	targets = append(targets, tg)

	results := delivery.DeliverAll(ctx, log, cfg.FilePath, targets...)
	delivered, failed := 0, 0
	for _, r := range results {
		switch {
		case r.Err == nil:
			delivered++
		case !errors.Is(r.Err, delivery.ErrNotConfigured):
			failed++
		}
	}

	fmt.Fprintf(stdout, "delivered=%d failed=%d file=%s\n", delivered, failed, cfg.FilePath)
	if failed > 0 {
		return fmt.Errorf("%d delivery target(s) failed", failed)
	}
	if delivered == 0 {
		return errors.New("no delivery target configured (-archive-dir, or a Telegram token and chat id)")
	}
	return nil
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()

	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.FilePath, "file", cfg.FilePath, "Artifact to deliver")
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Optional YAML settings file (delivery and logging sections)")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Dotenv file loaded before reading the environment (missing file is ignored)")
	fs.StringVar(&cfg.TelegramToken, "telegram-token", cfg.TelegramToken, "Telegram bot token (defaults to TELEGRAM_BOT_TOKEN or TOKEN)")
	fs.StringVar(&cfg.TelegramChatID, "telegram-chat-id", cfg.TelegramChatID, "Telegram chat id (defaults to TELEGRAM_CHAT_ID or C_ID)")
	fs.StringVar(&cfg.TelegramURL, "telegram-url", cfg.TelegramURL, "Bot API endpoint override")
	fs.StringVar(&cfg.ArchiveDir, "archive-dir", cfg.ArchiveDir, "Directory the artifact is copied into")
	fs.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "Replace an existing copy in -archive-dir")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP timeout per Bot API call")
	fs.BoolVar(&cfg.LookupChatID, "lookup-chat-id", cfg.LookupChatID, "Print the chat id of the bot's latest update and exit")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.EnvFile != "" {
		if err := config.LoadDotEnv(cfg.EnvFile); err != nil {
			return Config{}, err
		}
	}
	f, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	if !set["telegram-token"] && f.Delivery.TelegramToken != "" {
		cfg.TelegramToken = f.Delivery.TelegramToken
	}
	if !set["telegram-chat-id"] && f.Delivery.TelegramChatID != "" {
		cfg.TelegramChatID = f.Delivery.TelegramChatID
	}
	if !set["archive-dir"] && f.Delivery.ArchiveDir != "" {
		cfg.ArchiveDir = f.Delivery.ArchiveDir
	}
	if !set["log-level"] && f.Logging.Level != "" {
		cfg.LogLevel = f.Logging.Level
	}

	if cfg.FilePath != "" {
		cfg.FilePath = filepath.Clean(cfg.FilePath)
	}
	return cfg, nil
}
