package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"
)

var allStages = []string{"transcribe", "summarize", "deliver"}

type Config struct {
	InPath     string
	BaseDir    string
	ConfigPath string

	Backend  string
	Model    string
	MaxPages int
	MaxWords int
	// Budget is passed through to each generating stage; empty keeps the tool's default.
	Budget string

	ArchiveDir string

	FromStage string
	OnlyStage string

	Pretty    bool
	Overwrite bool
}

func (c Config) Validate() error {
	if c.InPath == "" {
		return errors.New("missing -in")
	}
	if c.BaseDir == "" {
		return errors.New("missing -base-dir")
	}
	if c.MaxPages < 0 || c.MaxWords < 0 {
		return errors.New("max-pages/max-words must be >= 0")
	}
	if c.Budget != "" {
		if _, err := time.ParseDuration(c.Budget); err != nil {
			return fmt.Errorf("invalid -budget: %w", err)
		}
	}
	if c.OnlyStage != "" && c.FromStage != "" {
		return errors.New("use only one of -only-stage or -from-stage")
	}
	for _, s := range []string{c.OnlyStage, c.FromStage} {
		if s != "" && !slices.Contains(allStages, s) {
			return fmt.Errorf("unknown stage %q (transcribe|summarize|deliver)", s)
		}
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		InPath:  "pages_text.json",
		BaseDir: filepath.FromSlash("out"),
		Pretty:  true,
	}
}
