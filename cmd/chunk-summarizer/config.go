package main

import (
	"errors"
	"strings"

	"github.com/theimaginaryfoundation/page-scribe/transcript"
	"github.com/theimaginaryfoundation/page-scribe/transcript/cli"
)

type Config struct {
	InPath    string
	OutPath   string
	IndexPath string
	MaxWords  int
	Overwrite bool

	cli.Common
}

func (c Config) Validate() error {
	if c.InPath == "" {
		return errors.New("missing -in")
	}
	if c.OutPath == "" {
		return errors.New("missing -out")
	}
	if c.MaxWords <= 0 {
		return errors.New("max-words must be > 0")
	}
	return c.Common.Validate()
}

func defaultConfig() Config {
	return Config{
		InPath:   "pages_text.json",
		OutPath:  "summary.txt",
		MaxWords: 1500,
		Common:   cli.DefaultCommon(transcript.ParseRaw),
	}
}

func indexPathFor(out string) string {
	return strings.TrimSuffix(out, ".txt") + ".index.jsonl"
}
