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
	CastPath  string
	IndexPath string

	Pretty         bool
	Flat           bool
	FlushEveryItem bool

	cli.Common
}

func (c Config) Validate() error {
	if c.InPath == "" {
		return errors.New("missing -in")
	}
	if c.OutPath == "" {
		return errors.New("missing -out")
	}
	return c.Common.Validate()
}

func defaultConfig() Config {
	return Config{
		InPath:  "pages_text.json",
		OutPath: "output.json",
		Pretty:  true,
		Common:  cli.DefaultCommon(transcript.ParseJSON),
	}
}

// sidecar derives "<out minus .json>.<suffix>" next to the output document.
func sidecar(out, suffix string) string {
	return strings.TrimSuffix(out, ".json") + "." + suffix
}
