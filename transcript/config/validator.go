package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/theimaginaryfoundation/page-scribe/transcript/logger"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var parseModes = map[string]bool{"json": true, "lines": true, "auto": true, "raw": true}

func (f *File) Validate() []ValidationError {
	var errs []ValidationError

	switch strings.ToLower(f.Model.Backend) {
	case "", "ollama", "openai":
	case "gemini":
		if f.Model.APIKey == "" {
			errs = append(errs, ValidationError{Field: "model.api_key", Message: "gemini requires an API key (GEMINI_API_KEY)"})
		}
	default:
		errs = append(errs, ValidationError{Field: "model.backend", Message: fmt.Sprintf("unknown backend %q (ollama, openai, gemini)", f.Model.Backend)})
	}

	if t := f.Model.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, ValidationError{Field: "model.temperature", Message: "temperature must be between 0 and 2"})
	}
	if f.Model.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "model.timeout", Message: "timeout must be >= 0"})
	}
	for _, u := range []struct{ field, raw string }{
		{"model.base_url", f.Model.BaseURL},
		{"model.url", f.Model.URL},
		{"model.fallback_url", f.Model.FallbackURL},
	} {
		if u.raw != "" && !isHTTPURL(u.raw) {
			errs = append(errs, ValidationError{Field: u.field, Message: fmt.Sprintf("invalid http(s) URL %q", u.raw)})
		}
	}
	if f.Model.URL != "" && f.Model.Path == "" {
		errs = append(errs, ValidationError{Field: "model.path", Message: "model.url requires model.path"})
	}

	if f.Generation.MaxTokens < 0 {
		errs = append(errs, ValidationError{Field: "generation.max_tokens", Message: "max_tokens must be >= 0"})
	}
	if f.Generation.Delay < 0 {
		errs = append(errs, ValidationError{Field: "generation.delay", Message: "delay must be >= 0"})
	}
	if f.Generation.ParseMode != "" && !parseModes[f.Generation.ParseMode] {
		errs = append(errs, ValidationError{Field: "generation.parse_mode", Message: "parse_mode must be json, lines, auto or raw"})
	}
	if f.Generation.MaxPages < 0 {
		errs = append(errs, ValidationError{Field: "generation.max_pages", Message: "max_pages must be >= 0"})
	}
	if f.Generation.MaxWords < 0 {
		errs = append(errs, ValidationError{Field: "generation.max_words", Message: "max_words must be >= 0"})
	}

	if f.Prompt.Strict && f.Prompt.File == "" {
		errs = append(errs, ValidationError{Field: "prompt.file", Message: "strict prompt loading requires a prompt file"})
	}

	if f.Logging.Level != "" && !logger.ValidLevel(f.Logging.Level) {
		errs = append(errs, ValidationError{Field: "logging.level", Message: "level must be debug, info, warn or error"})
	}
	return errs
}

// Join folds validation errors into one error, or nil.
func Join(verrs []ValidationError) error {
	if len(verrs) == 0 {
		return nil
	}
	errs := make([]error, 0, len(verrs))
	for _, v := range verrs {
		errs = append(errs, v)
	}
	return errors.Join(errs...)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
