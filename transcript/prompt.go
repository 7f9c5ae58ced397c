package transcript

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ErrEmptyTemplate is returned when a prompt template is empty after trimming.
var ErrEmptyTemplate = errors.New("prompt template is empty")

// BuildPrompt substitutes every occurrence of placeholder in template with content, literally.
// content is neither escaped nor validated.
func BuildPrompt(template, placeholder, content string) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", ErrEmptyTemplate
	}
	if placeholder == "" {
		return "", errors.New("BuildPrompt: placeholder is empty")
	}
	return strings.ReplaceAll(template, placeholder, content), nil
}

// LoadTemplate reads a prompt template from path. When the file is missing and strict is false,
// fallback is returned instead; when strict is true a missing file is an error. An empty
// template is always an error, as is a template that does not contain placeholder.
func LoadTemplate(path, placeholder, fallback string, strict bool) (string, error) {
	tmpl := fallback
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			tmpl = string(b)
		case errors.Is(err, fs.ErrNotExist) && !strict:
			// Lenient: keep the embedded default.
		default:
			return "", fmt.Errorf("LoadTemplate: read %s: %w", path, err)
		}
	} else if strict {
		return "", errors.New("LoadTemplate: strict mode requires a prompt file")
	}

	if strings.TrimSpace(tmpl) == "" {
		return "", ErrEmptyTemplate
	}
	if placeholder != "" && !strings.Contains(tmpl, placeholder) {
		return "", fmt.Errorf("LoadTemplate: template does not contain placeholder %q", placeholder)
	}
	return tmpl, nil
}
