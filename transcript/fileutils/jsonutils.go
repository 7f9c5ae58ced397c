package fileutils

import "strings"

// ExtractJSONObject returns the span from the first '{' to the last '}' in s. Models often wrap
// their JSON in prose or markdown fences; the span is what is left once that is dropped.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
