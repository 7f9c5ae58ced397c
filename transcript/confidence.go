package transcript

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	minConfidence = 1
	maxConfidence = 10
)

var leadingNumber = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)

type confidenceFix struct {
	path  string
	value int
}

// normalizeConfidence rewrites every "confidence" member of a JSON document to an integer in
// [1, 10]. Numbers are rounded and clamped, strings like "7" or "8/10" are read by their leading
// number, anything else is left as is. The rest of the document is untouched.
func normalizeConfidence(raw string) string {
	var fixes []confidenceFix
	collectConfidence(gjson.Parse(raw), "", &fixes)
	for _, f := range fixes {
		out, err := sjson.SetRaw(raw, f.path, strconv.Itoa(f.value))
		if err != nil {
			continue
		}
		raw = out
	}
	return raw
}

func collectConfidence(r gjson.Result, prefix string, fixes *[]confidenceFix) {
	switch {
	case r.IsObject():
		r.ForEach(func(k, v gjson.Result) bool {
			name := k.String()
			path := joinPath(prefix, escapePathKey(name))
			if name == "confidence" {
				if n, ok := coerceConfidence(v); ok && v.Raw != strconv.Itoa(n) {
					*fixes = append(*fixes, confidenceFix{path: path, value: n})
				}
				return true
			}
			collectConfidence(v, path, fixes)
			return true
		})
	case r.IsArray():
		i := 0
		r.ForEach(func(_, v gjson.Result) bool {
			collectConfidence(v, joinPath(prefix, strconv.Itoa(i)), fixes)
			i++
			return true
		})
	}
}

func coerceConfidence(v gjson.Result) (int, bool) {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		m := leadingNumber.FindStringSubmatch(v.Str)
		if m == nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	n := int(math.Round(f))
	if n < minConfidence {
		n = minConfidence
	}
	if n > maxConfidence {
		n = maxConfidence
	}
	return n, true
}

func joinPath(prefix, part string) string {
	if prefix == "" {
		return part
	}
	return prefix + "." + part
}

// escapePathKey escapes the characters gjson/sjson treat as path syntax.
func escapePathKey(key string) string {
	if !strings.ContainsAny(key, `.*?|#@!\`) {
		return key
	}
	var b strings.Builder
	for _, r := range key {
		if strings.ContainsRune(`.*?|#@!\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
