package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/theimaginaryfoundation/page-scribe/transcript/fileutils"
	"github.com/tidwall/gjson"
)

// ParseMode selects the strategy chain used to structure completions. It is fixed for a run.
type ParseMode string

const (
	ParseJSON  ParseMode = "json"  // strict JSON, else raw
	ParseLines ParseMode = "lines" // heuristic speaker lines, else raw
	ParseAuto  ParseMode = "auto"  // JSON, else lines, else raw
	ParseRaw   ParseMode = "raw"   // raw only
)

// ParseModes lists the accepted ParseMode values.
func ParseModes() []ParseMode {
	return []ParseMode{ParseJSON, ParseLines, ParseAuto, ParseRaw}
}

// Strategy turns a completion into records. ok=false means "not my format"; it never errors.
type Strategy interface {
	Name() string
	Parse(completion, key string) (records []Record, ok bool)
}

// Structurer tries its strategies in order and returns the first success. The last strategy
// is always RawStrategy, so Structure never fails.
type Structurer struct {
	strategies []Strategy
}

// NewStructurer builds the strategy chain for mode.
func NewStructurer(mode ParseMode) (Structurer, error) {
	switch mode {
	case ParseJSON:
		return NewStructurerFromStrategies(JSONStrategy{}), nil
	case ParseLines:
		return NewStructurerFromStrategies(LineStrategy{}), nil
	case ParseAuto:
		return NewStructurerFromStrategies(JSONStrategy{}, LineStrategy{}), nil
	case ParseRaw:
		return NewStructurerFromStrategies(), nil
	default:
		return Structurer{}, fmt.Errorf("unknown parse mode %q (want one of %v)", mode, ParseModes())
	}
}

// NewStructurerFromStrategies appends RawStrategy to the given chain.
func NewStructurerFromStrategies(strategies ...Strategy) Structurer {
	chain := append([]Strategy(nil), strategies...)
	return Structurer{strategies: append(chain, RawStrategy{})}
}

// Structure converts one completion for item key into records.
func (s Structurer) Structure(completion, key string) []Record {
	if len(s.strategies) == 0 {
		return []Record{RawRecord(completion)}
	}
	for _, st := range s.strategies {
		if recs, ok := st.Parse(completion, key); ok {
			return recs
		}
	}
	// Unreachable: RawStrategy always succeeds.
	return []Record{RawRecord(completion)}
}

// Names lists the chain, e.g. "json>raw".
func (s Structurer) Names() string {
	names := make([]string, 0, len(s.strategies))
	for _, st := range s.strategies {
		names = append(names, st.Name())
	}
	return strings.Join(names, ">")
}

// JSONStrategy parses the completion as JSON. A completion that is not valid JSON as a whole is
// retried on its first '{' ... last '}' span. When the value is an object holding key, that
// member is unwrapped and becomes the record.
type JSONStrategy struct{}

func (JSONStrategy) Name() string { return "json" }

func (JSONStrategy) Parse(completion, key string) ([]Record, bool) {
	s := strings.TrimSpace(completion)
	if !validJSON(s) {
		sub, ok := fileutils.ExtractJSONObject(s)
		if !ok || !validJSON(sub) {
			return nil, false
		}
		s = sub
	}

	res := gjson.Parse(s)
	body := res.Raw
	if res.IsObject() && key != "" {
		res.ForEach(func(k, v gjson.Result) bool {
			if k.String() == key {
				body = v.Raw
				return false
			}
			return true
		})
	}
	return []Record{JSONRecord(normalizeConfidence(body))}, true
}

// validJSON accepts only what the document writer can marshal back: gjson is more lenient
// than encoding/json about nesting depth and does not check UTF-8.
func validJSON(s string) bool {
	return utf8.ValidString(s) && gjson.Valid(s) && json.Valid([]byte(s))
}

// LineStrategy reads one speaker line per non-blank completion line:
//
//	**Narrator:** It was dark.   -> {"Narrator": "It was dark."}
//	John: Wait: really?          -> {"John": "Wait: really?"}   (first colon only)
//	a line with neither          -> {"Unknown": "a line with neither"}
type LineStrategy struct{}

func (LineStrategy) Name() string { return "lines" }

func (LineStrategy) Parse(completion, _ string) ([]Record, bool) {
	var out []Record
	for _, line := range strings.Split(completion, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, parseLine(line))
	}
	return out, len(out) > 0
}

func parseLine(line string) Record {
	if strings.HasPrefix(line, NarratorMarker) {
		return LineRecord(Narrator, strings.TrimSpace(strings.TrimPrefix(line, NarratorMarker)))
	}
	label, text, ok := strings.Cut(line, ":")
	if !ok {
		return LineRecord(FallbackSpeaker, line)
	}
	// "**John:** hi" splits into "**John" and "** hi"; drop the bold markers around the label.
	label = strings.TrimSpace(strings.Trim(strings.TrimSpace(label), "*"))
	text = strings.TrimSpace(text)
	text = strings.TrimSpace(strings.TrimPrefix(text, "**"))
	if label == "" {
		label = FallbackSpeaker
	}
	return LineRecord(label, text)
}

// RawStrategy always succeeds with {"raw_output": completion}.
type RawStrategy struct{}

func (RawStrategy) Name() string { return "raw" }

func (RawStrategy) Parse(completion, _ string) ([]Record, bool) {
	return []Record{RawRecord(completion)}, true
}
