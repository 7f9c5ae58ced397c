package transcript

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// RecordKind tells which shape a Record has.
type RecordKind string

const (
	// KindJSON is a parsed JSON value, usually speaker -> {text, tone, confidence}.
	KindJSON RecordKind = "json"
	// KindLine is a single {speaker: text} pair from the heuristic line parser.
	KindLine RecordKind = "line"
	// KindRaw is {"raw_output": completion}, used when nothing else parsed.
	KindRaw RecordKind = "raw"
	// KindError is {"error": message} for an item whose generation failed.
	KindError RecordKind = "error"
)

const (
	// NarratorMarker tags narration lines in heuristic transcripts.
	NarratorMarker = "**Narrator:**"
	// Narrator is the label given to NarratorMarker lines.
	Narrator = "Narrator"
	// FallbackSpeaker labels lines that carry neither the narrator marker nor a colon.
	FallbackSpeaker = "Unknown"
)

// ToneLine is one speaker line as the transcript prompt asks the model to emit it.
type ToneLine struct {
	Text       string `json:"text" jsonschema:"description=Verbatim line or description from the page"`
	Tone       string `json:"tone" jsonschema:"description=Most likely emotional tone (angry, sad, happy, frustrated, neutral, ...)"`
	Confidence int    `json:"confidence" jsonschema:"minimum=1,maximum=10,description=Confidence in the tone label from 1 to 10"`
}

// Record is the normalized output unit for one processed item (or one line of it).
// It marshals to its JSON body.
type Record struct {
	Kind  RecordKind
	Label string // KindLine only
	Text  string // line text, raw completion or error message
	Body  json.RawMessage
}

func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Body) == 0 {
		return []byte("null"), nil
	}
	return r.Body, nil
}

// LineRecord builds {label: text}.
func LineRecord(label, text string) Record {
	return Record{Kind: KindLine, Label: label, Text: text, Body: singleKey(label, text)}
}

// RawRecord builds {"raw_output": completion}.
func RawRecord(completion string) Record {
	return Record{Kind: KindRaw, Text: completion, Body: singleKey("raw_output", completion)}
}

// ErrorRecord builds {"error": message}.
func ErrorRecord(message string) Record {
	return Record{Kind: KindError, Text: message, Body: singleKey("error", message)}
}

// JSONRecord wraps an already valid JSON value.
func JSONRecord(raw string) Record {
	return Record{Kind: KindJSON, Body: json.RawMessage(raw)}
}

func singleKey(key, value string) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// A map with string keys and values cannot fail to encode.
	_ = enc.Encode(map[string]string{key: value})
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n"))
}

// Speakers lists the speaker labels a record attributes text to, in order of appearance.
// JSON records contribute the keys of a top-level object, or of each object in a top-level array.
func (r Record) Speakers() []string {
	switch r.Kind {
	case KindLine:
		return []string{r.Label}
	case KindJSON:
		res := gjson.ParseBytes(r.Body)
		var out []string
		collect := func(obj gjson.Result) {
			obj.ForEach(func(k, _ gjson.Result) bool {
				out = append(out, k.String())
				return true
			})
		}
		switch {
		case res.IsObject():
			if res.Get("text").Exists() {
				// A bare ToneLine, no speaker attached.
				return nil
			}
			collect(res)
		case res.IsArray():
			res.ForEach(func(_, v gjson.Result) bool {
				if v.IsObject() {
					collect(v)
				}
				return true
			})
		}
		return out
	default:
		return nil
	}
}

// Render formats the record for plain-text output.
func (r Record) Render() string {
	switch r.Kind {
	case KindLine:
		return r.Label + ": " + r.Text
	case KindRaw:
		return strings.TrimSpace(r.Text)
	case KindError:
		return "[error] " + r.Text
	default:
		return string(r.Body)
	}
}
