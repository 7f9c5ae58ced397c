package transcript

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

func assertJSONEqual(t *testing.T, got []byte, want string) {
	t.Helper()
	var g, w any
	if err := json.Unmarshal(got, &g); err != nil {
		t.Fatalf("unmarshal got %s: %v", got, err)
	}
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("unmarshal want %s: %v", want, err)
	}
	if !reflect.DeepEqual(g, w) {
		t.Fatalf("json mismatch\n got: %s\nwant: %s", got, want)
	}
}

func mustStructurer(t *testing.T, mode ParseMode) Structurer {
	t.Helper()
	s, err := NewStructurer(mode)
	if err != nil {
		t.Fatalf("NewStructurer(%s): %v", mode, err)
	}
	return s
}

func TestStructure_JSONUnwrapsPageKey(t *testing.T) {
	t.Parallel()

	completion := `{"page_1": {"Narrator": {"text": "Hi", "tone": "neutral", "confidence": 5}}}`
	recs := mustStructurer(t, ParseJSON).Structure(completion, "page_1")
	if len(recs) != 1 || recs[0].Kind != KindJSON {
		t.Fatalf("recs=%+v", recs)
	}
	assertJSONEqual(t, recs[0].Body, `{"Narrator": {"text": "Hi", "tone": "neutral", "confidence": 5}}`)
}

func TestStructure_JSONKeepsWholeValueWithoutPageKey(t *testing.T) {
	t.Parallel()

	completion := `{"Narrator": {"text": "Hi", "tone": "neutral", "confidence": 5}}`
	recs := mustStructurer(t, ParseJSON).Structure(completion, "page_9")
	assertJSONEqual(t, recs[0].Body, completion)
}

func TestStructure_JSONFallsBackToRaw(t *testing.T) {
	t.Parallel()

	recs := mustStructurer(t, ParseJSON).Structure("not json", "page_1")
	if len(recs) != 1 || recs[0].Kind != KindRaw {
		t.Fatalf("recs=%+v", recs)
	}
	if got := string(recs[0].Body); got != `{"raw_output":"not json"}` {
		t.Fatalf("body=%s", got)
	}
}

func TestStructure_JSONRejectsWhatTheWriterCannotMarshal(t *testing.T) {
	t.Parallel()

	deep := strings.Repeat("[", 10001) + strings.Repeat("]", 10001)
	for name, completion := range map[string]string{
		"too deep":     `{"page_1": ` + deep + `}`,
		"invalid utf8": "{\"page_1\": [{\"Mara\": {\"text\": \"caf\xe9\"}}]}",
	} {
		recs := mustStructurer(t, ParseJSON).Structure(completion, "page_1")
		if len(recs) != 1 || recs[0].Kind != KindRaw {
			t.Fatalf("%s: kind=%s, want raw", name, recs[0].Kind)
		}
		if !json.Valid(recs[0].Body) || !utf8.Valid(recs[0].Body) {
			t.Fatalf("%s: raw body is not writable JSON", name)
		}
	}
}

func TestStructure_JSONInsideProse(t *testing.T) {
	t.Parallel()

	completion := "Sure! Here it is:\n```json\n{\"page_2\": {\"Mara\": {\"text\": \"Go.\", \"tone\": \"angry\", \"confidence\": 9}}}\n```"
	recs := mustStructurer(t, ParseJSON).Structure(completion, "page_2")
	if recs[0].Kind != KindJSON {
		t.Fatalf("kind=%s, want json", recs[0].Kind)
	}
	assertJSONEqual(t, recs[0].Body, `{"Mara": {"text": "Go.", "tone": "angry", "confidence": 9}}`)
}

func TestStructure_LinesSplitNarratorAndSpeakers(t *testing.T) {
	t.Parallel()

	recs := mustStructurer(t, ParseLines).Structure("**Narrator:** It was dark.\nJohn: Where are we?", "page_1")
	b, err := json.Marshal(recs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	assertJSONEqual(t, b, `[{"Narrator": "It was dark."}, {"John": "Where are we?"}]`)
}

func TestStructure_LinesSplitOnFirstColonOnly(t *testing.T) {
	t.Parallel()

	recs := mustStructurer(t, ParseLines).Structure("John: Wait: really?", "")
	if len(recs) != 1 {
		t.Fatalf("len(recs)=%d", len(recs))
	}
	assertJSONEqual(t, recs[0].Body, `{"John": "Wait: really?"}`)
}

func TestStructure_LinesFallbackAndBlankLines(t *testing.T) {
	t.Parallel()

	recs := mustStructurer(t, ParseLines).Structure("\n  \nThe door creaked\r\n**Mara:** Quiet.\n", "")
	if len(recs) != 2 {
		t.Fatalf("len(recs)=%d, want 2", len(recs))
	}
	if recs[0].Label != FallbackSpeaker || recs[0].Text != "The door creaked" {
		t.Fatalf("rec0=%+v", recs[0])
	}
	if recs[1].Label != "Mara" || recs[1].Text != "Quiet." {
		t.Fatalf("rec1=%+v", recs[1])
	}
}

func TestStructure_LinesOnBlankCompletionFallsBackToRaw(t *testing.T) {
	t.Parallel()

	recs := mustStructurer(t, ParseLines).Structure(" \n ", "")
	if len(recs) != 1 || recs[0].Kind != KindRaw {
		t.Fatalf("recs=%+v", recs)
	}
}

func TestStructure_AutoTriesJSONThenLines(t *testing.T) {
	t.Parallel()

	s := mustStructurer(t, ParseAuto)
	if s.Names() != "json>lines>raw" {
		t.Fatalf("Names=%s", s.Names())
	}
	if recs := s.Structure(`{"A": {"text": "x", "tone": "sad", "confidence": 3}}`, "p"); recs[0].Kind != KindJSON {
		t.Fatalf("kind=%s, want json", recs[0].Kind)
	}
	if recs := s.Structure("A: hello", "p"); recs[0].Kind != KindLine {
		t.Fatalf("kind=%s, want line", recs[0].Kind)
	}
}

func TestStructure_RawModeNeverParses(t *testing.T) {
	t.Parallel()

	recs := mustStructurer(t, ParseRaw).Structure(`{"a": 1}`, "a")
	if len(recs) != 1 || recs[0].Kind != KindRaw || recs[0].Text != `{"a": 1}` {
		t.Fatalf("recs=%+v", recs)
	}
	if _, err := NewStructurer("yaml"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestStructure_NormalizesConfidence(t *testing.T) {
	t.Parallel()

	completion := `{"page_3": {
		"A": {"text": "x", "tone": "sad", "confidence": "8/10"},
		"B": {"text": "y", "tone": "happy", "confidence": 14.6},
		"C": {"text": "z", "tone": "calm", "confidence": "high"},
		"Mr. Smith": {"text": "w", "tone": "neutral", "confidence": 0},
		"D": [{"text": "v", "confidence": 6.5}]
	}}`
	recs := mustStructurer(t, ParseJSON).Structure(completion, "page_3")
	body := string(recs[0].Body)

	checks := map[string]string{
		"A.confidence":          "8",
		"B.confidence":          "10",
		`Mr\. Smith.confidence`: "1",
		"D.0.confidence":        "7",
	}
	for path, want := range checks {
		if got := gjson.Get(body, path).Raw; got != want {
			t.Fatalf("%s=%s, want %s (body=%s)", path, got, want, body)
		}
	}
	if got := gjson.Get(body, "C.confidence").String(); got != "high" {
		t.Fatalf("C.confidence=%s, want untouched", got)
	}
	if !strings.Contains(body, `"tone": "sad"`) {
		t.Fatalf("unrelated members rewritten: %s", body)
	}
}

func TestRecord_Speakers(t *testing.T) {
	t.Parallel()

	obj := JSONRecord(`{"Narrator": {"text": "a"}, "John": {"text": "b"}}`)
	if got := strings.Join(obj.Speakers(), ","); got != "Narrator,John" {
		t.Fatalf("object speakers=%s", got)
	}
	arr := JSONRecord(`[{"Mara": {"text": "a"}}, {"Narrator": {"text": "b"}}]`)
	if got := strings.Join(arr.Speakers(), ","); got != "Mara,Narrator" {
		t.Fatalf("array speakers=%s", got)
	}
	if got := JSONRecord(`{"text": "bare", "tone": "sad", "confidence": 2}`).Speakers(); got != nil {
		t.Fatalf("bare tone line speakers=%v, want none", got)
	}
	if got := LineRecord("Ann", "hi").Speakers(); len(got) != 1 || got[0] != "Ann" {
		t.Fatalf("line speakers=%v", got)
	}
	if got := RawRecord("x").Speakers(); got != nil {
		t.Fatalf("raw speakers=%v", got)
	}
}

func TestRecord_BodiesDoNotEscapeHTML(t *testing.T) {
	t.Parallel()

	if got := string(LineRecord("Ann", "a < b & c").Body); got != `{"Ann":"a < b & c"}` {
		t.Fatalf("body=%s", got)
	}
	if got := string(ErrorRecord("boom").Body); got != `{"error":"boom"}` {
		t.Fatalf("body=%s", got)
	}
}
