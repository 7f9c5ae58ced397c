package main

import (
	"github.com/theimaginaryfoundation/page-scribe/transcript"
	"github.com/theimaginaryfoundation/page-scribe/transcript/provider"
)

const (
	placeholder    = "{page_text}"
	keyPlaceholder = "{page_key}"
)

func defaultTranscriptPrompt() string {
	return `You are given text from a novel page. Separate it into a transcript format:

- Use **Narrator:** (key "Narrator") for third-person descriptions and background.
- Use the character's name for dialogue lines.
- Keep the order of events as in the text.
- Do not invent new content; just restructure it.
- For each line, also provide:
  - "tone": the most likely emotional tone (angry, sad, happy, frustrated, neutral, etc.).
  - "confidence": a whole number from 1 to 10 showing how confident you are about the tone.

Each line object must match this JSON Schema:
` + provider.SchemaJSON[transcript.ToneLine]() + `

Return the output strictly as JSON, with no prose around it, keyed by the page key ` + keyPlaceholder + `:

{
  "` + keyPlaceholder + `": [
    {"Narrator": {"text": "...", "tone": "neutral", "confidence": 8}},
    {"CharacterName": {"text": "...", "tone": "...", "confidence": 6}}
  ]
}

Text:
` + placeholder + `
`
}
