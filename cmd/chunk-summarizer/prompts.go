package main

const placeholder = "{chunk_text}"

func defaultSummaryPrompt() string {
	return `You are given several consecutive pages of a novel. Each page starts with a "### <page key>" line.

Write a faithful summary of these pages:
- Keep events in the order they happen.
- Name the characters involved and what each of them does or says that matters.
- Note shifts of place, time or mood.
- Do not invent events and do not comment on the writing.

Answer in plain prose, at most a few paragraphs, with no headings.

Pages:
` + placeholder + `
`
}
