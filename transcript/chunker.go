package transcript

import (
	"errors"
	"fmt"
	"strings"
)

// Chunk is a batch of consecutive pages summarized in one generation call.
type Chunk struct {
	Number int        `json:"chunk_number"`
	Pages  []PageText `json:"pages"`
	Words  int        `json:"words"`
}

// Key is the stable identifier used for the chunk in logs and output headers.
func (c Chunk) Key() string {
	return fmt.Sprintf("chunk_%d", c.Number)
}

// PageKeys lists the chunk's page keys in order.
func (c Chunk) PageKeys() []string {
	keys := make([]string, 0, len(c.Pages))
	for _, p := range c.Pages {
		keys = append(keys, p.Key)
	}
	return keys
}

// ChunkPages groups pages, in order, into chunks whose combined word count stays within
// maxWords. A page is never split: when the next page would overflow a non-empty chunk the
// chunk is closed first, and a page that alone exceeds maxWords gets a chunk of its own.
//
// Example: word counts [40, 30, 50, 200] with maxWords=80 produce [40,30] [50] [200].
func ChunkPages(pages []PageText, maxWords int) ([]Chunk, error) {
	if maxWords <= 0 {
		return nil, errors.New("ChunkPages: maxWords must be > 0")
	}

	var chunks []Chunk
	var curr Chunk
	for _, p := range pages {
		words := WordCount(p.Text)
		if len(curr.Pages) > 0 && curr.Words+words > maxWords {
			chunks = append(chunks, curr)
			curr = Chunk{}
		}
		curr.Pages = append(curr.Pages, p)
		curr.Words += words
	}
	if len(curr.Pages) > 0 {
		chunks = append(chunks, curr)
	}

	for i := range chunks {
		chunks[i].Number = i + 1
	}
	return chunks, nil
}

// chunkContent joins the pages of a chunk, each under a "### <key>" header.
func chunkContent(pages []PageText) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("### ")
		b.WriteString(p.Key)
		b.WriteString("\n")
		b.WriteString(Sanitize(p.Text))
	}
	return b.String()
}
