package ingest

import (
	"strings"

	"github.com/weaveai/weave/pkg/utils"
)

// Section is a run of text under one markdown heading. Heading is empty for text
// that appears before the first heading.
type Section struct {
	Heading string
	Body    string
}

// Chunk is one unit of approved content: a word window of a section.
type Chunk struct {
	Section string
	Index   int
	Text    string
}

// SplitSections splits text at markdown headings ("# " through "###### ").
// Sections with an empty body are dropped.
func SplitSections(text string) []Section {
	var (
		out     []Section
		heading string
		body    []string
	)
	flush := func() {
		b := strings.TrimSpace(strings.Join(body, "\n"))
		if b != "" {
			out = append(out, Section{Heading: heading, Body: b})
		}
		body = body[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if h, ok := parseHeading(line); ok {
			flush()
			heading = h
			continue
		}
		body = append(body, line)
	}
	flush()
	return out
}

func parseHeading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(trimmed) || trimmed[level] != ' ' {
		return "", false
	}
	h := strings.TrimSpace(trimmed[level:])
	return h, h != ""
}

// Chunker splits text into overlapping word-based chunks per section.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 200
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits text into sections, then each section into word windows. Chunk indexes
// run across the whole text so they reflect document order.
func (c *Chunker) Chunk(text string) []Chunk {
	var chunks []Chunk
	step := c.chunkSize - c.chunkOverlap
	for _, sec := range SplitSections(text) {
		words := strings.Fields(utils.CollapseWhitespace(sec.Body))
		for i := 0; i < len(words); i += step {
			end := i + c.chunkSize
			if end > len(words) {
				end = len(words)
			}
			chunks = append(chunks, Chunk{
				Section: sec.Heading,
				Index:   len(chunks),
				Text:    strings.Join(words[i:end], " "),
			})
			if end >= len(words) {
				break
			}
		}
	}
	return chunks
}
