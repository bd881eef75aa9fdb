// Package chunker splits extracted document text into bounded-size text
// units suitable for embedding.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkChars is the soft chunk size used when none is configured.
const DefaultMaxChunkChars = 1000

// PageBreak separates pages in extracted document text.
const PageBreak = "\f"

// paragraphBreak matches a blank line, tolerating trailing horizontal
// whitespace and CRLF line endings.
var paragraphBreak = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)

// Chunk splits rawText into text units of roughly maxChunkChars runes.
//
// Text is split by page, then by paragraph. Paragraphs are trimmed and
// empty ones dropped. Paragraphs are joined with a single space into a
// running buffer which is flushed whenever the next paragraph would push it
// past maxChunkChars. A paragraph longer than the limit on its own is still
// emitted whole, so the limit is a soft target. The buffer carries across
// page boundaries.
//
// Input without any non-empty paragraph returns an empty slice.
func Chunk(rawText string, maxChunkChars int) []string {
	if maxChunkChars <= 0 {
		maxChunkChars = DefaultMaxChunkChars
	}

	units := make([]string, 0)

	var (
		buf    strings.Builder
		bufLen int
	)

	flush := func() {
		if bufLen == 0 {
			return
		}
		units = append(units, buf.String())
		buf.Reset()
		bufLen = 0
	}

	for _, para := range Paragraphs(rawText) {
		paraLen := utf8.RuneCountInString(para)

		if bufLen > 0 && bufLen+1+paraLen > maxChunkChars {
			flush()
		}

		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(para)
		bufLen += paraLen
	}
	flush()

	return units
}

// Paragraphs returns the trimmed, non-empty paragraphs of rawText in order,
// walking pages first.
func Paragraphs(rawText string) []string {
	var out []string
	for _, page := range strings.Split(rawText, PageBreak) {
		for _, para := range paragraphBreak.Split(page, -1) {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			out = append(out, para)
		}
	}
	return out
}
