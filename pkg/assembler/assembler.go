// Package assembler turns retrieved text units into the labeled context
// string handed to answer generation.
package assembler

import (
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/kbase/pkg/retriever"
)

const (
	// DefaultMaxContextChars bounds the assembled context when the caller
	// does not configure a limit.
	DefaultMaxContextChars = 8000

	// TruncationMarker is appended whenever retrieved content was cut.
	TruncationMarker = "[... context truncated ...]"

	unitSeparator = "\n\n"
)

// Section is the retrieved content for one labeled collection.
type Section struct {
	Label   string
	Results []retriever.Result
}

// Assembled is the outcome of Assemble.
type Assembled struct {
	// Context is the rendered context string.
	Context string

	// Labels lists the labels that appear in Context, in order.
	Labels []string

	// Units is the number of text units included.
	Units int

	// Truncated reports whether any retrieved unit was left out.
	Truncated bool
}

// Assemble renders sections in order as
//
//	[label]
//	unit
//
//	unit
//
// with sections separated by a blank line. Sections without results are
// omitted entirely. When maxContextChars is positive the output is cut at a
// unit boundary so the content stays within that many runes, and
// TruncationMarker is appended. The marker itself is not counted.
func Assemble(sections []Section, maxContextChars int) Assembled {
	var (
		b    strings.Builder
		used int
		out  Assembled
	)

sections:
	for _, section := range sections {
		if len(section.Results) == 0 {
			continue
		}

		for i, r := range section.Results {
			var piece string
			if i == 0 {
				if used > 0 {
					piece = unitSeparator
				}
				piece += "[" + section.Label + "]\n" + r.Text
			} else {
				piece = unitSeparator + r.Text
			}

			n := utf8.RuneCountInString(piece)
			if maxContextChars > 0 && used+n > maxContextChars {
				out.Truncated = true
				break sections
			}

			if i == 0 {
				out.Labels = append(out.Labels, section.Label)
			}
			b.WriteString(piece)
			used += n
			out.Units++
		}
	}

	if out.Truncated {
		if used > 0 {
			b.WriteString(unitSeparator)
		}
		b.WriteString(TruncationMarker)
	}

	out.Context = b.String()
	return out
}
