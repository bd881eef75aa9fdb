package chunker_test

import (
	"strings"
	"unicode"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/kbase/pkg/chunker"
)

// stripSpace removes all whitespace so content can be compared while
// ignoring the separators the chunker inserts.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

var _ = Describe("Chunk", func() {
	It("returns an empty result for empty input", func() {
		Expect(chunker.Chunk("", 100)).To(BeEmpty())
		Expect(chunker.Chunk("  \n\n \t \f \n\n", 100)).To(BeEmpty())
	})

	It("returns a non-nil slice for empty input", func() {
		Expect(chunker.Chunk("", 100)).NotTo(BeNil())
	})

	It("accumulates paragraphs up to the limit", func() {
		text := "aaaa\n\nbbbb\n\ncccc"
		Expect(chunker.Chunk(text, 9)).To(Equal([]string{"aaaa bbbb", "cccc"}))
	})

	It("flushes when the next paragraph would exceed the limit", func() {
		text := "aaaa\n\nbbbb\n\ncccc"
		Expect(chunker.Chunk(text, 8)).To(Equal([]string{"aaaa", "bbbb", "cccc"}))
	})

	It("emits oversized paragraphs whole", func() {
		long := strings.Repeat("x", 50)
		Expect(chunker.Chunk("a\n\n"+long+"\n\nb", 10)).To(Equal([]string{"a", long, "b"}))
	})

	It("drops empty and whitespace-only paragraphs", func() {
		text := "one\n\n   \n\n\t\n\ntwo"
		Expect(chunker.Chunk(text, 100)).To(Equal([]string{"one two"}))
	})

	It("splits on page breaks and carries the buffer across pages", func() {
		text := "page one\fpage two\n\npara three"
		Expect(chunker.Chunk(text, 100)).To(Equal([]string{"page one page two para three"}))
		Expect(chunker.Chunk(text, 10)).To(Equal([]string{"page one", "page two", "para three"}))
	})

	It("tolerates CRLF and indented blank lines", func() {
		text := "first\r\n  \r\nsecond"
		Expect(chunker.Chunk(text, 5)).To(Equal([]string{"first", "second"}))
	})

	It("counts runes rather than bytes", func() {
		text := "文档内容\n\n第二段"
		Expect(chunker.Chunk(text, 8)).To(Equal([]string{"文档内容 第二段"}))
	})

	It("uses the default size for a non-positive limit", func() {
		para := strings.Repeat("y", 600)
		Expect(chunker.Chunk(para+"\n\n"+para, 0)).To(HaveLen(2))
		Expect(chunker.Chunk("a\n\nb", -1)).To(Equal([]string{"a b"}))
	})

	It("produces trimmed non-empty units preserving all content", func() {
		text := "  Intro line\nwith wrap  \n\n\n  Body  one.\f\n\nBody two\n \nEnd.  "
		for _, size := range []int{1, 5, 20, 1000} {
			units := chunker.Chunk(text, size)
			Expect(units).NotTo(BeEmpty())
			for _, u := range units {
				Expect(u).NotTo(BeEmpty())
				Expect(u).To(Equal(strings.TrimSpace(u)))
			}
			Expect(stripSpace(strings.Join(units, ""))).To(Equal(stripSpace(text)))
		}
	})
})

var _ = Describe("Paragraphs", func() {
	It("walks pages then paragraphs", func() {
		Expect(chunker.Paragraphs("a\n\nb\fc")).To(Equal([]string{"a", "b", "c"}))
	})
})
