// Package cloze splits flashcard sentences into visible and hidden spans.
package cloze

import (
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Segment is one span of a cloze sentence. Text is the exact substring of
// the original sentence; for hidden spans Term is the hidden word as it was
// requested, which may differ in case from Text.
type Segment struct {
	Text   string `json:"text"`
	Hidden bool   `json:"hidden"`
	Term   string `json:"term,omitempty"`
}

// Split returns the spans of fullText with every case-insensitive literal
// occurrence of each hidden term marked hidden. Terms are applied in order
// and never match inside a span hidden by an earlier term. Blank terms are
// ignored. Concatenating the Text of all segments yields fullText.
func Split(fullText string, hiddenTerms []string) []Segment {
	segs := []Segment{{Text: fullText}}
	for _, term := range hiddenTerms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))

		next := make([]Segment, 0, len(segs))
		for _, s := range segs {
			if s.Hidden {
				next = append(next, s)
				continue
			}
			next = appendSplit(next, s.Text, re, term)
		}
		segs = next
	}
	return segs
}

func appendSplit(dst []Segment, text string, re *regexp.Regexp, term string) []Segment {
	matches := re.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return append(dst, Segment{Text: text})
	}
	last := 0
	for _, m := range matches {
		if m[0] > last {
			dst = append(dst, Segment{Text: text[last:m[0]]})
		}
		dst = append(dst, Segment{Text: text[m[0]:m[1]], Hidden: true, Term: term})
		last = m[1]
	}
	if last < len(text) {
		dst = append(dst, Segment{Text: text[last:]})
	}
	return dst
}

// Segments is the lazy form of Split. Each iteration recomputes the spans
// from the same inputs.
func Segments(fullText string, hiddenTerms []string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		for _, s := range Split(fullText, hiddenTerms) {
			if !yield(s) {
				return
			}
		}
	}
}

// Join concatenates the text of all segments, hidden ones included.
func Join(segs []Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Mask renders the sentence with hidden spans replaced by placeholder. An
// empty placeholder hides each span behind underscores of the same length.
func Mask(segs []Segment, placeholder string) string {
	var sb strings.Builder
	for _, s := range segs {
		switch {
		case !s.Hidden:
			sb.WriteString(s.Text)
		case placeholder != "":
			sb.WriteString(placeholder)
		default:
			sb.WriteString(strings.Repeat("_", utf8.RuneCountInString(s.Text)))
		}
	}
	return sb.String()
}

// HiddenCount returns the number of hidden spans.
func HiddenCount(segs []Segment) int {
	n := 0
	for _, s := range segs {
		if s.Hidden {
			n++
		}
	}
	return n
}
