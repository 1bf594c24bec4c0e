// Package corpus builds and parses the annotated text blob that carries the
// extracted pages of every uploaded document.
package corpus

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	startMarker = "--- Inicio del documento: %s | Páginas: %d ---\n"
	pageMarker  = "--- [Página %d] ---\n"
	endMarker   = "--- Fin del documento ---"
)

var (
	pagedDocRegex  = regexp.MustCompile(`(?s)--- Inicio del documento: ([^\n]+?) \| Páginas: (\d+) ---\n(.*?)--- Fin del documento ---`)
	legacyDocRegex = regexp.MustCompile(`(?s)--- Inicio del documento: ([^\n]+?) ---\n(.*?)--- Fin del documento ---`)
	pageTagRegex   = regexp.MustCompile(`(?m)^--- \[Página \d+\] ---$`)
)

// Source is one document's extracted text, one entry per page.
type Source struct {
	Name  string
	Pages []string
}

// Descriptor describes a document found in a corpus.
type Descriptor struct {
	Name   string `json:"name"`
	Pages  int    `json:"pages"`
	Weight int    `json:"weight"` // page count, or body length for legacy corpora
	Legacy bool   `json:"legacy,omitempty"`
}

// Build concatenates the documents in order into the annotated corpus format.
func Build(docs []Source) string {
	var sb strings.Builder
	for _, d := range docs {
		writeDocument(&sb, d)
	}
	return sb.String()
}

func writeDocument(sb *strings.Builder, d Source) {
	fmt.Fprintf(sb, startMarker, d.Name, len(d.Pages))
	for i, text := range d.Pages {
		fmt.Fprintf(sb, pageMarker, i+1)
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	sb.WriteString(endMarker)
	sb.WriteString("\n\n")
}

// Parse scans the corpus for document descriptors. Corpora without page
// annotations are parsed with the legacy marker and weighted by body length.
// A corpus with no recognizable markers yields no descriptors.
func Parse(corpus string) []Descriptor {
	var docs []Descriptor
	for _, m := range pagedDocRegex.FindAllStringSubmatch(corpus, -1) {
		pages, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		docs = append(docs, Descriptor{Name: m[1], Pages: pages, Weight: pages})
	}
	if len(docs) > 0 {
		return docs
	}

	for _, m := range legacyDocRegex.FindAllStringSubmatch(corpus, -1) {
		body := m[2]
		docs = append(docs, Descriptor{
			Name:   m[1],
			Pages:  len(pageTagRegex.FindAllStringIndex(body, -1)),
			Weight: utf8.RuneCountInString(body),
			Legacy: true,
		})
	}
	return docs
}
