// Package pdftext extracts per-page plain text from uploaded PDF files.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrNotPDF is returned for files that are not PDF documents.
	ErrNotPDF = errors.New("not a PDF file")
	// ErrNoText is returned when no page carries extractable text, which is
	// typical for scanned, image-only documents.
	ErrNoText = errors.New("no extractable text")
)

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether a file looks like a PDF by name and leading bytes.
func IsPDF(filename string, head []byte) bool {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return false
	}
	return bytes.HasPrefix(head, pdfMagic)
}

// Extract returns the plain text of each page, in page order. It returns
// ErrNoText (together with the blank pages) when every page is empty.
func Extract(r io.ReaderAt, size int64) ([]string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	n := reader.NumPage()
	pages := make([]string, 0, n)
	hasText := false
	for i := 1; i <= n; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			slog.Warn("failed to extract page text", "page", i, "error", err)
			text = ""
		}
		text = strings.TrimSpace(text)
		if text != "" {
			hasText = true
		}
		pages = append(pages, text)
	}

	if !hasText {
		return pages, ErrNoText
	}
	return pages, nil
}

// ExtractBytes validates and extracts an in-memory upload.
func ExtractBytes(filename string, data []byte) ([]string, error) {
	if !IsPDF(filename, data) {
		return nil, ErrNotPDF
	}
	return Extract(bytes.NewReader(data), int64(len(data)))
}
