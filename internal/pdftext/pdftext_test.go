package pdftext

import (
	"errors"
	"strings"
	"testing"

	"github.com/pavelanni/studydeck/internal/pdftext/pdftest"
)

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name string
		file string
		head []byte
		want bool
	}{
		{"pdf", "apuntes.pdf", []byte("%PDF-1.7\n"), true},
		{"upper case extension", "APUNTES.PDF", []byte("%PDF-1.4"), true},
		{"wrong extension", "apuntes.txt", []byte("%PDF-1.4"), false},
		{"wrong magic", "apuntes.pdf", []byte("PK\x03\x04"), false},
		{"empty", "apuntes.pdf", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPDF(tt.file, tt.head); got != tt.want {
				t.Errorf("IsPDF(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}

func TestExtractBytes(t *testing.T) {
	pages, err := ExtractBytes("hola.pdf", pdftest.Build("Hola mundo"))
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if !strings.Contains(pages[0], "Hola mundo") {
		t.Errorf("page text = %q, want it to contain 'Hola mundo'", pages[0])
	}
}

func TestExtractBlankPage(t *testing.T) {
	pages, err := ExtractBytes("scan.pdf", pdftest.Build(""))
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
	if len(pages) != 1 {
		t.Errorf("expected the blank page to be returned, got %d pages", len(pages))
	}
}

func TestExtractRejectsNonPDF(t *testing.T) {
	if _, err := ExtractBytes("notes.txt", []byte("hello")); !errors.Is(err, ErrNotPDF) {
		t.Errorf("expected ErrNotPDF for text file, got %v", err)
	}
	if _, err := ExtractBytes("broken.pdf", []byte("%PDF-1.4\ngarbage")); !errors.Is(err, ErrNotPDF) {
		t.Errorf("expected ErrNotPDF for corrupt file, got %v", err)
	}
}
