package model

import (
	"errors"
	"testing"
)

func TestSettingsValidate(t *testing.T) {
	base := DefaultSettings()

	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr bool
	}{
		{"defaults", func(s *Settings) {}, false},
		{"unknown type", func(s *Settings) { s.Type = "QUIZ" }, true},
		{"zero questions", func(s *Settings) { s.QuestionCount = 0 }, true},
		{"101 questions", func(s *Settings) { s.QuestionCount = 101 }, true},
		{"100 questions", func(s *Settings) { s.QuestionCount = 100 }, false},
		{"bad difficulty", func(s *Settings) { s.Difficulty = "extreme" }, true},
		{"one option", func(s *Settings) { s.OptionsCount = 1 }, true},
		{"six options", func(s *Settings) { s.OptionsCount = 6 }, true},
		{"negative time", func(s *Settings) { s.TimeLimit = -1 }, true},
		{"cloze ignores options", func(s *Settings) { s.Type = TypeCloze; s.OptionsCount = 0 }, false},
		{"cloze zero blanks", func(s *Settings) { s.Type = TypeCloze; s.MaxClozeBlanks = 0 }, true},
		{"cloze six blanks", func(s *Settings) { s.Type = TypeCloze; s.MaxClozeBlanks = 6 }, true},
		{"open bad benevolence", func(s *Settings) { s.Type = TypeOpen; s.Benevolence = "" }, true},
		{"open strict", func(s *Settings) { s.Type = TypeOpen; s.Benevolence = BenevolenceStrict }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("error %v does not wrap ErrInvalidSettings", err)
			}
		})
	}
}

func TestItemPromptAndExpected(t *testing.T) {
	test := NewTestItem(TestItem{
		Question:       "Which are planets?",
		Options:        []string{"Mars", "Sun", "Venus"},
		CorrectIndices: []int{0, 2, 7},
	}, "astro.pdf (Pág. 3)")
	if test.Prompt() != "Which are planets?" {
		t.Errorf("Prompt() = %q", test.Prompt())
	}
	if got := test.Expected(); got != "Mars; Venus" {
		t.Errorf("Expected() = %q, want 'Mars; Venus'", got)
	}

	cloze := NewClozeItem(ClozeItem{FullText: "El Sol es una Estrella.", HiddenWords: []string{"Sol", "Estrella"}}, "")
	if got := cloze.Expected(); got != "Sol, Estrella" {
		t.Errorf("Expected() = %q", got)
	}

	open := NewOpenItem(OpenItem{Question: "Why?", ModelAnswer: "Because."}, "")
	if open.Prompt() != "Why?" || open.Expected() != "Because." {
		t.Errorf("unexpected open item text: %q / %q", open.Prompt(), open.Expected())
	}

	var empty Item
	if empty.Prompt() != "" || empty.Expected() != "" {
		t.Error("zero item should have empty prompt and expected answer")
	}
}

func TestDocumentHasText(t *testing.T) {
	if (Document{Pages: []string{"  ", "\n\t"}}).HasText() {
		t.Error("blank pages should not count as text")
	}
	if !(Document{Pages: []string{"", "x"}}).HasText() {
		t.Error("expected text on second page")
	}
}
