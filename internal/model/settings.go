package model

import (
	"errors"
	"fmt"
)

// ExamType selects which kind of study material is generated.
type ExamType string

const (
	TypeTest  ExamType = "TEST"
	TypeCloze ExamType = "CLOZE_FLASHCARD"
	TypeOpen  ExamType = "OPEN_FLASHCARD"
)

// Difficulty represents the requested question difficulty.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Benevolence controls how leniently open answers are graded.
type Benevolence string

const (
	BenevolenceStrict     Benevolence = "STRICT"
	BenevolenceNormal     Benevolence = "NORMAL"
	BenevolenceBenevolent Benevolence = "BENEVOLENT"
)

// Settings holds the options chosen before generating an exam.
type Settings struct {
	Type                 ExamType    `json:"type"`
	QuestionCount        int         `json:"question_count"`
	Difficulty           Difficulty  `json:"difficulty"`
	OptionsCount         int         `json:"options_count"`          // test only
	AllowMultipleCorrect bool        `json:"allow_multiple_correct"` // test only
	NegativeMarking      bool        `json:"negative_marking"`       // test only
	MaxClozeBlanks       int         `json:"max_cloze_blanks"`       // cloze only
	Benevolence          Benevolence `json:"benevolence"`            // open only
	AutoRead             bool        `json:"auto_read"`
	TimeLimit            int         `json:"time_limit"` // seconds per item, 0 means unlimited
	ShowSummary          bool        `json:"show_summary"`
	ShowSourceFile       bool        `json:"show_source_file"`
	VoiceURI             string      `json:"voice_uri"`
}

// DefaultSettings returns the settings preselected in a fresh workspace.
func DefaultSettings() Settings {
	return Settings{
		Type:           TypeTest,
		QuestionCount:  10,
		Difficulty:     DifficultyMedium,
		OptionsCount:   4,
		MaxClozeBlanks: 1,
		Benevolence:    BenevolenceNormal,
		ShowSummary:    true,
	}
}

// ErrInvalidSettings wraps every validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Validate checks ranges and enumerations. Mode-specific fields are only
// checked for the mode that uses them.
func (s Settings) Validate() error {
	switch s.Type {
	case TypeTest, TypeCloze, TypeOpen:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSettings, s.Type)
	}
	if s.QuestionCount < 1 || s.QuestionCount > 100 {
		return fmt.Errorf("%w: question count %d out of range 1-100", ErrInvalidSettings, s.QuestionCount)
	}
	switch s.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidSettings, s.Difficulty)
	}
	if s.TimeLimit < 0 {
		return fmt.Errorf("%w: negative time limit", ErrInvalidSettings)
	}

	switch s.Type {
	case TypeTest:
		if s.OptionsCount < 2 || s.OptionsCount > 5 {
			return fmt.Errorf("%w: options count %d out of range 2-5", ErrInvalidSettings, s.OptionsCount)
		}
	case TypeCloze:
		if s.MaxClozeBlanks < 1 || s.MaxClozeBlanks > 5 {
			return fmt.Errorf("%w: cloze blanks %d out of range 1-5", ErrInvalidSettings, s.MaxClozeBlanks)
		}
	case TypeOpen:
		switch s.Benevolence {
		case BenevolenceStrict, BenevolenceNormal, BenevolenceBenevolent:
		default:
			return fmt.Errorf("%w: unknown benevolence %q", ErrInvalidSettings, s.Benevolence)
		}
	}
	return nil
}
