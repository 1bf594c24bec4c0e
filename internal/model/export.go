package model

import "time"

// TimedOutAnswer is the user answer recorded when the countdown expires.
const TimedOutAnswer = "timed out"

// Outcome records what happened on one item of a session.
type Outcome struct {
	Index      int      `json:"index"`
	Kind       ExamType `json:"kind"`
	Prompt     string   `json:"prompt"`
	UserAnswer string   `json:"user_answer"`
	Selected   []int    `json:"selected,omitempty"`
	Expected   string   `json:"expected"`
	Correct    bool     `json:"correct"`
	Points     float64  `json:"points"`
	TimedOut   bool     `json:"timed_out"`
	Feedback   string   `json:"feedback,omitempty"`
	SourceFile string   `json:"source_file,omitempty"`
}

// Summary is the end-of-session report.
type Summary struct {
	Type     ExamType  `json:"type"`
	Total    int       `json:"total"`
	Score    float64   `json:"score"`
	Grade    int       `json:"grade"`
	Passed   bool      `json:"passed"`
	Graded   bool      `json:"graded"` // false for cloze review
	Outcomes []Outcome `json:"outcomes"`
}

// ResultsExport is the top-level JSON structure written by the export command.
type ResultsExport struct {
	ExportedAt time.Time     `json:"exported_at"`
	Results    []UserResults `json:"results"`
}

// UserResults groups the finished sessions of one user.
type UserResults struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Sessions    []Result `json:"sessions"`
}
