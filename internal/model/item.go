package model

import "strings"

// TestItem is a multiple-choice question.
type TestItem struct {
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	CorrectIndices []int    `json:"correct_indices"`
	Explanation    string   `json:"explanation"`
	SourceQuote    string   `json:"source_quote"`
}

// ClozeItem is a sentence with terms to hide.
type ClozeItem struct {
	FullText    string   `json:"full_text"`
	HiddenWords []string `json:"hidden_words"`
}

// OpenItem is a question answered in free text.
type OpenItem struct {
	Question    string `json:"question"`
	ModelAnswer string `json:"model_answer"`
}

// Item is a generated exam item. Exactly one of Test, Cloze or Open is set,
// matching Kind. Items are not modified after generation.
type Item struct {
	Kind       ExamType   `json:"kind"`
	SourceFile string     `json:"source_file,omitempty"` // "<name> (Pág. <n>)"
	Test       *TestItem  `json:"test,omitempty"`
	Cloze      *ClozeItem `json:"cloze,omitempty"`
	Open       *OpenItem  `json:"open,omitempty"`
}

// NewTestItem wraps a TestItem.
func NewTestItem(t TestItem, source string) Item {
	return Item{Kind: TypeTest, SourceFile: source, Test: &t}
}

// NewClozeItem wraps a ClozeItem.
func NewClozeItem(c ClozeItem, source string) Item {
	return Item{Kind: TypeCloze, SourceFile: source, Cloze: &c}
}

// NewOpenItem wraps an OpenItem.
func NewOpenItem(o OpenItem, source string) Item {
	return Item{Kind: TypeOpen, SourceFile: source, Open: &o}
}

// Prompt returns the text shown first for the item, which is also what gets
// read aloud.
func (it Item) Prompt() string {
	switch it.Kind {
	case TypeTest:
		if it.Test != nil {
			return it.Test.Question
		}
	case TypeCloze:
		if it.Cloze != nil {
			return it.Cloze.FullText
		}
	case TypeOpen:
		if it.Open != nil {
			return it.Open.Question
		}
	}
	return ""
}

// Expected returns the reference answer recorded in outcome summaries.
func (it Item) Expected() string {
	switch it.Kind {
	case TypeTest:
		if it.Test == nil {
			return ""
		}
		var correct []string
		for _, idx := range it.Test.CorrectIndices {
			if idx >= 0 && idx < len(it.Test.Options) {
				correct = append(correct, it.Test.Options[idx])
			}
		}
		return strings.Join(correct, "; ")
	case TypeCloze:
		if it.Cloze != nil {
			return strings.Join(it.Cloze.HiddenWords, ", ")
		}
	case TypeOpen:
		if it.Open != nil {
			return it.Open.ModelAnswer
		}
	}
	return ""
}

// Evaluation is the grader's verdict on an open answer: Score is 0 or 1.
type Evaluation struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}
