package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/studydeck/internal/corpus"
	"github.com/pavelanni/studydeck/internal/model"
)

// Templates holds the built-in prompt templates.
//
//go:embed templates/*.txt
var Templates embed.FS

const maxAnswerRunes = 10000

var (
	studentAnswerRegex = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	documentsRegex     = regexp.MustCompile(`(?i)</?\s*documents\b[^>]*>`)
)

var (
	loadOnce      sync.Once
	loadErr       error
	genTemplates  map[model.ExamType]*template.Template
	evalTemplates map[model.Benevolence]*template.Template
)

var genFiles = map[model.ExamType]string{
	model.TypeTest:  "generate_test",
	model.TypeCloze: "generate_cloze",
	model.TypeOpen:  "generate_open",
}

var evalFiles = map[model.Benevolence]string{
	model.BenevolenceStrict:     "eval_strict",
	model.BenevolenceNormal:     "eval_normal",
	model.BenevolenceBenevolent: "eval_benevolent",
}

// GenerateData holds template data for generation prompts.
type GenerateData struct {
	Corpus               string
	Count                int
	Difficulty           model.Difficulty
	OptionsCount         int
	AllowMultipleCorrect bool
	MaxClozeBlanks       int
	Distribution         []corpus.Entry
}

// EvalData holds template data for evaluation prompts.
type EvalData struct {
	Question    string
	ModelAnswer string
	Answer      string
}

// Load parses the prompt templates from fsys, which must contain the
// templates/ directory laid out like Templates. Only the first call has any
// effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		loadErr = load(fsys)
	})
	return loadErr
}

func load(fsys fs.FS) error {
	partials, err := fs.ReadFile(fsys, "templates/partials.txt")
	if err != nil {
		return fmt.Errorf("read prompt partials: %w", err)
	}
	base, err := template.New("partials").Parse(string(partials))
	if err != nil {
		return fmt.Errorf("parse prompt partials: %w", err)
	}

	parse := func(name string) (*template.Template, error) {
		file := "templates/" + name + ".txt"
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", file, err)
		}
		t, err := template.Must(base.Clone()).New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", file, err)
		}
		return t, nil
	}

	gen := make(map[model.ExamType]*template.Template, len(genFiles))
	for kind, name := range genFiles {
		t, err := parse(name)
		if err != nil {
			return err
		}
		gen[kind] = t
	}
	eval := make(map[model.Benevolence]*template.Template, len(evalFiles))
	for level, name := range evalFiles {
		t, err := parse(name)
		if err != nil {
			return err
		}
		eval[level] = t
	}
	genTemplates, evalTemplates = gen, eval
	return nil
}

// BuildGeneratePrompt renders the generation prompt for the exam type in st.
func BuildGeneratePrompt(st model.Settings, corpusText string, dist []corpus.Entry) (string, error) {
	if genTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := genTemplates[st.Type]
	if !ok {
		return "", errors.New("invalid exam type: " + string(st.Type))
	}

	data := GenerateData{
		Corpus:               documentsRegex.ReplaceAllString(corpusText, ""),
		Count:                st.QuestionCount,
		Difficulty:           st.Difficulty,
		OptionsCount:         st.OptionsCount,
		AllowMultipleCorrect: st.AllowMultipleCorrect,
		MaxClozeBlanks:       st.MaxClozeBlanks,
		Distribution:         dist,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildEvalPrompt renders the grading prompt for an open answer at the given
// benevolence level.
func BuildEvalPrompt(level model.Benevolence, item model.OpenItem, answer string) (string, error) {
	if evalTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := evalTemplates[level]
	if !ok {
		return "", errors.New("invalid benevolence level: " + string(level))
	}

	data := EvalData{
		Question:    item.Question,
		ModelAnswer: item.ModelAnswer,
		Answer:      sanitizeAnswer(answer),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
