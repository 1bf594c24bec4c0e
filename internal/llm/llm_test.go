package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pavelanni/studydeck/internal/llm/prompts"
	"github.com/pavelanni/studydeck/internal/model"
)

// fakeAPI serves chat completions with a fixed content and records requests.
type fakeAPI struct {
	content  string
	status   int
	calls    atomic.Int32
	lastBody []byte
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.lastBody = body
		if f.status != 0 {
			http.Error(w, `{"error":{"message":"boom"}}`, f.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": f.content},
			}},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	})
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"object":"list","data":[{"id":"test-model","object":"model"}]}`)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeAPI, apiKey string) *Client {
	t.Helper()
	if err := prompts.Load(prompts.Templates); err != nil {
		t.Fatalf("load prompts: %v", err)
	}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return New(srv.URL, apiKey, "test-model")
}

const twoDocCorpus = "--- Inicio del documento: a.pdf | Páginas: 2 ---\n--- [Página 1] ---\nuno\n--- [Página 2] ---\ndos\n--- Fin del documento ---\n\n" +
	"--- Inicio del documento: b.pdf | Páginas: 1 ---\n--- [Página 1] ---\ntres\n--- Fin del documento ---\n\n"

func TestMissingAPIKey(t *testing.T) {
	f := &fakeAPI{content: `{"items":[]}`}
	c := newTestClient(t, f, "")
	ctx := context.Background()

	if _, err := c.Generate(ctx, model.DefaultSettings(), twoDocCorpus); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Generate: expected ErrMissingAPIKey, got %v", err)
	}
	if _, err := c.Evaluate(ctx, model.OpenItem{Question: "q"}, "a", model.BenevolenceNormal); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Evaluate: expected ErrMissingAPIKey, got %v", err)
	}
	if err := c.Ping(ctx); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Ping: expected ErrMissingAPIKey, got %v", err)
	}
	if n := f.calls.Load(); n != 0 {
		t.Errorf("no request expected without a key, got %d", n)
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, "sk-test")
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestGenerateTest(t *testing.T) {
	content := `{"items":[
		{"question":"¿Uno?","options":["a","b","c","d"],"correct_indices":[1],"explanation":"e","source_quote":"q","source_file":"a.pdf (Pág. 1)"},
		{"question":"¿Mal?","options":["a","b"],"correct_indices":[0],"explanation":"","source_quote":"","source_file":""},
		{"question":"¿Fuera?","options":["a","b","c","d"],"correct_indices":[4],"explanation":"","source_quote":"","source_file":""},
		{"question":"¿Dos?","options":["a","b","c","d"],"correct_indices":[0,2],"explanation":"","source_quote":"","source_file":""},
		{"question":"¿Tres?","options":["a","b","c","d"],"correct_indices":[3],"explanation":"","source_quote":"","source_file":"b.pdf (Pág. 1)"}
	]}`
	f := &fakeAPI{content: content}
	c := newTestClient(t, f, "sk-test")

	st := model.DefaultSettings()
	st.QuestionCount = 3
	items, err := c.Generate(context.Background(), st, twoDocCorpus)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 valid items, got %d", len(items))
	}
	if items[0].Kind != model.TypeTest || items[0].Test.Question != "¿Uno?" || items[0].SourceFile != "a.pdf (Pág. 1)" {
		t.Errorf("unexpected first item %+v", items[0])
	}
	if items[1].Test.Question != "¿Tres?" {
		t.Errorf("multi-correct item should be dropped in single choice mode, got %q", items[1].Test.Question)
	}

	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
		ResponseFormat struct {
			Type       string `json:"type"`
			JSONSchema struct {
				Name   string `json:"name"`
				Strict bool   `json:"strict"`
			} `json:"json_schema"`
		} `json:"response_format"`
	}
	if err := json.Unmarshal(f.lastBody, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.ResponseFormat.Type != "json_schema" || req.ResponseFormat.JSONSchema.Name != "test_items" || !req.ResponseFormat.JSONSchema.Strict {
		t.Errorf("unexpected response format %+v", req.ResponseFormat)
	}
	prompt := req.Messages[0].Content
	if !strings.Contains(prompt, "- a.pdf: 2") || !strings.Contains(prompt, "- b.pdf: 1") {
		t.Errorf("prompt should carry the distribution:\n%s", prompt)
	}
}

func TestGenerateCloze(t *testing.T) {
	content := "```json\n" + `{"items":[
		{"full_text":"El Sol es una estrella.","hidden_words":["Sol"," ","estrella"],"source_file":""},
		{"full_text":"La Luna orbita.","hidden_words":["Marte"],"source_file":""},
		{"full_text":"Agua y fuego.","hidden_words":[""],"source_file":""}
	]}` + "\n```"
	c := newTestClient(t, &fakeAPI{content: content}, "sk-test")

	st := model.DefaultSettings()
	st.Type = model.TypeCloze
	st.MaxClozeBlanks = 2
	items, err := c.Generate(context.Background(), st, "texto")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 valid item, got %d", len(items))
	}
	if got := items[0].Cloze.HiddenWords; len(got) != 2 || got[0] != "Sol" || got[1] != "estrella" {
		t.Errorf("blank hidden words should be removed, got %q", got)
	}
}

func TestGenerateOpen(t *testing.T) {
	content := `{"items":[{"question":"¿Qué?","model_answer":"Esto.","source_file":""},{"question":"","model_answer":"x","source_file":""}]}`
	c := newTestClient(t, &fakeAPI{content: content}, "sk-test")

	st := model.DefaultSettings()
	st.Type = model.TypeOpen
	items, err := c.Generate(context.Background(), st, "texto")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(items) != 1 || items[0].Open.ModelAnswer != "Esto." {
		t.Errorf("unexpected items %+v", items)
	}
}

func TestGenerateNoValidItems(t *testing.T) {
	c := newTestClient(t, &fakeAPI{content: `{"items":[]}`}, "sk-test")
	if _, err := c.Generate(context.Background(), model.DefaultSettings(), "texto"); !errors.Is(err, ErrNoValidItems) {
		t.Errorf("expected ErrNoValidItems, got %v", err)
	}
}

func TestGenerateErrors(t *testing.T) {
	t.Run("malformed", func(t *testing.T) {
		c := newTestClient(t, &fakeAPI{content: "not json"}, "sk-test")
		if _, err := c.Generate(context.Background(), model.DefaultSettings(), "texto"); err == nil {
			t.Error("expected parse error")
		}
	})
	t.Run("server error", func(t *testing.T) {
		c := newTestClient(t, &fakeAPI{status: http.StatusInternalServerError}, "sk-test")
		if _, err := c.Generate(context.Background(), model.DefaultSettings(), "texto"); err == nil {
			t.Error("expected API error")
		}
	})
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		score   int
	}{
		{"correct", `{"score":1,"feedback":" Bien. "}`, 1},
		{"wrong", `{"score":0,"feedback":"Falta la luz."}`, 0},
		{"clamped", `{"score":5,"feedback":"x"}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeAPI{content: tt.content}, "sk-test")
			ev, err := c.Evaluate(context.Background(), model.OpenItem{Question: "q", ModelAnswer: "m"}, "a", model.BenevolenceStrict)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if ev.Score != tt.score {
				t.Errorf("score = %d, want %d", ev.Score, tt.score)
			}
			if strings.HasPrefix(ev.Feedback, " ") {
				t.Errorf("feedback not trimmed: %q", ev.Feedback)
			}
		})
	}
}

func TestValidateTest(t *testing.T) {
	st := model.DefaultSettings()
	st.OptionsCount = 3
	valid := model.TestItem{Question: "q", Options: []string{"a", "b", "c"}, CorrectIndices: []int{1}}

	tests := []struct {
		name   string
		mutate func(*model.TestItem)
		multi  bool
		ok     bool
	}{
		{"valid", func(*model.TestItem) {}, false, true},
		{"empty question", func(i *model.TestItem) { i.Question = " " }, false, false},
		{"wrong option count", func(i *model.TestItem) { i.Options = i.Options[:2] }, false, false},
		{"empty option", func(i *model.TestItem) { i.Options = []string{"a", "", "c"} }, false, false},
		{"no correct", func(i *model.TestItem) { i.CorrectIndices = nil }, false, false},
		{"negative index", func(i *model.TestItem) { i.CorrectIndices = []int{-1} }, false, false},
		{"duplicate index", func(i *model.TestItem) { i.CorrectIndices = []int{1, 1} }, false, true},
		{"multi in single mode", func(i *model.TestItem) { i.CorrectIndices = []int{0, 2} }, false, false},
		{"multi allowed", func(i *model.TestItem) { i.CorrectIndices = []int{0, 2} }, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := valid
			item.Options = append([]string(nil), valid.Options...)
			tt.mutate(&item)
			s := st
			s.AllowMultipleCorrect = tt.multi
			err := validateTest(item, s)
			if (err == nil) != tt.ok {
				t.Errorf("validateTest() error = %v, want ok %v", err, tt.ok)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"Here you go: {\"a\":1} thanks", `{"a":1}`},
		{"```\n{\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := extractJSON(tt.in); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
