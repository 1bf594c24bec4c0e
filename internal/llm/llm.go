package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/pavelanni/studydeck/internal/corpus"
	"github.com/pavelanni/studydeck/internal/llm/prompts"
	"github.com/pavelanni/studydeck/internal/model"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

var (
	// ErrMissingAPIKey is returned before any network call when no key is
	// configured.
	ErrMissingAPIKey = errors.New("LLM API key is not configured")
	// ErrNoValidItems is returned when a generation response holds nothing
	// usable.
	ErrNoValidItems = errors.New("LLM returned no valid items")
)

const (
	generateTemperature = 0.7
	evalTemperature     = 0.1
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api    *openai.Client
	model  string
	hasKey bool
}

// New creates a new LLM client. Prompt templates must be loaded with
// prompts.Load before generating or evaluating.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:    openai.NewClientWithConfig(config),
		model:  modelName,
		hasKey: strings.TrimSpace(apiKey) != "",
	}
}

// Ping checks that the endpoint is reachable and accepts the key.
func (c *Client) Ping(ctx context.Context) error {
	if !c.hasKey {
		return ErrMissingAPIKey
	}
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM ping: %w", err)
	}
	return nil
}

// Generate produces the items for st.Type from the corpus, asking for the
// per-document distribution when there are several documents.
func (c *Client) Generate(ctx context.Context, st model.Settings, corpusText string) ([]model.Item, error) {
	dist := corpus.ComputeDistribution(corpusText, st.QuestionCount)
	switch st.Type {
	case model.TypeTest:
		return c.GenerateTest(ctx, st, corpusText, dist)
	case model.TypeCloze:
		return c.GenerateCloze(ctx, st, corpusText, dist)
	case model.TypeOpen:
		return c.GenerateOpen(ctx, st, corpusText, dist)
	default:
		return nil, fmt.Errorf("unknown exam type %q", st.Type)
	}
}

type testResponse struct {
	Items []struct {
		model.TestItem
		SourceFile string `json:"source_file"`
	} `json:"items"`
}

// GenerateTest asks for multiple-choice questions. Items whose options or
// indices do not fit st are dropped.
func (c *Client) GenerateTest(ctx context.Context, st model.Settings, corpusText string, dist []corpus.Entry) ([]model.Item, error) {
	var resp testResponse
	if err := c.generate(ctx, st, corpusText, dist, "test_items", testSchema, &resp); err != nil {
		return nil, err
	}
	var items []model.Item
	for i, r := range resp.Items {
		if err := validateTest(r.TestItem, st); err != nil {
			slog.Warn("dropping generated test item", "index", i, "reason", err)
			continue
		}
		r.CorrectIndices = slices.Compact(slices.Sorted(slices.Values(r.CorrectIndices)))
		items = append(items, model.NewTestItem(r.TestItem, strings.TrimSpace(r.SourceFile)))
	}
	return limit(items, st.QuestionCount)
}

type clozeResponse struct {
	Items []struct {
		model.ClozeItem
		SourceFile string `json:"source_file"`
	} `json:"items"`
}

// GenerateCloze asks for fill-in-the-blank flashcards. Blank hidden words are
// removed; items left with no hidden word, too many, or words that do not
// occur in the sentence are dropped.
func (c *Client) GenerateCloze(ctx context.Context, st model.Settings, corpusText string, dist []corpus.Entry) ([]model.Item, error) {
	var resp clozeResponse
	if err := c.generate(ctx, st, corpusText, dist, "cloze_items", clozeSchema, &resp); err != nil {
		return nil, err
	}
	var items []model.Item
	for i, r := range resp.Items {
		item, err := cleanCloze(r.ClozeItem, st.MaxClozeBlanks)
		if err != nil {
			slog.Warn("dropping generated cloze item", "index", i, "reason", err)
			continue
		}
		items = append(items, model.NewClozeItem(item, strings.TrimSpace(r.SourceFile)))
	}
	return limit(items, st.QuestionCount)
}

type openResponse struct {
	Items []struct {
		model.OpenItem
		SourceFile string `json:"source_file"`
	} `json:"items"`
}

// GenerateOpen asks for open-answer flashcards.
func (c *Client) GenerateOpen(ctx context.Context, st model.Settings, corpusText string, dist []corpus.Entry) ([]model.Item, error) {
	var resp openResponse
	if err := c.generate(ctx, st, corpusText, dist, "open_items", openSchema, &resp); err != nil {
		return nil, err
	}
	var items []model.Item
	for i, r := range resp.Items {
		if strings.TrimSpace(r.Question) == "" || strings.TrimSpace(r.ModelAnswer) == "" {
			slog.Warn("dropping generated open item", "index", i, "reason", "empty question or answer")
			continue
		}
		items = append(items, model.NewOpenItem(r.OpenItem, strings.TrimSpace(r.SourceFile)))
	}
	return limit(items, st.QuestionCount)
}

// Evaluate grades an open answer against the model answer. The score is
// always 0 or 1.
func (c *Client) Evaluate(ctx context.Context, item model.OpenItem, answer string, benevolence model.Benevolence) (model.Evaluation, error) {
	if !c.hasKey {
		return model.Evaluation{}, ErrMissingAPIKey
	}
	prompt, err := prompts.BuildEvalPrompt(benevolence, item, answer)
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("build eval prompt: %w", err)
	}

	raw, err := c.complete(ctx, prompt, "evaluation", evalSchema, evalTemperature)
	if err != nil {
		return model.Evaluation{}, err
	}
	var result model.Evaluation
	if err := json.Unmarshal([]byte(extractJSON(raw)), &result); err != nil {
		return model.Evaluation{}, fmt.Errorf("parse evaluation response: %w (raw: %s)", err, raw)
	}
	if result.Score >= 1 {
		result.Score = 1
	} else {
		result.Score = 0
	}
	result.Feedback = strings.TrimSpace(result.Feedback)
	return result, nil
}

func (c *Client) generate(ctx context.Context, st model.Settings, corpusText string, dist []corpus.Entry, name string, schema jsonschema.Definition, out any) error {
	if !c.hasKey {
		return ErrMissingAPIKey
	}
	prompt, err := prompts.BuildGeneratePrompt(st, corpusText, dist)
	if err != nil {
		return fmt.Errorf("build generation prompt: %w", err)
	}
	raw, err := c.complete(ctx, prompt, name, schema, generateTemperature)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), out); err != nil {
		return fmt.Errorf("parse generation response: %w", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, prompt, name string, schema jsonschema.Definition, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: &schema,
				Strict: true,
			},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "schema", name, "raw", raw)
	return raw, nil
}

func limit(items []model.Item, n int) ([]model.Item, error) {
	if len(items) == 0 {
		return nil, ErrNoValidItems
	}
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return items, nil
}

func validateTest(t model.TestItem, st model.Settings) error {
	if strings.TrimSpace(t.Question) == "" {
		return errors.New("empty question")
	}
	if len(t.Options) != st.OptionsCount {
		return fmt.Errorf("%d options, want %d", len(t.Options), st.OptionsCount)
	}
	for _, o := range t.Options {
		if strings.TrimSpace(o) == "" {
			return errors.New("empty option")
		}
	}
	correct := slices.Compact(slices.Sorted(slices.Values(t.CorrectIndices)))
	if len(correct) == 0 {
		return errors.New("no correct option")
	}
	if len(correct) > 1 && !st.AllowMultipleCorrect {
		return fmt.Errorf("%d correct options in single choice mode", len(correct))
	}
	for _, i := range correct {
		if i < 0 || i >= len(t.Options) {
			return fmt.Errorf("correct index %d out of range", i)
		}
	}
	return nil
}

func cleanCloze(c model.ClozeItem, maxBlanks int) (model.ClozeItem, error) {
	c.FullText = strings.TrimSpace(c.FullText)
	if c.FullText == "" {
		return c, errors.New("empty sentence")
	}
	lower := strings.ToLower(c.FullText)
	var words []string
	for _, w := range c.HiddenWords {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(w)) {
			return c, fmt.Errorf("hidden word %q not in sentence", w)
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return c, errors.New("no hidden words")
	}
	if maxBlanks > 0 && len(words) > maxBlanks {
		return c, fmt.Errorf("%d hidden words, at most %d allowed", len(words), maxBlanks)
	}
	c.HiddenWords = words
	return c, nil
}

// extractJSON strips markdown fences and surrounding prose some compatible
// endpoints add even when a response format is requested.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		start := 3
		if nl := strings.Index(content[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(content[start:], "```"); end != -1 {
			content = content[start : start+end]
		} else {
			content = content[start:]
		}
	}
	content = strings.TrimSpace(content)
	if s := strings.Index(content, "{"); s != -1 {
		if e := strings.LastIndex(content, "}"); e > s {
			content = content[s : e+1]
		}
	}
	return content
}
