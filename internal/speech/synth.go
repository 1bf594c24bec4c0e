package speech

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var knownVoices = []openai.SpeechVoice{
	openai.VoiceAlloy,
	openai.VoiceEcho,
	openai.VoiceFable,
	openai.VoiceOnyx,
	openai.VoiceNova,
	openai.VoiceShimmer,
}

// Synthesizer renders utterances to MP3 audio through an OpenAI-compatible
// text-to-speech endpoint.
type Synthesizer struct {
	api          *openai.Client
	model        openai.SpeechModel
	defaultVoice openai.SpeechVoice
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(baseURL, apiKey, model, voice string) *Synthesizer {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.TTSModel1)
	}
	def := MatchVoice(voice, openai.VoiceAlloy)
	return &Synthesizer{
		api:          openai.NewClientWithConfig(config),
		model:        openai.SpeechModel(model),
		defaultVoice: def,
	}
}

// Synthesize returns the MP3 audio for u. The caller closes the reader.
func (s *Synthesizer) Synthesize(ctx context.Context, u Utterance) (io.ReadCloser, error) {
	if strings.TrimSpace(u.Text) == "" {
		return nil, fmt.Errorf("empty utterance")
	}
	resp, err := s.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          u.Text,
		Voice:          MatchVoice(u.Voice, s.defaultVoice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("TTS API call: %w", err)
	}
	return resp, nil
}

// MatchVoice maps a browser voice selector to a TTS voice. Selectors that
// name a known voice anywhere in them match it; anything else gets fallback.
func MatchVoice(voiceURI string, fallback openai.SpeechVoice) openai.SpeechVoice {
	v := strings.ToLower(strings.TrimSpace(voiceURI))
	if v == "" {
		return fallback
	}
	for _, known := range knownVoices {
		if strings.Contains(v, string(known)) {
			return known
		}
	}
	return fallback
}
