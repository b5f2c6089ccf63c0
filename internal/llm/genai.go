package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// gemini roles; the API calls the assistant "model".
const (
	geminiUser  = "user"
	geminiModel = "model"
)

// noAnswer stands in for a stored turn without an answer; Gemini rejects
// empty text parts.
const noAnswer = "(no answer)"

// contentGenerator is the slice of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAI completes transcripts with the Gemini API.
type GenAI struct {
	models  contentGenerator
	timeout time.Duration
}

var _ Completer = (*GenAI)(nil)

// NewGenAI builds a client. With an empty apiKey the SDK falls back to its
// environment configuration (GOOGLE_API_KEY or Vertex AI ADC).
func NewGenAI(ctx context.Context, apiKey string, timeout time.Duration) (*GenAI, error) {
	var cc *genai.ClientConfig
	if apiKey != "" {
		cc = &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAI{models: client.Models, timeout: timeout}, nil
}

// Complete sends the transcript and returns the reply text. System entries
// become the system instruction; the rest keep their order.
func (g *GenAI) Complete(ctx context.Context, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	system, contents := toContents(req.Messages)
	var cfg *genai.GenerateContentConfig
	if system != nil {
		cfg = &genai.GenerateContentConfig{SystemInstruction: system}
	}

	resp, err := g.models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func toContents(msgs []Message) (*genai.Content, []*genai.Content) {
	var (
		sys      []*genai.Part
		contents = make([]*genai.Content, 0, len(msgs))
	)
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			sys = append(sys, &genai.Part{Text: m.Content})
		case RoleAssistant:
			text := m.Content
			if strings.TrimSpace(text) == "" {
				text = noAnswer
			}
			contents = append(contents, &genai.Content{Role: geminiModel, Parts: []*genai.Part{{Text: text}}})
		default:
			contents = append(contents, &genai.Content{Role: geminiUser, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	if len(sys) == 0 {
		return nil, contents
	}
	return &genai.Content{Parts: sys}, contents
}
