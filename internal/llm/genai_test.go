package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
	resp        *genai.GenerateContentResponse
	err         error
	wait        bool
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel, f.gotContents, f.gotConfig = model, contents, cfg
	if f.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: geminiModel, Parts: []*genai.Part{{Text: s}}}}},
	}
}

func TestToContents_MapsRolesAndKeepsOrder(t *testing.T) {
	sys, contents := toContents([]Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "What is EBITDA?"},
		{Role: RoleAssistant, Content: "EBITDA is..."},
		{Role: RoleUser, Content: "And margin?"},
	})
	if sys == nil || len(sys.Parts) != 1 || sys.Parts[0].Text != "persona" {
		t.Fatalf("system instruction = %+v", sys)
	}
	wantRoles := []string{geminiUser, geminiModel, geminiUser}
	wantText := []string{"What is EBITDA?", "EBITDA is...", "And margin?"}
	if len(contents) != 3 {
		t.Fatalf("contents len = %d", len(contents))
	}
	for i, c := range contents {
		if c.Role != wantRoles[i] || c.Parts[0].Text != wantText[i] {
			t.Fatalf("content %d = %s/%q", i, c.Role, c.Parts[0].Text)
		}
	}
}

func TestToContents_MissingAnswerIsNeverAnEmptyPart(t *testing.T) {
	_, contents := toContents([]Message{
		{Role: RoleUser, Content: "What is EBITDA?"},
		{Role: RoleAssistant, Content: ""},
		{Role: RoleUser, Content: "And margin?"},
	})
	if len(contents) != 3 {
		t.Fatalf("contents len = %d", len(contents))
	}
	if c := contents[1]; c.Role != geminiModel || c.Parts[0].Text != noAnswer {
		t.Fatalf("missing answer = %s/%q", c.Role, c.Parts[0].Text)
	}
}

func TestGenAI_Complete(t *testing.T) {
	f := &fakeGenerator{resp: textResponse("  EBITDA is...  ")}
	g := &GenAI{models: f}

	out, err := g.Complete(context.Background(), Request{Model: "m1", Messages: []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "q"},
	}})
	if err != nil || out != "EBITDA is..." {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if f.gotModel != "m1" || f.gotConfig == nil || f.gotConfig.SystemInstruction == nil {
		t.Fatalf("request not forwarded: model=%q cfg=%+v", f.gotModel, f.gotConfig)
	}
}

func TestGenAI_CompleteErrors(t *testing.T) {
	boom := errors.New("boom")
	g := &GenAI{models: &fakeGenerator{err: boom}}
	if _, err := g.Complete(context.Background(), Request{Model: "m"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}

	g = &GenAI{models: &fakeGenerator{resp: textResponse("   ")}}
	if _, err := g.Complete(context.Background(), Request{Model: "m"}); !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}

	g = &GenAI{models: &fakeGenerator{wait: true}, timeout: 10 * time.Millisecond}
	if _, err := g.Complete(context.Background(), Request{Model: "m"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

type stubCompleter struct{ err error }

func (s stubCompleter) Complete(context.Context, Request) (string, error) { return "ok", s.err }

func TestInstrument_CountsOutcomes(t *testing.T) {
	model := "instrument-test"
	c := Instrument(stubCompleter{})
	_, _ = c.Complete(context.Background(), Request{Model: model})
	c = Instrument(stubCompleter{err: context.DeadlineExceeded})
	_, _ = c.Complete(context.Background(), Request{Model: model})

	if got := testutil.ToFloat64(completions.WithLabelValues(model, "ok")); got != 1 {
		t.Fatalf("ok count = %v", got)
	}
	if got := testutil.ToFloat64(completions.WithLabelValues(model, "timeout")); got != 1 {
		t.Fatalf("timeout count = %v", got)
	}
}
