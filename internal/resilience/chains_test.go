package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/qamqor-ai/qamqor/pkg/provider"
	"github.com/qamqor-ai/qamqor/pkg/provider/llm"
	llmmock "github.com/qamqor-ai/qamqor/pkg/provider/llm/mock"
	llmstub "github.com/qamqor-ai/qamqor/pkg/provider/llm/stub"
	"github.com/qamqor-ai/qamqor/pkg/provider/stt"
	sttmock "github.com/qamqor-ai/qamqor/pkg/provider/stt/mock"
	sttstub "github.com/qamqor-ai/qamqor/pkg/provider/stt/stub"
	"github.com/qamqor-ai/qamqor/pkg/provider/tts"
	ttsmock "github.com/qamqor-ai/qamqor/pkg/provider/tts/mock"
	ttsstub "github.com/qamqor-ai/qamqor/pkg/provider/tts/stub"
	"github.com/qamqor-ai/qamqor/pkg/types"
)

func TestSTTChain_ZeroProvidersUsesStub(t *testing.T) {
	chain := NewSTTChain(sttstub.New(), FallbackConfig{})

	tests := []struct {
		lang types.Language
		text string
	}{
		{types.LanguageRussian, "Привет, как дела?"},
		{types.LanguageKazakh, "Сәлем, қалайсыз?"},
	}
	for _, tt := range tests {
		res, err := chain.Transcribe(context.Background(), stt.Request{
			Audio:    make([]byte, 1000),
			Language: tt.lang,
		})
		if err != nil {
			t.Fatalf("Transcribe(%s): %v", tt.lang, err)
		}
		if res.Text != tt.text {
			t.Errorf("Text = %q, want %q", res.Text, tt.text)
		}
		if res.Confidence != 0.92 {
			t.Errorf("Confidence = %v, want 0.92", res.Confidence)
		}
		if res.LatencyMS < 100 {
			t.Errorf("LatencyMS = %d, want >= 100", res.LatencyMS)
		}
	}
}

func TestSTTChain_RemoteSuccessSkipsStub(t *testing.T) {
	remote := &sttmock.Provider{Result: &stt.Result{Text: "remote text", Confidence: 0.99}}
	chain := NewSTTChain(sttstub.New(), FallbackConfig{})
	chain.Use("remote", remote)

	res, err := chain.Transcribe(context.Background(), stt.Request{Audio: []byte("x")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "remote text" {
		t.Errorf("Text = %q, want remote result", res.Text)
	}
	if remote.CallCount() != 1 {
		t.Errorf("remote CallCount = %d, want 1", remote.CallCount())
	}
}

func TestSTTChain_UnavailableRemoteFallsToStub(t *testing.T) {
	remote := &sttmock.Provider{Err: provider.ErrUnavailable}
	chain := NewSTTChain(sttstub.New(), FallbackConfig{})
	chain.Use("remote", remote)

	res, err := chain.Transcribe(context.Background(), stt.Request{
		Audio:    []byte("x"),
		Language: types.LanguageKazakh,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "Сәлем, қалайсыз?" {
		t.Errorf("Text = %q, want stub greeting", res.Text)
	}
}

func TestSTTChain_DefectDoesNotReachStub(t *testing.T) {
	defect := errors.New("corrupted request state")
	remote := &sttmock.Provider{Err: defect}
	chain := NewSTTChain(sttstub.New(), FallbackConfig{})
	chain.Use("remote", remote)

	_, err := chain.Transcribe(context.Background(), stt.Request{Audio: []byte("x")})
	if !errors.Is(err, defect) {
		t.Fatalf("err = %v, want the defect error", err)
	}
}

func TestSTTChain_NilStub(t *testing.T) {
	chain := NewSTTChain(nil, FallbackConfig{})

	_, err := chain.Transcribe(context.Background(), stt.Request{Audio: []byte("x")})
	if !errors.Is(err, ErrChainExhausted) {
		t.Fatalf("err = %v, want ErrChainExhausted", err)
	}
}

func TestSTTChain_Providers(t *testing.T) {
	chain := NewSTTChain(sttstub.New(), FallbackConfig{})
	chain.Use("google", &sttmock.Provider{})
	chain.Use("whisper-api", &sttmock.Provider{})

	got := chain.Providers()
	if len(got) != 2 || got[0] != "google" || got[1] != "whisper-api" {
		t.Errorf("Providers() = %v, want [google whisper-api]", got)
	}
}

func TestLLMChain_ZeroProvidersUsesStub(t *testing.T) {
	chain := NewLLMChain(llmstub.New(), FallbackConfig{})

	res, err := chain.Generate(context.Background(), llm.Request{
		UserMessage: "привет",
		Language:    types.LanguageRussian,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text == "" {
		t.Error("stub reply is empty")
	}
}

func TestLLMChain_UnavailableRemoteFallsToStub(t *testing.T) {
	remote := &llmmock.Provider{Err: provider.ErrUnavailable}
	chain := NewLLMChain(llmstub.New(), FallbackConfig{})
	chain.Use("groq", remote)

	res, err := chain.Generate(context.Background(), llm.Request{
		UserMessage: "сәлем",
		Language:    types.LanguageKazakh,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text == "" {
		t.Error("stub reply is empty")
	}
	if remote.CallCount() != 1 {
		t.Errorf("remote CallCount = %d, want 1", remote.CallCount())
	}
}

func TestTTSChain_ZeroProvidersUsesStub(t *testing.T) {
	chain := NewTTSChain(ttsstub.New(), FallbackConfig{})

	res, err := chain.Synthesize(context.Background(), tts.Request{
		Text:     "Привет, как дела?",
		Language: types.LanguageRussian,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(res.Audio) == 0 {
		t.Error("stub produced no audio")
	}
	if res.Format != "wav" {
		t.Errorf("Format = %q, want wav", res.Format)
	}
}

func TestTTSChain_RemoteSuccessSkipsStub(t *testing.T) {
	remote := &ttsmock.Provider{Result: &tts.Result{Audio: []byte("mp3"), Format: "mp3"}}
	chain := NewTTSChain(ttsstub.New(), FallbackConfig{})
	chain.Use("polly", remote)

	res, err := chain.Synthesize(context.Background(), tts.Request{Text: "сәлем"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Format != "mp3" {
		t.Errorf("Format = %q, want remote result", res.Format)
	}
}
