package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/qamqor-ai/qamqor/pkg/provider"
	"github.com/qamqor-ai/qamqor/pkg/provider/tts"
	"github.com/qamqor-ai/qamqor/pkg/types"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("empty api key accepted")
	}
	p, err := New("xi-key", WithVoice(types.LanguageRussian, "voice-1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != defaultModel || p.outputFormat != defaultOutputFmt {
		t.Errorf("defaults = (%q, %q)", p.model, p.outputFormat)
	}
}

func TestSynthesize_NoVoiceForLanguage(t *testing.T) {
	p, err := New("xi-key", WithVoice(types.LanguageRussian, "voice-1"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Synthesize(context.Background(), tts.Request{
		Text:     "Сәлем!",
		Language: types.LanguageKazakh,
	})
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	p, err := New("xi-key", WithVoice(types.LanguageRussian, "voice-1"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Synthesize(context.Background(), tts.Request{Language: types.LanguageRussian})
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestBOIMessage_Shape(t *testing.T) {
	data, err := json.Marshal(boiMessage{
		Text:          " ",
		VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
		XiAPIKey:      "xi-key",
		OutputFormat:  "pcm_16000",
	})
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["xi_api_key"] != "xi-key" || m["output_format"] != "pcm_16000" {
		t.Errorf("payload = %s", data)
	}
	vs, _ := m["voice_settings"].(map[string]any)
	if vs["stability"] != 0.5 {
		t.Errorf("voice_settings = %v", vs)
	}
}

func TestPCMDuration(t *testing.T) {
	// 1 second of 16kHz 16-bit mono.
	if got := pcmDuration(32000, "pcm_16000", ""); got != 1.0 {
		t.Errorf("pcmDuration = %v, want 1.0", got)
	}
	// Encoded formats fall back to the text estimate.
	if got := pcmDuration(999, "mp3_44100_128", "123456789012"); got != 1.0 {
		t.Errorf("fallback duration = %v, want 1.0", got)
	}
}
