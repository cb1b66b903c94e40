package stub

import (
	"bytes"
	"context"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/qamqor-ai/qamqor/pkg/provider/tts"
	"github.com/qamqor-ai/qamqor/pkg/types"
)

func TestSynthesize_ValidWAV(t *testing.T) {
	p := New()
	res, err := p.Synthesize(context.Background(), tts.Request{
		Text:     "Здравствуйте! Чем могу помочь?",
		Language: types.LanguageRussian,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	audio := res.Audio
	if len(audio) < 44 {
		t.Fatalf("audio too short for a WAV header: %d bytes", len(audio))
	}
	if !bytes.Equal(audio[0:4], []byte("RIFF")) || !bytes.Equal(audio[8:12], []byte("WAVE")) {
		t.Error("missing RIFF/WAVE magic")
	}
	if !bytes.Equal(audio[12:16], []byte("fmt ")) || !bytes.Equal(audio[36:40], []byte("data")) {
		t.Error("missing fmt/data chunks")
	}

	dataLen := binary.LittleEndian.Uint32(audio[40:44])
	if int(dataLen) != len(audio)-44 {
		t.Errorf("data chunk length = %d, want %d", dataLen, len(audio)-44)
	}
	if riffLen := binary.LittleEndian.Uint32(audio[4:8]); int(riffLen) != len(audio)-8 {
		t.Errorf("RIFF length = %d, want %d", riffLen, len(audio)-8)
	}

	if res.Format != "wav" {
		t.Errorf("Format = %q, want wav", res.Format)
	}
	if res.DurationSeconds <= 0 {
		t.Errorf("DurationSeconds = %v, want > 0", res.DurationSeconds)
	}
	if res.LatencyMS < 100 {
		t.Errorf("LatencyMS = %d, want >= 100", res.LatencyMS)
	}
}

func TestSynthesize_DurationMatchesEstimate(t *testing.T) {
	text := "Сәлем! Мен жақсымын, рахмет."
	p := New()
	res, err := p.Synthesize(context.Background(), tts.Request{
		Text:     text,
		Language: types.LanguageKazakh,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if want := tts.EstimateDuration(text); res.DurationSeconds != want {
		t.Errorf("DurationSeconds = %v, want %v", res.DurationSeconds, want)
	}
}

func TestSynthesize_DurationCapped(t *testing.T) {
	p := New()
	res, err := p.Synthesize(context.Background(), tts.Request{
		Text: strings.Repeat("а", 10000),
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.DurationSeconds != 30.0 {
		t.Errorf("DurationSeconds = %v, want cap of 30", res.DurationSeconds)
	}
	// 30s of 16kHz 16-bit mono plus the 44-byte header.
	if want := 44 + 30*16000*2; len(res.Audio) != want {
		t.Errorf("len(Audio) = %d, want %d", len(res.Audio), want)
	}
}
