package polly

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/qamqor-ai/qamqor/pkg/provider"
	"github.com/qamqor-ai/qamqor/pkg/provider/tts"
	"github.com/qamqor-ai/qamqor/pkg/types"
)

type fakeClient struct {
	input *polly.SynthesizeSpeechInput
	audio []byte
	err   error
}

func (f *fakeClient) SynthesizeSpeech(_ context.Context, params *polly.SynthesizeSpeechInput, _ ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &polly.SynthesizeSpeechOutput{
		AudioStream: io.NopCloser(bytes.NewReader(f.audio)),
	}, nil
}

func TestSynthesize(t *testing.T) {
	client := &fakeClient{audio: []byte("mp3 bytes")}
	p := NewWithClient(client)

	res, err := p.Synthesize(context.Background(), tts.Request{
		Text:     "Здравствуйте! Чем могу помочь?",
		Language: types.LanguageRussian,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(res.Audio) != "mp3 bytes" {
		t.Errorf("Audio = %q", res.Audio)
	}
	if res.Format != "mp3" {
		t.Errorf("Format = %q, want mp3", res.Format)
	}
	if res.DurationSeconds <= 0 {
		t.Errorf("DurationSeconds = %v", res.DurationSeconds)
	}

	if client.input.VoiceId != pollytypes.VoiceId("Tatyana") {
		t.Errorf("VoiceId = %q, want default Tatyana", client.input.VoiceId)
	}
	if *client.input.Text != "Здравствуйте! Чем могу помочь?" {
		t.Errorf("Text = %q", *client.input.Text)
	}
}

func TestSynthesize_VoiceOverride(t *testing.T) {
	client := &fakeClient{audio: []byte("x")}
	p := NewWithClient(client, WithVoice("Maxim"))

	if _, err := p.Synthesize(context.Background(), tts.Request{
		Text:     "привет",
		Language: types.LanguageRussian,
	}); err != nil {
		t.Fatal(err)
	}
	if client.input.VoiceId != pollytypes.VoiceId("Maxim") {
		t.Errorf("VoiceId = %q, want Maxim", client.input.VoiceId)
	}
}

func TestSynthesize_KazakhUnavailable(t *testing.T) {
	client := &fakeClient{audio: []byte("x")}
	p := NewWithClient(client)

	_, err := p.Synthesize(context.Background(), tts.Request{
		Text:     "Сәлем!",
		Language: types.LanguageKazakh,
	})
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if client.input != nil {
		t.Error("Polly called for an unsupported language")
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	p := NewWithClient(&fakeClient{})
	_, err := p.Synthesize(context.Background(), tts.Request{Language: types.LanguageRussian})
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestSynthesize_APIFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("throttled")}
	p := NewWithClient(client)

	_, err := p.Synthesize(context.Background(), tts.Request{
		Text:     "привет",
		Language: types.LanguageRussian,
	})
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Errorf("err = %v, want it to wrap ErrUnavailable", err)
	}
}
