// Package googlestt provides an STT provider backed by the Google Cloud
// Speech-to-Text v1 API.
//
// Authentication relies on Application Default Credentials; no API key is
// passed explicitly. The adapter performs batch recognition — the audio buffer
// of one turn is short enough that streaming brings no benefit.
package googlestt

import (
	"context"
	"fmt"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/qamqor-ai/qamqor/pkg/provider"
	"github.com/qamqor-ai/qamqor/pkg/provider/stt"
	"github.com/qamqor-ai/qamqor/pkg/types"
)

// defaultTimeout bounds a single recognition round trip.
const defaultTimeout = 30 * time.Second

// Provider implements stt.Provider using Google Cloud Speech.
type Provider struct {
	client  *speech.Client
	timeout time.Duration
}

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithTimeout sets the per-request timeout. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// New creates a Google Cloud Speech provider using Application Default
// Credentials.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("googlestt: create speech client: %w", err)
	}
	p := &Provider{client: client, timeout: defaultTimeout}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the underlying gRPC connection.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	start := time.Now()

	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("googlestt: empty audio input: %w", provider.ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cfg := &speechpb.RecognitionConfig{
		// Encoding left unspecified: WAV/FLAC headers are self-describing and
		// the service infers the rest.
		LanguageCode:          languageCode(req.Language),
		EnableWordConfidence:  true,
		EnableWordTimeOffsets: true,
	}
	if len(req.Hints) > 0 {
		cfg.SpeechContexts = []*speechpb.SpeechContext{{Phrases: req.Hints}}
	}

	resp, err := p.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: req.Audio},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("googlestt: recognize: %v: %w", err, provider.ErrUnavailable)
	}

	return convertResponse(resp, start), nil
}

// convertResponse flattens a RecognizeResponse into a single stt.Result,
// concatenating the top alternative of each result in order.
func convertResponse(resp *speechpb.RecognizeResponse, start time.Time) *stt.Result {
	out := &stt.Result{
		LatencyMS: time.Since(start).Milliseconds(),
	}

	var confidenceSum float64
	var confidenceN int
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		alt := alts[0]
		if out.Text != "" {
			out.Text += " "
		}
		out.Text += alt.GetTranscript()
		confidenceSum += float64(alt.GetConfidence())
		confidenceN++

		for _, w := range alt.GetWords() {
			out.Words = append(out.Words, types.Word{
				Word:       w.GetWord(),
				Start:      w.GetStartTime().AsDuration().Seconds(),
				End:        w.GetEndTime().AsDuration().Seconds(),
				Confidence: float64(w.GetConfidence()),
			})
		}
	}
	if confidenceN > 0 {
		out.Confidence = confidenceSum / float64(confidenceN)
	}
	return out
}

// languageCode maps the assistant language set onto BCP-47 recognition codes.
func languageCode(lang types.Language) string {
	if lang == types.LanguageKazakh {
		return "kk-KZ"
	}
	return "ru-RU"
}
