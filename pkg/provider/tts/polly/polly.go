// Package polly provides a TTS provider backed by Amazon Polly.
//
// Polly carries Russian voices but none for Kazakh, so Kazakh requests fail
// with a provider-unavailable error and the fallback chain moves on to the
// next provider.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/qamqor-ai/qamqor/pkg/provider"
	"github.com/qamqor-ai/qamqor/pkg/provider/tts"
	"github.com/qamqor-ai/qamqor/pkg/types"
)

const (
	defaultRegion  = "eu-central-1"
	defaultVoiceID = "Tatyana"
	defaultTimeout = 15 * time.Second
)

// synthClient is the slice of the Polly API the adapter uses; tests substitute
// a fake.
type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithRegion sets the AWS region. Defaults to eu-central-1.
func WithRegion(region string) Option {
	return func(p *Provider) { p.region = region }
}

// WithVoice overrides the Russian voice ID. Defaults to "Tatyana".
func WithVoice(voiceID string) Option {
	return func(p *Provider) { p.voiceID = voiceID }
}

// WithTimeout sets the per-request timeout. Defaults to 15s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// Provider implements tts.Provider using Amazon Polly.
type Provider struct {
	client  synthClient
	region  string
	voiceID string
	timeout time.Duration
}

var _ tts.Provider = (*Provider)(nil)

// New creates a Polly provider using the default AWS credential chain.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	p := &Provider{
		region:  defaultRegion,
		voiceID: defaultVoiceID,
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(p)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
	if err != nil {
		return nil, fmt.Errorf("polly: load aws config: %w", err)
	}
	p.client = polly.NewFromConfig(awsCfg)
	return p, nil
}

// NewWithClient creates a Provider around an existing Polly client. Used by
// tests.
func NewWithClient(client synthClient, opts ...Option) *Provider {
	p := &Provider{
		client:  client,
		region:  defaultRegion,
		voiceID: defaultVoiceID,
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	start := time.Now()

	if req.Text == "" {
		return nil, fmt.Errorf("polly: empty text: %w", provider.ErrUnavailable)
	}
	if req.Language != types.LanguageRussian {
		return nil, fmt.Errorf("polly: no voice for language %q: %w", req.Language, provider.ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text := req.Text
	out, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       pollytypes.EngineStandard,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(p.voiceID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("polly: synthesize (%s): %v: %w", apiErr.ErrorCode(), err, provider.ErrUnavailable)
		}
		return nil, fmt.Errorf("polly: synthesize: %v: %w", err, provider.ErrUnavailable)
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("polly: read audio stream: %v: %w", err, provider.ErrUnavailable)
	}

	return &tts.Result{
		Audio:           audio,
		Format:          "mp3",
		DurationSeconds: tts.EstimateDuration(req.Text),
		LatencyMS:       time.Since(start).Milliseconds(),
	}, nil
}
