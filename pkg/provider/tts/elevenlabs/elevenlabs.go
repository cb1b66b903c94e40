// Package elevenlabs provides a TTS provider backed by the ElevenLabs
// streaming WebSocket API.
//
// Synthesis of one assistant reply is short, but the stream-input endpoint is
// still the cheapest way to get PCM out of ElevenLabs without an extra REST
// round trip per request, so the adapter opens a WebSocket, sends the full
// text plus a flush, and accumulates the audio chunks into one buffer.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/websocket"

	"github.com/qamqor-ai/qamqor/pkg/provider"
	"github.com/qamqor-ai/qamqor/pkg/provider/tts"
	"github.com/qamqor-ai/qamqor/pkg/types"
)

const (
	wsEndpointFmt    = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"
	defaultTimeout   = 30 * time.Second
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g. "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithOutputFormat sets the audio output format (e.g. "pcm_16000").
func WithOutputFormat(format string) Option {
	return func(p *Provider) { p.outputFormat = format }
}

// WithVoice maps a language to an ElevenLabs voice ID. Languages without a
// voice mapping fail with a provider-unavailable error.
func WithVoice(lang types.Language, voiceID string) Option {
	return func(p *Provider) { p.voices[lang] = voiceID }
}

// WithTimeout bounds one full synthesis round trip. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	timeout      time.Duration
	voices       map[types.Language]string
}

var _ tts.Provider = (*Provider)(nil)

// New creates an ElevenLabs Provider. apiKey must be non-empty; at least one
// language→voice mapping should be supplied via [WithVoice].
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		timeout:      defaultTimeout,
		voices:       make(map[types.Language]string),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- WebSocket message types ----

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
// An empty Text is the flush command.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// boiMessage is the initial "begin of input" handshake carrying the API key.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	OutputFormat  string         `json:"output_format,omitempty"`
}

// audioResponse is a JSON message received over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded audio
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// Synthesize implements tts.Provider. It opens a WebSocket, sends the text and
// a flush command, and concatenates the returned audio chunks.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	start := time.Now()

	if req.Text == "" {
		return nil, fmt.Errorf("elevenlabs: empty text: %w", provider.ErrUnavailable)
	}
	voiceID, ok := p.voices[req.Language]
	if !ok {
		return nil, fmt.Errorf("elevenlabs: no voice configured for language %q: %w", req.Language, provider.ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	wsURL := fmt.Sprintf(wsEndpointFmt, voiceID, p.model)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %v: %w", err, provider.ErrUnavailable)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	boi := boiMessage{
		Text:          " ", // ElevenLabs requires a non-empty first text value
		VoiceSettings: vs,
		XiAPIKey:      p.apiKey,
		OutputFormat:  p.outputFormat,
	}
	if err := writeJSON(ctx, conn, boi); err != nil {
		return nil, fmt.Errorf("elevenlabs: send BOI: %v: %w", err, provider.ErrUnavailable)
	}
	if err := writeJSON(ctx, conn, textMessage{Text: req.Text}); err != nil {
		return nil, fmt.Errorf("elevenlabs: send text: %v: %w", err, provider.ErrUnavailable)
	}
	// Flush: empty-text message signals end of input.
	if err := writeJSON(ctx, conn, textMessage{Text: ""}); err != nil {
		return nil, fmt.Errorf("elevenlabs: send flush: %v: %w", err, provider.ErrUnavailable)
	}

	var audio []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if len(audio) > 0 {
				// Server closed after the final chunk; some gateway paths skip
				// the isFinal marker.
				break
			}
			return nil, fmt.Errorf("elevenlabs: read: %v: %w", err, provider.ErrUnavailable)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio chunk: %v: %w", err, provider.ErrUnavailable)
			}
			audio = append(audio, chunk...)
		}
		if resp.IsFinal {
			break
		}
	}

	return &tts.Result{
		Audio:           audio,
		Format:          p.outputFormat,
		DurationSeconds: pcmDuration(len(audio), p.outputFormat, req.Text),
		LatencyMS:       time.Since(start).Milliseconds(),
	}, nil
}

// writeJSON marshals v and writes it as a text frame.
func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// pcmDuration computes playback duration from the byte length for PCM output
// formats, falling back to the text-length estimate for encoded formats.
func pcmDuration(n int, format string, text string) float64 {
	var rate int
	switch format {
	case "pcm_16000":
		rate = 16000
	case "pcm_24000":
		rate = 24000
	case "pcm_44100":
		rate = 44100
	default:
		return tts.EstimateDuration(text)
	}
	return float64(n) / float64(rate*2) // 16-bit mono
}
