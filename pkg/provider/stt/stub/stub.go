// Package stub provides the deterministic local STT provider used as the
// terminal entry of the STT fallback chain.
//
// The stub never fails. It returns a fixed, language-appropriate greeting with
// a high confidence score so that the system stays demoable with zero
// configured credentials. Latency is reported with a fixed +100ms floor so
// that latency figures remain meaningful in demo mode instead of reading as
// near-zero.
package stub

import (
	"context"
	"strings"
	"time"

	"github.com/qamqor-ai/qamqor/pkg/provider/stt"
	"github.com/qamqor-ai/qamqor/pkg/types"
)

const (
	// latencyFloor models perceived "thinking" latency in demo mode.
	latencyFloor = 100 * time.Millisecond

	// stubConfidence is the overall confidence reported for stub transcripts.
	stubConfidence = 0.92

	// wordConfidence and wordSpacing shape the synthetic word timeline: each
	// word occupies a 0.3s window with per-word confidence 0.9.
	wordConfidence = 0.9
	wordSpacing    = 0.3
)

// Provider implements stt.Provider with canned transcripts.
type Provider struct{}

var _ stt.Provider = (*Provider)(nil)

// New returns the stub STT provider.
func New() *Provider {
	return &Provider{}
}

// Transcribe returns the canned greeting for the requested language. It never
// returns an error.
func (p *Provider) Transcribe(_ context.Context, req stt.Request) (*stt.Result, error) {
	start := time.Now()

	text := "Привет, как дела?"
	if req.Language == types.LanguageKazakh {
		text = "Сәлем, қалайсыз?"
	}

	return &stt.Result{
		Text:       text,
		Confidence: stubConfidence,
		Words:      SyntheticWords(text),
		LatencyMS:  (time.Since(start) + latencyFloor).Milliseconds(),
	}, nil
}

// SyntheticWords builds an evenly spaced word timeline for text: word i spans
// [i*0.3s, (i+1)*0.3s) with confidence 0.9. Exported because remote adapters
// whose backends report no word detail reuse it.
func SyntheticWords(text string) []types.Word {
	fields := strings.Fields(text)
	words := make([]types.Word, len(fields))
	for i, w := range fields {
		words[i] = types.Word{
			Word:       w,
			Start:      float64(i) * wordSpacing,
			End:        float64(i+1) * wordSpacing,
			Confidence: wordConfidence,
		}
	}
	return words
}
