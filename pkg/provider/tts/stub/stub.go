// Package stub provides the deterministic local TTS provider used as the
// terminal entry of the TTS fallback chain.
//
// It emits a valid silent WAV file whose length matches the estimated playback
// duration of the text, so downstream audio handling (storage, players,
// duration accounting) behaves identically in demo mode.
package stub

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/qamqor-ai/qamqor/pkg/provider/tts"
)

const (
	// latencyFloor models perceived synthesis latency in demo mode.
	latencyFloor = 100 * time.Millisecond

	sampleRate    = 16000
	bytesPerFrame = 2 // 16-bit mono PCM

	// maxDurationSeconds caps the silent buffer so a pathological text cannot
	// allocate unbounded audio.
	maxDurationSeconds = 30.0
)

// Provider implements tts.Provider with silent WAV output.
type Provider struct{}

var _ tts.Provider = (*Provider)(nil)

// New returns the stub TTS provider.
func New() *Provider {
	return &Provider{}
}

// Synthesize returns a silent WAV sized to the estimated playback duration of
// req.Text. It never returns an error.
func (p *Provider) Synthesize(_ context.Context, req tts.Request) (*tts.Result, error) {
	start := time.Now()

	duration := tts.EstimateDuration(req.Text)
	if duration > maxDurationSeconds {
		duration = maxDurationSeconds
	}

	return &tts.Result{
		Audio:           silentWAV(duration),
		Format:          "wav",
		DurationSeconds: duration,
		LatencyMS:       (time.Since(start) + latencyFloor).Milliseconds(),
	}, nil
}

// silentWAV renders seconds of 16kHz 16-bit mono silence as a complete
// RIFF/WAVE file.
func silentWAV(seconds float64) []byte {
	dataLen := int(seconds*sampleRate) * bytesPerFrame
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(buf[24:28], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], sampleRate*bytesPerFrame)
	binary.LittleEndian.PutUint16(buf[32:34], bytesPerFrame)
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	return buf
}
