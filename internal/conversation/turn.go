package conversation

import (
	"fmt"
	"time"

	"github.com/qamqor-ai/qamqor/pkg/types"
)

// TurnState is the lifecycle state of a turn.
//
// Legal transitions:
//
//	Created → Transcribed → Confirmed  → Complete
//	                      → Corrected  → Complete
//	Created → Complete                       (text-originated shortcut)
//	Transcribed → Complete                   (confirmation is advisory)
//
// Complete is terminal; any mutation of a complete turn fails with
// [ErrInvalidState].
type TurnState int

const (
	// StateCreated is the initial state of a freshly allocated turn.
	StateCreated TurnState = iota

	// StateTranscribed means the STT stage has recorded a transcript.
	StateTranscribed

	// StateConfirmed means the user accepted the transcript as-is.
	StateConfirmed

	// StateCorrected means the user rejected the transcript and supplied a
	// replacement text.
	StateCorrected

	// StateResponded means assistant text has been attached; the turn moves to
	// StateComplete in the same transition once audio output is recorded, so
	// this value never persists.
	StateResponded

	// StateComplete is the terminal state: assistant text and audio output are
	// both attached.
	StateComplete
)

// String returns the lower-case state name.
func (s TurnState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateTranscribed:
		return "transcribed"
	case StateConfirmed:
		return "confirmed"
	case StateCorrected:
		return "corrected"
	case StateResponded:
		return "responded"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// TranscriptionResult carries the STT stage output into the state machine.
type TranscriptionResult struct {
	RawText        string
	NormalizedText string
	Confidence     float64
	Words          []types.Word
	LatencyMS      int64
}

// Turn is one request/response exchange within a session.
type Turn struct {
	ID             string
	ConversationID string

	// TurnNumber is 1-based, strictly increasing, and gapless per session.
	TurnNumber int

	Timestamp time.Time
	State     TurnState

	// AudioInput references the uploaded audio; nil for text-originated turns.
	AudioInput *AudioRef

	// Transcript fields, set once by RecordTranscription. The normalized
	// transcript may subsequently be overridden exactly once by a correction.
	RawTranscript        string
	NormalizedTranscript string
	TranscriptConfidence float64
	STTLatencyMS         int64
	Words                []types.Word

	// UserConfirmed is a tri-state flag: nil until the user reacts.
	UserConfirmed *bool

	// UserCorrection is the user-supplied replacement transcript, set only
	// when UserConfirmed is false.
	UserCorrection string

	// Response fields, set once by RecordResponse.
	AssistantText string
	LLMLatencyMS  int64
	AudioOutput   *AudioRef
	TTSLatencyMS  int64

	// Review flags derived from the transcription result; see Evaluate.
	NeedsReview   bool
	LowConfidence bool
}

// RecordTranscription stores the STT result and review flags.
// Only legal from [StateCreated].
func (t *Turn) RecordTranscription(res TranscriptionResult) error {
	if t.State != StateCreated {
		return fmt.Errorf("turn %s: record transcription in state %s: %w", t.ID, t.State, ErrInvalidState)
	}
	t.RawTranscript = res.RawText
	t.NormalizedTranscript = res.NormalizedText
	if t.NormalizedTranscript == "" {
		t.NormalizedTranscript = res.RawText
	}
	t.TranscriptConfidence = res.Confidence
	t.STTLatencyMS = res.LatencyMS
	t.Words = res.Words
	t.LowConfidence, t.NeedsReview = Evaluate(res.Confidence, len(res.Words))
	t.State = StateTranscribed
	return nil
}

// SeedText pre-populates the transcript from caller-supplied text, bypassing
// the STT stage. Only legal from [StateCreated]; the turn stays in Created so
// RecordResponse can take the text-originated shortcut to Complete.
func (t *Turn) SeedText(text string) error {
	if t.State != StateCreated {
		return fmt.Errorf("turn %s: seed text in state %s: %w", t.ID, t.State, ErrInvalidState)
	}
	t.RawTranscript = text
	t.NormalizedTranscript = text
	return nil
}

// Confirm applies the user's verdict on the transcript. Only legal from
// [StateTranscribed]. Rejecting without a correction fails with
// [ErrValidation]; a correction replaces the normalized transcript verbatim.
func (t *Turn) Confirm(confirmed bool, correction string) error {
	if t.State != StateTranscribed {
		return fmt.Errorf("turn %s: confirm in state %s: %w", t.ID, t.State, ErrInvalidState)
	}
	if !confirmed && correction == "" {
		return fmt.Errorf("turn %s: rejecting a transcript requires a correction: %w", t.ID, ErrValidation)
	}

	t.UserConfirmed = &confirmed
	if confirmed {
		t.State = StateConfirmed
		return nil
	}
	t.UserCorrection = correction
	t.NormalizedTranscript = correction
	t.State = StateCorrected
	return nil
}

// RecordResponse attaches the assistant text and synthesized audio, completing
// the turn. Legal from Created (text-originated shortcut), Transcribed
// (confirmation is advisory), Confirmed, and Corrected.
func (t *Turn) RecordResponse(assistantText string, llmLatencyMS int64, output AudioRef, ttsLatencyMS int64) error {
	switch t.State {
	case StateCreated, StateTranscribed, StateConfirmed, StateCorrected:
	default:
		return fmt.Errorf("turn %s: record response in state %s: %w", t.ID, t.State, ErrInvalidState)
	}
	t.AssistantText = assistantText
	t.LLMLatencyMS = llmLatencyMS
	t.AudioOutput = &output
	t.TTSLatencyMS = ttsLatencyMS
	// Responded and Complete collapse into one transition once both response
	// fields are attached.
	t.State = StateComplete
	return nil
}

// Input returns the user text the response stage should answer: the
// correction when one was supplied, the normalized transcript otherwise.
func (t *Turn) Input() string {
	if t.UserCorrection != "" {
		return t.UserCorrection
	}
	return t.NormalizedTranscript
}
