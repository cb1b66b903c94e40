// Package pipeline drives a conversation turn through the STT, LLM, and TTS
// fallback chains, persisting state machine transitions after every stage.
//
// The Service owns no global state: chains, store, and audio sink are injected
// at construction and shared across requests. Sessions and turns are addressed
// by identifier, so requests for different sessions run concurrently without
// locking; within one session the state machine preconditions reject
// out-of-order transitions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/qamqor-ai/qamqor/internal/audiostore"
	"github.com/qamqor-ai/qamqor/internal/conversation"
	"github.com/qamqor-ai/qamqor/internal/observe"
	"github.com/qamqor-ai/qamqor/internal/resilience"
	"github.com/qamqor-ai/qamqor/internal/store"
	"github.com/qamqor-ai/qamqor/pkg/provider/llm"
	"github.com/qamqor-ai/qamqor/pkg/provider/stt"
	"github.com/qamqor-ai/qamqor/pkg/provider/tts"
	"github.com/qamqor-ai/qamqor/pkg/types"
)

// minAudioBytes is the smallest upload that can plausibly contain speech.
// Anything below is rejected before any provider is called.
const minAudioBytes = 500

// stageTimeout bounds one chain invocation end to end.
const stageTimeout = 30 * time.Second

// allowedContentTypes lists the accepted audio upload types. An empty
// content-type hint is accepted as-is; only a present, unrecognised type is
// rejected.
var allowedContentTypes = map[string]struct{}{
	"audio/wav":  {},
	"audio/mpeg": {},
	"audio/mp3":  {},
	"audio/webm": {},
	"audio/ogg":  {},
}

// Service orchestrates the turn pipeline. Construct with [New]; all methods
// are safe for concurrent use.
type Service struct {
	store   store.Store
	sink    audiostore.Sink
	sttc    *resilience.STTChain
	llmc    *resilience.LLMChain
	ttsc    *resilience.TTSChain
	metrics *observe.Metrics

	// now is replaceable in tests.
	now func() time.Time
}

// Option configures a [Service].
type Option func(*Service)

// WithClock overrides the time source used for session and turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics overrides the metrics instance, primarily for tests that need
// an isolated meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a pipeline service over the given store, audio sink, and
// fallback chains.
func New(st store.Store, sink audiostore.Sink, sttc *resilience.STTChain, llmc *resilience.LLMChain, ttsc *resilience.TTSChain, opts ...Option) *Service {
	s := &Service{
		store:   st,
		sink:    sink,
		sttc:    sttc,
		llmc:    llmc,
		ttsc:    ttsc,
		metrics: observe.DefaultMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TranscriptionOutcome is the result of the STT stage of one turn.
type TranscriptionOutcome struct {
	TurnID               string
	TurnNumber           int
	RawTranscript        string
	NormalizedTranscript string
	Confidence           float64
	Words                []types.Word
	STTLatencyMS         int64
	LowConfidence        bool
	NeedsReview          bool
}

// ResponseOutcome is the result of the LLM and TTS stages of one turn.
type ResponseOutcome struct {
	TurnID          string
	AssistantText   string
	AudioRef        string
	DurationSeconds float64
	LLMLatencyMS    int64
	TTSLatencyMS    int64
}

// PipelineOutcome is the union of all stage results for the convenience
// operations.
type PipelineOutcome struct {
	SessionID     string
	Transcription *TranscriptionOutcome
	Response      *ResponseOutcome
}

// CreateSession opens a new session for userID. An empty userID selects the
// built-in demo user; an unknown userID is registered with Russian defaults.
// deviceInfo, when non-empty, must be a JSON object matching the device-info
// schema and is stored verbatim.
func (s *Service) CreateSession(ctx context.Context, userID, deviceInfo string) (*conversation.Session, error) {
	if deviceInfo != "" {
		if err := ValidateDeviceInfo(deviceInfo); err != nil {
			return nil, err
		}
	}

	user, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sess := conversation.NewSession(user, deviceInfo, s.now())
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	s.metrics.ActiveSessions.Add(ctx, 1)

	observe.Logger(ctx).Info("session created",
		"session_id", sess.ID,
		"user_id", user.ID,
		"language", string(user.Language),
	)
	return sess, nil
}

// ProcessAudio runs the STT stage: validate the upload, create the next turn,
// transcribe through the fallback chain, and record the transcription.
//
// Audio below [minAudioBytes] or with an unsupported content type fails with
// [conversation.ErrValidation] before any provider call.
func (s *Service) ProcessAudio(ctx context.Context, sessionID string, audio []byte, contentType, userID string) (*TranscriptionOutcome, error) {
	if len(audio) < minAudioBytes {
		return nil, fmt.Errorf("audio too short (%d bytes, minimum %d): %w", len(audio), minAudioBytes, conversation.ErrValidation)
	}
	if contentType != "" {
		base := strings.TrimSpace(strings.Split(contentType, ";")[0])
		if _, ok := allowedContentTypes[base]; !ok {
			return nil, fmt.Errorf("unsupported content type %q: %w", contentType, conversation.ErrValidation)
		}
	}

	sess, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	lang := s.sessionLanguage(ctx, sess, userID)

	turn, err := sess.CreateTurn(s.now())
	if err != nil {
		return nil, err
	}

	inRef, err := s.sink.Put(ctx, audio, formatForContentType(contentType))
	if err != nil {
		return nil, err
	}
	turn.AudioInput = &conversation.AudioRef{Ref: inRef}

	ctx, span := observe.StartSpan(ctx, "pipeline.stt")
	sttCtx, cancel := context.WithTimeout(ctx, stageTimeout)
	res, err := s.sttc.Transcribe(sttCtx, stt.Request{Audio: audio, Language: lang})
	cancel()
	span.End()
	if err != nil {
		return nil, err
	}
	s.metrics.STTDuration.Record(ctx, float64(res.LatencyMS)/1000,
		metric.WithAttributes(observe.Attr("language", string(lang))))

	if err := turn.RecordTranscription(conversation.TranscriptionResult{
		RawText:        res.Text,
		NormalizedText: normalizeTranscript(res.Text),
		Confidence:     res.Confidence,
		Words:          res.Words,
		LatencyMS:      res.LatencyMS,
	}); err != nil {
		return nil, err
	}
	if turn.NeedsReview {
		s.metrics.TurnsFlagged.Add(ctx, 1)
	}

	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}

	return &TranscriptionOutcome{
		TurnID:               turn.ID,
		TurnNumber:           turn.TurnNumber,
		RawTranscript:        turn.RawTranscript,
		NormalizedTranscript: turn.NormalizedTranscript,
		Confidence:           turn.TranscriptConfidence,
		Words:                turn.Words,
		STTLatencyMS:         turn.STTLatencyMS,
		LowConfidence:        turn.LowConfidence,
		NeedsReview:          turn.NeedsReview,
	}, nil
}

// ConfirmTranscript applies the user's verdict on the transcript of turnID.
func (s *Service) ConfirmTranscript(ctx context.Context, sessionID, turnID string, confirmed bool, correction string) error {
	sess, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Ended() {
		return fmt.Errorf("session %s has ended: %w", sess.ID, conversation.ErrInvalidState)
	}
	turn := sess.FindTurn(turnID)
	if turn == nil {
		return fmt.Errorf("turn %s: %w", turnID, conversation.ErrNotFound)
	}
	if err := turn.Confirm(confirmed, correction); err != nil {
		return err
	}
	return s.store.SaveSession(ctx, sess)
}

// GenerateResponse runs the LLM and TTS stages on turnID and completes the
// turn. When assistantText is non-empty it bypasses the LLM chain; an empty
// override falls through to the chain.
func (s *Service) GenerateResponse(ctx context.Context, sessionID, turnID, assistantText string) (*ResponseOutcome, error) {
	sess, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Ended() {
		return nil, fmt.Errorf("session %s has ended: %w", sess.ID, conversation.ErrInvalidState)
	}
	turn := sess.FindTurn(turnID)
	if turn == nil {
		return nil, fmt.Errorf("turn %s: %w", turnID, conversation.ErrNotFound)
	}
	lang := s.sessionLanguage(ctx, sess, "")

	var llmLatency int64
	if assistantText == "" {
		ctx, span := observe.StartSpan(ctx, "pipeline.llm")
		llmCtx, cancel := context.WithTimeout(ctx, stageTimeout)
		res, err := s.llmc.Generate(llmCtx, llm.Request{
			UserMessage:  turn.Input(),
			Language:     lang,
			SystemPrompt: llm.DefaultSystemPrompt(lang),
		})
		cancel()
		span.End()
		if err != nil {
			return nil, err
		}
		assistantText = res.Text
		llmLatency = res.LatencyMS
		s.metrics.LLMDuration.Record(ctx, float64(res.LatencyMS)/1000,
			metric.WithAttributes(observe.Attr("language", string(lang))))
	}

	ctx, span := observe.StartSpan(ctx, "pipeline.tts")
	ttsCtx, cancel := context.WithTimeout(ctx, stageTimeout)
	ttsRes, err := s.ttsc.Synthesize(ttsCtx, tts.Request{Text: assistantText, Language: lang})
	cancel()
	span.End()
	if err != nil {
		return nil, err
	}
	s.metrics.TTSDuration.Record(ctx, float64(ttsRes.LatencyMS)/1000,
		metric.WithAttributes(observe.Attr("language", string(lang))))

	ref, err := s.sink.Put(ctx, ttsRes.Audio, ttsRes.Format)
	if err != nil {
		return nil, err
	}

	origin := "audio"
	if turn.State == conversation.StateCreated {
		origin = "text"
	}
	output := conversation.AudioRef{Ref: ref, DurationSeconds: ttsRes.DurationSeconds}
	if err := turn.RecordResponse(assistantText, llmLatency, output, ttsRes.LatencyMS); err != nil {
		return nil, err
	}
	s.metrics.RecordTurnCompleted(ctx, string(lang), origin)

	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}

	return &ResponseOutcome{
		TurnID:          turn.ID,
		AssistantText:   turn.AssistantText,
		AudioRef:        ref,
		DurationSeconds: ttsRes.DurationSeconds,
		LLMLatencyMS:    turn.LLMLatencyMS,
		TTSLatencyMS:    turn.TTSLatencyMS,
	}, nil
}

// CreateTurnFromText creates a turn pre-populated with already-known text,
// skipping the STT stage. Blank text fails with [conversation.ErrValidation].
func (s *Service) CreateTurnFromText(ctx context.Context, sessionID, userID, text string) (*conversation.Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required: %w", conversation.ErrValidation)
	}

	sess, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turn, err := sess.CreateTurn(s.now())
	if err != nil {
		return nil, err
	}
	if err := turn.SeedText(normalizeTranscript(text)); err != nil {
		return nil, err
	}
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	return turn, nil
}

// EndSession closes sessionID. Ending an already-ended session is a no-op.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	sess, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Ended() {
		return nil
	}
	sess.End(s.now())
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return err
	}
	s.metrics.ActiveSessions.Add(ctx, -1)
	return nil
}

// ProcessFullPipeline chains ProcessAudio and GenerateResponse as one call,
// returning the union of all stage results.
func (s *Service) ProcessFullPipeline(ctx context.Context, sessionID string, audio []byte, contentType, userID string) (*PipelineOutcome, error) {
	start := s.now()

	tr, err := s.ProcessAudio(ctx, sessionID, audio, contentType, userID)
	if err != nil {
		return nil, err
	}
	resp, err := s.GenerateResponse(ctx, sessionID, tr.TurnID, "")
	if err != nil {
		return nil, err
	}

	s.metrics.PipelineDuration.Record(ctx, s.now().Sub(start).Seconds())
	return &PipelineOutcome{SessionID: sessionID, Transcription: tr, Response: resp}, nil
}

// ProcessText chains CreateTurnFromText and GenerateResponse, skipping STT
// when transcription happened outside this system's boundary.
func (s *Service) ProcessText(ctx context.Context, sessionID, userID, text string) (*PipelineOutcome, error) {
	turn, err := s.CreateTurnFromText(ctx, sessionID, userID, text)
	if err != nil {
		return nil, err
	}
	resp, err := s.GenerateResponse(ctx, sessionID, turn.ID, "")
	if err != nil {
		return nil, err
	}
	return &PipelineOutcome{SessionID: sessionID, Response: resp}, nil
}

// resolveUser loads the user record for userID, registering unknown ids with
// Russian defaults. An empty id selects the demo user.
func (s *Service) resolveUser(ctx context.Context, userID string) (*conversation.User, error) {
	if userID == "" {
		demo := conversation.DemoUser()
		if err := s.store.EnsureUser(ctx, demo); err != nil {
			return nil, err
		}
		return demo, nil
	}

	user, err := s.store.LoadUser(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, conversation.ErrNotFound) {
		return nil, err
	}
	user = &conversation.User{
		ID:          userID,
		Language:    types.LanguageRussian,
		STTProvider: "google",
		TTSProvider: "google",
	}
	if err := s.store.EnsureUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// sessionLanguage resolves the language the LLM and TTS stages should answer
// in: the session owner's preference, falling back to Russian when the user
// record is gone.
func (s *Service) sessionLanguage(ctx context.Context, sess *conversation.Session, userID string) types.Language {
	id := sess.UserID
	if id == "" {
		id = userID
	}
	if id != "" {
		if user, err := s.store.LoadUser(ctx, id); err == nil && user.Language.IsValid() {
			return user.Language
		}
	}
	return types.LanguageRussian
}

// formatForContentType maps an upload content type onto the file extension
// the audio sink uses for the stored blob.
func formatForContentType(contentType string) string {
	switch strings.TrimSpace(strings.Split(contentType, ";")[0]) {
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	default:
		return "wav"
	}
}

// normalizeTranscript is the shared text normalization applied to transcripts
// and text-originated input: whitespace trimmed and internal runs collapsed.
func normalizeTranscript(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
