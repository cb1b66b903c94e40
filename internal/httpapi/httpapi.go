// Package httpapi exposes the voice pipeline over HTTP.
//
// Routes live under /api/voice and map the pipeline error taxonomy onto
// status codes: validation → 400, not found → 404, illegal state → 409, an
// exhausted fallback chain → 500.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/qamqor-ai/qamqor/internal/audiostore"
	"github.com/qamqor-ai/qamqor/internal/conversation"
	"github.com/qamqor-ai/qamqor/internal/observe"
	"github.com/qamqor-ai/qamqor/internal/pipeline"
	"github.com/qamqor-ai/qamqor/internal/resilience"
)

// maxUploadBytes caps audio uploads. Matches a generous minute of webm audio.
const maxUploadBytes = 10 << 20

// Handler serves the voice API. Construct with [New].
type Handler struct {
	svc  *pipeline.Service
	sink audiostore.Sink
}

// New creates the API handler over the pipeline service and audio sink.
func New(svc *pipeline.Service, sink audiostore.Sink) *Handler {
	return &Handler{svc: svc, sink: sink}
}

// Register adds all voice API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/voice/session", h.createSession)
	mux.HandleFunc("POST /api/voice/upload/{session_id}", h.upload)
	mux.HandleFunc("POST /api/voice/confirm/{session_id}", h.confirm)
	mux.HandleFunc("POST /api/voice/respond/{session_id}", h.respond)
	mux.HandleFunc("POST /api/voice/end/{session_id}", h.endSession)
	mux.HandleFunc("POST /api/voice/process/{session_id}", h.process)
	mux.HandleFunc("POST /api/voice/process-text/{session_id}", h.processText)
	mux.HandleFunc("GET /api/voice/audio/{ref...}", h.audio)
}

type createSessionRequest struct {
	UserID     string          `json:"user_id"`
	DeviceInfo json.RawMessage `json:"device_info"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.svc.CreateSession(r.Context(), req.UserID, string(req.DeviceInfo))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID,
		"user_id":    sess.UserID,
		"started_at": sess.StartedAt,
	})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	audio, contentType, err := readAudio(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := h.svc.ProcessAudio(r.Context(), r.PathValue("session_id"), audio, contentType, r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcriptionBody(out))
}

type confirmRequest struct {
	TurnID     string `json:"turn_id"`
	Confirmed  bool   `json:"confirmed"`
	Correction string `json:"correction"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.svc.ConfirmTranscript(r.Context(), r.PathValue("session_id"), req.TurnID, req.Confirmed, req.Correction)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type respondRequest struct {
	TurnID        string `json:"turn_id"`
	AssistantText string `json:"assistant_text"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := h.svc.GenerateResponse(r.Context(), r.PathValue("session_id"), req.TurnID, req.AssistantText)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, responseBody(out))
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.EndSession(r.Context(), r.PathValue("session_id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	audio, contentType, err := readAudio(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := h.svc.ProcessFullPipeline(r.Context(), r.PathValue("session_id"), audio, contentType, r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    out.SessionID,
		"transcription": transcriptionBody(out.Transcription),
		"response":      responseBody(out.Response),
	})
}

type processTextRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

func (h *Handler) processText(w http.ResponseWriter, r *http.Request) {
	var req processTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := h.svc.ProcessText(r.Context(), r.PathValue("session_id"), req.UserID, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": out.SessionID,
		"response":   responseBody(out.Response),
	})
}

func (h *Handler) audio(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	blob, err := h.sink.Get(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeForRef(ref))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

// readAudio extracts the audio payload from either a multipart form (field
// "audio") or the raw request body, along with its content type hint.
func readAudio(r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		file, header, err := r.FormFile("audio")
		if err != nil {
			return nil, "", badRequest("multipart field \"audio\" is required")
		}
		defer file.Close()
		audio, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		return audio, header.Header.Get("Content-Type"), nil
	}

	audio, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	return audio, r.Header.Get("Content-Type"), nil
}

func transcriptionBody(out *pipeline.TranscriptionOutcome) map[string]any {
	return map[string]any{
		"turn_id":               out.TurnID,
		"turn_number":           out.TurnNumber,
		"raw_transcript":        out.RawTranscript,
		"normalized_transcript": out.NormalizedTranscript,
		"confidence":            out.Confidence,
		"words":                 out.Words,
		"stt_latency_ms":        out.STTLatencyMS,
		"low_confidence":        out.LowConfidence,
		"needs_review":          out.NeedsReview,
	}
}

func responseBody(out *pipeline.ResponseOutcome) map[string]any {
	return map[string]any{
		"turn_id":        out.TurnID,
		"assistant_text": out.AssistantText,
		"audio_ref":      out.AudioRef,
		"duration":       out.DurationSeconds,
		"llm_latency_ms": out.LLMLatencyMS,
		"tts_latency_ms": out.TTSLatencyMS,
	}
}

func contentTypeForRef(ref string) string {
	switch {
	case strings.HasSuffix(ref, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(ref, ".webm"):
		return "audio/webm"
	case strings.HasSuffix(ref, ".ogg"):
		return "audio/ogg"
	default:
		return "audio/wav"
	}
}

// decodeJSON parses the request body into v, rejecting unknown fields. A
// malformed body wraps [conversation.ErrValidation] so it maps to 400.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

func badRequest(msg string) error {
	return &apiError{msg: msg, wrapped: conversation.ErrValidation}
}

type apiError struct {
	msg     string
	wrapped error
}

func (e *apiError) Error() string { return e.msg }
func (e *apiError) Unwrap() error { return e.wrapped }

// writeError maps the pipeline error taxonomy onto HTTP status codes and
// writes a JSON error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, conversation.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, conversation.ErrNotFound), errors.Is(err, audiostore.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, conversation.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, resilience.ErrChainExhausted):
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
