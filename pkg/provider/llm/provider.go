// Package llm defines the Provider interface for response-generation backends.
//
// A provider turns one user message into one short assistant reply in the
// requested language. The conversation core keeps no chat history on the
// provider side; each call is self-contained (system prompt + user message),
// matching the single-exchange shape of a voice assistant turn.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/qamqor-ai/qamqor/pkg/types"
)

// Request carries one user message and its generation parameters.
type Request struct {
	// UserMessage is the user's utterance. When blank, providers must return
	// the canned empty-input reply for the language without any remote call.
	UserMessage string

	// Language selects the reply language and the default system prompt.
	Language types.Language

	// SystemPrompt overrides the default per-language system prompt when
	// non-empty.
	SystemPrompt string
}

// Result is the uniform output of a response-generation call.
type Result struct {
	// Text is the assistant's reply.
	Text string

	// LatencyMS is the wall-clock duration of the call in whole milliseconds.
	LatencyMS int64
}

// Provider is the abstraction over any response-generation backend.
//
// Generate returns an error wrapping [provider.ErrUnavailable] on network or
// authentication failure; other error kinds propagate as programming defects.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// DefaultSystemPrompt returns the assistant persona prompt for lang. The
// assistant addresses elderly users, answers briefly, and stays in the
// requested language.
func DefaultSystemPrompt(lang types.Language) string {
	if lang == types.LanguageKazakh {
		return "Сен қарт адамдарға көмектесетін көмекшісің. Тек қазақша жауап бер. Қысқа жауап бер."
	}
	return "Ты помощник для пожилых. Отвечай только по-русски. Кратко."
}

// EmptyInputReply returns the canned apology used when the user message is
// blank. Providers return it directly without calling out to a remote service.
func EmptyInputReply(lang types.Language) string {
	if lang == types.LanguageKazakh {
		return "Кешіріңіз, түсінбедім."
	}
	return "Извините, не понял."
}
