// Package types holds small value types shared between the provider packages
// and the conversation core.
package types

// Language is a user-facing interaction language. The assistant supports
// Russian and Kazakh only.
type Language string

const (
	// LanguageRussian is the default interaction language.
	LanguageRussian Language = "ru"

	// LanguageKazakh selects Kazakh prompts, stub replies, and voices.
	LanguageKazakh Language = "kk"
)

// IsValid reports whether l is one of the supported languages.
func (l Language) IsValid() bool {
	return l == LanguageRussian || l == LanguageKazakh
}

// Word is a single recognised token with its timing window and per-word
// confidence. Words are produced by STT providers as an ordered sequence and
// are never mutated afterwards.
type Word struct {
	// Word is the recognised text token.
	Word string

	// Start and End delimit the token within the utterance, in seconds.
	// End is strictly greater than Start.
	Start float64
	End   float64

	// Confidence is the provider's per-word confidence in [0.0, 1.0].
	Confidence float64
}
