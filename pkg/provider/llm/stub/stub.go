// Package stub provides the deterministic local response generator used as
// the terminal entry of the LLM fallback chain.
//
// Instead of calling a model it matches the user message against a small set
// of per-language keyword groups (greeting, weather, time, thanks) and returns
// a canned reply. Matching is fuzzy — Damerau-Levenshtein distance via
// github.com/antzucaro/matchr — so the common STT misrecognitions of short
// Russian and Kazakh words still hit their group.
package stub

import (
	"context"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/qamqor-ai/qamqor/pkg/provider/llm"
	"github.com/qamqor-ai/qamqor/pkg/types"
)

// latencyFloor models perceived "thinking" latency in demo mode.
const latencyFloor = 100 * time.Millisecond

// maxEditDistance is the Damerau-Levenshtein budget for a fuzzy keyword hit.
// Keywords shorter than 5 runes require an exact substring match.
const maxEditDistance = 1

// rule pairs the keywords of one topic with its canned reply.
type rule struct {
	keywords []string
	reply    string
}

var rulesByLanguage = map[types.Language][]rule{
	types.LanguageKazakh: {
		{[]string{"сәлем", "салем", "қалай", "калай"}, "Сәлем! Мен жақсымын, рахмет. Сізге қалай көмектесе аламын?"},
		{[]string{"ауа", "райы", "weather"}, "Бүгін ауа райы жақсы болады."},
		{[]string{"уақыт", "сағат", "time"}, "Қазір түс уақыты."},
		{[]string{"рахмет", "сау бол"}, "Өзіңізге де рахмет! Сау болыңыз!"},
	},
	types.LanguageRussian: {
		{[]string{"привет", "здравствуй", "добрый"}, "Здравствуйте! Чем могу помочь?"},
		{[]string{"погода", "weather"}, "Сегодня хорошая погода, можно погулять."},
		{[]string{"время", "час", "time"}, "Сейчас дневное время."},
		{[]string{"спасибо", "благодар"}, "Пожалуйста! Рада помочь!"},
		{[]string{"как дела", "как ты"}, "У меня всё хорошо, спасибо! А у вас?"},
	},
}

var defaultReply = map[types.Language]string{
	types.LanguageKazakh:  "Мен сізге көмектесуге дайынмын. Сұрағыңызды қойыңыз.",
	types.LanguageRussian: "Я вас слушаю. Чем могу помочь?",
}

// Provider implements llm.Provider with keyword-matched canned replies.
type Provider struct{}

var _ llm.Provider = (*Provider)(nil)

// New returns the stub response generator.
func New() *Provider {
	return &Provider{}
}

// Generate matches req.UserMessage against the language's keyword rules and
// returns the first matching reply, or the language's default reply when
// nothing matches. A blank message yields the canned empty-input apology.
// Generate never returns an error.
func (p *Provider) Generate(_ context.Context, req llm.Request) (*llm.Result, error) {
	start := time.Now()

	text := Reply(req.UserMessage, req.Language)

	return &llm.Result{
		Text:      text,
		LatencyMS: (time.Since(start) + latencyFloor).Milliseconds(),
	}, nil
}

// Reply computes the stub reply for message in lang. Exported so that tests
// and the pipeline's degraded paths can reuse the exact demo-mode texts.
func Reply(message string, lang types.Language) string {
	if strings.TrimSpace(message) == "" {
		return llm.EmptyInputReply(lang)
	}

	msg := strings.ToLower(message)
	rules, ok := rulesByLanguage[lang]
	if !ok {
		rules = rulesByLanguage[types.LanguageRussian]
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if matches(msg, kw) {
				return r.reply
			}
		}
	}

	if d, ok := defaultReply[lang]; ok {
		return d
	}
	return defaultReply[types.LanguageRussian]
}

// matches reports whether msg contains kw, either verbatim or — for keywords
// of 5+ runes — as a token within the edit-distance budget.
func matches(msg, kw string) bool {
	if strings.Contains(msg, kw) {
		return true
	}
	if len([]rune(kw)) < 5 {
		return false
	}
	for _, tok := range strings.Fields(msg) {
		if matchr.DamerauLevenshtein(tok, kw) <= maxEditDistance {
			return true
		}
	}
	return false
}
