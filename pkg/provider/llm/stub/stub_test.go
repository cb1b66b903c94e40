package stub

import (
	"context"
	"testing"

	"github.com/qamqor-ai/qamqor/pkg/provider/llm"
	"github.com/qamqor-ai/qamqor/pkg/types"
)

func TestReply(t *testing.T) {
	tests := []struct {
		name    string
		message string
		lang    types.Language
		want    string
	}{
		{
			name:    "kazakh greeting",
			message: "Сәлем, қалайсыз?",
			lang:    types.LanguageKazakh,
			want:    "Сәлем! Мен жақсымын, рахмет. Сізге қалай көмектесе аламын?",
		},
		{
			name:    "russian greeting",
			message: "Привет!",
			lang:    types.LanguageRussian,
			want:    "Здравствуйте! Чем могу помочь?",
		},
		{
			name:    "russian weather",
			message: "какая сегодня погода",
			lang:    types.LanguageRussian,
			want:    "Сегодня хорошая погода, можно погулять.",
		},
		{
			name:    "kazakh thanks",
			message: "рахмет сізге",
			lang:    types.LanguageKazakh,
			want:    "Өзіңізге де рахмет! Сау болыңыз!",
		},
		{
			// One transposition away from "привет": still a hit via the
			// edit-distance budget.
			name:    "fuzzy russian greeting",
			message: "првиет",
			lang:    types.LanguageRussian,
			want:    "Здравствуйте! Чем могу помочь?",
		},
		{
			name:    "no match falls to default kk",
			message: "бағдарламалау туралы айтып берші",
			lang:    types.LanguageKazakh,
			want:    "Мен сізге көмектесуге дайынмын. Сұрағыңызды қойыңыз.",
		},
		{
			name:    "no match falls to default ru",
			message: "расскажи про квантовую физику",
			lang:    types.LanguageRussian,
			want:    "Я вас слушаю. Чем могу помочь?",
		},
		{
			name:    "blank message kk apology",
			message: "   ",
			lang:    types.LanguageKazakh,
			want:    "Кешіріңіз, түсінбедім.",
		},
		{
			name:    "blank message ru apology",
			message: "",
			lang:    types.LanguageRussian,
			want:    "Извините, не понял.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reply(tt.message, tt.lang); got != tt.want {
				t.Errorf("Reply(%q, %s) = %q, want %q", tt.message, tt.lang, got, tt.want)
			}
		})
	}
}

func TestReply_ShortKeywordNeedsExactMatch(t *testing.T) {
	// "час" is under 5 runes, so "чаc"-like near misses must not trigger the
	// time rule through the fuzzy path.
	got := Reply("чсс", types.LanguageRussian)
	if got == "Сейчас дневное время." {
		t.Errorf("short keyword matched fuzzily: %q", got)
	}
}

func TestGenerate(t *testing.T) {
	p := New()
	res, err := p.Generate(context.Background(), llm.Request{
		UserMessage: "привет",
		Language:    types.LanguageRussian,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "Здравствуйте! Чем могу помочь?" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.LatencyMS < 100 {
		t.Errorf("LatencyMS = %d, want >= 100", res.LatencyMS)
	}
}
