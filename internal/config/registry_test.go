package config

import (
	"errors"
	"testing"

	"github.com/qamqor-ai/qamqor/pkg/provider/stt"
	sttstub "github.com/qamqor-ai/qamqor/pkg/provider/stt/stub"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	var gotEntry ProviderEntry
	reg.RegisterSTT("stub", func(e ProviderEntry) (stt.Provider, error) {
		gotEntry = e
		return sttstub.New(), nil
	})

	p, err := reg.CreateSTT(ProviderEntry{Name: "stub", Model: "base"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if p == nil {
		t.Fatal("CreateSTT returned nil provider")
	}
	if gotEntry.Model != "base" {
		t.Errorf("factory entry = %+v", gotEntry)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.CreateSTT(ProviderEntry{Name: "nope"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateSTT err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateLLM(ProviderEntry{Name: "nope"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateLLM err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateTTS(ProviderEntry{Name: "nope"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateTTS err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_ReregisterOverwrites(t *testing.T) {
	reg := NewRegistry()

	reg.RegisterSTT("x", func(ProviderEntry) (stt.Provider, error) {
		return nil, errors.New("old factory")
	})
	reg.RegisterSTT("x", func(ProviderEntry) (stt.Provider, error) {
		return sttstub.New(), nil
	})

	if _, err := reg.CreateSTT(ProviderEntry{Name: "x"}); err != nil {
		t.Errorf("CreateSTT after re-register: %v", err)
	}
}
