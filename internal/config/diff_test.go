package config

import (
	"slices"
	"testing"
)

func baseConfig() *Config {
	return &Config{
		Server: ServerConfig{ListenAddr: ":8080", LogLevel: LogInfo},
		Providers: ProvidersConfig{
			STT: []ProviderEntry{{Name: "whisper-api", APIKey: "k1"}},
			LLM: []ProviderEntry{{Name: "groq", APIKey: "k2", Model: "llama-3.1-8b-instant"}},
			TTS: []ProviderEntry{{Name: "polly", Region: "eu-central-1", Options: map[string]any{"voice": "Tatyana"}}},
		},
		Storage: StorageConfig{Backend: StorageMemory},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	d := Diff(baseConfig(), baseConfig())
	if d.LogLevelChanged || len(d.ChainsChanged) != 0 || d.StorageChanged {
		t.Errorf("Diff of identical configs = %+v", d)
	}
	if !d.HotApplicable() {
		t.Error("empty diff not hot-applicable")
	}
}

func TestDiff_LogLevel(t *testing.T) {
	next := baseConfig()
	next.Server.LogLevel = LogDebug

	d := Diff(baseConfig(), next)
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Errorf("diff = %+v", d)
	}
	if !d.HotApplicable() {
		t.Error("a pure log-level change must be hot-applicable")
	}
}

func TestDiff_Chains(t *testing.T) {
	next := baseConfig()
	next.Providers.STT = append(next.Providers.STT, ProviderEntry{Name: "google"})
	next.Providers.TTS[0].Options = map[string]any{"voice": "Maxim"}

	d := Diff(baseConfig(), next)
	if !slices.Equal(d.ChainsChanged, []string{"stt", "tts"}) {
		t.Errorf("ChainsChanged = %v, want [stt tts]", d.ChainsChanged)
	}
	if d.HotApplicable() {
		t.Error("chain changes must not be hot-applicable")
	}
}

func TestDiff_Storage(t *testing.T) {
	next := baseConfig()
	next.Storage.Backend = StorageRedis
	next.Storage.RedisAddr = "localhost:6379"

	d := Diff(baseConfig(), next)
	if !d.StorageChanged {
		t.Error("storage change not detected")
	}
	if d.HotApplicable() {
		t.Error("storage changes must not be hot-applicable")
	}
}

func TestDiff_APIKeyRotationMarksChain(t *testing.T) {
	next := baseConfig()
	next.Providers.LLM[0].APIKey = "rotated"

	d := Diff(baseConfig(), next)
	if !slices.Equal(d.ChainsChanged, []string{"llm"}) {
		t.Errorf("ChainsChanged = %v, want [llm]", d.ChainsChanged)
	}
}
