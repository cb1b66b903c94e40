package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
providers:
  stt:
    - name: whisper-api
      api_key: sk-test
      model: whisper-1
    - name: google
  llm:
    - name: groq
      api_key: gsk-test
      model: llama-3.1-8b-instant
  tts:
    - name: polly
      region: eu-central-1
      options:
        voice: Tatyana
storage:
  backend: postgres
  postgres_dsn: postgres://localhost/qamqor
audio:
  dir: /var/lib/qamqor/audio
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q", cfg.Server.LogLevel)
	}
	if len(cfg.Providers.STT) != 2 || cfg.Providers.STT[0].Name != "whisper-api" {
		t.Errorf("STT chain = %+v", cfg.Providers.STT)
	}
	if cfg.Providers.TTS[0].Region != "eu-central-1" {
		t.Errorf("TTS region = %q", cfg.Providers.TTS[0].Region)
	}
	if voice, ok := cfg.Providers.TTS[0].Options["voice"]; !ok || voice != "Tatyana" {
		t.Errorf("TTS options = %v", cfg.Providers.TTS[0].Options)
	}
	if cfg.Storage.Backend != StoragePostgres {
		t.Errorf("Backend = %q", cfg.Storage.Backend)
	}
	if cfg.Audio.Dir != "/var/lib/qamqor/audio" {
		t.Errorf("Audio.Dir = %q", cfg.Audio.Dir)
	}
}

func TestLoadFromReader_ExpandsEnvVars(t *testing.T) {
	t.Setenv("QAMQOR_TEST_API_KEY", "sk-from-env")

	cfg, err := LoadFromReader(strings.NewReader(`
providers:
  llm:
    - name: groq
      api_key: ${QAMQOR_TEST_API_KEY}
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if got := cfg.Providers.LLM[0].APIKey; got != "sk-from-env" {
		t.Errorf("APIKey = %q, want expanded env value", got)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("server:\n  listne_addr: \":8080\"\n"))
	if err == nil {
		t.Fatal("misspelled key accepted")
	}
}

func TestLoadFromReader_EmptyConfigIsValid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("empty config rejected: %v", err)
	}
	if cfg.Storage.Backend != "" {
		t.Errorf("Backend = %q, want empty (memory default)", cfg.Storage.Backend)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "server.log_level",
		},
		{
			name: "provider without name",
			mutate: func(c *Config) {
				c.Providers.STT = []ProviderEntry{{APIKey: "k"}}
			},
			wantErr: "providers.stt[0].name is required",
		},
		{
			name: "duplicate provider name",
			mutate: func(c *Config) {
				c.Providers.LLM = []ProviderEntry{{Name: "groq"}, {Name: "groq"}}
			},
			wantErr: "duplicate",
		},
		{
			name:    "bad storage backend",
			mutate:  func(c *Config) { c.Storage.Backend = "sqlite" },
			wantErr: "storage.backend",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Storage.Backend = StoragePostgres },
			wantErr: "postgres_dsn is required",
		},
		{
			name:    "redis without addr",
			mutate:  func(c *Config) { c.Storage.Backend = StorageRedis },
			wantErr: "redis_addr is required",
		},
		{
			name: "unknown provider name only warns",
			mutate: func(c *Config) {
				c.Providers.TTS = []ProviderEntry{{Name: "some-new-tts"}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllFailures(t *testing.T) {
	cfg := &Config{}
	cfg.Server.LogLevel = "loud"
	cfg.Storage.Backend = StorageRedis

	err := Validate(cfg)
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	for _, want := range []string{"server.log_level", "redis_addr"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}
