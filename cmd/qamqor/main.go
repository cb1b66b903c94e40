// Command qamqor is the main entry point for the qamqor voice assistant
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/qamqor-ai/qamqor/internal/audiostore"
	"github.com/qamqor-ai/qamqor/internal/config"
	"github.com/qamqor-ai/qamqor/internal/health"
	"github.com/qamqor-ai/qamqor/internal/httpapi"
	"github.com/qamqor-ai/qamqor/internal/observe"
	"github.com/qamqor-ai/qamqor/internal/pipeline"
	"github.com/qamqor-ai/qamqor/internal/resilience"
	"github.com/qamqor-ai/qamqor/internal/store"
	memstore "github.com/qamqor-ai/qamqor/internal/store/memory"
	pgstore "github.com/qamqor-ai/qamqor/internal/store/postgres"
	redisstore "github.com/qamqor-ai/qamqor/internal/store/redis"
	"github.com/qamqor-ai/qamqor/pkg/provider/llm"
	"github.com/qamqor-ai/qamqor/pkg/provider/llm/anyllm"
	llmstub "github.com/qamqor-ai/qamqor/pkg/provider/llm/stub"
	"github.com/qamqor-ai/qamqor/pkg/provider/stt"
	"github.com/qamqor-ai/qamqor/pkg/provider/stt/googlestt"
	sttstub "github.com/qamqor-ai/qamqor/pkg/provider/stt/stub"
	"github.com/qamqor-ai/qamqor/pkg/provider/stt/whisperapi"
	"github.com/qamqor-ai/qamqor/pkg/provider/tts"
	"github.com/qamqor-ai/qamqor/pkg/provider/tts/elevenlabs"
	"github.com/qamqor-ai/qamqor/pkg/provider/tts/polly"
	ttsstub "github.com/qamqor-ai/qamqor/pkg/provider/tts/stub"
	"github.com/qamqor-ai/qamqor/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "qamqor: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "qamqor: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := &slog.LevelVar{}
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("qamqor starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "qamqor"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Storage ───────────────────────────────────────────────────────────────
	st, closeStore, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to initialise storage", "err", err, "backend", cfg.Storage.Backend)
		return 1
	}
	defer closeStore()

	sink, err := buildSink(cfg.Audio)
	if err != nil {
		slog.Error("failed to initialise audio sink", "err", err)
		return 1
	}

	// ── Provider chains ───────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(ctx, reg)

	fcfg := resilience.FallbackConfig{Metrics: observe.DefaultMetrics()}
	sttChain := resilience.NewSTTChain(sttstub.New(), fcfg)
	llmChain := resilience.NewLLMChain(llmstub.New(), fcfg)
	ttsChain := resilience.NewTTSChain(ttsstub.New(), fcfg)

	buildChain(cfg.Providers.STT, "stt", func(entry config.ProviderEntry) error {
		p, err := reg.CreateSTT(entry)
		if err != nil {
			return err
		}
		sttChain.Use(entry.Name, p)
		return nil
	})
	buildChain(cfg.Providers.LLM, "llm", func(entry config.ProviderEntry) error {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return err
		}
		llmChain.Use(entry.Name, p)
		return nil
	})
	buildChain(cfg.Providers.TTS, "tts", func(entry config.ProviderEntry) error {
		p, err := reg.CreateTTS(entry)
		if err != nil {
			return err
		}
		ttsChain.Use(entry.Name, p)
		return nil
	})

	slog.Info("fallback chains ready",
		"stt", sttChain.Providers(),
		"llm", llmChain.Providers(),
		"tts", ttsChain.Providers(),
	)

	// ── Pipeline service + HTTP surface ───────────────────────────────────────
	svc := pipeline.New(st, sink, sttChain, llmChain, ttsChain)

	mux := http.NewServeMux()
	httpapi.New(svc, sink).Register(mux)
	health.New(health.Checker{Name: "store", Check: st.Ping}).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config watcher: hot log level ─────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			logLevel.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		if !diff.HotApplicable() {
			slog.Warn("config change requires a restart to take effect",
				"chains", diff.ChainsChanged,
				"storage", diff.StorageChanged,
			)
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", listenAddr)
		var err error
		if cfg.Server.TLS != nil {
			err = server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		slog.Info("shutdown signal received, stopping…")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper-api", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisperapi.Option
		if entry.BaseURL != "" {
			opts = append(opts, whisperapi.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, whisperapi.WithModel(entry.Model))
		}
		return whisperapi.New(entry.APIKey, opts...)
	})

	// google uses Application Default Credentials, not an api_key entry.
	reg.RegisterSTT("google", func(entry config.ProviderEntry) (stt.Provider, error) {
		return googlestt.New(ctx)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// groq, openai, anthropic, gemini, mistral all share the same pattern:
	// APIKey + optional BaseURL.
	for _, providerName := range []string{"groq", "openai", "anthropic", "gemini", "mistral"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	// polly uses the AWS SDK credential chain; region comes from config.
	reg.RegisterTTS("polly", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []polly.Option
		if entry.Region != "" {
			opts = append(opts, polly.WithRegion(entry.Region))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, polly.WithVoice(voice))
		}
		return polly.New(ctx, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if voice := optString(entry.Options, "voice_ru"); voice != "" {
			opts = append(opts, elevenlabs.WithVoice(types.LanguageRussian, voice))
		}
		if voice := optString(entry.Options, "voice_kk"); voice != "" {
			opts = append(opts, elevenlabs.WithVoice(types.LanguageKazakh, voice))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})
}

// apiKeyRequired lists provider names that cannot work without an api_key.
// Entries missing their key are skipped with a warning instead of failing
// startup, so a half-configured chain still serves through its remaining
// providers and the stub.
var apiKeyRequired = map[string]bool{
	"whisper-api": true,
	"groq":        true,
	"openai":      true,
	"anthropic":   true,
	"gemini":      true,
	"mistral":     true,
	"elevenlabs":  true,
}

// buildChain instantiates each configured entry of one chain in order,
// skipping entries without required credentials.
func buildChain(entries []config.ProviderEntry, kind string, add func(config.ProviderEntry) error) {
	for _, entry := range entries {
		if apiKeyRequired[entry.Name] && entry.APIKey == "" {
			slog.Warn("provider has no api_key — skipping", "kind", kind, "name", entry.Name)
			continue
		}
		if err := add(entry); err != nil {
			if errors.Is(err, config.ErrProviderNotRegistered) {
				slog.Warn("unknown provider — skipping", "kind", kind, "name", entry.Name)
				continue
			}
			slog.Warn("provider failed to initialise — skipping", "kind", kind, "name", entry.Name, "err", err)
			continue
		}
		slog.Info("provider created", "kind", kind, "name", entry.Name)
	}
}

// ── Storage wiring ────────────────────────────────────────────────────────────

func buildStore(ctx context.Context, cfg config.StorageConfig) (store.Store, func(), error) {
	switch cfg.Backend {
	case config.StoragePostgres:
		st, err := pgstore.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case config.StorageRedis:
		st, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return memstore.New(), func() {}, nil
	}
}

func buildSink(cfg config.AudioConfig) (audiostore.Sink, error) {
	if cfg.Dir == "" {
		return audiostore.NewMemory(), nil
	}
	return audiostore.NewFS(cfg.Dir)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
