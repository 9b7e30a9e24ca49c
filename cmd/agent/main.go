// Command agent runs the turnframe voice-agent server: one HTTP
// listener upgrading to a turn.Controller-backed websocket session per
// connection, replacing a single local-microphone command-line loop
// with the networked service §6.1 describes.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turnframe/turnframe/pkg/audio"
	"github.com/turnframe/turnframe/pkg/config"
	llmProvider "github.com/turnframe/turnframe/pkg/providers/llm"
	sttProvider "github.com/turnframe/turnframe/pkg/providers/stt"
	ttsProvider "github.com/turnframe/turnframe/pkg/providers/tts"
	"github.com/turnframe/turnframe/pkg/rag"
	"github.com/turnframe/turnframe/pkg/store"
	"github.com/turnframe/turnframe/pkg/transport"
	"github.com/turnframe/turnframe/pkg/turn"
	"github.com/turnframe/turnframe/pkg/turnlog"
)

const warmTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := turnlog.WithLevel("agent", cfg.LogLevel)

	stt, err := buildSTT(cfg)
	if err != nil {
		log.Fatalf("stt provider: %v", err)
	}
	llm, err := buildLLM(cfg)
	if err != nil {
		log.Fatalf("llm provider: %v", err)
	}
	if cfg.LokutorAPIKey == "" {
		log.Fatal("LOKUTOR_API_KEY must be set")
	}
	tts := ttsProvider.NewLokutorTTS(cfg.LokutorAPIKey)

	warmCtx, warmCancel := context.WithTimeout(context.Background(), warmTimeout)
	if err := tts.Warm(warmCtx); err != nil {
		logger.Warn("tts warm failed, continuing", "err", err)
	}
	warmCancel()

	adapters := turn.Adapters{STT: stt, LLM: llm, TTS: tts, BargeIn: audio.NewBargeInGate()}

	if cfg.RAGEnabled {
		retriever, err := rag.New(context.Background(), "turnframe-knowledge", cfg.OpenAIAPIKey)
		if err != nil {
			logger.Warn("rag disabled, failed to initialize", "err", err)
		} else {
			adapters.RAG = retriever
		}
	}

	if cfg.DatabaseURL != "" {
		pg, err := store.Open(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Warn("store disabled, failed to connect", "err", err)
		} else {
			adapters.Store = pg
			defer pg.Close()
		}
	}

	registry := prometheus.NewRegistry()
	engine, err := turn.NewEngine(adapters, cfg.SessionDefault(), registry, logger)
	if err != nil {
		log.Fatalf("turn engine: %v", err)
	}
	defer engine.Shutdown()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.Error("websocket accept failed", "err", err)
			return
		}
		defer conn.CloseNow()

		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		if err := transport.Serve(r.Context(), conn, engine, sessionID); err != nil {
			logger.Info("session ended", "session_id", sessionID, "err", err)
		}
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	_ = srv.Shutdown(context.Background())
}

func buildSTT(cfg *config.Process) (turn.STTAdapter, error) {
	switch cfg.STTProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai STT")
		}
		return sttProvider.NewOpenAISTT(cfg.OpenAIAPIKey, "whisper-1", cfg.SampleRate), nil
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY must be set for deepgram STT")
		}
		return sttProvider.NewDeepgramSTT(cfg.DeepgramAPIKey, cfg.SampleRate), nil
	case "deepgram-streaming":
		if cfg.DeepgramAPIKey == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY must be set for deepgram-streaming STT")
		}
		return sttProvider.NewDeepgramStreamingSTT(cfg.DeepgramAPIKey), nil
	case "assemblyai":
		if cfg.AssemblyAIAPIKey == "" {
			return nil, fmt.Errorf("ASSEMBLYAI_API_KEY must be set for assemblyai STT")
		}
		return sttProvider.NewAssemblyAISTT(cfg.AssemblyAIAPIKey, cfg.SampleRate), nil
	case "groq":
		fallthrough
	default:
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for groq STT")
		}
		return sttProvider.NewGroqSTT(cfg.GroqAPIKey, "whisper-large-v3-turbo", cfg.SampleRate), nil
	}
}

func buildLLM(cfg *config.Process) (turn.LLMAdapter, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai LLM")
		}
		return llmProvider.NewOpenAILLM(cfg.OpenAIAPIKey, "gpt-4o"), nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set for anthropic LLM")
		}
		return llmProvider.NewAnthropicLLM(cfg.AnthropicAPIKey, "claude-3-5-sonnet-20241022"), nil
	case "google":
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY must be set for google LLM")
		}
		return llmProvider.NewGoogleLLM(cfg.GoogleAPIKey, "gemini-1.5-flash"), nil
	case "groq":
		fallthrough
	default:
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for groq LLM")
		}
		return llmProvider.NewGroqLLM(cfg.GroqAPIKey, "llama-3.3-70b-versatile"), nil
	}
}
