// Package config loads process configuration for the turnframe agent:
// a single struct bound by github.com/caarlos0/env/v11 and validated by
// github.com/go-playground/validator/v10, enforcing §6.1's bounds on
// update_settings fields instead of a hand-rolled os.Getenv switchboard.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/turnframe/turnframe/pkg/turn"
)

// Process is the process-wide configuration surface: provider
// selection, credentials, and the default per-session turn.Config
// applied to every new connection (§6.1, §9 "per-session config
// struct, no process-wide mutable configuration required by the
// core" — Process only seeds the session default, it is never mutated
// by the core itself).
type Process struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	STTProvider string `env:"STT_PROVIDER" envDefault:"groq"`
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"groq"`

	GroqAPIKey       string `env:"GROQ_API_KEY"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	GoogleAPIKey     string `env:"GOOGLE_API_KEY"`
	DeepgramAPIKey   string `env:"DEEPGRAM_API_KEY"`
	AssemblyAIAPIKey string `env:"ASSEMBLYAI_API_KEY"`
	LokutorAPIKey    string `env:"LOKUTOR_API_KEY"`

	DatabaseURL string `env:"DATABASE_URL"`

	SampleRate            int     `env:"SAMPLE_RATE" envDefault:"16000" validate:"required"`
	Channels              int     `env:"CHANNELS" envDefault:"1" validate:"required"`
	Language              string  `env:"AGENT_LANGUAGE" envDefault:"en" validate:"required"`
	Voice                 string  `env:"AGENT_VOICE" envDefault:"F1" validate:"required"`
	MaxContextMessages    int     `env:"MAX_CONTEXT_MESSAGES" envDefault:"20" validate:"min=1"`
	SilenceDebounceMS     int     `env:"SILENCE_DEBOUNCE_MS" envDefault:"400" validate:"min=400,max=1200"`
	CancellationThreshold float64 `env:"CANCELLATION_THRESHOLD" envDefault:"0.30" validate:"min=0.10,max=0.50"`
	AdaptiveDebounceOn    bool    `env:"ADAPTIVE_DEBOUNCE_ENABLED" envDefault:"true"`
	RAGEnabled            bool    `env:"RAG_ENABLED" envDefault:"false"`
}

// Load reads .env (if present — a missing file is not an error), binds
// environment variables onto a Process, and validates the numeric
// bounds §6.1 requires.
func Load() (*Process, error) {
	_ = godotenv.Load() // optional local .env

	p := &Process{}
	if err := env.Parse(p); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

var validate = validator.New()

// Validate re-runs the struct-tag bounds on a Process, as Load does;
// settings_update payloads are checked separately by
// ValidateSettingsUpdate before the transport applies them (§6.1).
func Validate(p *Process) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// SessionDefault builds the per-session turn.Config the Engine applies
// to every new connection.
func (p *Process) SessionDefault() turn.Config {
	return turn.Config{
		SampleRate:            p.SampleRate,
		Channels:              p.Channels,
		MaxContextMessages:    p.MaxContextMessages,
		Voice:                 p.Voice,
		Language:              p.Language,
		SilenceDebounceMS:     p.SilenceDebounceMS,
		CancellationThreshold: p.CancellationThreshold,
		AdaptiveDebounceOn:    p.AdaptiveDebounceOn,
		MinWordsToInterrupt:   1,
		RAGEnabled:            p.RAGEnabled,
	}
}

// ValidateSettingsUpdate checks an incoming update_settings payload
// against the same bounds (§6.1), independent of whether every field
// was set, since SettingsUpdate fields are all optional pointers.
func ValidateSettingsUpdate(u turn.SettingsUpdate) error {
	if err := validate.Struct(u); err != nil {
		return fmt.Errorf("config: invalid settings update: %w", err)
	}
	return nil
}
