package config

import (
	"testing"

	"github.com/turnframe/turnframe/pkg/turn"
)

func TestValidateRejectsOutOfBoundsDebounce(t *testing.T) {
	p := &Process{
		SampleRate: 16000, Channels: 1, Language: "en", Voice: "F1",
		MaxContextMessages: 20, SilenceDebounceMS: 200, CancellationThreshold: 0.3,
	}
	if err := Validate(p); err == nil {
		t.Fatal("expected validation error for SilenceDebounceMS below the 400ms floor")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	p := &Process{
		SampleRate: 16000, Channels: 1, Language: "en", Voice: "F1",
		MaxContextMessages: 20, SilenceDebounceMS: 400, CancellationThreshold: 0.3,
	}
	if err := Validate(p); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestSessionDefaultCarriesFields(t *testing.T) {
	p := &Process{
		SampleRate: 16000, Channels: 1, Language: "en", Voice: "F1",
		MaxContextMessages: 20, SilenceDebounceMS: 500, CancellationThreshold: 0.25,
		AdaptiveDebounceOn: true, RAGEnabled: true,
	}
	cfg := p.SessionDefault()
	want := turn.Config{
		SampleRate: 16000, Channels: 1, MaxContextMessages: 20, Voice: "F1", Language: "en",
		SilenceDebounceMS: 500, CancellationThreshold: 0.25, AdaptiveDebounceOn: true,
		MinWordsToInterrupt: 1, RAGEnabled: true,
	}
	if cfg != want {
		t.Fatalf("SessionDefault() = %+v, want %+v", cfg, want)
	}
}

func TestValidateSettingsUpdateRejectsOutOfBoundThreshold(t *testing.T) {
	bad := 0.99
	update := turn.SettingsUpdate{CancellationThreshold: &bad}
	if err := ValidateSettingsUpdate(update); err == nil {
		t.Fatal("expected validation error for cancellation threshold above 0.50")
	}
}

func TestValidateSettingsUpdateAllowsEmpty(t *testing.T) {
	if err := ValidateSettingsUpdate(turn.SettingsUpdate{}); err != nil {
		t.Fatalf("unexpected error for an all-nil update: %v", err)
	}
}
