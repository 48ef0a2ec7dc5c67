package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Danondso/micswitch/internal/config"
)

var (
	// ErrNoSpeech means the service answered but understood no speech.
	ErrNoSpeech = errors.New("no speech recognized")
	// ErrUnavailable means the service could not be reached or failed.
	ErrUnavailable = errors.New("speech recognition service unavailable")
)

// Transcriber transcribes WAV audio data to text.
type Transcriber interface {
	Transcribe(ctx context.Context, wavData []byte) (string, error)
}

// HealthChecker is optionally implemented by transcribers that can report
// backend availability.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// New creates a Transcriber based on the provider config.
func New(cfg *config.TranscriptionConfig, logger *log.Logger) (Transcriber, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.BaseURL, cfg.Model, cfg.APIKey, cfg.Language, cfg.TimeoutSec, cfg.TLSSkipVerify, logger), nil
	case "openai-api":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai-api provider requires an api_key")
		}
		// The local default belongs to the "openai" provider; hosted OpenAI
		// is reached unless the user points base_url somewhere else.
		baseURL := cfg.BaseURL
		if baseURL == config.DefaultBaseURL {
			baseURL = ""
		}
		return NewOpenAIAPI(baseURL, cfg.Model, cfg.APIKey, cfg.Language, cfg.TimeoutSec, logger), nil
	case "command":
		if cfg.Command == "" {
			return nil, fmt.Errorf("command provider requires a non-empty command")
		}
		return NewCommand(cfg.Command, cfg.TimeoutSec, logger), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider: %s", cfg.Provider)
	}
}

// unavailable tags err as a service failure.
func unavailable(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, what, err)
}

// result trims a provider's raw transcript and maps empty output to
// ErrNoSpeech.
func result(raw string, logger *log.Logger) (string, error) {
	text := strings.TrimSpace(raw)
	if logger != nil {
		logger.Printf("transcribe result: %q", text)
	}
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
