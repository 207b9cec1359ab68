package voice

import (
	"errors"
	"time"
)

// Provider identifies the voice pipeline provider.
type Provider string

const (
	// ProviderRealtime uses a realtime speech API over a single WebSocket
	// (model-hosted VAD, ASR and TTS).
	ProviderRealtime Provider = "realtime"
)

// Config holds all tunable parameters for voice pipelines.
// Parameters are organized by stage for clarity.
type Config struct {
	// Provider selection
	Provider Provider

	// API keys. OpenAIKey drives the realtime engine; the STT and TTS keys
	// are passed to engines that run transcription and synthesis as
	// separate services.
	OpenAIKey string
	STTKey    string // Deepgram
	TTSKey    string // Cartesia

	// Audio settings
	InputSampleRate  int // default: 24000
	OutputSampleRate int // default: 24000

	// VAD (Voice Activity Detection) settings
	VADThreshold       float64       // Activation threshold 0.0-1.0 (default: 0.5)
	VADPrefixPadding   time.Duration // Audio to include before speech start (default: 300ms)
	VADSilenceDuration time.Duration // Silence duration to detect end of speech (default: 200ms)

	// LLM settings
	LLMModel       string  // Model name (default: provider-specific)
	LLMTemperature float64 // Response randomness 0.0-2.0 (default: 0.8)
	SystemPrompt   string  // System instructions for the assistant

	// TTS settings
	TTSVoice string // Voice ID or name

	// Behavior
	// MuteDuringToolCalls drops user audio while a tool call is in flight,
	// so half-finished speech does not pile up behind a slow network call.
	MuteDuringToolCalls bool

	// Debug settings
	Debug          bool // Enable debug logging
	ProfileLatency bool // Log per-turn latency breakdown
}

// DefaultConfig returns a Config with sensible defaults for the realtime
// engine.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderRealtime,

		// Audio
		InputSampleRate:  24000,
		OutputSampleRate: 24000,

		// VAD
		VADThreshold:       0.5,
		VADPrefixPadding:   300 * time.Millisecond,
		VADSilenceDuration: 200 * time.Millisecond,

		// LLM
		LLMTemperature: 0.8,

		// Behavior
		MuteDuringToolCalls: true,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderRealtime:
		if c.OpenAIKey == "" {
			return ErrMissingAPIKey
		}
	default:
		return errors.New("voice: unknown provider: " + string(c.Provider))
	}

	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return errors.New("voice: VAD threshold must be between 0 and 1")
	}

	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return errors.New("voice: LLM temperature must be between 0 and 2")
	}

	return nil
}

// WithSystemPrompt returns a copy with the system prompt set.
func (c Config) WithSystemPrompt(prompt string) Config {
	c.SystemPrompt = prompt
	return c
}

// WithVoice returns a copy with the TTS voice set.
func (c Config) WithVoice(voice string) Config {
	c.TTSVoice = voice
	return c
}

// WithVAD returns a copy with VAD settings.
func (c Config) WithVAD(threshold float64, silenceDuration time.Duration) Config {
	c.VADThreshold = threshold
	c.VADSilenceDuration = silenceDuration
	return c
}

// WithDebug returns a copy with debug enabled.
func (c Config) WithDebug(debug bool) Config {
	c.Debug = debug
	return c
}
