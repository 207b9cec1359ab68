// Package config loads the runtime configuration for concierge bots.
//
// All environment reads happen here, once, at startup. Handlers receive the
// resulting Config by reference instead of calling os.Getenv themselves.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Default paths for the Google OAuth files.
const (
	DefaultCredentialsPath = "credentials.json"
	DefaultTokenPath       = "token.json"
)

// Variant selects which bot a binary runs as. It determines which
// configuration keys are required and which tools get registered.
type Variant string

const (
	// VariantAssistant is the personal assistant: calendar, inbox and
	// WhatsApp reminders.
	VariantAssistant Variant = "assistant"

	// VariantOrderTaker is the order-taking bot that confirms orders over
	// WhatsApp to a caller-supplied number.
	VariantOrderTaker Variant = "ordertaker"

	// VariantAvatar is the assistant with a rendered video avatar.
	VariantAvatar Variant = "avatar"
)

// Config holds every externally-supplied setting for a bot process.
type Config struct {
	// AI service keys
	DeepgramAPIKey string // speech-to-text
	OpenAIAPIKey   string // language model
	CartesiaAPIKey string // text-to-speech

	// Video avatar (avatar variant only)
	TavusAPIKey    string
	TavusReplicaID string

	// Twilio WhatsApp messaging
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string // sender number, no whatsapp: prefix
	RecipientNumber    string // reminder recipient, no whatsapp: prefix

	// Google OAuth files
	GoogleCredentialsPath string
	GoogleTokenPath       string

	// Operator server
	Port     string
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DeepgramAPIKey:        os.Getenv("DEEPGRAM_API_KEY"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		CartesiaAPIKey:        os.Getenv("CARTESIA_API_KEY"),
		TavusAPIKey:           os.Getenv("TAVUS_API_KEY"),
		TavusReplicaID:        os.Getenv("TAVUS_REPLICA_ID"),
		TwilioAccountSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:       os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppFrom:    os.Getenv("TWILIO_WHATSAPP_NUMBER"),
		RecipientNumber:       os.Getenv("RECIPIENT_NUMBER"),
		GoogleCredentialsPath: os.Getenv("GOOGLE_CREDENTIALS_PATH"),
		GoogleTokenPath:       os.Getenv("GOOGLE_TOKEN_PATH"),
		Port:                  os.Getenv("PORT"),
		LogLevel:              os.Getenv("LOG_LEVEL"),
	}

	if cfg.GoogleCredentialsPath == "" {
		cfg.GoogleCredentialsPath = DefaultCredentialsPath
	}
	if cfg.GoogleTokenPath == "" {
		cfg.GoogleTokenPath = DefaultTokenPath
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg
}

// Validate checks that every key the given variant needs is present.
// Missing keys are a fatal configuration error at startup, not something to
// discover mid-conversation.
func (c *Config) Validate(v Variant) error {
	required := map[string]string{
		"DEEPGRAM_API_KEY":       c.DeepgramAPIKey,
		"OPENAI_API_KEY":         c.OpenAIAPIKey,
		"CARTESIA_API_KEY":       c.CartesiaAPIKey,
		"TWILIO_ACCOUNT_SID":     c.TwilioAccountSID,
		"TWILIO_AUTH_TOKEN":      c.TwilioAuthToken,
		"TWILIO_WHATSAPP_NUMBER": c.TwilioWhatsAppFrom,
	}

	switch v {
	case VariantAssistant:
		required["RECIPIENT_NUMBER"] = c.RecipientNumber
	case VariantOrderTaker:
		// recipient comes from the conversation
	case VariantAvatar:
		required["RECIPIENT_NUMBER"] = c.RecipientNumber
		required["TAVUS_API_KEY"] = c.TavusAPIKey
		required["TAVUS_REPLICA_ID"] = c.TavusReplicaID
	default:
		return fmt.Errorf("config: unknown variant %q", v)
	}

	var missing []string
	for name, value := range required {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s",
			strings.Join(sorted(missing), ", "))
	}
	return nil
}

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
