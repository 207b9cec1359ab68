// Concierge avatar - the personal assistant fronted by a Tavus video
// avatar. The avatar room is created at startup and torn down on exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spokenlabs/concierge/internal/config"
	"github.com/spokenlabs/concierge/internal/log"
	"github.com/spokenlabs/concierge/pkg/assistant"
	"github.com/spokenlabs/concierge/pkg/avatar"
	"github.com/spokenlabs/concierge/pkg/google"
	"github.com/spokenlabs/concierge/pkg/voice"
	_ "github.com/spokenlabs/concierge/pkg/voice/bundled"
	"github.com/spokenlabs/concierge/pkg/web"
	"github.com/spokenlabs/concierge/pkg/whatsapp"
)

func main() {
	debug := flag.Bool("debug", false, "enable verbose debug logging")
	port := flag.String("port", "", "operator server port (overrides PORT)")
	flag.Parse()

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	log.Init(cfg.LogLevel)

	if err := cfg.Validate(config.VariantAvatar); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg, *debug); err != nil {
		log.Error("avatar assistant exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, debug bool) error {
	auth, err := google.NewManager(cfg.GoogleCredentialsPath, cfg.GoogleTokenPath)
	if err != nil {
		return err
	}

	messenger, err := whatsapp.New(whatsapp.Config{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioWhatsAppFrom,
	})
	if err != nil {
		return err
	}

	face, err := avatar.New(cfg.TavusAPIKey, cfg.TavusReplicaID)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conv, err := face.CreateConversation(ctx, "concierge")
	if err != nil {
		return err
	}
	defer func() {
		// Shutdown context is already canceled by then; give the teardown
		// call its own deadline.
		endCtx, endCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer endCancel()
		if err := face.EndConversation(endCtx, conv.ConversationID); err != nil {
			log.Error("failed to end avatar conversation", "error", err)
		}
	}()

	log.Info("avatar room ready", "url", conv.ConversationURL)

	vcfg := voice.DefaultConfig().
		WithSystemPrompt(assistant.AvatarPrompt).
		WithDebug(debug)
	vcfg.OpenAIKey = cfg.OpenAIAPIKey
	vcfg.STTKey = cfg.DeepgramAPIKey
	vcfg.TTSKey = cfg.CartesiaAPIKey

	pipe, err := voice.New(vcfg)
	if err != nil {
		return err
	}

	tools := assistant.AssistantTools(assistant.ToolsConfig{
		Calendar:  google.NewCalendarClient(auth),
		Mail:      google.NewGmailClient(auth),
		Messenger: messenger,
		Recipient: cfg.RecipientNumber,
		Speak: func(text string) {
			if err := pipe.Say(text); err != nil {
				log.Debug("speech cue skipped", "error", err)
			}
		},
	})

	srv := web.NewServer(cfg.Port, auth)
	srv.SetMetricsSource(pipe.Metrics)
	srv.StartAsync()
	defer srv.Shutdown()

	if !auth.IsAuthorized() {
		log.Warn("google account not authorized yet",
			"url", fmt.Sprintf("http://localhost:%s/auth/start", cfg.Port))
	}

	bot, err := assistant.New(pipe, assistant.Options{
		Name:     "avatar",
		Greeting: assistant.AssistantGreeting,
		Tools:    tools,
		Publish:  srv.Publish,
	})
	if err != nil {
		return err
	}

	return bot.Run(ctx)
}
