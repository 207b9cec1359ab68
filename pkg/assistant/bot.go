package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/spokenlabs/concierge/internal/log"
	"github.com/spokenlabs/concierge/pkg/voice"
)

// Event is a conversation observation published to the operator feed.
type Event struct {
	Kind string    `json:"kind"` // connect, disconnect, transcript, response, tool, error
	Text string    `json:"text,omitempty"`
	Time time.Time `json:"time"`
}

// Options configure a bot around an already-built pipeline.
type Options struct {
	// Name identifies the variant in logs.
	Name string

	// Greeting, when non-empty, is sent as an instruction on connect so
	// the bot opens the conversation.
	Greeting string

	// Tools are registered on both the pipeline and the dispatch registry.
	Tools []voice.Tool

	// Publish, when set, receives operator feed events. It must not block.
	Publish func(Event)
}

// Bot ties a voice pipeline to a tool registry and runs the session
// lifecycle. Tool calls from the engine are dispatched through the registry
// and every result is submitted back to the session, success or failure.
type Bot struct {
	pipe voice.Pipeline
	reg  *voice.Registry
	opts Options
}

// New builds a bot and registers its tools. A tool the registry rejects is
// a programming error, so registration fails the build rather than leaving
// the pipeline advertising a tool the bot cannot dispatch.
func New(pipe voice.Pipeline, opts Options) (*Bot, error) {
	if pipe == nil {
		return nil, fmt.Errorf("assistant: nil pipeline")
	}
	if opts.Name == "" {
		opts.Name = "assistant"
	}

	reg := voice.NewRegistry()
	for _, t := range opts.Tools {
		if err := reg.Register(t); err != nil {
			return nil, fmt.Errorf("assistant: %w", err)
		}
		pipe.RegisterTool(t)
	}

	return &Bot{pipe: pipe, reg: reg, opts: opts}, nil
}

// Run starts the pipeline and blocks until the session ends or ctx is
// canceled. Context cancellation is a clean shutdown; a transport failure is
// returned as an error.
func (b *Bot) Run(ctx context.Context) error {
	done := make(chan error, 1)

	cb := voice.Callbacks{
		OnConnect: func() {
			log.Info("session connected", "bot", b.opts.Name)
			b.publish(Event{Kind: "connect"})
			if b.opts.Greeting != "" {
				if err := b.pipe.Instruct(b.opts.Greeting); err != nil {
					log.Error("failed to send greeting", "error", err)
				}
			}
		},
		OnDisconnect: func(err error) {
			done <- err
		},
		OnToolCall: func(call voice.ToolCall) {
			b.dispatch(call)
		},
		OnTranscript: func(text string, final bool) {
			if final {
				b.publish(Event{Kind: "transcript", Text: text})
			}
		},
		OnResponse: func(text string, final bool) {
			if final {
				b.publish(Event{Kind: "response", Text: text})
			}
		},
		OnError: func(err error) {
			log.Error("pipeline error", "bot", b.opts.Name, "error", err)
			b.publish(Event{Kind: "error", Text: err.Error()})
		},
	}
	cb.Apply(b.pipe)

	if err := b.pipe.Start(ctx); err != nil {
		return fmt.Errorf("assistant: failed to start pipeline: %w", err)
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down", "bot", b.opts.Name)
		b.pipe.Stop()
		b.publish(Event{Kind: "disconnect"})
		return nil
	case err := <-done:
		b.pipe.Stop()
		b.publish(Event{Kind: "disconnect"})
		if err != nil {
			return fmt.Errorf("assistant: session ended: %w", err)
		}
		return nil
	}
}

// Pipeline exposes the underlying pipeline, e.g. for audio transport wiring.
func (b *Bot) Pipeline() voice.Pipeline {
	return b.pipe
}

// dispatch runs a tool call through the registry. The sink submits the
// result back to the session; Dispatch guarantees it fires exactly once,
// including on unknown tools, handler errors, and panics.
func (b *Bot) dispatch(call voice.ToolCall) {
	log.Info("tool call", "bot", b.opts.Name, "tool", call.Name, "id", call.ID)

	result := b.reg.Dispatch(call, func(res string) {
		if err := b.pipe.SubmitToolResult(call.ID, res); err != nil {
			log.Error("failed to submit tool result", "tool", call.Name, "error", err)
		}
	})

	b.publish(Event{Kind: "tool", Text: call.Name + ": " + truncate(result, 200)})
}

func (b *Bot) publish(ev Event) {
	if b.opts.Publish == nil {
		return
	}
	ev.Time = time.Now()
	b.opts.Publish(ev)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
