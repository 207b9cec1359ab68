package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Common errors returned by pipelines.
var (
	ErrNotConnected   = errors.New("voice: pipeline not connected")
	ErrAlreadyStarted = errors.New("voice: pipeline already started")
	ErrMissingAPIKey  = errors.New("voice: missing API key")
)

// Pipeline is the interface to a real-time voice conversation engine.
type Pipeline interface {
	// Lifecycle

	// Start establishes the connection and begins processing.
	// Call this after registering tools and setting up callbacks.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the pipeline. The running conversation is
	// cancelled as a whole; in-flight tool calls are not targeted
	// individually.
	Stop() error

	// IsConnected returns true if the pipeline is connected and ready.
	IsConnected() bool

	// Audio I/O

	// SendAudio sends PCM16 audio data to the pipeline.
	SendAudio(pcm16 []byte) error

	// OnAudioOut sets the callback for receiving synthesized audio.
	OnAudioOut(fn func(pcm16 []byte))

	// Conversation control

	// Say makes the assistant speak the given phrase immediately, without
	// waiting for the model. Used for cues like "Let me check your
	// schedule" before a slow tool call.
	Say(text string) error

	// Instruct appends a system instruction to the conversation and starts
	// generation. The on-connect greeting goes through this.
	Instruct(text string) error

	// Interrupt stops the current response (for barge-in).
	Interrupt() error

	// Events

	// OnConnect is called once the session is established and configured.
	OnConnect(fn func())

	// OnDisconnect is called when the session ends. err is nil for a clean
	// shutdown.
	OnDisconnect(fn func(err error))

	// OnTranscript is called with the user's transcribed speech.
	OnTranscript(fn func(text string, isFinal bool))

	// OnResponse is called with the assistant's text response.
	OnResponse(fn func(text string, isFinal bool))

	// OnError is called when an error occurs.
	OnError(fn func(err error))

	// Tools

	// RegisterTool adds a tool that the model can invoke.
	// Must be called before Start().
	RegisterTool(tool Tool)

	// OnToolCall sets the callback for tool invocations. The callback
	// receives the call ID, tool name, and parsed arguments; answer with
	// SubmitToolResult.
	OnToolCall(fn func(call ToolCall))

	// SubmitToolResult returns a tool call result to the model.
	SubmitToolResult(callID string, result string) error

	// Metrics & Config

	// Metrics returns current latency metrics.
	Metrics() Metrics

	// Config returns the current configuration.
	Config() Config
}

// PipelineFactory is a function that creates a Pipeline.
type PipelineFactory func(cfg Config) (Pipeline, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[Provider]PipelineFactory)
)

// Register sets the pipeline factory for a provider.
// Implementations call this from init().
func Register(p Provider, f PipelineFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[p] = f
}

// New creates a new Pipeline with the given configuration.
// Returns an error if the config is invalid or no factory is registered
// for its provider.
func New(cfg Config) (Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("voice: no pipeline implementation registered for provider %q", cfg.Provider)
	}

	return f(cfg)
}

// Callbacks groups all pipeline callbacks for convenience.
// This can be used to set up all callbacks at once.
type Callbacks struct {
	OnAudioOut   func(pcm16 []byte)
	OnConnect    func()
	OnDisconnect func(err error)
	OnTranscript func(text string, isFinal bool)
	OnResponse   func(text string, isFinal bool)
	OnToolCall   func(call ToolCall)
	OnError      func(err error)
}

// Apply sets all non-nil callbacks on a pipeline.
func (c *Callbacks) Apply(p Pipeline) {
	if c.OnAudioOut != nil {
		p.OnAudioOut(c.OnAudioOut)
	}
	if c.OnConnect != nil {
		p.OnConnect(c.OnConnect)
	}
	if c.OnDisconnect != nil {
		p.OnDisconnect(c.OnDisconnect)
	}
	if c.OnTranscript != nil {
		p.OnTranscript(c.OnTranscript)
	}
	if c.OnResponse != nil {
		p.OnResponse(c.OnResponse)
	}
	if c.OnToolCall != nil {
		p.OnToolCall(c.OnToolCall)
	}
	if c.OnError != nil {
		p.OnError(c.OnError)
	}
}
