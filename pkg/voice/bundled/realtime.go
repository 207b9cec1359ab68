// Package bundled provides conversation engine implementations for
// pkg/voice.
package bundled

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/spokenlabs/concierge/internal/log"
	"github.com/spokenlabs/concierge/pkg/voice"
)

const (
	realtimeURL   = "wss://api.openai.com/v1/realtime"
	realtimeModel = "gpt-4o-realtime-preview-2024-12-17"
)

// Realtime implements voice.Pipeline using a realtime speech API over a
// single WebSocket. VAD, turn detection, transcription and synthesis all run
// on the provider side; this engine shuttles frames and surfaces events.
type Realtime struct {
	config voice.Config

	// WebSocket connection
	ws   *websocket.Conn
	wsMu sync.Mutex

	// Tools
	tools    []voice.Tool
	toolsMap map[string]voice.Tool

	// Session state
	mu           sync.RWMutex
	connected    bool
	sessionReady bool
	closed       bool
	ctx          context.Context
	cancel       context.CancelFunc

	// Tool calls in flight; user audio is dropped while > 0 when
	// MuteDuringToolCalls is set.
	activeTools   int
	activeToolsMu sync.Mutex

	// Metrics
	metrics *voice.MetricsCollector

	// Callbacks
	onAudioOut   func(pcm16 []byte)
	onConnect    func()
	onDisconnect func(err error)
	onTranscript func(text string, isFinal bool)
	onResponse   func(text string, isFinal bool)
	onToolCall   func(call voice.ToolCall)
	onError      func(err error)
}

// NewRealtime creates a new realtime pipeline.
func NewRealtime(cfg voice.Config) (*Realtime, error) {
	if cfg.OpenAIKey == "" {
		return nil, voice.ErrMissingAPIKey
	}

	return &Realtime{
		config:   cfg,
		tools:    []voice.Tool{},
		toolsMap: make(map[string]voice.Tool),
		metrics:  voice.NewMetricsCollector(),
	}, nil
}

// Start establishes the WebSocket connection and begins processing.
func (r *Realtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.connected {
		r.mu.Unlock()
		return voice.ErrAlreadyStarted
	}
	r.mu.Unlock()

	r.ctx, r.cancel = context.WithCancel(ctx)

	model := r.config.LLMModel
	if model == "" {
		model = realtimeModel
	}
	url := fmt.Sprintf("%s?model=%s", realtimeURL, model)

	header := make(http.Header)
	header.Set("Authorization", "Bearer "+r.config.OpenAIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	var err error
	r.ws, _, err = dialer.Dial(url, header)
	if err != nil {
		return fmt.Errorf("voice/realtime: failed to connect: %w", err)
	}

	r.mu.Lock()
	r.connected = true
	r.closed = false
	r.mu.Unlock()

	if err := r.configureSession(); err != nil {
		r.Stop()
		return fmt.Errorf("voice/realtime: failed to configure session: %w", err)
	}

	go r.handleMessages()

	return nil
}

// Stop gracefully shuts down the pipeline.
func (r *Realtime) Stop() error {
	r.mu.Lock()
	alreadyClosed := r.closed
	r.closed = true
	r.connected = false
	r.sessionReady = false
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	r.activeToolsMu.Lock()
	r.activeTools = 0
	r.activeToolsMu.Unlock()

	if r.ws != nil && !alreadyClosed {
		return r.ws.Close()
	}
	return nil
}

// IsConnected returns true if connected and the session is configured.
func (r *Realtime) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected && r.sessionReady && !r.closed
}

// SendAudio sends PCM16 audio to the engine.
func (r *Realtime) SendAudio(pcm16 []byte) error {
	r.mu.RLock()
	if !r.connected || r.closed {
		r.mu.RUnlock()
		return voice.ErrNotConnected
	}
	r.mu.RUnlock()

	if r.config.MuteDuringToolCalls && r.toolCallsInFlight() > 0 {
		// Muted: the user hears the "let me check" cue while the tool
		// runs; their audio is intentionally not queued.
		return nil
	}

	r.metrics.IncrementAudioIn()

	encoded := base64.StdEncoding.EncodeToString(pcm16)
	return r.sendJSON(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": encoded,
	})
}

// OnAudioOut sets the callback for audio output.
func (r *Realtime) OnAudioOut(fn func(pcm16 []byte)) {
	r.onAudioOut = fn
}

// OnConnect sets the callback fired once the session is ready.
func (r *Realtime) OnConnect(fn func()) {
	r.onConnect = fn
}

// OnDisconnect sets the callback fired when the session ends.
func (r *Realtime) OnDisconnect(fn func(err error)) {
	r.onDisconnect = fn
}

// OnTranscript sets the callback for user transcripts.
func (r *Realtime) OnTranscript(fn func(text string, isFinal bool)) {
	r.onTranscript = fn
}

// OnResponse sets the callback for assistant responses.
func (r *Realtime) OnResponse(fn func(text string, isFinal bool)) {
	r.onResponse = fn
}

// OnError sets the error callback.
func (r *Realtime) OnError(fn func(err error)) {
	r.onError = fn
}

// RegisterTool adds a tool the model can invoke.
func (r *Realtime) RegisterTool(tool voice.Tool) {
	r.tools = append(r.tools, tool)
	r.toolsMap[tool.Name] = tool
}

// OnToolCall sets the callback for tool invocations.
func (r *Realtime) OnToolCall(fn func(call voice.ToolCall)) {
	r.onToolCall = fn
}

// SubmitToolResult returns a tool result to the model and requests the next
// response.
func (r *Realtime) SubmitToolResult(callID string, result string) error {
	defer r.toolCallDone()

	if err := r.sendJSON(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  result,
		},
	}); err != nil {
		return err
	}

	return r.sendJSON(map[string]any{
		"type": "response.create",
	})
}

// Say makes the assistant speak the given phrase immediately.
func (r *Realtime) Say(text string) error {
	return r.sendJSON(map[string]any{
		"type":     "response.create",
		"event_id": uuid.NewString(),
		"response": map[string]any{
			"instructions": "Say exactly the following, nothing else: " + text,
		},
	})
}

// Instruct appends a system instruction and starts generation.
func (r *Realtime) Instruct(text string) error {
	if err := r.sendJSON(map[string]any{
		"type":     "conversation.item.create",
		"event_id": uuid.NewString(),
		"item": map[string]any{
			"type": "message",
			"role": "system",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	}); err != nil {
		return err
	}

	return r.sendJSON(map[string]any{
		"type": "response.create",
	})
}

// Interrupt stops the current response.
func (r *Realtime) Interrupt() error {
	return r.sendJSON(map[string]any{
		"type": "response.cancel",
	})
}

// Metrics returns current latency metrics.
func (r *Realtime) Metrics() voice.Metrics {
	return r.metrics.Current()
}

// Config returns the current configuration.
func (r *Realtime) Config() voice.Config {
	return r.config
}

// configureSession sets up the realtime session with current config.
func (r *Realtime) configureSession() error {
	ttsVoice := r.config.TTSVoice
	if ttsVoice == "" {
		ttsVoice = "alloy"
	}

	apiTools := make([]map[string]any, len(r.tools))
	for i, tool := range r.tools {
		apiTools[i] = map[string]any{
			"type":        "function",
			"name":        tool.Name,
			"description": tool.Description,
			"parameters":  tool.Parameters,
		}
	}

	prefixPaddingMs := int(r.config.VADPrefixPadding.Milliseconds())
	if prefixPaddingMs == 0 {
		prefixPaddingMs = 300
	}
	silenceDurationMs := int(r.config.VADSilenceDuration.Milliseconds())
	if silenceDurationMs == 0 {
		silenceDurationMs = 200
	}

	threshold := r.config.VADThreshold
	if threshold == 0 {
		threshold = 0.5
	}

	return r.sendJSON(map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"modalities":          []string{"text", "audio"},
			"instructions":        r.config.SystemPrompt,
			"voice":               ttsVoice,
			"input_audio_format":  "pcm16",
			"output_audio_format": "pcm16",
			"input_audio_transcription": map[string]any{
				"model": "whisper-1",
			},
			"turn_detection": map[string]any{
				"type":                "server_vad",
				"threshold":           threshold,
				"prefix_padding_ms":   prefixPaddingMs,
				"silence_duration_ms": silenceDurationMs,
			},
			"tools":       apiTools,
			"tool_choice": "auto",
		},
	})
}

// handleMessages processes incoming WebSocket messages.
func (r *Realtime) handleMessages() {
	var loopErr error
	defer func() {
		if r.onDisconnect != nil {
			r.onDisconnect(loopErr)
		}
	}()

	for {
		r.mu.RLock()
		closed := r.closed
		r.mu.RUnlock()

		if closed {
			return
		}

		_, message, err := r.ws.ReadMessage()
		if err != nil {
			r.mu.RLock()
			closed := r.closed
			r.mu.RUnlock()

			if !closed {
				loopErr = err
				if r.onError != nil {
					r.onError(err)
				}
			}
			return
		}

		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		msgType, _ := msg["type"].(string)

		switch msgType {
		case "session.created":
			r.mu.Lock()
			r.sessionReady = true
			r.mu.Unlock()
			if r.config.Debug {
				log.Debug("realtime session created")
			}
			if r.onConnect != nil {
				r.onConnect()
			}

		case "session.updated":
			if r.config.Debug {
				log.Debug("realtime session configured")
			}

		case "input_audio_buffer.speech_stopped":
			r.metrics.MarkSpeechEnd()

		case "conversation.item.input_audio_transcription.completed":
			r.metrics.MarkTranscript()
			if transcript, ok := msg["transcript"].(string); ok && r.onTranscript != nil {
				r.onTranscript(transcript, true)
			}

		case "response.audio.delta":
			r.metrics.MarkFirstAudio()
			r.metrics.IncrementAudioOut()
			if delta, ok := msg["delta"].(string); ok && r.onAudioOut != nil {
				if audioData, err := base64.StdEncoding.DecodeString(delta); err == nil {
					r.onAudioOut(audioData)
				}
			}

		case "response.audio.done":
			r.metrics.MarkResponseDone()
			if r.config.ProfileLatency {
				m := r.metrics.Current()
				log.Info("turn latency", "breakdown", m.FormatLatency())
			}

		case "response.audio_transcript.delta":
			r.metrics.MarkFirstToken()
			if delta, ok := msg["delta"].(string); ok && r.onResponse != nil {
				r.onResponse(delta, false)
			}

		case "response.audio_transcript.done":
			if transcript, ok := msg["transcript"].(string); ok && r.onResponse != nil {
				r.onResponse(transcript, true)
			}

		case "response.function_call_arguments.done":
			r.handleFunctionCall(msg)

		case "error":
			if errData, ok := msg["error"].(map[string]any); ok {
				if errMsg, ok := errData["message"].(string); ok && r.onError != nil {
					r.onError(fmt.Errorf("voice/realtime: API error: %s", errMsg))
				}
			}

		default:
			if r.config.Debug && msgType != "" {
				log.Debug("realtime event", "type", msgType)
			}
		}
	}
}

// handleFunctionCall forwards a tool call to the dispatcher.
func (r *Realtime) handleFunctionCall(msg map[string]any) {
	name, _ := msg["name"].(string)
	callID, _ := msg["call_id"].(string)
	argsStr, _ := msg["arguments"].(string)

	var args map[string]any
	if err := json.Unmarshal([]byte(argsStr), &args); err != nil {
		args = make(map[string]any)
	}

	r.metrics.IncrementToolCalls()
	r.toolCallStarted()

	call := voice.ToolCall{
		ID:        callID,
		Name:      name,
		Arguments: args,
	}

	if r.onToolCall != nil {
		// Run off the read loop; the handler may block on network I/O and
		// audio events must keep flowing meanwhile.
		go r.onToolCall(call)
		return
	}

	// No external dispatcher: execute the registered handler directly.
	go func() {
		var result string
		if tool, ok := r.toolsMap[name]; ok && tool.Handler != nil {
			var err error
			result, err = tool.Handler(args)
			if err != nil {
				result = fmt.Sprintf("Error: %v", err)
			}
		} else {
			result = fmt.Sprintf("Error: no tool registered with name %q", name)
		}

		if !r.IsConnected() {
			r.toolCallDone()
			return
		}
		if err := r.SubmitToolResult(callID, result); err != nil && r.onError != nil {
			r.onError(fmt.Errorf("voice/realtime: failed to send tool result: %w", err))
		}
	}()
}

func (r *Realtime) toolCallStarted() {
	r.activeToolsMu.Lock()
	r.activeTools++
	r.activeToolsMu.Unlock()
}

func (r *Realtime) toolCallDone() {
	r.activeToolsMu.Lock()
	if r.activeTools > 0 {
		r.activeTools--
	}
	r.activeToolsMu.Unlock()
}

func (r *Realtime) toolCallsInFlight() int {
	r.activeToolsMu.Lock()
	defer r.activeToolsMu.Unlock()
	return r.activeTools
}

// sendJSON sends a JSON message over the WebSocket.
func (r *Realtime) sendJSON(v any) error {
	r.wsMu.Lock()
	defer r.wsMu.Unlock()

	if r.ws == nil {
		return voice.ErrNotConnected
	}

	return r.ws.WriteJSON(v)
}

// Ensure Realtime implements voice.Pipeline at compile time.
var _ voice.Pipeline = (*Realtime)(nil)

func init() {
	voice.Register(voice.ProviderRealtime, func(cfg voice.Config) (voice.Pipeline, error) {
		return NewRealtime(cfg)
	})
}
