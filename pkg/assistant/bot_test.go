package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spokenlabs/concierge/pkg/voice"
)

// mockPipeline is an in-memory voice.Pipeline for bot tests.
type mockPipeline struct {
	mu sync.Mutex

	started bool
	stopped bool
	tools   []voice.Tool

	instructions []string
	said         []string
	results      map[string]string

	onConnect    func()
	onDisconnect func(err error)
	onToolCall   func(call voice.ToolCall)

	startErr  error
	submitted chan struct{}
}

func newMockPipeline() *mockPipeline {
	return &mockPipeline{
		results:   make(map[string]string),
		submitted: make(chan struct{}, 8),
	}
}

func (m *mockPipeline) Start(ctx context.Context) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.mu.Lock()
	m.started = true
	connect := m.onConnect
	m.mu.Unlock()
	if connect != nil {
		connect()
	}
	return nil
}

func (m *mockPipeline) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockPipeline) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && !m.stopped
}

func (m *mockPipeline) SendAudio(pcm16 []byte) error     { return nil }
func (m *mockPipeline) OnAudioOut(fn func(pcm16 []byte)) {}

func (m *mockPipeline) Say(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.said = append(m.said, text)
	return nil
}

func (m *mockPipeline) Instruct(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instructions = append(m.instructions, text)
	return nil
}

func (m *mockPipeline) Interrupt() error { return nil }

func (m *mockPipeline) OnConnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = fn
}

func (m *mockPipeline) OnDisconnect(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = fn
}

func (m *mockPipeline) OnTranscript(fn func(text string, isFinal bool)) {}
func (m *mockPipeline) OnResponse(fn func(text string, isFinal bool))   {}
func (m *mockPipeline) OnError(fn func(err error))                      {}

func (m *mockPipeline) RegisterTool(tool voice.Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = append(m.tools, tool)
}

func (m *mockPipeline) OnToolCall(fn func(call voice.ToolCall)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onToolCall = fn
}

func (m *mockPipeline) SubmitToolResult(callID, result string) error {
	m.mu.Lock()
	m.results[callID] = result
	m.mu.Unlock()
	m.submitted <- struct{}{}
	return nil
}

func (m *mockPipeline) Metrics() voice.Metrics { return voice.Metrics{} }
func (m *mockPipeline) Config() voice.Config   { return voice.Config{} }

func (m *mockPipeline) disconnect(err error) {
	m.mu.Lock()
	fn := m.onDisconnect
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func echoTool(name string) voice.Tool {
	return voice.Tool{
		Name:        name,
		Description: "test",
		Parameters:  map[string]any{"type": "object"},
		Handler: func(args map[string]any) (string, error) {
			return "done", nil
		},
	}
}

func TestNewRegistersToolsOnPipeline(t *testing.T) {
	pipe := newMockPipeline()

	bot, err := New(pipe, Options{Tools: []voice.Tool{echoTool("a"), echoTool("b")}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if bot == nil {
		t.Fatal("New returned nil bot")
	}
	if len(pipe.tools) != 2 {
		t.Errorf("pipeline got %d tools, want 2", len(pipe.tools))
	}
}

func TestNewRejectsDuplicateTools(t *testing.T) {
	pipe := newMockPipeline()

	if _, err := New(pipe, Options{Tools: []voice.Tool{echoTool("a"), echoTool("a")}}); err == nil {
		t.Error("New should reject duplicate tool names")
	}
}

func TestNewRejectsNilPipeline(t *testing.T) {
	if _, err := New(nil, Options{}); err == nil {
		t.Error("New should reject a nil pipeline")
	}
}

func TestRunGreetsAndDispatchesTools(t *testing.T) {
	pipe := newMockPipeline()

	var eventsMu sync.Mutex
	var events []Event

	bot, err := New(pipe, Options{
		Name:     "test",
		Greeting: "say hello",
		Tools:    []voice.Tool{echoTool("a")},
		Publish: func(ev Event) {
			eventsMu.Lock()
			events = append(events, ev)
			eventsMu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- bot.Run(context.Background()) }()

	// Start fires the connect callback synchronously, so once the tool
	// callback is visible the greeting went out.
	waitFor(t, func() bool {
		pipe.mu.Lock()
		defer pipe.mu.Unlock()
		return pipe.onToolCall != nil && len(pipe.instructions) == 1
	})

	pipe.mu.Lock()
	greeting := pipe.instructions[0]
	toolCall := pipe.onToolCall
	pipe.mu.Unlock()
	if greeting != "say hello" {
		t.Errorf("greeting = %q", greeting)
	}

	toolCall(voice.ToolCall{ID: "c1", Name: "a"})
	select {
	case <-pipe.submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("tool result was never submitted")
	}

	pipe.mu.Lock()
	result := pipe.results["c1"]
	pipe.mu.Unlock()
	if result != "done" {
		t.Errorf("submitted result = %q, want handler output", result)
	}

	pipe.disconnect(nil)
	if err := <-runErr; err != nil {
		t.Errorf("Run returned %v on clean disconnect", err)
	}

	eventsMu.Lock()
	kinds := map[string]bool{}
	for _, ev := range events {
		kinds[ev.Kind] = true
	}
	eventsMu.Unlock()
	for _, kind := range []string{"connect", "tool", "disconnect"} {
		if !kinds[kind] {
			t.Errorf("missing %q event in feed", kind)
		}
	}
}

func TestRunUnknownToolStillAnswers(t *testing.T) {
	pipe := newMockPipeline()
	bot, err := New(pipe, Options{Tools: []voice.Tool{echoTool("a")}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- bot.Run(context.Background()) }()

	waitFor(t, func() bool {
		pipe.mu.Lock()
		defer pipe.mu.Unlock()
		return pipe.onToolCall != nil
	})

	pipe.mu.Lock()
	toolCall := pipe.onToolCall
	pipe.mu.Unlock()

	toolCall(voice.ToolCall{ID: "c2", Name: "ghost"})
	select {
	case <-pipe.submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("unknown tool must still get a submitted result")
	}

	pipe.mu.Lock()
	result := pipe.results["c2"]
	pipe.mu.Unlock()
	if result == "" || result[:5] != "Error" {
		t.Errorf("unknown tool result = %q", result)
	}

	pipe.disconnect(nil)
	<-runErr
}

func TestRunContextCancelStopsCleanly(t *testing.T) {
	pipe := newMockPipeline()
	bot, err := New(pipe, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- bot.Run(ctx) }()

	waitFor(t, func() bool {
		pipe.mu.Lock()
		defer pipe.mu.Unlock()
		return pipe.started
	})

	cancel()
	if err := <-runErr; err != nil {
		t.Errorf("Run returned %v on context cancel", err)
	}

	pipe.mu.Lock()
	stopped := pipe.stopped
	pipe.mu.Unlock()
	if !stopped {
		t.Error("pipeline should be stopped on shutdown")
	}
}

func TestRunReturnsDisconnectError(t *testing.T) {
	pipe := newMockPipeline()
	bot, err := New(pipe, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- bot.Run(context.Background()) }()

	waitFor(t, func() bool {
		pipe.mu.Lock()
		defer pipe.mu.Unlock()
		return pipe.started
	})

	pipe.disconnect(errors.New("websocket closed"))
	if err := <-runErr; err == nil {
		t.Error("Run should surface transport failures")
	}
}

func TestRunStartFailure(t *testing.T) {
	pipe := newMockPipeline()
	pipe.startErr = errors.New("dial failed")

	bot, err := New(pipe, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := bot.Run(context.Background()); err == nil {
		t.Error("Run should fail when the pipeline cannot start")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
