package bundled

import (
	"errors"
	"testing"

	"github.com/spokenlabs/concierge/pkg/voice"
)

func testConfig() voice.Config {
	cfg := voice.DefaultConfig()
	cfg.OpenAIKey = "sk-test"
	return cfg
}

func TestNewRealtimeRequiresKey(t *testing.T) {
	if _, err := NewRealtime(voice.Config{}); !errors.Is(err, voice.ErrMissingAPIKey) {
		t.Errorf("NewRealtime without key = %v, want ErrMissingAPIKey", err)
	}
}

func TestFactoryRegistered(t *testing.T) {
	p, err := voice.New(testConfig())
	if err != nil {
		t.Fatalf("voice.New failed: %v", err)
	}
	if _, ok := p.(*Realtime); !ok {
		t.Errorf("voice.New returned %T, want *Realtime", p)
	}
}

func TestNotConnectedErrors(t *testing.T) {
	r, err := NewRealtime(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	if r.IsConnected() {
		t.Error("IsConnected should be false before Start")
	}
	if err := r.SendAudio([]byte{0, 0}); !errors.Is(err, voice.ErrNotConnected) {
		t.Errorf("SendAudio = %v, want ErrNotConnected", err)
	}
	if err := r.Say("hello"); !errors.Is(err, voice.ErrNotConnected) {
		t.Errorf("Say = %v, want ErrNotConnected", err)
	}
	if err := r.Instruct("greet"); !errors.Is(err, voice.ErrNotConnected) {
		t.Errorf("Instruct = %v, want ErrNotConnected", err)
	}
}

func TestRegisterToolAndConfig(t *testing.T) {
	cfg := testConfig().WithSystemPrompt("be brief")
	r, err := NewRealtime(cfg)
	if err != nil {
		t.Fatal(err)
	}

	r.RegisterTool(voice.Tool{
		Name:        "ping",
		Description: "test",
		Parameters:  map[string]any{"type": "object"},
		Handler:     func(map[string]any) (string, error) { return "pong", nil },
	})

	if len(r.tools) != 1 || r.toolsMap["ping"].Name != "ping" {
		t.Error("RegisterTool did not record the tool")
	}
	if r.Config().SystemPrompt != "be brief" {
		t.Error("Config should round-trip the system prompt")
	}
}

func TestSubmitToolResultAlwaysClearsInFlight(t *testing.T) {
	r, err := NewRealtime(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	r.toolCallStarted()
	if got := r.toolCallsInFlight(); got != 1 {
		t.Fatalf("in flight = %d, want 1", got)
	}

	// Not connected, so the submit fails; the in-flight count must still
	// drop or muting would stick forever.
	if err := r.SubmitToolResult("c1", "done"); !errors.Is(err, voice.ErrNotConnected) {
		t.Errorf("SubmitToolResult = %v, want ErrNotConnected", err)
	}
	if got := r.toolCallsInFlight(); got != 0 {
		t.Errorf("in flight after submit = %d, want 0", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	r, err := NewRealtime(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Stop(); err != nil {
		t.Errorf("Stop before Start = %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Errorf("second Stop = %v", err)
	}
}
