package voice

import (
	"fmt"
	"sync"
)

// Tool represents a function that the model can invoke during conversation.
type Tool struct {
	// Name is the unique identifier for the tool (e.g., "get_calendar_events").
	Name string `json:"name"`

	// Description explains what the tool does, helping the model decide
	// when to use it.
	Description string `json:"description"`

	// Parameters defines the JSON schema for the tool's arguments.
	// Example:
	//   map[string]any{
	//       "type": "object",
	//       "properties": map[string]any{
	//           "reminder_text": map[string]any{"type": "string"},
	//       },
	//       "required": []string{"reminder_text"},
	//   }
	Parameters map[string]any `json:"parameters"`

	// Handler is called when the model invokes this tool.
	// It receives the parsed arguments and returns a result string or error.
	// The result is sent back to the model to continue the conversation.
	Handler func(args map[string]any) (string, error) `json:"-"`
}

// ToolCall represents an invocation of a tool by the model.
type ToolCall struct {
	// ID is the unique identifier for this tool call.
	// Used to match results back to the correct call.
	ID string

	// Name is the tool being invoked.
	Name string

	// Arguments contains the parsed arguments from the model.
	Arguments map[string]any
}

// ResultSink receives a tool result so the model sees the outcome.
// Dispatch always delivers to the sink and returns the identical string.
type ResultSink func(result string)

// Registry maps tool names to handlers and dispatches incoming calls.
//
// Registration happens once, before the conversation starts; dispatch happens
// from the engine's event loop for the rest of the session.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. A tool without a name or handler, or a name that is
// already taken, is a programming error and fails immediately.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("voice: tool with empty name")
	}
	if t.Handler == nil {
		return fmt.Errorf("voice: tool %q has no handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("voice: tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// MustRegister is Register that panics on error. Tool wiring is static
// configuration, so a bad registration should stop the program at startup.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns all registered tools.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Dispatch locates the handler for call by exact name match and invokes it.
//
// The handler outcome, success or error, is delivered to sink and returned as
// the same string. Handler errors and panics are converted to "Error: ..."
// strings; nothing escapes to the engine, the model decides how to respond
// conversationally.
func (r *Registry) Dispatch(call ToolCall, sink ResultSink) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			result = fmt.Sprintf("Error: tool %s panicked: %v", call.Name, rec)
			if sink != nil {
				sink(result)
			}
		}
	}()

	tool, ok := r.Lookup(call.Name)
	if !ok {
		// Unknown name means the engine-side schema and the registry
		// disagree: a wiring bug, not a user error.
		result = fmt.Sprintf("Error: no tool registered with name %q", call.Name)
		if sink != nil {
			sink(result)
		}
		return result
	}

	result, err := tool.Handler(call.Arguments)
	if err != nil {
		result = fmt.Sprintf("Error: %v", err)
	}
	if sink != nil {
		sink(result)
	}
	return result
}
