package assistant

import (
	"fmt"

	"github.com/spokenlabs/concierge/pkg/whatsapp"
)

// ArgError reports a malformed tool argument from the model. Malformed calls
// are rejected with a typed error instead of silently defaulting to "".
type ArgError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("invalid argument %q for tool %s: %s", e.Field, e.Tool, e.Reason)
}

// ReminderArgs are the validated arguments of send_whatsapp_reminder.
type ReminderArgs struct {
	ReminderText string
}

func parseReminderArgs(args map[string]any) (ReminderArgs, error) {
	text, err := stringArg(args, "send_whatsapp_reminder", "reminder_text")
	if err != nil {
		return ReminderArgs{}, err
	}
	return ReminderArgs{ReminderText: text}, nil
}

// OrderArgs are the validated arguments of send_whatsapp_message.
type OrderArgs struct {
	OrderSummary string
	PhoneNumber  string
}

func parseOrderArgs(args map[string]any) (OrderArgs, error) {
	summary, err := stringArg(args, "send_whatsapp_message", "order_summary")
	if err != nil {
		return OrderArgs{}, err
	}
	number, err := stringArg(args, "send_whatsapp_message", "phone_number")
	if err != nil {
		return OrderArgs{}, err
	}
	// The prompt asks the model to normalize to digits plus a leading "+",
	// but the model is not trusted to comply.
	if err := whatsapp.ValidateNumber(number); err != nil {
		return OrderArgs{}, &ArgError{
			Tool:   "send_whatsapp_message",
			Field:  "phone_number",
			Reason: err.Error(),
		}
	}
	return OrderArgs{OrderSummary: summary, PhoneNumber: number}, nil
}

func stringArg(args map[string]any, tool, field string) (string, error) {
	raw, ok := args[field]
	if !ok {
		return "", &ArgError{Tool: tool, Field: field, Reason: "missing"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &ArgError{Tool: tool, Field: field, Reason: fmt.Sprintf("expected string, got %T", raw)}
	}
	if s == "" {
		return "", &ArgError{Tool: tool, Field: field, Reason: "empty"}
	}
	return s, nil
}
