// Package assistant assembles voice bots from a pipeline, a tool set, and a
// system prompt: the personal assistant, the WhatsApp order taker, and the
// avatar-fronted assistant.
package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/spokenlabs/concierge/internal/log"
	"github.com/spokenlabs/concierge/pkg/google"
	"github.com/spokenlabs/concierge/pkg/voice"
	"github.com/spokenlabs/concierge/pkg/whatsapp"
)

// ToolsConfig carries the backends the tool handlers close over.
type ToolsConfig struct {
	Calendar  *google.CalendarClient
	Mail      *google.GmailClient
	Messenger *whatsapp.Client

	// Recipient is the fixed reminder destination (E.164). The model never
	// chooses where reminders go.
	Recipient string

	// Speak, when set, voices a short filler line before a slow backend
	// call so the user is not left in silence.
	Speak func(text string)
}

func (c ToolsConfig) say(text string) {
	if c.Speak != nil {
		c.Speak(text)
	}
}

// AssistantTools returns the personal assistant's tool set: calendar, mail,
// and the fixed-recipient WhatsApp reminder.
func AssistantTools(cfg ToolsConfig) []voice.Tool {
	return []voice.Tool{
		calendarTool(cfg),
		gmailTool(cfg),
		reminderTool(cfg),
	}
}

// OrderTakerTools returns the order taker's single tool: the WhatsApp order
// confirmation to a caller-supplied number.
func OrderTakerTools(cfg ToolsConfig) []voice.Tool {
	return []voice.Tool{orderTool(cfg)}
}

func calendarTool(cfg ToolsConfig) voice.Tool {
	return voice.Tool{
		Name:        "get_calendar_events",
		Description: "Get today's events from the user's Google Calendar. Use this when the user asks about their schedule, meetings, or appointments today.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
		Handler: func(args map[string]any) (string, error) {
			cfg.say("Let me check your schedule.")

			out, err := cfg.Calendar.TodayEventsJSON(context.Background())
			if err != nil {
				return toolFailure("retrieving calendar events", err), nil
			}
			return out, nil
		},
	}
}

func gmailTool(cfg ToolsConfig) voice.Tool {
	return voice.Tool{
		Name:        "get_gmail_emails",
		Description: fmt.Sprintf("Get the %d most recent emails from the user's Gmail inbox. Use this when the user asks about their email or new messages.", google.RecentEmailCount),
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
		Handler: func(args map[string]any) (string, error) {
			cfg.say("Let me check your inbox.")

			out, err := cfg.Mail.RecentEmailsJSON(context.Background())
			if err != nil {
				return toolFailure("retrieving Gmail emails", err), nil
			}
			return out, nil
		},
	}
}

func reminderTool(cfg ToolsConfig) voice.Tool {
	return voice.Tool{
		Name:        "send_whatsapp_reminder",
		Description: "Send a reminder to the user's WhatsApp. Use this when the user asks to be reminded about something.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reminder_text": map[string]any{
					"type":        "string",
					"description": "The reminder message to send.",
				},
			},
			"required": []string{"reminder_text"},
		},
		Handler: func(args map[string]any) (string, error) {
			parsed, err := parseReminderArgs(args)
			if err != nil {
				return toolFailure("sending WhatsApp reminder", err), nil
			}

			cfg.say("Sending that to your WhatsApp.")

			receipt, err := cfg.Messenger.Send(cfg.Recipient, "Reminder: "+parsed.ReminderText)
			if err != nil {
				return toolFailure("sending WhatsApp reminder", err), nil
			}

			log.Info("whatsapp reminder sent", "sid", receipt.SID, "status", receipt.Status)
			return "Reminder sent to WhatsApp successfully!", nil
		},
	}
}

func orderTool(cfg ToolsConfig) voice.Tool {
	return voice.Tool{
		Name:        "send_whatsapp_message",
		Description: "Send the order confirmation to the customer's WhatsApp number. Use this after the customer has confirmed their order and provided their phone number.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"order_summary": map[string]any{
					"type":        "string",
					"description": "A summary of the confirmed order, one item per line.",
				},
				"phone_number": map[string]any{
					"type":        "string",
					"description": "The customer's phone number in E.164 format, e.g. +16507303690.",
				},
			},
			"required": []string{"order_summary", "phone_number"},
		},
		Handler: func(args map[string]any) (string, error) {
			parsed, err := parseOrderArgs(args)
			if err != nil {
				return toolFailure("sending WhatsApp message", err), nil
			}

			cfg.say("Sending your confirmation now.")

			body := orderConfirmation(parsed.OrderSummary)
			receipt, err := cfg.Messenger.Send(parsed.PhoneNumber, body)
			if err != nil {
				return toolFailure("sending WhatsApp message", err), nil
			}

			log.Info("order confirmation sent", "to", parsed.PhoneNumber, "sid", receipt.SID)
			return fmt.Sprintf("Order confirmation sent to WhatsApp number %s successfully! Order: %s",
				parsed.PhoneNumber, parsed.OrderSummary), nil
		},
	}
}

// orderConfirmation renders the message delivered to the customer.
func orderConfirmation(summary string) string {
	return fmt.Sprintf("📦 Order Confirmed!\n\nYour order:\n%s\n\nThank you for your order! We'll send you updates shortly.", summary)
}

// toolFailure turns a backend error into the readable string handed back to
// the model. The model relays it; it must never see a stack trace, and an
// unauthorized Google account gets an actionable phrasing.
func toolFailure(action string, err error) string {
	if errors.Is(err, google.ErrAuthRequired) {
		return fmt.Sprintf("Error %s: the Google account is not connected yet. Ask the operator to open the authorization page.", action)
	}
	return fmt.Sprintf("Error %s: %v", action, err)
}
