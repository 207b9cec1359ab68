package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// RecentEmailCount is how many inbox messages the get_gmail_emails tool
// summarizes.
const RecentEmailCount = 3

// Placeholders for absent headers.
const (
	noSubject     = "No subject"
	unknownSender = "Unknown sender"
)

// EmailSummary is the normalized message shape handed back to the model.
type EmailSummary struct {
	Snippet string `json:"snippet"`
	Subject string `json:"subject"`
	From    string `json:"from"`
}

// GmailClient answers the get_gmail_emails tool: the most recent inbox
// messages, metadata only.
type GmailClient struct {
	auth *Manager

	// Test seams; zero values mean production behavior.
	endpoint   string
	httpClient *http.Client
}

// NewGmailClient creates a mail client backed by the credential manager.
func NewGmailClient(auth *Manager) *GmailClient {
	return &GmailClient{auth: auth}
}

// RecentEmails returns summaries of the RecentEmailCount most recent inbox
// messages, in the order the provider lists them.
func (c *GmailClient) RecentEmails(ctx context.Context) ([]EmailSummary, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	list, err := svc.Users.Messages.List("me").
		MaxResults(RecentEmailCount).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("google: message list failed: %w", err)
	}

	var out []EmailSummary
	for _, ref := range list.Messages {
		msg, err := svc.Users.Messages.Get("me", ref.Id).
			Format("metadata").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("google: message fetch failed: %w", err)
		}
		out = append(out, summarizeMessage(msg))
	}
	return out, nil
}

// RecentEmailsJSON returns RecentEmails pretty-printed as a JSON array.
func (c *GmailClient) RecentEmailsJSON(ctx context.Context) (string, error) {
	emails, err := c.RecentEmails(ctx)
	if err != nil {
		return "", err
	}
	if emails == nil {
		emails = []EmailSummary{}
	}

	b, err := json.MarshalIndent(emails, "", "  ")
	if err != nil {
		return "", fmt.Errorf("google: failed to encode emails: %w", err)
	}
	return string(b), nil
}

func (c *GmailClient) service(ctx context.Context) (*gmail.Service, error) {
	if c.endpoint != "" {
		return gmail.NewService(ctx,
			option.WithEndpoint(c.endpoint),
			option.WithHTTPClient(c.httpClient))
	}

	hc, err := c.auth.Client(ctx)
	if err != nil {
		return nil, err
	}
	return gmail.NewService(ctx, option.WithHTTPClient(hc))
}

// summarizeMessage extracts snippet, subject and sender from a
// metadata-format message.
func summarizeMessage(msg *gmail.Message) EmailSummary {
	summary := EmailSummary{
		Subject: noSubject,
		From:    unknownSender,
	}
	if msg == nil {
		return summary
	}

	summary.Snippet = msg.Snippet
	if msg.Payload == nil {
		return summary
	}

	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "Subject":
			summary.Subject = h.Value
		case "From":
			summary.From = h.Value
		}
	}
	return summary
}
