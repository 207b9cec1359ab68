// Package whatsapp sends messages through the Twilio WhatsApp channel.
package whatsapp

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ChannelPrefix is prepended to both numbers so Twilio routes the message
// over WhatsApp instead of SMS.
const ChannelPrefix = "whatsapp:"

// Sentinel errors.
var (
	ErrMissingCredentials = errors.New("whatsapp: account SID and auth token required")
	ErrMissingSender      = errors.New("whatsapp: sender number required")
)

// e164 matches a plus sign followed by 8 to 15 digits, no spaces,
// parentheses or dashes.
var e164 = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// InvalidNumberError reports a recipient number that is not in E.164 form.
// Model-supplied numbers are validated before dispatch rather than trusted.
type InvalidNumberError struct {
	Number string
}

func (e *InvalidNumberError) Error() string {
	return fmt.Sprintf("whatsapp: invalid phone number %q: must be E.164 (e.g. +16507303690)", e.Number)
}

// ValidateNumber checks that number is E.164.
func ValidateNumber(number string) error {
	if !e164.MatchString(number) {
		return &InvalidNumberError{Number: number}
	}
	return nil
}

// MessageCreator is the slice of the Twilio API the client needs.
// *twilio.RestClient's Api service satisfies it.
type MessageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// Config holds the Twilio credentials and the configured sender number
// (plain E.164, no channel prefix).
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Receipt describes a dispatched message. One outbound message per Send
// call; there is no retry, dedup, or delivery tracking beyond the
// provider's synchronous response.
type Receipt struct {
	SID    string
	Status string
	To     string
}

// Client sends WhatsApp messages from a fixed configured sender.
type Client struct {
	api  MessageCreator
	from string
}

// New creates a client talking to the Twilio REST API.
func New(cfg Config) (*Client, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.FromNumber == "" {
		return nil, ErrMissingSender
	}

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &Client{
		api:  rest.Api,
		from: cfg.FromNumber,
	}, nil
}

// NewWithCreator creates a client over a custom MessageCreator.
// Used by tests to substitute a fake provider.
func NewWithCreator(api MessageCreator, from string) (*Client, error) {
	if api == nil {
		return nil, errors.New("whatsapp: nil message creator")
	}
	if from == "" {
		return nil, ErrMissingSender
	}
	return &Client{api: api, from: from}, nil
}

// Send dispatches body to the given E.164 recipient over WhatsApp.
func (c *Client) Send(recipient, body string) (*Receipt, error) {
	if err := ValidateNumber(recipient); err != nil {
		return nil, err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(ChannelPrefix + c.from)
	params.SetTo(ChannelPrefix + recipient)
	params.SetBody(body)

	msg, err := c.api.CreateMessage(params)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: send failed: %w", err)
	}

	receipt := &Receipt{To: recipient}
	if msg != nil {
		if msg.Sid != nil {
			receipt.SID = *msg.Sid
		}
		if msg.Status != nil {
			receipt.Status = *msg.Status
		}
	}
	return receipt, nil
}

// From returns the configured sender number (no channel prefix).
func (c *Client) From() string {
	return c.from
}
