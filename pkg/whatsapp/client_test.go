package whatsapp

import (
	"errors"
	"strings"
	"testing"

	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// fakeCreator records the params of the last CreateMessage call.
type fakeCreator struct {
	last *twilioapi.CreateMessageParams
	err  error
}

func (f *fakeCreator) CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error) {
	f.last = params
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	status := "queued"
	return &twilioapi.ApiV2010Message{Sid: &sid, Status: &status}, nil
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{FromNumber: "+14155238886"}); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("New without credentials = %v, want ErrMissingCredentials", err)
	}
	if _, err := New(Config{AccountSID: "AC1", AuthToken: "tok"}); !errors.Is(err, ErrMissingSender) {
		t.Errorf("New without sender = %v, want ErrMissingSender", err)
	}
}

func TestSendAddsChannelPrefixes(t *testing.T) {
	fake := &fakeCreator{}
	c, err := NewWithCreator(fake, "+14155238886")
	if err != nil {
		t.Fatalf("NewWithCreator failed: %v", err)
	}

	receipt, err := c.Send("+16507303690", "Reminder: buy milk")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got := *fake.last.From; got != "whatsapp:+14155238886" {
		t.Errorf("From = %q, want whatsapp prefix on sender", got)
	}
	if got := *fake.last.To; got != "whatsapp:+16507303690" {
		t.Errorf("To = %q, want whatsapp prefix on recipient", got)
	}
	if got := *fake.last.Body; got != "Reminder: buy milk" {
		t.Errorf("Body = %q", got)
	}

	if receipt.SID != "SM123" || receipt.Status != "queued" {
		t.Errorf("receipt = %+v", receipt)
	}
	if receipt.To != "+16507303690" {
		t.Errorf("receipt.To = %q, should not carry the prefix", receipt.To)
	}
}

func TestSendRejectsInvalidNumbers(t *testing.T) {
	fake := &fakeCreator{}
	c, _ := NewWithCreator(fake, "+14155238886")

	bad := []string{
		"",
		"16507303690",       // missing plus
		"+1 650 730 3690",   // spaces
		"+1-650-730-3690",   // dashes
		"+0123456789",       // leading zero
		"+123",              // too short
		"+1234567890123456", // too long
		"whatsapp:+16507303690",
	}
	for _, number := range bad {
		_, err := c.Send(number, "hi")
		var invalid *InvalidNumberError
		if !errors.As(err, &invalid) {
			t.Errorf("Send(%q) error = %v, want InvalidNumberError", number, err)
		}
		if fake.last != nil {
			t.Errorf("Send(%q) should not reach the provider", number)
		}
	}
}

func TestValidateNumberAccepts(t *testing.T) {
	good := []string{"+16507303690", "+442071838750", "+8615012345678"}
	for _, number := range good {
		if err := ValidateNumber(number); err != nil {
			t.Errorf("ValidateNumber(%q) = %v", number, err)
		}
	}
}

func TestSendProviderError(t *testing.T) {
	fake := &fakeCreator{err: errors.New("twilio: 401 unauthorized")}
	c, _ := NewWithCreator(fake, "+14155238886")

	_, err := c.Send("+16507303690", "hi")
	if err == nil {
		t.Fatal("Send should surface provider errors")
	}
	if !strings.Contains(err.Error(), "send failed") {
		t.Errorf("error = %v", err)
	}
}
