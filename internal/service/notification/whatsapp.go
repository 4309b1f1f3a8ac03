// internal/service/notification/whatsapp.go
package notification

import (
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// WhatsAppSender delivers messages through the Twilio WhatsApp channel.
type WhatsAppSender struct {
	client *twilio.RestClient
	from   string
}

func NewWhatsAppSender(accountSID, authToken, fromNumber string) *WhatsAppSender {
	return &WhatsAppSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from: fromNumber,
	}
}

// Send delivers one WhatsApp message. The destination must be an E.164
// phone number.
func (w *WhatsAppSender) Send(to, body string) (string, error) {
	if !strings.HasPrefix(to, "+") {
		return "", fmt.Errorf("whatsapp destination must be E.164: %q", to)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + to)
	params.SetFrom("whatsapp:" + w.from)
	params.SetBody(body)

	resp, err := w.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}
