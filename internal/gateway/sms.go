package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"alert-service/internal/config"
)

// SMSClient sends messages through the Twilio REST API.
type SMSClient struct {
	accountSID string
	authToken  string
	fromNumber string
	client     *http.Client
}

func NewSMSClient(cfg config.Config) (*SMSClient, error) {
	if cfg.SMS.AccountSID == "" || cfg.SMS.AuthToken == "" || cfg.SMS.FromNumber == "" {
		return nil, fmt.Errorf("missing SMS configuration: AccountSID, AuthToken, or FromNumber is empty")
	}
	return &SMSClient{
		accountSID: cfg.SMS.AccountSID,
		authToken:  cfg.SMS.AuthToken,
		fromNumber: cfg.SMS.FromNumber,
		client:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Send delivers one SMS. The context bounds the whole HTTP exchange.
func (s *SMSClient) Send(ctx context.Context, toNumber, body string) error {
	if !strings.HasPrefix(toNumber, "+") {
		return fmt.Errorf("invalid phone number: %s", toNumber)
	}

	urlStr := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", s.accountSID)
	msgData := url.Values{}
	msgData.Set("To", toNumber)
	msgData.Set("From", s.fromNumber)
	msgData.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, strings.NewReader(msgData.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create SMS request for %s: %w", toNumber, err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", toNumber, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("Twilio API returned status %d for %s", resp.StatusCode, toNumber)
	}
	return nil
}
