package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CodeSender routes a one-time code to its target: email addresses over
// SMTP, everything else over SMS. Either client may be nil when the
// corresponding provider is not configured.
type CodeSender struct {
	SMS   *SMSClient
	Email *EmailClient
}

func (c *CodeSender) SendCode(ctx context.Context, target, code string, ttl time.Duration) error {
	minutes := int(ttl.Minutes())
	if strings.Contains(target, "@") {
		if c.Email == nil {
			return fmt.Errorf("email provider not configured")
		}
		body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes)
		return c.Email.Send(ctx, target, "Your verification code", body)
	}
	if c.SMS == nil {
		return fmt.Errorf("sms provider not configured")
	}
	return c.SMS.Send(ctx, target, fmt.Sprintf("Verification code: %s (expires in %d min)", code, minutes))
}
