package gateway

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"alert-service/internal/config"
)

// EmailClient sends mail through a plain SMTP relay.
type EmailClient struct {
	server   string
	port     int
	username string
	password string
	fromName string
}

func NewEmailClient(cfg config.Config) (*EmailClient, error) {
	if cfg.Email.SMTPServer == "" || cfg.Email.SMTPPort == 0 || cfg.Email.Username == "" || cfg.Email.Password == "" {
		return nil, fmt.Errorf("missing Email configuration: SMTPServer, SMTPPort, Username, or Password is empty")
	}
	return &EmailClient{
		server:   cfg.Email.SMTPServer,
		port:     cfg.Email.SMTPPort,
		username: cfg.Email.Username,
		password: cfg.Email.Password,
		fromName: cfg.Email.FromName,
	}, nil
}

// Send delivers one message. The context bounds the whole exchange: the
// dial is context-aware and the context deadline is pushed down onto the
// connection, so a dead or silent relay fails the attempt instead of
// blocking it.
func (e *EmailClient) Send(ctx context.Context, to, subject, body string) error {
	if !strings.Contains(to, "@") {
		return fmt.Errorf("invalid email address: %s", to)
	}

	addr := fmt.Sprintf("%s:%d", e.server, e.port)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial SMTP server %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, e.server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to greet SMTP server %s: %w", addr, err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: e.server}); err != nil {
			return fmt.Errorf("failed to start TLS with %s: %w", addr, err)
		}
	}

	auth := smtp.PlainAuth("", e.username, e.password, e.server)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("failed to authenticate with %s: %w", addr, err)
	}
	if err := client.Mail(e.username); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open message body: %w", err)
	}
	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		e.fromName, e.username, to, subject, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", to, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return client.Quit()
}
