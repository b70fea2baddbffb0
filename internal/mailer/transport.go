package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"tarotjournal/internal/logger"
)

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPTransport delivers mail through an authenticated SMTP relay.
type SMTPTransport struct {
	client *mail.Client
	from   string
}

// NewSMTPTransport builds a client for cfg. No connection is opened until Send.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPTransport{client: client, from: cfg.From}, nil
}

// Send dials the relay and delivers one message with text and HTML parts.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(t.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return t.client.DialAndSendWithContext(ctx, m)
}

// LogTransport writes messages to the log instead of sending them. It is
// used when SMTP is not configured so links stay reachable in development.
type LogTransport struct {
	log *zap.SugaredLogger
}

// NewLogTransport returns a transport that only logs.
func NewLogTransport() *LogTransport {
	return &LogTransport{log: logger.Named("mailer")}
}

// Send logs the envelope at warn level. The body carries live account
// links, so it is only written at debug level.
func (t *LogTransport) Send(_ context.Context, msg Message) error {
	t.log.Warnw("SMTP not configured, email not sent", "to", msg.To, "subject", msg.Subject)
	t.log.Debugw("unsent email body", "to", msg.To, "body", msg.Text)
	return nil
}

// NewTransport returns an SMTP transport for cfg, or a LogTransport when no
// host is configured.
func NewTransport(cfg SMTPConfig) (Transport, error) {
	if cfg.Host == "" {
		return NewLogTransport(), nil
	}
	return NewSMTPTransport(cfg)
}
