// Package mailer renders and delivers account emails: verification links,
// password reset links and admin verification notices.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"go.uber.org/zap"

	"tarotjournal/internal/logger"
	"tarotjournal/internal/metrics"
)

//go:embed templates
var templateFS embed.FS

// Template names.
const (
	TemplateVerification  = "verification"
	TemplateReset         = "reset"
	TemplateAdminVerified = "admin_verified"
)

// Sender delivers account emails. Errors are returned so callers decide
// whether a failed delivery matters.
type Sender interface {
	SendVerification(ctx context.Context, to, username, token string) error
	SendPasswordReset(ctx context.Context, to, username, token string) error
	SendAdminVerified(ctx context.Context, to, username string) error
}

// Message is a rendered email ready for a Transport.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Transport puts a rendered message on the wire.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

type content struct {
	Heading  string
	Username string
	Action   string
	Link     string
	Expiry   string
	Footer   string
}

type pair struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// Mailer renders templates and hands them to a Transport.
type Mailer struct {
	transport Transport
	baseURL   string
	templates map[string]pair
	log       *zap.SugaredLogger
}

// New parses the embedded templates. baseURL is the web client origin that
// links point to.
func New(transport Transport, baseURL string) (*Mailer, error) {
	templates := make(map[string]pair, 3)
	for _, name := range []string{TemplateVerification, TemplateReset, TemplateAdminVerified} {
		html, err := htmltemplate.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s html template: %w", name, err)
		}
		text, err := texttemplate.ParseFS(templateFS, "templates/"+name+".txt")
		if err != nil {
			return nil, fmt.Errorf("parse %s text template: %w", name, err)
		}
		templates[name] = pair{html: html, text: text}
	}

	return &Mailer{
		transport: transport,
		baseURL:   baseURL,
		templates: templates,
		log:       logger.Named("mailer"),
	}, nil
}

// SendVerification mails the link that confirms an email address.
func (m *Mailer) SendVerification(ctx context.Context, to, username, token string) error {
	return m.send(ctx, TemplateVerification, to, "Verify your Tarot Tracker account", content{
		Heading:  "Welcome to Tarot Tracker!",
		Username: username,
		Action:   "Verify Email Address",
		Link:     fmt.Sprintf("%s/verify-email?token=%s", m.baseURL, token),
		Expiry:   "24 hours",
		Footer:   "If you didn't create an account with Tarot Tracker, you can safely ignore this email.",
	})
}

// SendPasswordReset mails the link that opens the reset form.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, username, token string) error {
	return m.send(ctx, TemplateReset, to, "Reset your Tarot Tracker password", content{
		Heading:  "Password Reset Request",
		Username: username,
		Action:   "Reset Password",
		Link:     fmt.Sprintf("%s/reset-password?token=%s", m.baseURL, token),
		Expiry:   "1 hour",
		Footer:   "If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.",
	})
}

// SendAdminVerified tells a user an administrator verified their account.
func (m *Mailer) SendAdminVerified(ctx context.Context, to, username string) error {
	return m.send(ctx, TemplateAdminVerified, to, "Your Tarot Tracker account has been verified!", content{
		Heading:  "Account Verified!",
		Username: username,
		Action:   "Sign In Now",
		Link:     m.baseURL,
	})
}

func (m *Mailer) send(ctx context.Context, name, to, subject string, data content) error {
	msg, err := m.render(name, to, subject, data)
	if err != nil {
		return err
	}

	err = m.transport.Send(ctx, msg)
	metrics.RecordEmail(name, err)
	if err != nil {
		m.log.Errorw("failed to send email", "template", name, "to", to, "error", err)
		return fmt.Errorf("send %s email: %w", name, err)
	}
	m.log.Infow("email sent", "template", name, "to", to)
	return nil
}

func (m *Mailer) render(name, to, subject string, data content) (Message, error) {
	t, ok := m.templates[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", name)
	}

	var html, text bytes.Buffer
	if err := t.html.ExecuteTemplate(&html, "layout", data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", name, err)
	}
	if err := t.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", name, err)
	}

	return Message{To: to, Subject: subject, Text: text.String(), HTML: html.String()}, nil
}
