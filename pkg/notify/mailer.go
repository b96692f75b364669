package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/eupendra/simple-price-alert/pkg/config"
	"github.com/eupendra/simple-price-alert/pkg/web"
)

var ErrDispatch = errors.New("mail dispatch failed")

const DefaultDialTimeout = 30 * time.Second

// CredentialsFunc is called on every Send so credentials are only required
// when there is something to send.
type CredentialsFunc func() (config.Credentials, error)

// Mailer submits notifications over SMTP with mandatory STARTTLS and PLAIN
// auth, from and to the configured mailbox owner.
type Mailer struct {
	host        string
	port        int
	credentials CredentialsFunc
	timeout     time.Duration
	logger      *slog.Logger
}

func NewMailer(host string, port int, credentials CredentialsFunc, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		host:        host,
		port:        port,
		credentials: credentials,
		timeout:     DefaultDialTimeout,
		logger:      logger,
	}
}

// Send returns an error wrapping config.ErrMisconfiguredCredentials when
// credentials are incomplete and ErrDispatch for any transport failure.
func (m *Mailer) Send(ctx context.Context, n *web.Notification) error {
	creds, err := m.credentials()
	if err != nil {
		return err
	}

	msg, err := m.message(creds, n)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.host,
		mail.WithPort(m.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(creds.User),
		mail.WithPassword(creds.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(m.timeout),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}

	m.logger.Debug("sending mail", "host", m.host, "port", m.port, "to", creds.To)
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %s:%d: %v", ErrDispatch, m.host, m.port, err)
	}
	m.logger.Info("mail sent", "to", creds.To, "subject", n.Subject)
	return nil
}

func (m *Mailer) message(creds config.Credentials, n *web.Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(creds.User); err != nil {
		return nil, fmt.Errorf("sender %q: %w", creds.User, config.ErrMisconfiguredCredentials)
	}
	if err := msg.To(creds.To); err != nil {
		return nil, fmt.Errorf("recipient %q: %w", creds.To, config.ErrMisconfiguredCredentials)
	}
	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextHTML, n.HTML)
	if n.Text != "" {
		msg.AddAlternativeString(mail.TypeTextPlain, n.Text)
	}
	return msg, nil
}
