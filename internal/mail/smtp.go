package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/deliver-app/deliver/internal/users"
)

// ErrNoRecipient is returned when the message has no address.
var ErrNoRecipient = errors.New("mail: recipient address is empty")

const defaultSMTPTimeout = 30 * time.Second

// SMTPConfig holds relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// RequireTLS refuses relays that do not offer STARTTLS.
	RequireTLS bool
}

// SMTPSender delivers welcome messages through an SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *net.Dialer
}

// NewSMTPSender constructs a sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg, dialer: &net.Dialer{Timeout: defaultSMTPTimeout}}
}

// SendWelcome renders and sends the onboarding message. The context
// deadline bounds the whole SMTP conversation.
func (s *SMTPSender) SendWelcome(ctx context.Context, msg users.WelcomeMessage) error {
	if msg.Email == "" {
		return ErrNoRecipient
	}
	m, err := newWelcomeMsg(s.cfg.From, msg)
	if err != nil {
		return err
	}
	client, err := s.client(ctx)
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mail: send welcome: %w", err)
	}
	return nil
}

func (s *SMTPSender) client(ctx context.Context) (*gomail.Client, error) {
	timeout := defaultSMTPTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, ctx.Err()
		}
	}

	policy := gomail.TLSOpportunistic
	if s.cfg.RequireTLS {
		policy = gomail.TLSMandatory
	}
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(timeout),
		gomail.WithTLSPolicy(policy),
		gomail.WithTLSConfig(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}),
		gomail.WithDialContextFunc(s.dialFunc(ctx)),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: configure client: %w", err)
	}
	return client, nil
}

// dialFunc binds the connection to the caller's context, so cancellation
// interrupts reads that the SMTP client would otherwise block on.
func (s *SMTPSender) dialFunc(parent context.Context) gomail.DialContextFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		conn, err := s.dialer.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		if deadline, ok := parent.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		}
		context.AfterFunc(parent, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
		return conn, nil
	}
}
