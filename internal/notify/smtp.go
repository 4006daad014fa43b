package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"strconv"

	gomail "github.com/wneessen/go-mail"

	"licenseadmin/internal/config"
	"licenseadmin/internal/infrastructure"
)

// SMTPSender sends through an SMTP relay, upgrading with STARTTLS when the
// server offers it and authenticating with PLAIN when credentials are set.
type SMTPSender struct {
	client *gomail.Client
	addr   string
	from   mail.Address
	logger *slog.Logger
}

// NewSMTPSender creates an SMTP sender from cfg. No connection is made
// until the first Send.
func NewSMTPSender(cfg config.MailConfig, logger *slog.Logger) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTimeout(config.MailSendTimeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTLSConfig(&tls.Config{ServerName: cfg.SMTPHost, MinVersion: tls.VersionTLS12}),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword))
	}

	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPSender{
		client: client,
		addr:   net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		from:   fromAddress(cfg),
		logger: infrastructure.WithComponent(logger, "smtp"),
	}, nil
}

// Send implements Sender. Each call opens its own session so a batch never
// depends on a connection left over from an earlier recipient.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := newMsg(s.from, msg)
	if err != nil {
		return notificationError(msg.To, err)
	}

	ctx, cancel := context.WithTimeout(ctx, config.MailSendTimeout)
	defer cancel()

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "smtp send failed",
			slog.String("recipient", msg.To),
			slog.String("error", err.Error()))
		return notificationError(msg.To, fmt.Errorf("deliver via %s: %w", s.addr, err))
	}

	s.logger.InfoContext(ctx, "email sent", slog.String("recipient", msg.To))
	return nil
}
