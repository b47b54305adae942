package biz

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"dario.cat/mergo"
	"github.com/samber/lo"
	"github.com/wneessen/go-mail"
	"go.uber.org/fx"

	"github.com/leadhub/leadhub/internal/log"
)

// Mailer delivers one attachment to one recipient.
type Mailer interface {
	Send(ctx context.Context, to string, attachment []byte, filename string) error
}

const (
	defaultMailSubject = "Your CSV Export"
	defaultMailBody    = "Here is the export you requested."
	defaultFromName    = "Lead Export"
	defaultMailTimeout = 30 * time.Second
)

type MailerParams struct {
	fx.In

	SMTP   SMTPConfig
	Outbox OutboxConfig
}

// NewMailer returns an SMTP mailer, or an outbox when no SMTP host is configured.
func NewMailer(params MailerParams) (Mailer, error) {
	if params.SMTP.Host != "" {
		return NewSMTPMailer(params.SMTP), nil
	}

	outbox, err := NewOutbox(context.Background(), params.Outbox)
	if err != nil {
		return nil, err
	}

	log.Warn(context.Background(), "smtp host not configured, exports go to the outbox",
		log.String("type", lo.CoalesceOrEmpty(params.Outbox.Type, OutboxTypeFs)),
	)

	return outbox, nil
}

var defaultSMTPConfig = SMTPConfig{
	Port:     587,
	FromName: defaultFromName,
	Subject:  defaultMailSubject,
	Body:     defaultMailBody,
	Timeout:  defaultMailTimeout,
}

type SMTPMailer struct {
	config SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}

	if err := mergo.Merge(&cfg, defaultSMTPConfig); err != nil {
		log.Warn(context.Background(), "failed to apply smtp defaults", log.Cause(err))
	}

	return &SMTPMailer{config: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, to string, attachment []byte, filename string) error {
	msg := mail.NewMsg()

	if err := msg.FromFormat(m.config.FromName, m.config.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	msg.Subject(m.config.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.config.Body)

	if err := msg.AttachReader(filename, bytes.NewReader(attachment)); err != nil {
		return fmt.Errorf("attach %s: %w", filename, err)
	}

	opts := []mail.Option{
		mail.WithPort(m.config.Port),
		mail.WithTimeout(m.config.Timeout),
	}

	if m.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.config.Username),
			mail.WithPassword(m.config.Password),
		)
	}

	if m.config.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(m.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	log.Info(ctx, "export mailed", log.String("filename", filename), log.Int("bytes", len(attachment)))

	return nil
}
