package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const smtpConnectTimeout = 15 * time.Second

// SMTPConfig holds the mail relay credentials. All five values plus at
// least one recipient are required for the adapter to be active.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
	To   []string
}

// SMTPNotifier delivers plain-text email through an SMTP relay. Secondary
// destination; the blocking session runs only on detached goroutines.
type SMTPNotifier struct {
	cfg    SMTPConfig
	logger *zap.Logger
}

// NewSMTPNotifier creates an SMTP adapter.
func NewSMTPNotifier(cfg SMTPConfig, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

func (s *SMTPNotifier) Name() string {
	return "smtp"
}

func (s *SMTPNotifier) Configured() bool {
	return s.cfg.Host != "" && s.cfg.User != "" && s.cfg.Pass != "" &&
		s.cfg.From != "" && len(s.cfg.To) > 0
}

// Send delivers one message to all configured recipients. Port 465 speaks
// TLS from the first byte; any other port negotiates STARTTLS after EHLO.
func (s *SMTPNotifier) Send(ctx context.Context, d Delivery) bool {
	if !s.Configured() {
		return false
	}

	msg := s.buildMessage(subjectFor(d.Channel.Name, d.Title), d.Message)

	var err error
	if s.cfg.Port == 465 {
		err = s.sendImplicitTLS(msg)
	} else {
		err = s.sendStartTLS(msg)
	}

	if err != nil {
		s.logger.Warn("smtp delivery failed",
			zap.Error(err),
			zap.String("channel", d.Channel.Slug),
			zap.String("host", s.cfg.Host),
		)
		return false
	}

	return true
}

// subjectFor tags the subject line so inbox filters can key on both the
// product and the channel.
func subjectFor(channelName, title string) string {
	if channelName == "" {
		return fmt.Sprintf("[WebhookHub] %s", title)
	}
	return fmt.Sprintf("[WebhookHub][%s] %s", channelName, title)
}

func (s *SMTPNotifier) buildMessage(subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func (s *SMTPNotifier) sendImplicitTLS(msg []byte) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	dialer := &net.Dialer{Timeout: smtpConnectTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return fmt.Errorf("dial tls: %w", err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	return s.transact(client, msg)
}

func (s *SMTPNotifier) sendStartTLS(msg []byte) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	conn, err := net.DialTimeout("tcp", addr, smtpConnectTimeout)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}

	return s.transact(client, msg)
}

func (s *SMTPNotifier) transact(client *smtp.Client, msg []byte) error {
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}

	for _, rcpt := range s.cfg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	return client.Quit()
}
