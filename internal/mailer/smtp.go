package mailer

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const defaultDialTimeout = 30 * time.Second

var ErrNotConfigured = errors.New("mail delivery is not configured")

// Message is one rendered e-mail for one recipient.
type Message struct {
	To             string
	Subject        string
	HTML           string
	Text           string
	UnsubscribeURL string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	TLS      bool
}

type SMTPSender struct {
	cfg         SMTPConfig
	dialTimeout time.Duration
	log         *slog.Logger
}

func NewSMTPSender(cfg SMTPConfig, log *slog.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:         cfg,
		dialTimeout: defaultDialTimeout,
		log:         log,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if s.cfg.Host == "" || s.cfg.From == "" {
		return ErrNotConfigured
	}

	to := strings.TrimSpace(msg.To)
	if to == "" {
		return errors.New("recipient is empty")
	}

	body, err := buildMessage(s.cfg.From, msg)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	dialer := &net.Dialer{Timeout: s.dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			s.log.DebugContext(ctx, "Failed to close SMTP connection",
				"error", closeErr,
				"addr", addr)
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		if err = conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}
	defer client.Close()

	if s.cfg.TLS {
		tlsConfig := &tls.Config{
			ServerName: s.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}

		if err = client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("start TLS: %w", err)
		}
	}

	if s.cfg.User != "" && s.cfg.Password != "" {
		if err = client.Auth(smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}

	if err = client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}

	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("start message: %w", err)
	}

	if _, err = writer.Write(body); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	if err = writer.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	if err = client.Quit(); err != nil {
		s.log.WarnContext(ctx, "Failed to quit SMTP session",
			"error", err,
			"addr", addr)
	}

	return nil
}

// buildMessage renders msg as a MIME message. Both bodies are sent as
// multipart/alternative when present.
func buildMessage(from string, msg Message) ([]byte, error) {
	var b bytes.Buffer

	writeHeader(&b, "From", from)
	writeHeader(&b, "To", msg.To)
	writeHeader(&b, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&b, "Date", time.Now().UTC().Format(time.RFC1123Z))
	writeHeader(&b, "MIME-Version", "1.0")

	if msg.UnsubscribeURL != "" {
		writeHeader(&b, "List-Unsubscribe", "<"+msg.UnsubscribeURL+">")
		writeHeader(&b, "List-Unsubscribe-Post", "List-Unsubscribe=One-Click")
	}

	switch {
	case msg.HTML != "" && msg.Text != "":
		boundary, err := newBoundary()
		if err != nil {
			return nil, err
		}

		writeHeader(&b, "Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
		b.WriteString("\r\n")

		for _, part := range []struct{ contentType, body string }{
			{"text/plain", msg.Text},
			{"text/html", msg.HTML},
		} {
			b.WriteString("--" + boundary + "\r\n")
			if err = writePart(&b, part.contentType, part.body); err != nil {
				return nil, err
			}
			b.WriteString("\r\n")
		}

		b.WriteString("--" + boundary + "--\r\n")
	case msg.HTML != "":
		if err := writePart(&b, "text/html", msg.HTML); err != nil {
			return nil, err
		}
	default:
		if err := writePart(&b, "text/plain", msg.Text); err != nil {
			return nil, err
		}
	}

	return b.Bytes(), nil
}

func writeHeader(b *bytes.Buffer, name string, value string) {
	value = strings.NewReplacer("\r", "", "\n", "").Replace(value)
	b.WriteString(name + ": " + value + "\r\n")
}

func writePart(b *bytes.Buffer, contentType string, body string) error {
	writeHeader(b, "Content-Type", contentType+"; charset=UTF-8")
	writeHeader(b, "Content-Transfer-Encoding", "quoted-printable")
	b.WriteString("\r\n")

	qp := quotedprintable.NewWriter(b)
	if _, err := qp.Write([]byte(body)); err != nil {
		return fmt.Errorf("encode body: %w", err)
	}

	if err := qp.Close(); err != nil {
		return fmt.Errorf("encode body: %w", err)
	}

	return nil
}

func newBoundary() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate boundary: %w", err)
	}

	return "lyrahub_" + hex.EncodeToString(buf), nil
}
