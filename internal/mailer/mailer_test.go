package mailer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"lyrahub/internal/domain"
)

func TestUnsubscribeTokenRoundTrip(t *testing.T) {
	token := UnsubscribeToken("secret", "Reader@Example.com")

	if len(token) != unsubscribeTokenLength {
		t.Fatalf("expected %d chars, got %d", unsubscribeTokenLength, len(token))
	}

	if !VerifyUnsubscribeToken("secret", "reader@example.com", token) {
		t.Fatalf("expected token to verify")
	}

	if VerifyUnsubscribeToken("other", "reader@example.com", token) {
		t.Fatalf("expected token signed with another secret to fail")
	}

	if VerifyUnsubscribeToken("secret", "someone@example.com", token) {
		t.Fatalf("expected token for another address to fail")
	}

	if VerifyUnsubscribeToken("", "reader@example.com", UnsubscribeToken("", "reader@example.com")) {
		t.Fatalf("expected empty secret to never verify")
	}
}

func TestUnsubscribeURL(t *testing.T) {
	if got := UnsubscribeURL("", "secret", "a@example.com"); got != "" {
		t.Fatalf("expected empty url without site, got %q", got)
	}

	got := UnsubscribeURL("https://news.example.com/", "secret", "A@example.com")
	want := "https://news.example.com/api/unsubscribe?email=a%40example.com&token=" +
		UnsubscribeToken("secret", "a@example.com")

	if got != want {
		t.Fatalf("unexpected url:\n got %s\nwant %s", got, want)
	}
}

func TestRenderDigest(t *testing.T) {
	entries := []DigestEntry{
		{Title: "BEV <fusion>", URL: "https://example.com/a", Summary: "摘要一"},
		{Title: "Planner", URL: "https://example.com/b"},
	}

	msg, err := RenderDigest(domain.LanguageZH, "r@example.com", entries, "https://site/api/unsubscribe?email=r&token=t")
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if msg.Subject != digestCopies[domain.LanguageZH].Subject || msg.To != "r@example.com" {
		t.Fatalf("unexpected message %+v", msg)
	}

	if !strings.Contains(msg.HTML, "BEV &lt;fusion&gt;") {
		t.Fatalf("expected escaped title in html:\n%s", msg.HTML)
	}

	if !strings.Contains(msg.HTML, "摘要一") || !strings.Contains(msg.HTML, "退订邮件") {
		t.Fatalf("expected summary and unsubscribe link in html")
	}

	if !strings.Contains(msg.Text, "1. BEV <fusion>") || !strings.Contains(msg.Text, "2. Planner") {
		t.Fatalf("unexpected text body:\n%s", msg.Text)
	}

	empty, err := RenderDigest(domain.LanguageEN, "r@example.com", nil, "")
	if err != nil {
		t.Fatalf("render empty: %v", err)
	}

	if !strings.Contains(empty.Text, "No new picks today.") || strings.Contains(empty.HTML, "Unsubscribe") {
		t.Fatalf("unexpected empty digest:\n%s", empty.Text)
	}
}

func TestBuildMessageMultipart(t *testing.T) {
	body, err := buildMessage("digest@example.com", Message{
		To:             "r@example.com",
		Subject:        "每日精选",
		HTML:           "<p>hi</p>",
		Text:           "hi",
		UnsubscribeURL: "https://site/u",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	s := string(body)

	for _, want := range []string{
		"From: digest@example.com\r\n",
		"To: r@example.com\r\n",
		"Subject: =?utf-8?q?",
		"List-Unsubscribe: <https://site/u>\r\n",
		"multipart/alternative",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Type: text/html; charset=UTF-8",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("expected %q in message:\n%s", want, s)
		}
	}
}

func TestWriteHeaderStripsNewlines(t *testing.T) {
	body, err := buildMessage("a@example.com", Message{To: "b@example.com\r\nBcc: x@example.com", Text: "x"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if strings.Contains(string(body), "\r\nBcc:") {
		t.Fatalf("header injection not prevented:\n%s", body)
	}
}

func TestSMTPSenderNotConfigured(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := s.Send(context.Background(), Message{To: "a@example.com"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSMTPSenderDelivers(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan string, 1)
	go serveSMTP(ln, received)

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	s := NewSMTPSender(SMTPConfig{Host: host, Port: port, From: "digest@example.com"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = s.Send(ctx, Message{To: "r@example.com", Subject: "Hello", Text: "body text"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case data := <-received:
		if !strings.Contains(data, "Subject: Hello") || !strings.Contains(data, "body text") {
			t.Fatalf("unexpected data:\n%s", data)
		}
	case <-ctx.Done():
		t.Fatalf("server did not receive message")
	}
}

// serveSMTP accepts one session and answers just enough of RFC 5321 for the
// sender without TLS or auth.
func serveSMTP(ln net.Listener, received chan<- string) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = io.WriteString(conn, line+"\r\n") }

	reply("220 localhost ESMTP")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}

		cmd := strings.ToUpper(strings.TrimSpace(line))

		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
			reply("250 OK")
		case cmd == "DATA":
			reply("354 go ahead")

			var data strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}

				if l == ".\r\n" {
					break
				}

				data.WriteString(l)
			}

			received <- data.String()
			reply("250 OK")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}
