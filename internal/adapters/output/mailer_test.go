package output

import (
	"context"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

func TestMailBuildMessage(t *testing.T) {
	m := NewMailDispatcher(MailConfig{Host: "mail.example.org", To: "admin@example.org"})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	msg := m.buildMessage("Alert\r\nBcc: victim@example.org", "line one\nline two", now)

	assert.Contains(t, msg, "From: authwatch <admin@example.org>\r\n")
	assert.Contains(t, msg, "To: admin@example.org\r\n")
	assert.Contains(t, msg, "Subject: Alert  Bcc: victim@example.org\r\n")
	assert.NotContains(t, msg, "\r\nBcc:")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nline one\r\nline two\r\n"))
}

func TestMailNotConfigured(t *testing.T) {
	m := NewMailDispatcher(MailConfig{To: "admin@example.org"})
	assert.False(t, m.Enabled())
	assert.ErrorIs(t, m.SendMail(context.Background(), "s", "b"), ErrMailNotConfigured)
}

// fakeSMTP accepts exactly one message and returns it on the channel.
func fakeSMTP(t *testing.T) (string, int, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch cmd {
			case "EHLO", "HELO":
				tp.PrintfLine("250 localhost")
			case "MAIL", "RCPT", "RSET", "NOOP":
				tp.PrintfLine("250 OK")
			case "DATA":
				tp.PrintfLine("354 go ahead")
				lines, err := tp.ReadDotLines()
				if err != nil {
					return
				}
				got <- strings.Join(lines, "\n")
				tp.PrintfLine("250 queued")
			case "QUIT":
				tp.PrintfLine("221 bye")
				return
			default:
				tp.PrintfLine("502 not implemented")
			}
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port, got
}

func TestMailDispatcherSend(t *testing.T) {
	host, port, got := fakeSMTP(t)
	m := NewMailDispatcher(MailConfig{
		Host:    host,
		Port:    port,
		From:    "authwatch@example.org",
		To:      "admin@example.org",
		Timeout: 5 * time.Second,
	})

	alert := domain.NewAlert(domain.AlertKindBruteForce, domain.AlertLevelWarning,
		"Alert: multiple failed login attempts from 10.0.0.5", "There were 5 failed login attempts.\n.hidden")
	require.NoError(t, m.Send(context.Background(), alert))

	select {
	case body := <-got:
		assert.Contains(t, body, "Subject: Alert: multiple failed login attempts from 10.0.0.5")
		assert.Contains(t, body, "There were 5 failed login attempts.")
		assert.Contains(t, body, "\n.hidden", "dot-stuffing is undone by the reader")
	case <-time.After(5 * time.Second):
		t.Fatal("server received nothing")
	}
}

func TestMailDispatcherRequireTLS(t *testing.T) {
	host, port, _ := fakeSMTP(t)
	m := NewMailDispatcher(MailConfig{Host: host, Port: port, To: "admin@example.org", RequireTLS: true})

	err := m.SendMail(context.Background(), "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STARTTLS")
}

func TestMailDispatcherUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	m := NewMailDispatcher(MailConfig{Host: "127.0.0.1", Port: addr.Port, To: "admin@example.org", Timeout: time.Second})
	assert.Error(t, m.SendMail(context.Background(), "s", "b"))
}
