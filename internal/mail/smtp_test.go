package mail

import (
	"bytes"
	"context"
	"io"
	"mime/quotedprintable"
	"net"
	netmail "net/mail"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deliver-app/deliver/internal/users"
)

// fakeRelay speaks just enough SMTP to accept one message.
type fakeRelay struct {
	ln       net.Listener
	mu       sync.Mutex
	from     string
	rcpt     string
	data     string
	greeting bool
}

func startRelay(t *testing.T, greet bool) *fakeRelay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	relay := &fakeRelay{ln: ln, greeting: greet}
	t.Cleanup(func() { _ = ln.Close() })
	go relay.serve()
	return relay
}

func (r *fakeRelay) port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func (r *fakeRelay) serve() {
	conn, err := r.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	if !r.greeting {
		time.Sleep(2 * time.Second)
		return
	}
	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 relay.test ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			_ = tp.PrintfLine("250 relay.test")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			r.mu.Lock()
			r.from = line[len("MAIL FROM:"):]
			r.mu.Unlock()
			_ = tp.PrintfLine("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			r.mu.Lock()
			r.rcpt = line[len("RCPT TO:"):]
			r.mu.Unlock()
			_ = tp.PrintfLine("250 OK")
		case cmd == "DATA":
			_ = tp.PrintfLine("354 go ahead")
			body, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			r.mu.Lock()
			r.data = string(body)
			r.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case cmd == "RSET", cmd == "NOOP":
			_ = tp.PrintfLine("250 OK")
		case cmd == "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func (r *fakeRelay) snapshot() (string, string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.from, r.rcpt, r.data
}

func TestSMTPSenderDeliversWelcome(t *testing.T) {
	relay := startRelay(t, true)
	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: relay.port(), From: "noreply@deliver.test"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := sender.SendWelcome(ctx, users.WelcomeMessage{
		Email:    "alice@example.com",
		Name:     "Alice",
		Surname:  "Driver",
		Username: "alice",
		Password: "AQIDBAU<x>",
	})
	require.NoError(t, err)

	from, rcpt, data := relay.snapshot()
	assert.Contains(t, from, "noreply@deliver.test")
	assert.Contains(t, rcpt, "alice@example.com")

	parsed, err := netmail.ReadMessage(strings.NewReader(data))
	require.NoError(t, err)
	to, err := parsed.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "alice@example.com", to[0].Address)
	assert.Equal(t, "Welcome to Deliver", parsed.Header.Get("Subject"))
	assert.NotEmpty(t, parsed.Header.Get("Message-ID"))
	assert.Contains(t, parsed.Header.Get("Content-Type"), "text/html")
	assert.Equal(t, "quoted-printable", strings.ToLower(parsed.Header.Get("Content-Transfer-Encoding")))

	body, err := io.ReadAll(quotedprintable.NewReader(parsed.Body))
	require.NoError(t, err)
	assert.Contains(t, string(body), "<strong>alice</strong>")
	assert.Contains(t, string(body), "AQIDBAU&lt;x&gt;")
}

func TestSMTPSenderEncodesNonASCIIBody(t *testing.T) {
	relay := startRelay(t, true)
	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: relay.port(), From: "noreply@deliver.test"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sender.SendWelcome(ctx, users.WelcomeMessage{
		Email:    "jose@example.com",
		Name:     "José",
		Surname:  "Núñez",
		Username: "jose",
		Password: "secret99",
	}))

	_, _, data := relay.snapshot()
	for _, b := range []byte(data) {
		require.Less(t, b, byte(0x80), "relay received 8-bit data without 8BITMIME")
	}
	parsed, err := netmail.ReadMessage(strings.NewReader(data))
	require.NoError(t, err)
	body, err := io.ReadAll(quotedprintable.NewReader(parsed.Body))
	require.NoError(t, err)
	assert.Contains(t, string(body), "José Núñez")
}

func TestSMTPSenderRequireTLS(t *testing.T) {
	relay := startRelay(t, true)
	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: relay.port(), From: "noreply@deliver.test", RequireTLS: true})

	err := sender.SendWelcome(context.Background(), users.WelcomeMessage{Email: "a@example.com", Password: "x"})
	assert.ErrorContains(t, err, "STARTTLS")
}

func TestSMTPSenderHonoursDeadline(t *testing.T) {
	relay := startRelay(t, false)
	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: relay.port(), From: "noreply@deliver.test"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := sender.SendWelcome(ctx, users.WelcomeMessage{Email: "a@example.com", Password: "x"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSMTPSenderRejectsEmptyRecipient(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1})
	assert.ErrorIs(t, sender.SendWelcome(context.Background(), users.WelcomeMessage{}), ErrNoRecipient)
}

func TestSMTPSenderRejectsHeaderInjection(t *testing.T) {
	relay := startRelay(t, true)
	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: relay.port(), From: "noreply@deliver.test"})

	err := sender.SendWelcome(context.Background(), users.WelcomeMessage{Email: "a@example.com\r\nBcc: evil@example.com", Password: "x"})
	assert.Error(t, err)
	_, rcpt, data := relay.snapshot()
	assert.Empty(t, rcpt)
	assert.Empty(t, data)
}

func TestNewWelcomeMsgHeaders(t *testing.T) {
	m, err := newWelcomeMsg("noreply@deliver.test", users.WelcomeMessage{Email: "a@example.com", Username: "a", Password: "x"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	parsed, err := netmail.ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, "1.0", parsed.Header.Get("MIME-Version"))
	assert.Empty(t, parsed.Header.Get("Bcc"))
}
