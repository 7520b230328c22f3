package smtp

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage_TextOnly(t *testing.T) {
	b, err := buildMessage("noreply@productr.test", Message{
		To: "a@b.com", Subject: "Hi", Text: "hello",
	}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	s := string(b)
	assert.Contains(t, s, "From: noreply@productr.test\r\n")
	assert.Contains(t, s, "To: a@b.com\r\n")
	assert.Contains(t, s, "Subject: Hi\r\n")
	assert.Contains(t, s, "Content-Type: text/plain")
	assert.True(t, strings.HasSuffix(s, "\r\n\r\nhello"))
}

func TestBuildMessage_Alternative(t *testing.T) {
	b, err := buildMessage("f@x.com", Message{
		To: "a@b.com", Subject: "OTP", Text: "code 123456", HTML: "<b>123456</b>",
	}, time.Now())
	require.NoError(t, err)

	s := string(b)
	assert.Contains(t, s, "multipart/alternative")
	assert.Contains(t, s, "text/plain")
	assert.Contains(t, s, "text/html")
	assert.Contains(t, s, "<b>123456</b>")
}

func TestSend_UsesConfiguredTransport(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	m := &mailer{host: "mail.test", port: "2525", from: "f@x.com",
		send: func(addr string, _ smtp.Auth, from string, to []string, _ []byte) error {
			gotAddr, gotFrom, gotTo = addr, from, to
			return nil
		}}

	require.NoError(t, m.Send(Message{To: "a@b.com", Subject: "s", Text: "t"}))
	assert.Equal(t, "mail.test:2525", gotAddr)
	assert.Equal(t, "f@x.com", gotFrom)
	assert.Equal(t, []string{"a@b.com"}, gotTo)
}

func TestSend_PropagatesTransportError(t *testing.T) {
	m := &mailer{host: "h", port: "1", from: "f@x.com",
		send: func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }}
	assert.ErrorContains(t, m.Send(Message{To: "a@b.com"}), "refused")
}

func TestSend_MissingFrom(t *testing.T) {
	m := &mailer{send: func(string, smtp.Auth, string, []string, []byte) error { return nil }}
	assert.Error(t, m.Send(Message{To: "a@b.com"}))
}
