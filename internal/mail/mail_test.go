package mail

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessageHeaders(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := string(buildMessage("no-reply@inkpress.local", Message{
		To:      "jane@example.com",
		Subject: "Your Password Reset OTP",
		HTML:    "<p>hi</p>\n<p>there</p>",
	}, now))

	head, body, ok := strings.Cut(raw, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, head, "From: no-reply@inkpress.local")
	assert.Contains(t, head, "To: jane@example.com")
	assert.Contains(t, head, "Subject: Your Password Reset OTP")
	assert.Contains(t, head, `Content-Type: text/html; charset="utf-8"`)
	assert.Equal(t, "<p>hi</p>\r\n<p>there</p>", body)
}

func TestBuildMessageEncodesNonASCIISubject(t *testing.T) {
	raw := string(buildMessage("a@b.c", Message{To: "x@y.z", Subject: "Café"}, time.Now()))
	assert.Contains(t, raw, "Subject: =?utf-8?q?")
}

func TestSMTPSenderRequiresRecipient(t *testing.T) {
	err := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1}).Send(context.Background(), Message{})
	assert.Error(t, err)
}

func TestLogSenderNeverFails(t *testing.T) {
	assert.NoError(t, LogSender{}.Send(context.Background(), Message{To: "x@y.z"}))
}
