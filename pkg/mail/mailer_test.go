package mail

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/emlakofis/emlak-backend/pkg/config"
)

type captureDialer struct {
	sent []*gomail.Message
	err  error
}

func (c *captureDialer) DialAndSend(m ...*gomail.Message) error {
	c.sent = append(c.sent, m...)
	return c.err
}

func TestNewRequiresHost(t *testing.T) {
	_, err := New(context.Background(), config.SMTPConfig{From: "a@b.c"}, nil)
	require.ErrorIs(t, err, errHostRequired)

	_, err = New(context.Background(), config.SMTPConfig{Host: "smtp.local"}, nil)
	require.Error(t, err)

	m, err := New(context.Background(), config.SMTPConfig{Host: "smtp.local", Port: 587, From: "bildirim@emlak.local"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "bildirim@emlak.local", m.from)
}

func TestSendBuildsMessage(t *testing.T) {
	d := &captureDialer{}
	m := &Mailer{dialer: d, from: "bildirim@emlak.local"}

	err := m.Send(context.Background(), Message{
		To:      "ayse@emlak.local",
		ToName:  "Ayşe Yılmaz",
		Subject: "[Emlak] Yeni eşleşme",
		Body:    "Talep için 2 yeni portföy eşleşti.",
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	msg := d.sent[0]
	assert.Equal(t, []string{"bildirim@emlak.local"}, msg.GetHeader("From"))
	subject := msg.GetHeader("Subject")
	require.Len(t, subject, 1)
	assert.Equal(t, mime.QEncoding.Encode("UTF-8", "[Emlak] Yeni eşleşme"), subject[0], "non-ASCII subject is RFC 2047 encoded")
	decoded, err := new(mime.WordDecoder).DecodeHeader(subject[0])
	require.NoError(t, err)
	assert.Equal(t, "[Emlak] Yeni eşleşme", decoded)
	require.Len(t, msg.GetHeader("To"), 1)
	assert.Contains(t, msg.GetHeader("To")[0], "ayse@emlak.local")

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/plain")
}

func TestSendErrors(t *testing.T) {
	d := &captureDialer{err: errors.New("535 auth failed")}
	m := &Mailer{dialer: d, from: "bildirim@emlak.local"}

	require.Error(t, m.Send(context.Background(), Message{}))
	require.EqualError(t, m.Send(context.Background(), Message{To: "a@b.c"}), "535 auth failed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Send(ctx, Message{To: "a@b.c"}), context.Canceled)
	assert.Len(t, d.sent, 1)

	var nilMailer *Mailer
	require.Error(t, nilMailer.Send(context.Background(), Message{To: "a@b.c"}))
}
