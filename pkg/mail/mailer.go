// Package mail sends plain-text email through an SMTP relay.
package mail

import (
	"context"
	"errors"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/emlakofis/emlak-backend/pkg/config"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

var errHostRequired = errors.New("smtp host is required")

// Message is a single outgoing email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer delivers messages through a gomail dialer. A new SMTP session is
// opened per message.
type Mailer struct {
	dialer dialer
	from   string
}

func New(ctx context.Context, cfg config.SMTPConfig, logg *logger.Logger) (*Mailer, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errHostRequired
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return nil, errors.New("smtp from address is required")
	}

	d := gomail.NewDialer(host, cfg.Port, cfg.Username, cfg.Password)

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"smtp_host": host,
			"smtp_port": cfg.Port,
		}), "smtp mailer initialized")
	}
	return &Mailer{dialer: d, from: from}, nil
}

// Send builds and delivers msg. gomail has no context support, so ctx is only
// checked before dialing.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if m == nil || m.dialer == nil {
		return errors.New("mailer not initialized")
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient address is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.dialer.DialAndSend(m.build(msg))
}

func (m *Mailer) build(msg Message) *gomail.Message {
	out := gomail.NewMessage()
	out.SetHeader("From", m.from)
	if name := strings.TrimSpace(msg.ToName); name != "" {
		out.SetAddressHeader("To", msg.To, name)
	} else {
		out.SetHeader("To", msg.To)
	}
	out.SetHeader("Subject", msg.Subject)
	out.SetBody("text/plain", msg.Body)
	return out
}
