// internal/notify/smtp.go
package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
)

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// SMTPTransport sends multipart (text + html) mail through an SMTP relay.
type SMTPTransport struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg, sendMail: smtp.SendMail}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Send(ctx context.Context, msg Message) Result {
	if len(msg.Recipients) == 0 {
		return failed(ErrNoRecipients)
	}
	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), t.cfg.Host)
	raw, err := buildMIME(t.cfg.From, id, msg)
	if err != nil {
		return failed(fmt.Errorf("build message: %w", err))
	}

	var auth smtp.Auth
	if t.cfg.Username != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}
	addr := net.JoinHostPort(t.cfg.Host, fmt.Sprint(t.cfg.Port))
	if err := t.sendMail(addr, auth, envelopeAddress(t.cfg.From), msg.Recipients, raw); err != nil {
		return failed(fmt.Errorf("smtp send: %w", err))
	}
	return Result{Success: true, MessageID: id}
}

// envelopeAddress strips a display name: `"Name" <a@b>` -> a@b.
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		return strings.TrimSuffix(from[i+1:], ">")
	}
	return from
}

func buildMIME(from, messageID string, msg Message) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	text := msg.TextBody
	if text == "" {
		text = "Please view this email with an HTML-compatible email client"
	}
	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", text},
		{"text/html; charset=UTF-8", msg.HTMLBody},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(p.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "From: %s\r\n", from)
	fmt.Fprintf(&out, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&out, "Subject: %s\r\n", encodeHeader(msg.Subject))
	fmt.Fprintf(&out, "Message-ID: %s\r\n", messageID)
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// encodeHeader collapses whitespace, line breaks included, and RFC 2047 encodes non-ASCII
// text. Plain ASCII is returned unchanged.
func encodeHeader(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	return mime.QEncoding.Encode("utf-8", v)
}
