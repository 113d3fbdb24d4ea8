package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// sendMailHook allows tests to override SMTP sending behavior.
var sendMailHook = smtp.SendMail

// Email sends notifications via SMTP.
type Email struct {
	Host, User, Pass string
	Port             int
	To               []string
}

// Name returns the channel name.
func (e *Email) Name() string {
	return "Email"
}

func (e *Email) Initialize() error {
	if e.Host == "" || len(e.To) == 0 {
		return errors.New("email host and at least one recipient are required")
	}
	if e.Port <= 0 {
		return errors.New("email port must be positive")
	}
	return nil
}

// Send sends an email with the provided title and body via SMTP.
func (e *Email) Send(ctx context.Context, title, body, sourceApp string) error {
	_ = ctx
	subject := title
	if sourceApp != "" {
		subject = fmt.Sprintf("[%s] %s", sourceApp, title)
	}
	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	auth := smtp.PlainAuth("", e.User, e.Pass, e.Host)
	header := fmt.Sprintf(
		"To: %s\r\nSubject: %s\r\n\r\n",
		strings.Join(e.To, ","),
		subject,
	)
	msg := header + bodyOrPlaceholder(body)
	return sendMailHook(addr, auth, e.User, e.To, []byte(msg))
}

// TestConnection dials the SMTP host without sending a message.
func (e *Email) TestConnection(ctx context.Context) error {
	_ = ctx
	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return err
	}
	return conn.Close()
}
