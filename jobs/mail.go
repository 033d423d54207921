package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ecoguard/ecoguard/internal/jobs"
)

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, msg SendEmailPayload) error
}

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	Addr string
	From string
	Auth smtp.Auth
}

// NewSMTPSender builds a sender for host:port.
func NewSMTPSender(host string, port int, from string) *SMTPSender {
	return &SMTPSender{Addr: net.JoinHostPort(host, strconv.Itoa(port)), From: from}
}

// Send writes msg to the relay.
func (s *SMTPSender) Send(ctx context.Context, msg SendEmailPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return smtp.SendMail(s.Addr, s.Auth, s.From, []string{msg.To}, renderMessage(s.From, msg))
}

func renderMessage(from string, msg SendEmailPayload) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// MailJob handles TaskTypeSendEmail tasks.
type MailJob struct {
	Sender  Sender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes a send-email task. Malformed payloads are not retried.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sender == nil {
		return errors.New("mail job: sender not configured")
	}
	tracker := j.Metrics.Track(TaskTypeSendEmail)
	defer func() {
		err = tracker.End(err)
	}()

	payload, err := ParseSendEmailTask(t)
	if err != nil {
		j.logger().Warn("drop mail task", slog.Any("error", err))
		return fmt.Errorf("mail job: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	if err := j.Sender.Send(sendCtx, payload); err != nil {
		j.logger().Warn("send email", slog.String("kind", payload.Kind), slog.Any("error", err))
		return err
	}
	j.logger().Info("email sent", slog.String("kind", payload.Kind))
	return nil
}

func (j *MailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func verificationEmail(to, name, link string) SendEmailPayload {
	greeting := "Hello"
	if name != "" {
		greeting = "Hello " + name
	}
	return SendEmailPayload{
		Kind:    MailKindVerification,
		To:      to,
		Subject: "Verify your EcoGuard email address",
		Body: greeting + ",\n\n" +
			"Thanks for joining EcoGuard. Confirm your email address by opening the link below:\n\n" +
			link + "\n\n" +
			"The link expires in 24 hours. If you did not create an account, ignore this message.\n",
	}
}
