package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue every EcoGuard task is enqueued on.
	QueueDefault = "default"
	// TaskTypeSendEmail delivers a transactional email.
	TaskTypeSendEmail = "mail:send"
)

// Mail kinds carried in SendEmailPayload.Kind.
const (
	MailKindVerification = "verification"
	MailKindGeneric      = "generic"
)

var errHeaderBreak = errors.New("jobs: header fields must not contain line breaks")

// SendEmailPayload is the JSON body of a TaskTypeSendEmail task.
type SendEmailPayload struct {
	Kind    string `json:"kind,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (p SendEmailPayload) validate() error {
	to := strings.TrimSpace(p.To)
	if to == "" {
		return errors.New("jobs: email recipient required")
	}
	if strings.ContainsAny(p.To+p.Subject, "\r\n") {
		return errHeaderBreak
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("jobs: invalid recipient: %w", err)
	}
	return nil
}

// sendEmailOptions are applied to every mail task at construction so callers
// enqueue with consistent retry behaviour.
func sendEmailOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
		asynq.Retention(24 * time.Hour),
	}
}

// NewSendEmailTask validates payload and wraps it in a task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if payload.Kind == "" {
		payload.Kind = MailKindGeneric
	}
	if err := payload.validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode payload: %w", err)
	}
	return asynq.NewTask(TaskTypeSendEmail, data, sendEmailOptions()...), nil
}

// ParseSendEmailTask decodes and validates a mail task. Errors wrap
// asynq.SkipRetry since a malformed payload never becomes valid.
func ParseSendEmailTask(t *asynq.Task) (SendEmailPayload, error) {
	var payload SendEmailPayload
	if t.Type() != TaskTypeSendEmail {
		return payload, fmt.Errorf("jobs: unexpected task type %q: %w", t.Type(), asynq.SkipRetry)
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("jobs: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := payload.validate(); err != nil {
		return payload, fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return payload, nil
}
