package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/ecoguard/ecoguard/internal/jobs"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault, Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeSender struct {
	sent []SendEmailPayload
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg SendEmailPayload) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestNewSendEmailTaskRejectsHeaderInjection(t *testing.T) {
	_, err := NewSendEmailTask(SendEmailPayload{To: "a@example.com\r\nBcc: x@example.com"})
	require.Error(t, err)

	_, err = NewSendEmailTask(SendEmailPayload{To: "  "})
	require.Error(t, err)

	_, err = NewSendEmailTask(SendEmailPayload{To: "not-an-address"})
	require.Error(t, err)

	task, err := NewSendEmailTask(SendEmailPayload{To: "a@example.com", Subject: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, TaskTypeSendEmail, task.Type())

	payload, err := ParseSendEmailTask(task)
	require.NoError(t, err)
	assert.Equal(t, MailKindGeneric, payload.Kind)
}

func TestParseSendEmailTaskSkipsRetry(t *testing.T) {
	cases := map[string]*asynq.Task{
		"wrong type":   asynq.NewTask("mail:other", []byte(`{"to":"a@example.com"}`)),
		"bad json":     asynq.NewTask(TaskTypeSendEmail, []byte("{not json")),
		"header break": asynq.NewTask(TaskTypeSendEmail, []byte(`{"to":"a@example.com","subject":"x\r\nBcc: y"}`)),
		"no recipient": asynq.NewTask(TaskTypeSendEmail, []byte(`{"subject":"x"}`)),
	}
	for name, task := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSendEmailTask(task)
			require.ErrorIs(t, err, asynq.SkipRetry)
		})
	}
}

func TestClientSendVerificationEnqueuesMail(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := &Client{client: enq}

	err := client.SendVerification(context.Background(), "jane@example.com", "Jane", "https://eco.example/verify?token=abc")
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)

	var payload SendEmailPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, "jane@example.com", payload.To)
	assert.Equal(t, MailKindVerification, payload.Kind)
	assert.Contains(t, payload.Body, "Hello Jane")
	assert.Contains(t, payload.Body, "https://eco.example/verify?token=abc")
}

func TestClientSendVerificationWrapsEnqueueError(t *testing.T) {
	boom := errors.New("redis down")
	client := &Client{client: &fakeEnqueuer{err: boom}}

	err := client.SendVerification(context.Background(), "jane@example.com", "", "link")
	require.ErrorIs(t, err, boom)
}

func TestMailJobSendsAndRecordsMetrics(t *testing.T) {
	sender := &fakeSender{}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := &MailJob{Sender: sender, Metrics: metrics}

	task, err := NewSendEmailTask(verificationEmail("jane@example.com", "Jane", "link"))
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Verify your EcoGuard email address", sender.sent[0].Subject)
}

func TestMailJobSkipsRetryOnMalformedPayload(t *testing.T) {
	reg := prometheus.NewRegistry()
	sender := &fakeSender{}
	job := &MailJob{Sender: sender, Metrics: jobmetrics.NewMetrics(reg)}

	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{not json")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, sender.sent)

	expected := `
# HELP ecoguard_jobs_runs_total Job runs by task type and outcome.
# TYPE ecoguard_jobs_runs_total counter
ecoguard_jobs_runs_total{outcome="dropped",task="mail:send"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ecoguard_jobs_runs_total"))
}

func TestMailJobPropagatesSendFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := &MailJob{Sender: &fakeSender{err: errors.New("relay refused")}, Metrics: metrics}

	task, err := NewSendEmailTask(SendEmailPayload{To: "jane@example.com", Subject: "s", Body: "b"})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	expected := `
# HELP ecoguard_jobs_runs_total Job runs by task type and outcome.
# TYPE ecoguard_jobs_runs_total counter
ecoguard_jobs_runs_total{outcome="failure",task="mail:send"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ecoguard_jobs_runs_total"))
}

func TestRenderMessageUsesCRLF(t *testing.T) {
	raw := string(renderMessage("noreply@eco.example", SendEmailPayload{To: "a@example.com", Subject: "Hi", Body: "line1\nline2"}))
	assert.True(t, strings.HasPrefix(raw, "From: noreply@eco.example\r\n"))
	assert.Contains(t, raw, "Subject: Hi\r\n")
	assert.True(t, strings.HasSuffix(raw, "line1\r\nline2"))
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestHandlerHealth(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   int
	}{
		{name: "no inspector", status: http.StatusOK},
		{name: "queue info", inspector: fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3}}, status: http.StatusOK, pending: 3},
		{name: "inspector error", inspector: fakeInspector{err: errors.New("down")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, nil).MountRoutes(r)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tc.status, rec.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, QueueDefault, body.Queue)
			assert.Equal(t, tc.pending, body.Pending)
		})
	}
}
