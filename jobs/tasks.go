package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/jurisdesk/jurisdesk/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeRevokeSessions is the task type for revoking all sessions of a principal.
	TaskTypeRevokeSessions = "sessions:revoke"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with SMTP relay later.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// RevokeSessionsPayload identifies the auth principal whose sessions must go.
type RevokeSessionsPayload struct {
	AuthUserID string `json:"authUserId"`
}

// NewRevokeSessionsTask constructs an Asynq task for session revocation.
func NewRevokeSessionsTask(payload RevokeSessionsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRevokeSessions, data), nil
}

// RevokeSessionsJob deletes every live session of a deactivated principal.
type RevokeSessionsJob struct {
	sessions *shared.SessionManager
	logger   *slog.Logger
}

// NewRevokeSessionsJob constructs a RevokeSessionsJob.
func NewRevokeSessionsJob(sessions *shared.SessionManager, logger *slog.Logger) *RevokeSessionsJob {
	return &RevokeSessionsJob{sessions: sessions, logger: logger}
}

// Handle processes TaskTypeRevokeSessions tasks.
func (j *RevokeSessionsJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload RevokeSessionsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.AuthUserID == "" {
		return asynq.SkipRetry
	}
	removed, err := j.sessions.RevokeByPrincipal(ctx, payload.AuthUserID)
	if err != nil {
		return err
	}
	j.logger.Info("revoked sessions",
		slog.String("auth_user_id", payload.AuthUserID),
		slog.Int("count", removed))
	return nil
}
