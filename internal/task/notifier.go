package task

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/insurdesk/autoreg/internal/domain"
)

// ErrNotificationFailed is returned when a webhook delivery attempt does not
// reach the callback endpoint or the endpoint answers with a non-success
// status code. Delivery is best-effort: the caller logs the failure and
// moves on, and the task's terminal status is never affected.
var ErrNotificationFailed = errors.New("webhook notification failed")

// Notifier delivers the final outcome of a task to a caller-supplied
// callback URL.
type Notifier interface {
	Notify(
		ctx context.Context,
		callbackURL string,
		taskID uuid.UUID,
		status domain.TaskStatus,
		result *domain.TaskResult,
	) error
}

// notificationPayload is the body POSTed to the webhook target.
type notificationPayload struct {
	TaskID    uuid.UUID          `json:"task_id"`
	Status    domain.TaskStatus  `json:"status"`
	Result    *domain.TaskResult `json:"result"`
	Timestamp time.Time          `json:"timestamp"`
}

// WebhookNotifier implements Notifier over plain HTTP with a bounded
// timeout. One attempt per task; no retries.
type WebhookNotifier struct {
	client *http.Client
	logger *slog.Logger
}

// NewWebhookNotifier creates a WebhookNotifier whose delivery attempts are
// bounded by the given timeout.
func NewWebhookNotifier(timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify performs a single delivery attempt.
func (n *WebhookNotifier) Notify(
	ctx context.Context,
	callbackURL string,
	taskID uuid.UUID,
	status domain.TaskStatus,
	result *domain.TaskResult,
) error {
	payload := notificationPayload{
		TaskID:    taskID,
		Status:    status,
		Result:    result,
		Timestamp: time.Now().UTC(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal payload: %v", ErrNotificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: invalid callback URL: %v", ErrNotificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			"task_id", taskID,
			"callback_url", callbackURL,
			"error", err)
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("webhook target rejected notification",
			"task_id", taskID,
			"callback_url", callbackURL,
			"status_code", resp.StatusCode)
		return fmt.Errorf("%w: unexpected status %d", ErrNotificationFailed, resp.StatusCode)
	}

	n.logger.Info("webhook notification delivered",
		"task_id", taskID,
		"callback_url", callbackURL)
	return nil
}
