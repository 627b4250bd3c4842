package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Event announces a completed task. How it reaches the user (push, email) is
// the delivery service's concern.
type Event struct {
	UserID   uuid.UUID `json:"user_id"`
	TaskType string    `json:"task_type"`
	TaskID   uuid.UUID `json:"task_id"`
}

type Notifier interface {
	TaskCompleted(ctx context.Context, event Event) error
}

// WebhookNotifier POSTs completion events to the notification service.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) TaskCompleted(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}
	return nil
}

var _ Notifier = (*WebhookNotifier)(nil)

// LogNotifier is used when no notification service is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) TaskCompleted(_ context.Context, event Event) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("task completed", "user_id", event.UserID, "task_type", event.TaskType, "task_id", event.TaskID)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
