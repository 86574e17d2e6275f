// Package worker wires event subscribers that run as side effects of
// storage mutations: webhook pings for critical bug reports and
// structured audit logging for the rest.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/swarmdesk/swarmdesk/internal/config"
	"github.com/swarmdesk/swarmdesk/internal/domain"
	"github.com/swarmdesk/swarmdesk/internal/events"
)

// NotificationWorker forwards interesting events to a webhook endpoint.
type NotificationWorker struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
	client *http.Client
}

// NewNotificationWorker creates the worker.
func NewNotificationWorker(logger *zap.Logger, cfg config.NotificationConfig) *NotificationWorker {
	return &NotificationWorker{
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Register subscribes the worker to the dispatcher.
func (w *NotificationWorker) Register(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, w.handleTicketCreated)
	dispatcher.Subscribe(events.EventBugReportReceived, w.handleBugReport)
	dispatcher.Subscribe(events.EventTicketDeleted, w.handleTicketDeleted)
}

func (w *NotificationWorker) handleTicketCreated(ctx context.Context, event events.Event) error {
	w.logger.Info("ticket created", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (w *NotificationWorker) handleTicketDeleted(ctx context.Context, event events.Event) error {
	w.logger.Info("ticket deleted", zap.String("ticket_id", event.TicketID))
	return nil
}

func (w *NotificationWorker) handleBugReport(ctx context.Context, event events.Event) error {
	w.logger.Info("bug report received", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	if payload, ok := event.Payload.(events.BugReportReceivedPayload); ok {
		if payload.Priority != nil && *payload.Priority == domain.TicketPriorityCritical {
			w.sendWebhook(ctx, event)
		}
	}
	return nil
}

// sendWebhook posts the event to the configured URL. Best-effort: a dead
// webhook never affects the ingestion path that triggered it.
func (w *NotificationWorker) sendWebhook(ctx context.Context, event events.Event) {
	if strings.TrimSpace(w.cfg.WebhookURL) == "" {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		w.logger.Warn("webhook request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("webhook delivery failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		w.logger.Warn("webhook rejected", zap.Int("status", resp.StatusCode))
	}
}
