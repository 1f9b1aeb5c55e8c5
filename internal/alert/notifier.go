package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hakim/brandwatch/internal/models"
)

// Notification is what a channel delivers.
type Notification struct {
	UserID  string         `json:"user_id"`
	Brand   string         `json:"brand"`
	BrandID string         `json:"brand_id"`
	Threat  *models.Threat `json:"threat"`
	Reason  string         `json:"reason"`
}

// Notifier delivers a notification over one channel.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// WebhookNotifier posts notifications as JSON.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

// NewWebhookNotifier returns a notifier posting to url.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Notify posts the notification. Non-2xx responses are errors.
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: posting to %s: %w", w.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned non-2xx status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes notifications to the log. It stands in for channels
// whose delivery happens outside this service, such as email.
type LogNotifier struct {
	Channel string
	Logger  logrus.FieldLogger
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.Logger.WithFields(logrus.Fields{
		"channel":  l.Channel,
		"user_id":  n.UserID,
		"brand_id": n.BrandID,
		"domain":   n.Threat.Domain,
		"severity": n.Threat.Severity,
		"reason":   n.Reason,
	}).Info("alert raised")
	return nil
}
