package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eupendra/simple-price-alert/pkg/httputil"
	"github.com/eupendra/simple-price-alert/pkg/web"
)

const DefaultWebhookName = "PriceAlert"

// Webhook posts the one-line alert summary to a Slack or Discord incoming
// webhook.
type Webhook struct {
	url     string
	name    string
	client  *http.Client
	backoff httputil.Backoff
	logger  *slog.Logger
}

func NewWebhook(url, name string, logger *slog.Logger) *Webhook {
	if name == "" {
		name = DefaultWebhookName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{
		url:     url,
		name:    name,
		client:  &http.Client{Timeout: 10 * time.Second},
		backoff: httputil.DefaultBackoff,
		logger:  logger,
	}
}

func (w *Webhook) Enabled() bool {
	return w.url != ""
}

func (w *Webhook) Send(ctx context.Context, n *web.Notification) error {
	if !w.Enabled() {
		return nil
	}

	body, err := json.Marshal(w.payload(fmt.Sprintf("%s %s", n.Subject, n.Summary)))
	if err != nil {
		return err
	}

	resp, err := httputil.Do(ctx, w.client, w.backoff, w.logger, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("%w: webhook: %v", ErrDispatch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: webhook: %s", ErrDispatch, resp.Status)
	}
	return nil
}

func (w *Webhook) payload(text string) map[string]string {
	if strings.Contains(w.url, "discord") {
		return map[string]string{
			"content":  text,
			"username": w.name,
		}
	}
	return map[string]string{
		"text":     text,
		"username": w.name,
	}
}
