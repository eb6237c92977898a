package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jmehdipour/sms-forwarder/internal/metrics"
	"github.com/jmehdipour/sms-forwarder/internal/model"
	"github.com/jmehdipour/sms-forwarder/internal/util"
	"go.uber.org/zap"
)

// WebhookRelay posts event payloads to the operator's webhook. There are no retries; the outcome is
// logged and returned for the caller's information only.
type WebhookRelay struct {
	url    string
	client *http.Client
	br     *MicroBreaker
	log    *zap.Logger
	newID  func() string
}

func NewWebhookRelay(url string, timeout time.Duration, failThreshold int, openFor time.Duration, log *zap.Logger) *WebhookRelay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookRelay{
		url:    url,
		client: &http.Client{Timeout: timeout},
		br:     NewMicroBreaker("webhook", failThreshold, openFor),
		log:    log,
		newID:  util.NewEventID,
	}
}

func (w *WebhookRelay) Relay(ctx context.Context, typ model.EventType, payload any) error {
	eventID := w.newID()
	log := w.log.With(zap.String("event_id", eventID), zap.String("type", typ.String()))

	if !w.br.TryAcquire() {
		metrics.WebhookTotal.WithLabelValues("skipped").Inc()
		log.Warn("webhook skipped, circuit open")
		return ErrCircuitOpen
	}

	start := time.Now()
	if err := w.post(ctx, eventID, typ, payload); err != nil {
		w.br.OnFailure()
		metrics.WebhookTotal.WithLabelValues("failed").Inc()
		log.Error("webhook failed", zap.Duration("took", time.Since(start)), zap.Error(err))
		return err
	}

	w.br.OnSuccess()
	metrics.WebhookTotal.WithLabelValues("sent").Inc()
	log.Info("webhook sent", zap.Duration("took", time.Since(start)))

	return nil
}

func (w *WebhookRelay) post(ctx context.Context, eventID string, typ model.EventType, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(b))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "sms-forwarder")
	req.Header.Set("X-Event-Id", eventID)
	req.Header.Set("X-Event-Type", typ.String())

	res, err := w.client.Do(req)
	if err != nil {
		return err
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("webhook status=%d", res.StatusCode)
	}

	return nil
}
