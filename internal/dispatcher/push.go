package dispatcher

import (
	"context"
	"errors"

	"github.com/jmehdipour/sms-forwarder/internal/logger"
	"github.com/jmehdipour/sms-forwarder/internal/metrics"
	"github.com/jmehdipour/sms-forwarder/internal/model"
	"go.uber.org/zap"
)

// MaxPushBatch is the largest request the push service accepts.
const MaxPushBatch = 100

// TokenStore is the slice of the token registry the dispatcher needs.
type TokenStore interface {
	Snapshot() []string
	Remove(tokens ...string) int
}

// PushResult summarizes one Dispatch call. Err is informational: it has already been logged.
type PushResult struct {
	Devices int // tokens targeted
	Sent    int // tickets with status ok
	Pruned  int // tokens removed from the registry
	Err     error
}

type PushDispatcher struct {
	client PushClient
	tokens TokenStore
	log    *zap.Logger
}

func NewPushDispatcher(client PushClient, tokens TokenStore, log *zap.Logger) *PushDispatcher {
	return &PushDispatcher{client: client, tokens: tokens, log: log}
}

// Dispatch sends n to every registered device and prunes tokens the service reports as unregistered.
// It never fails the caller: transport problems are logged and reported in the result.
func (d *PushDispatcher) Dispatch(ctx context.Context, n model.Notification) PushResult {
	snapshot := d.tokens.Snapshot()
	res := PushResult{Devices: len(snapshot)}

	if len(snapshot) == 0 {
		d.log.Info("no push tokens registered, skipping notification", zap.String("title", n.Title))
		return res
	}

	var (
		dead []string
		errs []error
	)
	for start := 0; start < len(snapshot); start += MaxPushBatch {
		end := min(start+MaxPushBatch, len(snapshot))
		chunk := snapshot[start:end]

		tickets, err := d.client.Send(ctx, buildPushMessages(chunk, n))
		if err != nil {
			errs = append(errs, err)
			outcome := "failed"
			if errors.Is(err, ErrCircuitOpen) {
				outcome = "skipped"
			}
			metrics.PushTotal.WithLabelValues(outcome).Inc()
			d.log.Error("sending push notification failed",
				zap.Int("devices", len(chunk)), zap.String("title", n.Title), zap.Error(err))
			continue
		}
		metrics.PushTotal.WithLabelValues("sent").Inc()

		// tickets line up with chunk by index; nothing is removed until the walk is over
		for i, t := range tickets {
			if i >= len(chunk) {
				break
			}
			switch {
			case t.Status == model.TicketStatusOK:
				res.Sent++
			case t.DeviceGone():
				dead = append(dead, chunk[i])
			default:
				d.log.Warn("push ticket error", logger.MaskToken(chunk[i]), zap.String("message", t.Message))
			}
		}
	}

	if len(dead) > 0 {
		for _, tok := range dead {
			d.log.Info("removing invalid push token", logger.MaskToken(tok))
		}
		res.Pruned = d.tokens.Remove(dead...)
		metrics.PushTokensPruned.Add(float64(res.Pruned))
	}

	res.Err = errors.Join(errs...)
	if res.Err == nil {
		d.log.Info("push notification sent",
			zap.Int("devices", res.Devices), zap.Int("ok", res.Sent), zap.Int("pruned", res.Pruned),
			zap.String("title", n.Title))
	}

	return res
}

func buildPushMessages(tokens []string, n model.Notification) []model.PushMessage {
	msgs := make([]model.PushMessage, len(tokens))
	for i, tok := range tokens {
		msgs[i] = model.PushMessage{
			To:       tok,
			Title:    n.Title,
			Body:     n.Body,
			Sound:    "default",
			Priority: "high",
			Data:     n.Data,
		}
	}
	return msgs
}
