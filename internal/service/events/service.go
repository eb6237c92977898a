package events

import (
	"context"
	"time"

	"github.com/jmehdipour/sms-forwarder/internal/dispatcher"
	"github.com/jmehdipour/sms-forwarder/internal/metrics"
	"github.com/jmehdipour/sms-forwarder/internal/model"
	"github.com/jmehdipour/sms-forwarder/internal/twiml"
	"github.com/jmehdipour/sms-forwarder/internal/util"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

type MessageStore interface {
	Append(m model.Message) model.Message
}

type Pusher interface {
	Dispatch(ctx context.Context, n model.Notification) dispatcher.PushResult
}

type Relayer interface {
	Relay(ctx context.Context, typ model.EventType, payload any) error
}

// Service turns provider callbacks into stored records and fans them out to the push and webhook sinks.
// Sink failures never reach the caller.
type Service struct {
	msgs    MessageStore
	push    Pusher
	relay   Relayer
	forward twiml.Forward
	log     *zap.Logger

	now func() time.Time
}

// New constructs the event service.
func New(msgs MessageStore, push Pusher, relay Relayer, forward twiml.Forward, log *zap.Logger) *Service {
	return &Service{
		msgs:    msgs,
		push:    push,
		relay:   relay,
		forward: forward,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// HandleSMS stores the message, then notifies devices and relays the event concurrently.
// It returns once both sinks have finished.
func (s *Service) HandleSMS(ctx context.Context, in model.InboundSMS) model.Message {
	metrics.EventsTotal.WithLabelValues(model.EventSMS.String()).Inc()
	ts := s.now()

	s.log.Info("sms received",
		zap.String("from", in.From), zap.String("to", in.To), zap.String("message_sid", in.MessageSid))

	stored := s.msgs.Append(model.Message{
		ID:        in.MessageSid,
		Type:      model.MessageTypeSMS,
		From:      in.From,
		To:        in.To,
		Body:      in.Body,
		Timestamp: ts,
	})

	// the provider may hang up on us; sinks still run to their own timeouts
	sinkCtx := context.WithoutCancel(ctx)

	var wg conc.WaitGroup
	wg.Go(func() {
		s.push.Dispatch(sinkCtx, model.Notification{
			Title: "SMS from " + util.DisplayPhone(in.From),
			Body:  in.Body,
			Data: map[string]any{
				"messageId": in.MessageSid,
				"from":      in.From,
				"type":      model.EventSMS.String(),
			},
		})
	})
	wg.Go(func() {
		_ = s.relay.Relay(sinkCtx, model.EventSMS, model.SMSEvent{
			Type:        model.EventSMS,
			From:        in.From,
			To:          in.To,
			Body:        in.Body,
			MessageSid:  in.MessageSid,
			NumMedia:    in.NumMedia,
			Timestamp:   ts,
			ForwardedTo: s.forward.To,
		})
	})
	if r := wg.WaitAndRecover(); r != nil {
		s.log.Error("sms fan-out panicked", zap.String("message_sid", in.MessageSid), zap.Error(r.AsError()))
	}

	return stored
}

// HandleVoice relays the incoming call and returns the document that forwards it.
func (s *Service) HandleVoice(ctx context.Context, in model.InboundCall) ([]byte, error) {
	metrics.EventsTotal.WithLabelValues(model.EventCall.String()).Inc()

	s.log.Info("call received",
		zap.String("from", in.From), zap.String("to", in.To), zap.String("call_sid", in.CallSid))

	s.relaySafely(ctx, model.EventCall, model.CallEvent{
		Type:        model.EventCall,
		From:        in.From,
		To:          in.To,
		CallSid:     in.CallSid,
		CallStatus:  in.CallStatus,
		Direction:   in.Direction,
		Timestamp:   s.now(),
		ForwardedTo: s.forward.To,
		Action:      model.ActionIncomingCall,
	})

	return twiml.ForwardCall(s.forward)
}

func (s *Service) HandleCallStatus(ctx context.Context, in model.CallStatusUpdate) {
	metrics.EventsTotal.WithLabelValues(model.EventCallStatus.String()).Inc()

	s.log.Info("call status",
		zap.String("call_sid", in.CallSid), zap.String("status", in.CallStatus), zap.Int("duration", in.CallDuration))

	var recording *string
	if in.RecordingURL != "" {
		u := in.RecordingURL
		recording = &u
	}

	s.relaySafely(ctx, model.EventCallStatus, model.CallStatusEvent{
		Type:         model.EventCallStatus,
		CallSid:      in.CallSid,
		CallStatus:   in.CallStatus,
		From:         in.From,
		To:           in.To,
		CallDuration: in.CallDuration,
		RecordingURL: recording,
		Timestamp:    s.now(),
		Action:       model.ActionCallCompleted,
	})
}

// SendTestNotification pushes a fixed notification to every registered device.
func (s *Service) SendTestNotification(ctx context.Context) dispatcher.PushResult {
	return s.push.Dispatch(context.WithoutCancel(ctx), model.Notification{
		Title: "Test Notification",
		Body:  "This is a test push notification from your SMS Forwarder",
		Data:  map[string]any{"type": "test"},
	})
}

func (s *Service) relaySafely(ctx context.Context, typ model.EventType, payload any) {
	var wg conc.WaitGroup
	wg.Go(func() {
		_ = s.relay.Relay(context.WithoutCancel(ctx), typ, payload)
	})
	if r := wg.WaitAndRecover(); r != nil {
		s.log.Error("webhook relay panicked", zap.String("type", typ.String()), zap.Error(r.AsError()))
	}
}
