package dispatcher

import (
	"errors"
	"sync"
	"time"

	"github.com/jmehdipour/sms-forwarder/internal/metrics"
)

var ErrCircuitOpen = errors.New("circuit open")

type state int

const (
	closed state = iota
	open
	halfOpen
)

// MicroBreaker guards one outbound sink and publishes its state as fwd_breaker_state{sink}. A threshold <= 0 disables it: every call is let through.
type MicroBreaker struct {
	sink             string
	mu               sync.Mutex
	st               state
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool

	now func() time.Time
}

func NewMicroBreaker(sink string, threshold int, openFor time.Duration) *MicroBreaker {
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	b := &MicroBreaker{sink: sink, failThreshold: threshold, openFor: openFor, now: time.Now}
	metrics.BreakerState.WithLabelValues(sink).Set(float64(closed))
	return b
}

// setLocked moves to st and publishes it. Callers hold mu.
func (b *MicroBreaker) setLocked(st state) {
	if b.st == st {
		return
	}
	b.st = st
	metrics.BreakerState.WithLabelValues(b.sink).Set(float64(st))
}

func (b *MicroBreaker) enabled() bool { return b.failThreshold > 0 }

// TryAcquire reports whether a call may go out now. In half-open state only one probe is admitted.
func (b *MicroBreaker) TryAcquire() bool {
	if !b.enabled() {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case closed:
		return true
	case open:
		if b.now().After(b.nextTryAt) && !b.probeInFlight {
			b.setLocked(halfOpen)
			b.probeInFlight = true
			return true
		}
		return false
	case halfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *MicroBreaker) OnSuccess() {
	if !b.enabled() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFails = 0
	b.probeInFlight = false
	b.setLocked(closed)
}

func (b *MicroBreaker) OnFailure() {
	if !b.enabled() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.st == halfOpen {
		b.setLocked(open)
		b.nextTryAt = b.now().Add(b.openFor)
		b.probeInFlight = false
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.setLocked(open)
		b.nextTryAt = b.now().Add(b.openFor)
	}
}
