package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmehdipour/sms-forwarder/internal/model"
	"github.com/jmehdipour/sms-forwarder/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePushClient struct {
	mu      sync.Mutex
	batches [][]model.PushMessage
	ticket  func(token string) model.PushTicket
	err     error
}

func (f *fakePushClient) Send(_ context.Context, msgs []model.PushMessage) ([]model.PushTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, msgs)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.PushTicket, len(msgs))
	for i, m := range msgs {
		out[i] = f.ticket(m.To)
	}
	return out, nil
}

func goneTicket() model.PushTicket {
	return model.PushTicket{
		Status:  model.TicketStatusError,
		Message: "not registered",
		Details: &model.TicketDetails{Error: model.ErrDeviceNotRegistered},
	}
}

func okTicket() model.PushTicket { return model.PushTicket{Status: model.TicketStatusOK, ID: "t"} }

func registry(t *testing.T, tokens ...string) *repository.TokensRepositoryImpl {
	t.Helper()
	repo := repository.NewTokensRepository(filepath.Join(t.TempDir(), "tokens.json"), zap.NewNop())
	for _, tok := range tokens {
		_, err := repo.Register(tok)
		require.NoError(t, err)
	}
	return repo
}

func tokenNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("ExponentPushToken[%03d]", i)
	}
	return out
}

func TestDispatchNoTokensIsNoop(t *testing.T) {
	client := &fakePushClient{ticket: func(string) model.PushTicket { return okTicket() }}
	d := NewPushDispatcher(client, registry(t), zap.NewNop())

	res := d.Dispatch(context.Background(), model.Notification{Title: "x"})

	assert.Equal(t, PushResult{}, res)
	assert.Empty(t, client.batches)
}

func TestDispatchBuildsOneMessagePerToken(t *testing.T) {
	client := &fakePushClient{ticket: func(string) model.PushTicket { return okTicket() }}
	d := NewPushDispatcher(client, registry(t, "a", "b"), zap.NewNop())

	data := map[string]any{"messageId": "SM1", "type": "sms"}
	res := d.Dispatch(context.Background(), model.Notification{Title: "SMS from (555) 123-4567", Body: "hi", Data: data})

	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Devices)
	assert.Equal(t, 2, res.Sent)
	require.Len(t, client.batches, 1)
	assert.Equal(t, []model.PushMessage{
		{To: "a", Title: "SMS from (555) 123-4567", Body: "hi", Sound: "default", Priority: "high", Data: data},
		{To: "b", Title: "SMS from (555) 123-4567", Body: "hi", Sound: "default", Priority: "high", Data: data},
	}, client.batches[0])
}

// Pruning must remove exactly the flagged tokens whatever their positions.
func TestDispatchPrunesExactlyFlaggedTokens(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		flagged []int
	}{
		{"single flagged", 1, []int{0}},
		{"first", 5, []int{0}},
		{"last", 5, []int{4}},
		{"adjacent", 5, []int{1, 2}},
		{"first and last", 5, []int{0, 4}},
		{"every other", 8, []int{0, 2, 4, 6}},
		{"all", 4, []int{0, 1, 2, 3}},
		{"none", 4, nil},
		{"unordered across chunks", 250, []int{249, 0, 100, 99, 150, 101}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := tokenNames(tt.n)
			flagged := map[string]bool{}
			for _, i := range tt.flagged {
				flagged[tokens[i]] = true
			}

			client := &fakePushClient{ticket: func(tok string) model.PushTicket {
				if flagged[tok] {
					return goneTicket()
				}
				return okTicket()
			}}
			repo := registry(t, tokens...)
			d := NewPushDispatcher(client, repo, zap.NewNop())

			res := d.Dispatch(context.Background(), model.Notification{Title: "t", Body: "b"})

			var want []string
			for _, tok := range tokens {
				if !flagged[tok] {
					want = append(want, tok)
				}
			}
			require.NoError(t, res.Err)
			assert.Equal(t, len(tt.flagged), res.Pruned)
			assert.Equal(t, tt.n-len(tt.flagged), res.Sent)
			assert.Equal(t, len(want), repo.Len())
			if len(want) == 0 {
				assert.Empty(t, repo.Snapshot())
			} else {
				assert.Equal(t, want, repo.Snapshot())
			}
		})
	}
}

func TestDispatchChunksLargeTokenSets(t *testing.T) {
	client := &fakePushClient{ticket: func(string) model.PushTicket { return okTicket() }}
	d := NewPushDispatcher(client, registry(t, tokenNames(230)...), zap.NewNop())

	res := d.Dispatch(context.Background(), model.Notification{Title: "t"})

	require.NoError(t, res.Err)
	require.Len(t, client.batches, 3)
	assert.Len(t, client.batches[0], 100)
	assert.Len(t, client.batches[1], 100)
	assert.Len(t, client.batches[2], 30)
	assert.Equal(t, 230, res.Sent)
}

func TestDispatchTransportFailureIsSwallowed(t *testing.T) {
	boom := errors.New("connection refused")
	client := &fakePushClient{err: boom}
	repo := registry(t, "a", "b")
	d := NewPushDispatcher(client, repo, zap.NewNop())

	res := d.Dispatch(context.Background(), model.Notification{Title: "t"})

	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, 2, res.Devices)
	assert.Equal(t, 0, res.Pruned)
	assert.Equal(t, 2, repo.Len())
}

func TestDispatchShortTicketListIsTolerated(t *testing.T) {
	repo := registry(t, "a", "b", "c")
	client := pushClientFunc(func(_ context.Context, msgs []model.PushMessage) ([]model.PushTicket, error) {
		return []model.PushTicket{goneTicket()}, nil
	})
	d := NewPushDispatcher(client, repo, zap.NewNop())

	res := d.Dispatch(context.Background(), model.Notification{Title: "t"})

	assert.Equal(t, 1, res.Pruned)
	assert.Equal(t, []string{"b", "c"}, repo.Snapshot())
}

func TestDispatchKeepsTokenRegisteredDuringSend(t *testing.T) {
	repo := registry(t, "stale", "live")
	client := pushClientFunc(func(_ context.Context, msgs []model.PushMessage) ([]model.PushTicket, error) {
		_, err := repo.Register("fresh")
		require.NoError(t, err)
		return []model.PushTicket{goneTicket(), okTicket()}, nil
	})
	d := NewPushDispatcher(client, repo, zap.NewNop())

	d.Dispatch(context.Background(), model.Notification{Title: "t"})

	assert.Equal(t, []string{"live", "fresh"}, repo.Snapshot())
}

type pushClientFunc func(context.Context, []model.PushMessage) ([]model.PushTicket, error)

func (f pushClientFunc) Send(ctx context.Context, msgs []model.PushMessage) ([]model.PushTicket, error) {
	return f(ctx, msgs)
}

func TestHTTPPushClientSend(t *testing.T) {
	var got []model.PushMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"abc"},{"status":"error","message":"gone","details":{"error":"DeviceNotRegistered"}}]}`))
	}))
	defer srv.Close()

	c := NewHTTPPushClient(srv.URL, "secret", time.Second, 0, 0)
	tickets, err := c.Send(context.Background(), buildPushMessages([]string{"a", "b"}, model.Notification{Title: "t", Body: "b"}))

	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "ok", tickets[0].Status)
	assert.False(t, tickets[0].DeviceGone())
	assert.True(t, tickets[1].DeviceGone())
	require.Len(t, got, 2)
	assert.Equal(t, "default", got[0].Sound)
	assert.Equal(t, "high", got[1].Priority)
}

func TestHTTPPushClientErrors(t *testing.T) {
	t.Run("non 2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewHTTPPushClient(srv.URL, "", time.Second, 0, 0).Send(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status=502")
	})

	t.Run("request level error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"errors":[{"code":"VALIDATION_ERROR","message":"bad"}]}`))
		}))
		defer srv.Close()

		_, err := NewHTTPPushClient(srv.URL, "", time.Second, 0, 0).Send(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "VALIDATION_ERROR")
	})

	t.Run("breaker opens", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewHTTPPushClient(srv.URL, "", time.Second, 2, time.Minute)
		for i := 0; i < 2; i++ {
			_, err := c.Send(context.Background(), nil)
			require.Error(t, err)
		}
		_, err := c.Send(context.Background(), nil)
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, int32(2), calls.Load())
	})
}
