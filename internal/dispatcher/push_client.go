package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmehdipour/sms-forwarder/internal/model"
)

// PushClient submits one batch to the push-delivery service and returns its tickets,
// positionally aligned with msgs.
type PushClient interface {
	Send(ctx context.Context, msgs []model.PushMessage) ([]model.PushTicket, error)
}

type HTTPPushClient struct {
	url         string
	accessToken string
	client      *http.Client
	br          *MicroBreaker
}

var _ PushClient = (*HTTPPushClient)(nil)

func NewHTTPPushClient(url, accessToken string, timeout time.Duration, failThreshold int, openFor time.Duration) *HTTPPushClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPPushClient{
		url:         url,
		accessToken: accessToken,
		client:      &http.Client{Timeout: timeout},
		br:          NewMicroBreaker("push", failThreshold, openFor),
	}
}

type pushResponse struct {
	Data   []model.PushTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (p *HTTPPushClient) Send(ctx context.Context, msgs []model.PushMessage) ([]model.PushTicket, error) {
	if !p.br.TryAcquire() {
		return nil, ErrCircuitOpen
	}

	tickets, err := p.post(ctx, msgs)
	if err != nil {
		p.br.OnFailure()
		return nil, err
	}

	p.br.OnSuccess()

	return tickets, nil
}

func (p *HTTPPushClient) post(ctx context.Context, msgs []model.PushMessage) ([]model.PushTicket, error) {
	b, err := json.Marshal(msgs)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if p.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.accessToken)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("push service status=%d body=%q", res.StatusCode, snippet)
	}

	var out pushResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	if len(out.Data) == 0 && len(out.Errors) > 0 {
		return nil, fmt.Errorf("push service error %s: %s", out.Errors[0].Code, out.Errors[0].Message)
	}

	return out.Data, nil
}
