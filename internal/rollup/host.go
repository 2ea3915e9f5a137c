package rollup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/valyala/fasthttp"

	"github.com/chesspresso/chesspresso/internal/message"
)

// RequestType discriminates the two request kinds handed out by the rollup
// host server.
type RequestType string

const (
	RequestAdvance RequestType = "advance_state"
	RequestInspect RequestType = "inspect_state"
)

// Request is one pending input handed out by POST /finish.
type Request struct {
	Type     RequestType
	Metadata message.Metadata // advance only
	Payload  []byte           // decoded from the 0x-hex wire form
}

// Host is a client for the rollup host server's HTTP API. The application
// talks to nothing else: inputs arrive through Finish and outputs leave
// through SendNotice and SendReport.
type Host struct {
	baseURL string
	http    *fasthttp.Client

	finishTimeout time.Duration
	sendTimeout   time.Duration
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithFinishTimeout bounds a single long-poll on POST /finish.
func WithFinishTimeout(d time.Duration) HostOption {
	return func(h *Host) { h.finishTimeout = d }
}

// WithSendTimeout bounds a notice or report submission.
func WithSendTimeout(d time.Duration) HostOption {
	return func(h *Host) { h.sendTimeout = d }
}

// NewHost builds a Host client for the server at baseURL.
func NewHost(baseURL string, opts ...HostOption) *Host {
	h := &Host{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &fasthttp.Client{ReadTimeout: 60 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 4},
		finishTimeout: 60 * time.Second,
		sendTimeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type finishRequest struct {
	Status message.Status `json:"status"`
}

type finishResponse struct {
	RequestType RequestType     `json:"request_type"`
	Data        json.RawMessage `json:"data"`
}

type advanceData struct {
	Metadata message.Metadata `json:"metadata"`
	Payload  string           `json:"payload"`
}

type inspectData struct {
	Payload string `json:"payload"`
}

type outputRequest struct {
	Payload string `json:"payload"`
}

// Finish reports the verdict for the previous request and blocks for the
// next one. It returns nil when the host has no request pending (HTTP 202);
// the caller just calls again.
func (h *Host) Finish(ctx context.Context, status message.Status) (*Request, error) {
	body, err := json.Marshal(finishRequest{Status: status})
	if err != nil {
		return nil, err
	}

	respBody, code, err := h.post(ctx, "/finish", body, h.finishTimeout)
	if err != nil {
		return nil, err
	}
	if code == fasthttp.StatusAccepted {
		return nil, nil
	}
	if code != fasthttp.StatusOK {
		return nil, fmt.Errorf("finish: status=%d body=%s", code, truncate(respBody, 512))
	}

	var resp finishResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode finish response: %w", err)
	}

	switch resp.RequestType {
	case RequestAdvance:
		var data advanceData
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return nil, fmt.Errorf("decode advance data: %w", err)
		}
		payload, err := hexutil.Decode(data.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode advance payload: %w", err)
		}
		return &Request{Type: RequestAdvance, Metadata: data.Metadata, Payload: payload}, nil
	case RequestInspect:
		var data inspectData
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return nil, fmt.Errorf("decode inspect data: %w", err)
		}
		payload, err := hexutil.Decode(data.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode inspect payload: %w", err)
		}
		return &Request{Type: RequestInspect, Payload: payload}, nil
	}
	return nil, fmt.Errorf("unknown request type %q", resp.RequestType)
}

// SendNotice posts a verifiable output to the host.
func (h *Host) SendNotice(ctx context.Context, payload []byte) error {
	return h.sendOutput(ctx, "/notice", payload)
}

// SendReport posts a free-form output to the host.
func (h *Host) SendReport(ctx context.Context, payload []byte) error {
	return h.sendOutput(ctx, "/report", payload)
}

func (h *Host) sendOutput(ctx context.Context, path string, payload []byte) error {
	body, err := json.Marshal(outputRequest{Payload: hexutil.Encode(payload)})
	if err != nil {
		return err
	}
	respBody, code, err := h.post(ctx, path, body, h.sendTimeout)
	if err != nil {
		return err
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("%s: status=%d body=%s", path, code, truncate(respBody, 512))
	}
	return nil
}

func (h *Host) post(ctx context.Context, path string, body []byte, timeout time.Duration) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(h.baseURL + path)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := h.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, 0, fmt.Errorf("post %s: %w", path, err)
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, resp.StatusCode(), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
