// ABOUTME: Single bounded-time HTTP probe against a remote agent endpoint
// ABOUTME: Classifies the result as Online, ErrorStatus, Timeout or NetworkFailure

package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Kind classifies a probe outcome.
type Kind string

const (
	KindOnline         Kind = "online"
	KindErrorStatus    Kind = "error_status"
	KindTimeout        Kind = "timeout"
	KindNetworkFailure Kind = "network_failure"
)

// maxBodyBytes caps how much of a remote response body is read.
const maxBodyBytes = 1 << 20

// Outcome is the classified result of one probe. Only the fields relevant to
// Kind are set: Latency and Sample for Online, HTTPStatus (and Latency) for
// ErrorStatus, Detail for NetworkFailure.
type Outcome struct {
	Kind       Kind
	Latency    time.Duration
	Sample     string
	HTTPStatus int
	Detail     string
}

// Online reports whether the endpoint answered with a 2xx status.
func (o Outcome) Online() bool {
	return o.Kind == KindOnline
}

// LatencyMs returns the observed latency in whole milliseconds.
func (o Outcome) LatencyMs() int {
	return int(o.Latency / time.Millisecond)
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindOnline:
		return fmt.Sprintf("online (%dms)", o.LatencyMs())
	case KindErrorStatus:
		return fmt.Sprintf("error status %d", o.HTTPStatus)
	case KindTimeout:
		return "timeout"
	default:
		return "network failure: " + o.Detail
	}
}

// Request describes one probe call.
type Request struct {
	Endpoint  string
	Message   string
	SessionID string
	Timeout   time.Duration // zero means bounded only by ctx
}

// payload is the JSON body remote agents receive.
type payload struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// Prober issues probes. It performs no retries and does no logging.
type Prober struct {
	client *http.Client
	now    func() time.Time
}

// New creates a Prober. A nil client uses a fresh http.Client; deadlines come
// from each Request, so the client should not set its own Timeout.
func New(client *http.Client) *Prober {
	if client == nil {
		client = &http.Client{}
	}
	return &Prober{client: client, now: time.Now}
}

// WithClock replaces the clock used for latency measurement.
func (p *Prober) WithClock(now func() time.Time) *Prober {
	p.now = now
	return p
}

// Probe POSTs {message, session_id} to the endpoint and classifies the result.
// The in-flight request is cancelled when Timeout elapses or ctx ends.
func (p *Prober) Probe(ctx context.Context, req Request) Outcome {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(payload{Message: req.Message, SessionID: req.SessionID})
	if err != nil {
		return Outcome{Kind: KindNetworkFailure, Detail: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: KindNetworkFailure, Detail: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := p.now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return classifyError(ctx, err)
	}
	defer resp.Body.Close()
	latency := p.now().Sub(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return Outcome{Kind: KindErrorStatus, HTTPStatus: resp.StatusCode, Latency: latency}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return classifyError(ctx, err)
	}

	return Outcome{Kind: KindOnline, Latency: latency, Sample: extractSample(data)}
}

// classifyError maps a transport error to Timeout or NetworkFailure.
func classifyError(ctx context.Context, err error) Outcome {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Kind: KindTimeout}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Outcome{Kind: KindTimeout}
	}
	return Outcome{Kind: KindNetworkFailure, Detail: err.Error()}
}

// sampleFields are checked in priority order.
var sampleFields = []string{"response", "message", "text"}

// extractSample picks the reply text out of an agent response body. Bodies
// without a recognised field are returned re-encoded as compact JSON, and
// bodies that are not JSON at all are returned as trimmed text.
func extractSample(data []byte) string {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return strings.TrimSpace(string(data))
	}

	if obj, ok := decoded.(map[string]any); ok {
		for _, field := range sampleFields {
			switch v := obj[field].(type) {
			case nil:
				continue
			case string:
				if v != "" {
					return v
				}
			default:
				if encoded, err := json.Marshal(v); err == nil {
					return string(encoded)
				}
			}
		}
	}

	encoded, err := json.Marshal(decoded)
	if err != nil {
		return strings.TrimSpace(string(data))
	}
	return string(encoded)
}
