// Package gateway speaks the remote-script control protocol: one TCP
// connection per request, a single JSON object terminated by a newline in
// each direction. It also provides an adapter exposing the remote object
// graph through the interfaces in internal/live.
package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout = 3 * time.Second
	pingTimeout    = 1500 * time.Millisecond

	// Read-only actions are retried on transport failure; mutating actions
	// never are, since the first attempt may have landed.
	readRetryAttempts = 3
)

var (
	// ErrUnavailable marks connection and I/O failures.
	ErrUnavailable = errors.New("gateway unavailable")
	// ErrTimeout marks a request that exceeded its deadline.
	ErrTimeout = errors.New("gateway timeout")
)

// readOnlyActions lists the actions safe to retry after a transport failure.
var readOnlyActions = map[string]bool{
	"ping":                  true,
	"get_tracks":            true,
	"get_selected_track":    true,
	"get_track_devices":     true,
	"get_device_parameters": true,
	"get_parameter_value":   true,
	"str_for_value":         true,
	"get_browser_tree":      true,
}

// Client issues requests against a remote-script gateway endpoint.
type Client struct {
	host    string
	port    int
	timeout time.Duration
	log     *logrus.Logger

	// dial is swapped in tests.
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// NewClient builds a client for the given endpoint. A zero timeout selects
// the default; a nil logger logs to the logrus standard logger.
func NewClient(host string, port int, timeout time.Duration, log *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		host:    host,
		port:    port,
		timeout: timeout,
		log:     log,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
	}
}

// Host returns the configured gateway host.
func (c *Client) Host() string { return c.host }

// Port returns the configured gateway port.
func (c *Client) Port() int { return c.port }

// Response is the envelope every gateway action answers with. Action-specific
// fields ride alongside the envelope and are decoded from Raw by the caller.
type Response struct {
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`

	Raw json.RawMessage `json:"-"`
}

// FailureMessage picks the most specific error text out of the envelope.
func (r *Response) FailureMessage() string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Message != "":
		return r.Message
	default:
		return "gateway action failed"
	}
}

// Do sends one action request and returns the decoded response envelope.
// Read-only actions are retried up to three times on transport failure with
// a short jittered backoff; an envelope with ok=false is a protocol-level
// answer and is returned without error.
func (c *Client) Do(ctx context.Context, action string, params map[string]any) (*Response, error) {
	attempts := 1
	if readOnlyActions[action] {
		attempts = readRetryAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.roundTrip(ctx, action, params)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt < attempts {
			c.log.WithFields(logrus.Fields{
				"action":  action,
				"attempt": attempt,
			}).Debug("gateway request failed, retrying")
			select {
			case <-time.After(retryDelay(attempt)):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
		}
	}
	return nil, lastErr
}

// Ping reports whether the gateway answers its health action within a short
// deadline.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	resp, err := c.Do(ctx, "ping", nil)
	return err == nil && resp.OK
}

func (c *Client) roundTrip(ctx context.Context, action string, params map[string]any) (*Response, error) {
	payload := map[string]any{"action": action}
	for k, v := range params {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", action, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", classifyNetErr(err), addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(append(raw, '\n')); err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", classifyNetErr(err), action, err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, fmt.Errorf("%w: read %s: %v", classifyNetErr(err), action, err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s returned invalid json: %v", ErrUnavailable, action, err)
	}
	resp.Raw = append([]byte(nil), line...)
	return &resp, nil
}

// DecodeInto decodes the action-specific fields of a response into out.
func (r *Response) DecodeInto(out any) error {
	if err := json.Unmarshal(r.Raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func classifyNetErr(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrUnavailable
}

// retryDelay backs off 200ms, then 400ms, with up to 50ms of jitter.
func retryDelay(attempt int) time.Duration {
	base := 200 * time.Millisecond
	if attempt > 1 {
		base = 400 * time.Millisecond
	}
	return base + time.Duration(rand.Int63n(int64(50*time.Millisecond)))
}
