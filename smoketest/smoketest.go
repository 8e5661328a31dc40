package smoketest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/wayfinder/floorplan"
	wwebsocket "github.com/aukilabs/wayfinder/websocket"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	defaultTimeout = time.Second * 10
)

// The smoke test walks this corridor, then asks for a route from its first
// to its last point.
var corridor = []floorplan.Vector3{
	{X: 0.1, Y: 1.5, Z: 0.1},
	{X: 0.8, Y: 1.5, Z: 0.1},
	{X: 1.4, Y: 1.5, Z: 0.1},
	{X: 2.0, Y: 1.5, Z: 0.1},
}

type Options struct {
	// The endpoint of the server running the smoke test.
	Endpoint string

	UserAgent string

	// Receives the result of each smoke test.
	SendResult func(context.Context, Result) error
}

type Request struct {
	// The endpoint of the tested server. Defaults to Options.Endpoint.
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

type Result struct {
	FromEndpoint    string  `json:"from_endpoint"`
	ToEndpoint      string  `json:"to_endpoint"`
	Status          string  `json:"status"`
	LatencyMilliSec float64 `json:"latency_ms"`
	Waypoints       int     `json:"waypoints"`
	Error           string  `json:"error,omitempty"`
}

// HandleSmokeTest starts a smoke test against the requested endpoint. The
// result is reported asynchronously with Options.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req Request
		if len(b) != 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}
		if req.Endpoint == "" {
			req.Endpoint = opts.Endpoint
		}

		go func() {
			res, err := Run(ctx, RunOptions{
				FromEndpoint: opts.Endpoint,
				ToEndpoint:   req.Endpoint,
				UserAgent:    opts.UserAgent,
				Timeout:      req.Timeout,
			})
			if err != nil {
				logs.Warn(err)
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

type RunOptions struct {
	FromEndpoint string
	ToEndpoint   string
	UserAgent    string
	Timeout      time.Duration
}

// Run creates a session on the tested server, streams a short walk to it and
// checks that the route between both ends of the walk is found. The session is
// deleted afterwards.
func Run(ctx context.Context, opts RunOptions) (Result, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	res := Result{
		FromEndpoint: opts.FromEndpoint,
		ToEndpoint:   opts.ToEndpoint,
		Status:       StatusFailed,
	}

	start := time.Now()
	waypoints, err := run(ctx, opts)
	if err != nil {
		res.Error = err.Error()
		return res, errors.New("smoke test failed").
			WithTag("from_endpoint", opts.FromEndpoint).
			WithTag("to_endpoint", opts.ToEndpoint).
			Wrap(err)
	}

	res.Status = StatusSuccess
	res.LatencyMilliSec = float64(time.Since(start).Microseconds()) / 1000
	res.Waypoints = waypoints
	return res, nil
}

func run(ctx context.Context, opts RunOptions) (int, error) {
	endpoint := strings.TrimSuffix(opts.ToEndpoint, "/")
	client := smokeTestClient{
		endpoint:  endpoint,
		userAgent: opts.UserAgent,
	}

	sessionID, err := client.createSession(ctx)
	if err != nil {
		return 0, err
	}
	defer client.deleteSession(context.Background(), sessionID)

	config, err := websocket.NewConfig(
		strings.Replace(endpoint, "http", "ws", 1)+"/sessions/"+sessionID+"/stream",
		endpoint,
	)
	if err != nil {
		return 0, errors.New("creating websocket config failed").Wrap(err)
	}
	config.Header.Set("User-Agent", opts.UserAgent)

	conn, err := config.DialContext(ctx)
	if err != nil {
		return 0, errors.New("dialing session stream failed").Wrap(err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	for _, p := range corridor {
		if _, err := wwebsocket.Send(conn, wwebsocket.Msg{
			Type:     wwebsocket.MsgTypePose,
			Position: &p,
		}); err != nil {
			return 0, errors.New("sending pose failed").Wrap(err)
		}
	}

	designations := []wwebsocket.Msg{
		{Type: wwebsocket.MsgTypeStart, RequestID: 1, Position: &corridor[0]},
		{Type: wwebsocket.MsgTypeEnd, RequestID: 2, Position: &corridor[len(corridor)-1]},
	}
	for _, msg := range designations {
		if _, err := wwebsocket.Send(conn, msg); err != nil {
			return 0, errors.New("sending route designation failed").Wrap(err)
		}
	}

	for {
		msg, _, err := wwebsocket.Receive(conn)
		if err != nil {
			return 0, errors.New("receiving route failed").Wrap(err)
		}

		if msg.Type != wwebsocket.MsgTypeRoute || msg.RequestID != 2 {
			continue
		}
		if msg.Error != "" {
			return 0, errors.New("route not found").
				WithTag("error_type", msg.Error).
				WithTag("message", msg.Message)
		}
		if len(msg.Waypoints) != len(corridor)-1 {
			return 0, errors.New("unexpected route").
				WithTag("waypoints", msg.Waypoints)
		}
		return len(msg.Waypoints), nil
	}
}

type smokeTestClient struct {
	endpoint  string
	userAgent string
}

func (c smokeTestClient) createSession(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/sessions", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", errors.New("creating session failed").
			WithTag("status_code", resp.StatusCode)
	}

	var res struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", errors.New("decoding session failed").Wrap(err)
	}
	return res.SessionID, nil
}

func (c smokeTestClient) deleteSession(ctx context.Context, sessionID string) {
	resp, err := c.do(ctx, http.MethodDelete, "/sessions/"+sessionID, nil)
	if err != nil {
		logs.Warn(errors.New("deleting smoke test session failed").Wrap(err))
		return
	}
	resp.Body.Close()
}

func (c smokeTestClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New("creating request failed").Wrap(err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.New("sending request failed").
			WithTag("method", method).
			WithTag("path", path).
			Wrap(err)
	}
	return resp, nil
}
