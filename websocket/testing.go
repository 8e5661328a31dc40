package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/wayfinder/featureflag"
	"github.com/aukilabs/wayfinder/models"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// TestingEnv serves session streams over a test server.
type TestingEnv struct {
	Sessions *models.SessionStore

	server *httptest.Server
	close  func()
}

// Creates a testing environement to test session streams end to end.
func NewTestingEnv(t *testing.T, idleTimeout time.Duration, flags ...string) *TestingEnv {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	sessions := &models.SessionStore{ServerID: "test"}
	featureFlags := featureflag.New(flags)

	ctx, cancel := context.WithCancel(context.Background())

	var mux http.ServeMux
	mux.Handle("GET /sessions/{id}/stream", HandleSessionStream(ctx, sessions, func(s *models.Session) Handler {
		var h Handler = &RealtimeHandler{
			ClientIdleTimeout: idleTimeout,
			Sessions:          sessions,
			Session:           s,
			FeatureFlags:      featureFlags,
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "test")
		return h
	}))

	server := httptest.NewServer(&mux)

	return &TestingEnv{
		Sessions: sessions,
		server:   server,
		close: func() {
			cancel()
			server.Close()

			mutex.Lock()
			defer mutex.Unlock()
			logger = nil
		},
	}
}

// Dial opens a stream on the given session.
func (e *TestingEnv) Dial(sessionID string) (*websocket.Conn, error) {
	config, err := websocket.NewConfig(
		strings.ReplaceAll(e.server.URL, "http://", "ws://")+"/sessions/"+sessionID+"/stream",
		"http://localhost",
	)
	if err != nil {
		return nil, err
	}

	config.Header.Set("User-Agent", "ted")
	config.Header.Set("X-Forwarded-For", "192.0.0.0")
	config.Header.Set(HeaderClientID, uuid.NewString())

	return websocket.DialConfig(config)
}

func (e *TestingEnv) Close() {
	e.close()
}
