package websocket

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/stretchr/testify/require"
)

type scriptedHandler struct {
	*RealtimeHandler

	inbound []Msg
	sent    []Msg
}

func (h *scriptedHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		if len(h.inbound) == 0 {
			return Msg{}, 0, io.EOF
		}

		msg := h.inbound[0]
		h.inbound = h.inbound[1:]
		return msg, 1, nil
	}
}

func (h *scriptedHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		h.sent = append(h.sent, msg)
		return 1, nil
	}
}

func TestHandlerWithLogsCountsReceivedMessages(t *testing.T) {
	h := HandlerWithLogs(&scriptedHandler{
		RealtimeHandler: &RealtimeHandler{},
		inbound: []Msg{
			{Type: MsgTypePose},
			{Type: MsgTypePose},
			{Type: MsgTypePing},
			{},
		},
	}, time.Hour).(*handlerWithLogs)
	defer h.Close()

	receive := h.Receiver()
	for {
		if _, _, err := receive(); err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
	}

	require.Equal(t, map[string]int{
		"pose":    2,
		"ping":    1,
		"unknown": 1,
	}, h.counter)
}

func TestHandlerWithLogsSender(t *testing.T) {
	scripted := &scriptedHandler{RealtimeHandler: &RealtimeHandler{}}
	h := HandlerWithLogs(scripted, time.Hour)
	defer h.Close()

	n, err := h.Sender()(Msg{Type: MsgTypeMapUpdated, Occupied: 3})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, scripted.sent, 1)
	require.Empty(t, h.(*handlerWithLogs).counter)
}

func TestHandlerWithLogsLogSummary(t *testing.T) {
	h := HandlerWithLogs(&RealtimeHandler{clientID: "test-client"}, time.Second).(*handlerWithLogs)
	defer h.Close()
	h.sessionID = "testx1"

	h.incCounter("pose")
	h.incCounter("pose")
	h.incCounter("start")

	var b strings.Builder
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		fmt.Fprint(&b, e)
	})

	h.logSummary()
	require.Empty(t, h.counter)

	out := b.String()
	require.Contains(t, out, `"pose":2`)
	require.Contains(t, out, `"start":1`)
	require.Contains(t, out, fmt.Sprintf(`"%s":"test-client"`, logs.ClientIDTag))
	require.Contains(t, out, `"session_id":"testx1"`)

	b.Reset()
	h.logSummary()
	require.Empty(t, b.String())
}

func TestHandlerWithLogsStartSummaryWorker(t *testing.T) {
	var wg sync.WaitGroup
	var once sync.Once
	var mutex sync.Mutex

	var b strings.Builder
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		fmt.Fprint(&b, e)
		mutex.Unlock()
		once.Do(wg.Done)
	})

	wg.Add(1)
	h := HandlerWithLogs(&RealtimeHandler{}, time.Millisecond).(*handlerWithLogs)
	defer h.Close()

	// A summary is only logged once a message was counted.
	h.incCounter("pose")

	wg.Wait()

	mutex.Lock()
	defer mutex.Unlock()
	require.Contains(t, b.String(), "inbound message summary")
}
