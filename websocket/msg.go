package websocket

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/wayfinder/floorplan"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	// ErrTypeMsgInvalid is the type of the error returned when a received
	// frame is not a valid message.
	ErrTypeMsgInvalid = "invalid_msg"

	// ErrTypeMsgUnknown is the type of the error sent back when a message
	// type is not handled.
	ErrTypeMsgUnknown = "unknown_msg"
)

type MsgType string

const (
	// Client messages.
	MsgTypePing        MsgType = "ping"
	MsgTypePose        MsgType = "pose"
	MsgTypeStart       MsgType = "start"
	MsgTypeEnd         MsgType = "end"
	MsgTypePathRequest MsgType = "path_request"

	// Server messages.
	MsgTypePong         MsgType = "pong"
	MsgTypeMapUpdated   MsgType = "map_updated"
	MsgTypeRoute        MsgType = "route"
	MsgTypePathResponse MsgType = "path_response"
	MsgTypeError        MsgType = "error"
)

// Msg is a JSON frame exchanged on a session stream. Only the fields relevant
// to its type are set.
type Msg struct {
	Type      MsgType   `json:"type"`
	RequestID uint32    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Position *floorplan.Vector3 `json:"position,omitempty"`
	From     *floorplan.Vector3 `json:"from,omitempty"`
	To       *floorplan.Vector3 `json:"to,omitempty"`

	Waypoints []floorplan.Vector2 `json:"waypoints,omitempty"`
	Occupied  int                 `json:"occupied,omitempty"`

	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// MarshalJSON always writes the waypoints of a successful route or path
// response, even when there are none.
func (m Msg) MarshalJSON() ([]byte, error) {
	type msg Msg

	if (m.Type != MsgTypeRoute && m.Type != MsgTypePathResponse) || m.Error != "" {
		return json.Marshal(msg(m))
	}

	waypoints := m.Waypoints
	if waypoints == nil {
		waypoints = []floorplan.Vector2{}
	}
	return json.Marshal(struct {
		msg
		Waypoints []floorplan.Vector2 `json:"waypoints"`
	}{
		msg:       msg(m),
		Waypoints: waypoints,
	})
}

func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return string(m.Type)
}

// Receiver reads the next message of a connection. It returns the number of
// bytes read.
type Receiver func() (Msg, int, error)

// Sender writes a message to a connection. It returns the number of bytes
// written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to be sent to the connected client.
type ResponseSender interface {
	Send(Msg)
}

// Receive reads a text frame from conn and decodes it.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var b []byte
	if err := websocket.Message.Receive(conn, &b); err != nil {
		return Msg{}, 0, err
	}

	var msg Msg
	if err := json.Unmarshal(b, &msg); err != nil {
		return Msg{}, len(b), errors.New("decoding message failed").
			WithType(ErrTypeMsgInvalid).
			Wrap(err)
	}
	return msg, len(b), nil
}

// Send encodes msg and writes it to conn as a text frame.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.New("encoding message failed").
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}

	if err := websocket.Message.Send(conn, string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}

func newErrorMsg(requestID uint32, err error) Msg {
	return Msg{
		Type:      MsgTypeError,
		RequestID: requestID,
		Timestamp: time.Now(),
		Error:     errors.Type(err),
		Message:   err.Error(),
	}
}
