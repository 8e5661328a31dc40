package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/wayfinder/featureflag"
	"github.com/aukilabs/wayfinder/floorplan"
	"github.com/aukilabs/wayfinder/models"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// HeaderClientID is the request header that identifies a client across
// connections.
const HeaderClientID = "X-Wayfinder-Client-Id"

// RealtimeHandler streams the floor plan and route of a session to a
// connected client, and applies the poses and designations it sends.
type RealtimeHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The store that contains all the server sessions.
	Sessions *models.SessionStore

	// The session the connection is bound to.
	Session *models.Session

	FeatureFlags featureflag.FeatureFlag

	conn     *websocket.Conn
	clientID string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	h.conn = conn
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		RequestID: msg.RequestID,
		Timestamp: time.Now(),
	})
	return nil
}

func (h *RealtimeHandler) HandlePose(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.Position == nil {
		respond.Send(newErrorMsg(msg.RequestID, errMissingField("position")))
		return nil
	}

	h.Session.UpdatePose(*msg.Position)
	return nil
}

func (h *RealtimeHandler) HandleStart(ctx context.Context, respond ResponseSender, msg Msg) error {
	return h.designate(respond, msg, h.Session.SetStartPoint)
}

func (h *RealtimeHandler) HandleEnd(ctx context.Context, respond ResponseSender, msg Msg) error {
	return h.designate(respond, msg, h.Session.SetEndPoint)
}

func (h *RealtimeHandler) designate(respond ResponseSender, msg Msg, set func(floorplan.Vector3) ([]floorplan.Vector2, error)) error {
	if msg.Position == nil {
		respond.Send(newErrorMsg(msg.RequestID, errMissingField("position")))
		return nil
	}

	route, err := set(*msg.Position)
	respond.Send(newRouteMsg(MsgTypeRoute, msg.RequestID, route, err))
	return nil
}

func (h *RealtimeHandler) HandlePathRequest(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.From == nil || msg.To == nil {
		respond.Send(newErrorMsg(msg.RequestID, errMissingField("from/to")))
		return nil
	}

	path, err := h.Session.FindPath(*msg.From, *msg.To)
	respond.Send(newRouteMsg(MsgTypePathResponse, msg.RequestID, path, err))
	return nil
}

func (h *RealtimeHandler) HandleMapUpdate(ctx context.Context, respond ResponseSender) error {
	h.FeatureFlags.IfNotSet(featureflag.FlagDisableMapUpdateBroadcast, func() {
		respond.Send(Msg{
			Type:      MsgTypeMapUpdated,
			Timestamp: time.Now(),
			Occupied:  h.Session.FloorPlan.OccupiedCount(),
		})
	})
	return nil
}

func (h *RealtimeHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *RealtimeHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetSessions() *models.SessionStore {
	return h.Sessions
}

func (h *RealtimeHandler) CurrentSession() *models.Session {
	return h.Session
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

// HandleSessionStream returns an HTTP handler that upgrades requests on a
// session path to a stream bound to that session. The session id is read
// from the "id" path value.
func HandleSessionStream(ctx context.Context, sessions *models.SessionStore, newHandler func(*models.Session) Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessions.GetByGlobalID(r.PathValue("id"))
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		websocket.Server{
			// Native clients do not send an Origin header.
			Handshake: func(*websocket.Config, *http.Request) error {
				return nil
			},
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				h := newHandler(session)
				defer h.Close()

				Handle(ctx, conn, h)
			},
		}.ServeHTTP(w, r)
	}
}

func newRouteMsg(t MsgType, requestID uint32, waypoints []floorplan.Vector2, err error) Msg {
	msg := Msg{
		Type:      t,
		RequestID: requestID,
		Timestamp: time.Now(),
		Waypoints: waypoints,
	}

	if err != nil {
		msg.Error = errors.Type(err)
		msg.Message = err.Error()
	}
	return msg
}

func errMissingField(name string) error {
	return errors.New("missing message field").
		WithType(ErrTypeMsgInvalid).
		WithTag("field", name)
}
