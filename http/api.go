package http

import (
	"io"
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/wayfinder/floorplan"
	"github.com/aukilabs/wayfinder/models"
	"github.com/aukilabs/wayfinder/pathfinder"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeSessionNotFound = "session_not_found"
	ErrTypeBadRequest      = "bad_request"

	// The maximum size of a request body.
	maxBodySize = 1 << 20
)

type sessionResponse struct {
	SessionID   string `json:"session_id"`
	SessionUUID string `json:"session_uuid"`
}

type posesRequest struct {
	Poses []floorplan.Vector3 `json:"poses"`
}

type posesResponse struct {
	Occupied int `json:"occupied"`
}

type pathRequest struct {
	From floorplan.Vector3 `json:"from"`
	To   floorplan.Vector3 `json:"to"`
}

type waypointsResponse struct {
	Waypoints []floorplan.Vector2 `json:"waypoints"`
}

type cellsResponse struct {
	Unit  float64             `json:"unit"`
	Cells []floorplan.Vector2 `json:"cells"`
}

type polygonResponse struct {
	Vertices []floorplan.Vector2 `json:"vertices"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// API serves the navigation sessions over JSON endpoints.
type API struct {
	Sessions *models.SessionStore
}

// Register adds the session endpoints to the given mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /sessions", a.handleCreateSession)
	mux.HandleFunc("DELETE /sessions/{id}", a.withSession(a.handleDeleteSession))
	mux.HandleFunc("POST /sessions/{id}/poses", a.withSession(a.handlePoses))
	mux.HandleFunc("PUT /sessions/{id}/start", a.withSession(a.handleDesignation((*models.Session).SetStartPoint)))
	mux.HandleFunc("PUT /sessions/{id}/end", a.withSession(a.handleDesignation((*models.Session).SetEndPoint)))
	mux.HandleFunc("GET /sessions/{id}/route", a.withSession(a.handleRoute))
	mux.HandleFunc("POST /sessions/{id}/path", a.withSession(a.handlePath))
	mux.HandleFunc("GET /sessions/{id}/cells", a.withSession(a.handleCells))
	mux.HandleFunc("GET /sessions/{id}/polygon", a.withSession(a.handlePolygon))
	mux.HandleFunc("GET /sessions/{id}/debug", a.withSession(a.handleDebug))
	mux.HandleFunc("POST /sessions/{id}/clear", a.withSession(a.handleClear))
}

func (a *API) withSession(h func(http.ResponseWriter, *http.Request, *models.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		session, ok := a.Sessions.GetByGlobalID(id)
		if !ok {
			writeError(w, errors.New("session not found").
				WithType(ErrTypeSessionNotFound).
				WithTag("session_id", id))
			return
		}

		h(w, r, session)
	}
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := a.Sessions.New()
	id := a.Sessions.GlobalSessionID(session.ID)

	logs.WithTag("session_id", id).
		WithTag("session_uuid", session.SessionUUID).
		Info("session created")

	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID:   id,
		SessionUUID: session.SessionUUID,
	})
}

func (a *API) handleDeleteSession(w http.ResponseWriter, r *http.Request, session *models.Session) {
	a.Sessions.Remove(session)

	logs.WithTag("session_id", a.Sessions.GlobalSessionID(session.ID)).
		Info("session deleted")

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePoses(w http.ResponseWriter, r *http.Request, session *models.Session) {
	var req posesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	for _, p := range req.Poses {
		session.UpdatePose(p)
	}

	writeJSON(w, http.StatusOK, posesResponse{
		Occupied: session.FloorPlan.OccupiedCount(),
	})
}

func (a *API) handleDesignation(designate func(*models.Session, floorplan.Vector3) ([]floorplan.Vector2, error)) func(http.ResponseWriter, *http.Request, *models.Session) {
	return func(w http.ResponseWriter, r *http.Request, session *models.Session) {
		var p floorplan.Vector3
		if err := decodeBody(r, &p); err != nil {
			writeError(w, err)
			return
		}

		route, err := designate(session, p)
		if errors.IsType(err, models.ErrTypeRouteNotDesignated) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeRoute(w, route, err)
	}
}

func (a *API) handleRoute(w http.ResponseWriter, r *http.Request, session *models.Session) {
	route, err := session.Route()
	writeRoute(w, route, err)
}

func (a *API) handlePath(w http.ResponseWriter, r *http.Request, session *models.Session) {
	var req pathRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	path, err := session.FindPath(req.From, req.To)
	writeRoute(w, path, err)
}

func (a *API) handleCells(w http.ResponseWriter, r *http.Request, session *models.Session) {
	writeJSON(w, http.StatusOK, cellsResponse{
		Unit:  session.FloorPlan.Unit(),
		Cells: nonNil(session.FloorPlan.OccupiedCells()),
	})
}

func (a *API) handlePolygon(w http.ResponseWriter, r *http.Request, session *models.Session) {
	writeJSON(w, http.StatusOK, polygonResponse{
		Vertices: nonNil(session.FloorPlan.OccupiedPolygon()),
	})
}

func (a *API) handleDebug(w http.ResponseWriter, r *http.Request, session *models.Session) {
	writeJSON(w, http.StatusOK, session.FloorPlan.DebugInfo())
}

func (a *API) handleClear(w http.ResponseWriter, r *http.Request, session *models.Session) {
	session.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(r *http.Request, v any) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.New("reading request body failed").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}

	if err := json.Unmarshal(b, v); err != nil {
		return errors.New("invalid request body").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}
	return nil
}

func writeRoute(w http.ResponseWriter, waypoints []floorplan.Vector2, err error) {
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, waypointsResponse{
		Waypoints: nonNil(waypoints),
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := statusCode(err)
	entry := logs.WithTag("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error(err)
	} else {
		entry.Debug(err)
	}

	writeJSON(w, status, errorResponse{
		Error:   errors.Type(err),
		Message: err.Error(),
	})
}

func statusCode(err error) int {
	switch errors.Type(err) {
	case ErrTypeSessionNotFound:
		return http.StatusNotFound

	case ErrTypeBadRequest:
		return http.StatusBadRequest

	case pathfinder.ErrTypeRegionNotMapped, models.ErrTypeRouteNotDesignated:
		return http.StatusConflict

	case pathfinder.ErrTypeNoPathFound:
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(b)
}

func nonNil(v []floorplan.Vector2) []floorplan.Vector2 {
	if v == nil {
		return []floorplan.Vector2{}
	}
	return v
}
