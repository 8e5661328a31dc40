package models

import (
	"fmt"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/wayfinder/floorplan"
	"github.com/aukilabs/wayfinder/pathfinder"
	"github.com/google/uuid"
)

const (
	// ErrTypeRouteNotDesignated is the type of the error returned when a
	// route is requested before both its start and its end are set.
	ErrTypeRouteNotDesignated = "route_not_designated"
)

// FloorPlanConfig describes the region covered by a session floor plan.
type FloorPlanConfig struct {
	Origin floorplan.Vector2
	Extent float64
	Depth  int
}

// DefaultFloorPlanConfig covers a 160 meters wide square centered on the
// tracking origin, with cells of 62.5 centimeters.
func DefaultFloorPlanConfig() FloorPlanConfig {
	return FloorPlanConfig{
		Origin: floorplan.Vector2{X: -80, Y: -80},
		Extent: 160,
		Depth:  8,
	}
}

// Session represents a navigation session: a floor plan discovered from the
// poses of its clients and an optional route between two designated points.
type Session struct {
	ID          uint32
	SessionUUID string

	FloorPlan *floorplan.QuadTree

	pathFinder *pathfinder.PathFinder

	routeMutex sync.RWMutex
	startPoint *floorplan.Vector3
	endPoint   *floorplan.Vector3
	route      []floorplan.Vector2
	routeErr   error

	subscriberIDs   SequentialIDGenerator
	subscriberMutex sync.RWMutex
	subscribers     map[uint32]func()

	closeOnce sync.Once
}

func NewSession(id uint32, conf FloorPlanConfig, opts ...pathfinder.Option) *Session {
	floorPlan := floorplan.NewQuadTree(conf.Origin, conf.Extent, conf.Depth)

	s := &Session{
		ID:          id,
		SessionUUID: uuid.New().String(),
		FloorPlan:   floorPlan,
		pathFinder:  pathfinder.New(floorPlan, opts...),
		routeErr:    errRouteNotDesignated(),
		subscribers: make(map[uint32]func()),
	}

	floorPlan.SetListener(s.notify)
	return s
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.FloorPlan.SetListener(nil)

		s.subscriberMutex.Lock()
		defer s.subscriberMutex.Unlock()
		s.subscribers = make(map[uint32]func())
	})
}

// UpdatePose records a tracked position. Its ground plane projection is
// marked as visited.
func (s *Session) UpdatePose(p floorplan.Vector3) {
	s.FloorPlan.MarkVisitedAndNotify(p.GroundPlane())
}

// SetStartPoint designates the start of the route. The point is marked as
// visited and the route is computed again when an end point is set.
func (s *Session) SetStartPoint(p floorplan.Vector3) ([]floorplan.Vector2, error) {
	s.FloorPlan.MarkVisitedAndNotify(p.GroundPlane())

	s.routeMutex.Lock()
	defer s.routeMutex.Unlock()

	s.startPoint = &p
	return s.updateRoute()
}

// SetEndPoint designates the end of the route. The point is marked as
// visited and the route is computed again when a start point is set.
func (s *Session) SetEndPoint(p floorplan.Vector3) ([]floorplan.Vector2, error) {
	s.FloorPlan.MarkVisitedAndNotify(p.GroundPlane())

	s.routeMutex.Lock()
	defer s.routeMutex.Unlock()

	s.endPoint = &p
	return s.updateRoute()
}

func (s *Session) updateRoute() ([]floorplan.Vector2, error) {
	if s.startPoint == nil || s.endPoint == nil {
		s.route, s.routeErr = nil, errRouteNotDesignated()
		return nil, s.routeErr
	}

	s.route, s.routeErr = s.pathFinder.FindPath3D(*s.startPoint, *s.endPoint)
	instrumentRouteUpdate(s.routeErr)
	return s.route, s.routeErr
}

// Route returns the result of the last route computation.
func (s *Session) Route() ([]floorplan.Vector2, error) {
	s.routeMutex.RLock()
	defer s.routeMutex.RUnlock()

	return s.route, s.routeErr
}

// RefreshRoute computes the route again with the current floor plan.
func (s *Session) RefreshRoute() ([]floorplan.Vector2, error) {
	s.routeMutex.Lock()
	defer s.routeMutex.Unlock()

	return s.updateRoute()
}

func (s *Session) StartPoint() (floorplan.Vector3, bool) {
	s.routeMutex.RLock()
	defer s.routeMutex.RUnlock()

	if s.startPoint == nil {
		return floorplan.Vector3{}, false
	}
	return *s.startPoint, true
}

func (s *Session) EndPoint() (floorplan.Vector3, bool) {
	s.routeMutex.RLock()
	defer s.routeMutex.RUnlock()

	if s.endPoint == nil {
		return floorplan.Vector3{}, false
	}
	return *s.endPoint, true
}

// FindPath runs a one-off path search that does not touch the session route.
func (s *Session) FindPath(from, to floorplan.Vector3) ([]floorplan.Vector2, error) {
	return s.pathFinder.FindPath3D(from, to)
}

// Clear forgets the discovered floor plan and the route designations.
func (s *Session) Clear() {
	s.routeMutex.Lock()
	s.startPoint = nil
	s.endPoint = nil
	s.route, s.routeErr = nil, errRouteNotDesignated()
	s.routeMutex.Unlock()

	s.FloorPlan.Clear()
}

// Subscribe registers a function called each time a new cell of the floor
// plan becomes occupied. The returned function unregisters it.
func (s *Session) Subscribe(h func()) (cancel func()) {
	s.subscriberMutex.Lock()
	defer s.subscriberMutex.Unlock()

	id := s.subscriberIDs.New()
	s.subscribers[id] = h

	return func() {
		s.subscriberMutex.Lock()
		defer s.subscriberMutex.Unlock()

		if _, ok := s.subscribers[id]; !ok {
			return
		}
		delete(s.subscribers, id)
		s.subscriberIDs.Reuse(id)
	}
}

func (s *Session) SubscriberCount() int {
	s.subscriberMutex.RLock()
	defer s.subscriberMutex.RUnlock()

	return len(s.subscribers)
}

func (s *Session) notify() {
	s.subscriberMutex.RLock()
	defer s.subscriberMutex.RUnlock()

	for _, h := range s.subscribers {
		h()
	}
}

func IsRouteNotDesignated(err error) bool {
	return errors.IsType(err, ErrTypeRouteNotDesignated)
}

func errRouteNotDesignated() error {
	return errors.New("route start and end are not both designated").
		WithType(ErrTypeRouteNotDesignated)
}

type SessionStore struct {
	// The prefix of the global session ids.
	ServerID string

	// The floor plan given to new sessions.
	FloorPlan FloorPlanConfig

	// The path finder options given to new sessions.
	PathFinderOptions []pathfinder.Option

	initOnce sync.Once
	mutex    sync.RWMutex
	sessions map[string]*Session
	ids      SequentialIDGenerator
}

func (s *SessionStore) init() {
	s.sessions = map[string]*Session{}

	if s.ServerID == "" {
		s.ServerID = "wayfinder"
	}
	if s.FloorPlan.Extent == 0 {
		s.FloorPlan = DefaultFloorPlanConfig()
	}
}

// NewID returns an unused session id.
func (s *SessionStore) NewID() uint32 {
	return s.ids.New()
}

// New creates a session and adds it to the store.
func (s *SessionStore) New() *Session {
	s.initOnce.Do(s.init)

	session := NewSession(s.NewID(), s.FloorPlan, s.PathFinderOptions...)
	s.Add(session)
	return session
}

func (s *SessionStore) Add(session *Session) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sessions[s.GlobalSessionID(session.ID)] = session

	instrumentIncreaseSessionGauge()
	instrumentCountSession()
}

func (s *SessionStore) Remove(session *Session) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := s.GlobalSessionID(session.ID)
	if _, ok := s.sessions[id]; !ok {
		return
	}

	delete(s.sessions, id)
	session.Close()
	s.ids.Reuse(session.ID)

	instrumentDecreaseSessionGauge()
}

func (s *SessionStore) GetByGlobalID(v string) (*Session, bool) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.sessions[v]
	return session, ok
}

func (s *SessionStore) Count() int {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.sessions)
}

func (s *SessionStore) GlobalSessionID(sessionID uint32) string {
	s.initOnce.Do(s.init)
	return fmt.Sprintf("%sx%x", s.ServerID, sessionID)
}
