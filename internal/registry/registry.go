// Package registry implements the Connection Registry (§4.F): an in-memory
// index from users and event kinds to open WebSocket handles, guarded by a
// single lock, with dead-socket eviction on first failed send.
//
// Grounded on internal/docker/docker.go's sync.RWMutex-guarded map idiom,
// generalized from container caches to socket/subscription indices.
package registry

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"superagent/internal/eventbus"
)

// Socket is the minimal send surface the registry needs from a WebSocket
// connection, so tests can substitute a fake without a real network socket.
type Socket interface {
	WriteJSON(v interface{}) error
}

// gorillaSocket adapts *websocket.Conn to Socket.
type gorillaSocket struct{ conn *websocket.Conn }

// Wrap adapts a gorilla websocket connection to the registry's Socket
// interface.
func Wrap(conn *websocket.Conn) Socket { return &gorillaSocket{conn: conn} }

func (g *gorillaSocket) WriteJSON(v interface{}) error { return g.conn.WriteJSON(v) }

// Registry holds the four index maps from §4.F.
type Registry struct {
	mu sync.Mutex

	userConnections     map[string]map[Socket]struct{}
	userSubscriptions   map[string]map[eventbus.Kind]struct{}
	deploymentSubscribers map[string]map[string]struct{} // deploymentID -> set<userID>
	deploymentConnections map[string]map[Socket]struct{} // deploymentID -> set<socket>

	log *logrus.Entry
}

// New returns an empty Registry.
func New(log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Registry{
		userConnections:       make(map[string]map[Socket]struct{}),
		userSubscriptions:     make(map[string]map[eventbus.Kind]struct{}),
		deploymentSubscribers: make(map[string]map[string]struct{}),
		deploymentConnections: make(map[string]map[Socket]struct{}),
		log:                   log,
	}
}

// AddConnection registers socket as belonging to user.
func (r *Registry) AddConnection(userID string, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userConnections[userID] == nil {
		r.userConnections[userID] = make(map[Socket]struct{})
	}
	r.userConnections[userID][s] = struct{}{}
}

// RemoveConnection removes socket from user's set, dropping the user entry
// entirely once empty.
func (r *Registry) RemoveConnection(userID string, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeConnectionLocked(userID, s)
}

func (r *Registry) removeConnectionLocked(userID string, s Socket) {
	set, ok := r.userConnections[userID]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(r.userConnections, userID)
		delete(r.userSubscriptions, userID)
	}
}

// Subscribe registers user's interest in kind.
func (r *Registry) Subscribe(userID string, kind eventbus.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userSubscriptions[userID] == nil {
		r.userSubscriptions[userID] = make(map[eventbus.Kind]struct{})
	}
	r.userSubscriptions[userID][kind] = struct{}{}
}

// Unsubscribe removes user's interest in kind.
func (r *Registry) Unsubscribe(userID string, kind eventbus.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.userSubscriptions[userID]; ok {
		delete(set, kind)
	}
}

// SubscribeDeployment registers user as a log subscriber of deploymentID.
func (r *Registry) SubscribeDeployment(userID, deploymentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deploymentSubscribers[deploymentID] == nil {
		r.deploymentSubscribers[deploymentID] = make(map[string]struct{})
	}
	r.deploymentSubscribers[deploymentID][userID] = struct{}{}
}

// AddDeploymentConnection registers socket under the deployment-logs-only
// index used by the §4.J deployment-logs endpoint.
func (r *Registry) AddDeploymentConnection(deploymentID string, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deploymentConnections[deploymentID] == nil {
		r.deploymentConnections[deploymentID] = make(map[Socket]struct{})
	}
	r.deploymentConnections[deploymentID][s] = struct{}{}
}

// RemoveDeploymentConnection removes socket from deploymentID's set.
func (r *Registry) RemoveDeploymentConnection(deploymentID string, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeDeploymentConnectionLocked(deploymentID, s)
}

// BroadcastToUser sends msg to every socket of user; sockets whose send
// fails are evicted before the next broadcast cycle.
func (r *Registry) BroadcastToUser(userID string, msg interface{}) {
	r.mu.Lock()
	sockets := socketSlice(r.userConnections[userID])
	r.mu.Unlock()

	var failed []Socket
	for _, s := range sockets {
		if err := s.WriteJSON(msg); err != nil {
			r.log.Warnf("broadcast to user %s failed, evicting socket: %v", userID, err)
			failed = append(failed, s)
		}
	}
	if len(failed) > 0 {
		r.mu.Lock()
		for _, s := range failed {
			r.removeConnectionLocked(userID, s)
		}
		r.mu.Unlock()
	}
}

// BroadcastToEventSubscribers sends msg to every socket of every user
// subscribed to kind.
func (r *Registry) BroadcastToEventSubscribers(kind eventbus.Kind, msg interface{}) {
	r.mu.Lock()
	var targets []string
	for userID, kinds := range r.userSubscriptions {
		if _, ok := kinds[kind]; ok {
			targets = append(targets, userID)
		}
	}
	r.mu.Unlock()

	for _, userID := range targets {
		r.BroadcastToUser(userID, msg)
	}
}

// BroadcastDeploymentLogToSubscribers sends msg to every socket registered
// on the deployment-logs-only index for deploymentID.
func (r *Registry) BroadcastDeploymentLogToSubscribers(deploymentID string, msg interface{}) {
	r.mu.Lock()
	sockets := socketSlice(r.deploymentConnections[deploymentID])
	r.mu.Unlock()

	var failed []Socket
	for _, s := range sockets {
		if err := s.WriteJSON(msg); err != nil {
			failed = append(failed, s)
		}
	}
	if len(failed) > 0 {
		r.mu.Lock()
		for _, s := range failed {
			r.removeDeploymentConnectionLocked(deploymentID, s)
		}
		r.mu.Unlock()
	}
}

func (r *Registry) removeDeploymentConnectionLocked(deploymentID string, s Socket) {
	set, ok := r.deploymentConnections[deploymentID]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(r.deploymentConnections, deploymentID)
	}
}

func socketSlice(set map[Socket]struct{}) []Socket {
	out := make([]Socket, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}
