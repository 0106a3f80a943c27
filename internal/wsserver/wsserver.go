// Package wsserver implements the WebSocket Session Handler (§4.J): two
// upgrade endpoints, each running a per-socket authenticate/register/
// dispatch/teardown loop.
//
// Grounded on internal/api/server.go's gorilla/mux routing + middleware +
// responseWriter idiom for the HTTP glue, and internal/api/client.go's
// gorilla/websocket read-loop-with-heartbeat idiom, generalized from
// client-side Dialer use to a server-side Upgrader (the teacher has no
// direct server-side example; this is the weakest-grounded adaptation, noted
// in DESIGN.md).
package wsserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"superagent/internal/bridge"
	"superagent/internal/eventbus"
	"superagent/internal/metrics"
	"superagent/internal/orchestrator"
	"superagent/internal/registry"
	"superagent/internal/store"
)

const authDeadline = 30 * time.Second

// TokenValidator is the external collaborator that turns a bearer token
// into a user. JWT issuance/validation itself is out of scope (§1).
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*store.User, error)
}

// Server owns the two upgrade endpoints and wires them to the Connection
// Registry and Event Bus.
type Server struct {
	registry  *registry.Registry
	bus       *eventbus.Bus
	store     *store.Store
	validator TokenValidator
	orch      *orchestrator.Orchestrator
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader
	log       *logrus.Entry
}

// New constructs a Server. log and mtr may be nil; mtr defaults to a fresh,
// unshared registry.
func New(reg *registry.Registry, bus *eventbus.Bus, st *store.Store, validator TokenValidator, orch *orchestrator.Orchestrator, mtr *metrics.Metrics, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	if mtr == nil {
		mtr = metrics.New()
	}
	return &Server{
		registry:  reg,
		bus:       bus,
		store:     st,
		validator: validator,
		orch:      orch,
		metrics:   mtr,
		upgrader:  websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		log:       log,
	}
}

// Router builds the gorilla/mux router exposing the two upgrade endpoints,
// reusing the teacher's subrouter + logging-middleware layout. Prometheus
// exposition serving is explicitly out of scope (§1) — Metrics() hands the
// registered handler to whatever external HTTP layer wants to mount it;
// this router never mounts it itself.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.HandleFunc("/", s.handleGeneral)
	r.HandleFunc("/deployments/{id}/logs", s.handleDeploymentLogs)
	return r
}

// Metrics returns the metrics registry this server's collaborators record
// to, for an external HTTP layer to mount (§1 scopes exposition serving
// out; the orchestrator/scanner still produce real measurements).
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debugf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

// envelope is the generic `{type, timestamp, data}` server->client message.
type envelope struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

func newEnvelope(typ string, data interface{}) envelope {
	return envelope{Type: typ, Timestamp: time.Now(), Data: data}
}

// clientMessage is the generic shape of a client->server JSON frame.
type clientMessage struct {
	Type         string `json:"type"`
	Token        string `json:"token,omitempty"`
	EventType    string `json:"event_type,omitempty"`
	DeploymentID string `json:"deployment_id,omitempty"`
}

// handleGeneral implements §4.J's general endpoint (`/`).
func (s *Server) handleGeneral(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	socket := registry.Wrap(conn)

	conn.SetReadDeadline(time.Now().Add(authDeadline))
	var authMsg clientMessage
	if err := conn.ReadJSON(&authMsg); err != nil || authMsg.Type != "auth" || authMsg.Token == "" {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(1008, "malformed auth frame"), time.Now().Add(time.Second))
		return
	}

	user, err := s.validator.Validate(r.Context(), authMsg.Token)
	if err != nil || user == nil || !user.IsActive {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(1008, "authentication failed"), time.Now().Add(time.Second))
		return
	}
	conn.SetReadDeadline(time.Time{})

	s.registry.AddConnection(user.ID, socket)
	s.registry.Subscribe(user.ID, eventbus.Kind(bridge.DeploymentStatusChanged))
	defer func() {
		s.registry.RemoveConnection(user.ID, socket)
		s.bus.Publish(eventbus.NewEvent(eventbus.AuthLogout, user.ID, map[string]interface{}{"user_id": user.ID}))
	}()

	conn.WriteJSON(newEnvelope("AUTH_LOGIN_SUCCESS", map[string]interface{}{"user_id": user.ID}))
	s.bus.Publish(eventbus.NewEvent(eventbus.AuthLoginSuccess, user.ID, map[string]interface{}{"user_id": user.ID}))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.dispatch(conn, user, data)
	}
}

func (s *Server) dispatch(conn *websocket.Conn, user *store.User, data []byte) {
	text := string(data)
	if text == "ping" {
		conn.WriteJSON(map[string]interface{}{"type": "pong", "timestamp": time.Now()})
		return
	}

	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		conn.WriteJSON(newEnvelope("text_received", map[string]interface{}{"data": text}))
		return
	}

	switch msg.Type {
	case "subscribe":
		s.registry.Subscribe(user.ID, eventbus.Kind(msg.EventType))
		conn.WriteJSON(newEnvelope("subscribed", map[string]interface{}{"event_type": msg.EventType}))
	case "unsubscribe":
		s.registry.Unsubscribe(user.ID, eventbus.Kind(msg.EventType))
		conn.WriteJSON(newEnvelope("unsubscribed", map[string]interface{}{"event_type": msg.EventType}))
	case "deployment_logs":
		s.registry.SubscribeDeployment(user.ID, msg.DeploymentID)
		conn.WriteJSON(newEnvelope("logs_subscribed", map[string]interface{}{"deployment_id": msg.DeploymentID}))
	default:
		conn.WriteJSON(newEnvelope("message_received", map[string]interface{}{"type": msg.Type}))
	}
}

// handleDeploymentLogs implements §4.J's `/deployments/{id}/logs` endpoint.
func (s *Server) handleDeploymentLogs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	deploymentID := vars["id"]
	token := r.URL.Query().Get("token")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	socket := registry.Wrap(conn)

	user, err := s.validator.Validate(r.Context(), token)
	if err != nil || user == nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(1008, "authentication failed"), time.Now().Add(time.Second))
		return
	}

	deployment, err := s.store.Deployments.GetByID(r.Context(), deploymentID)
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(1008, "deployment not found"), time.Now().Add(time.Second))
		return
	}
	if deployment.OrganizationID != user.OrganizationID && !user.IsSuperuser {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(1008, "not authorized"), time.Now().Add(time.Second))
		return
	}

	s.registry.AddDeploymentConnection(deploymentID, socket)
	defer s.registry.RemoveDeploymentConnection(deploymentID, socket)

	conn.WriteJSON(newEnvelope("status", map[string]interface{}{
		"status":        deployment.Status,
		"deployment_id": deployment.ID,
		"name":          deployment.Name,
	}))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.TextMessage && string(data) == "ping" {
			conn.WriteJSON(map[string]interface{}{"type": "pong", "timestamp": time.Now()})
		}
	}
}
