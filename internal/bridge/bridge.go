// Package bridge implements the Event Bridge (§4.G): a fixed mapping from
// orchestrator event kinds to outbound WebSocket message kinds, subscribed
// once per mapped kind at startup.
package bridge

import (
	"time"

	"superagent/internal/eventbus"
	"superagent/internal/registry"
)

// OutboundKind is one of the wire-protocol `type` values enumerated in §6.
type OutboundKind string

const (
	DeploymentStatusChanged OutboundKind = "DEPLOYMENT_STATUS_CHANGED"
	DeploymentLogsUpdate    OutboundKind = "DEPLOYMENT_LOGS_UPDATE"
	DeploymentProgress      OutboundKind = "DEPLOYMENT_PROGRESS"
	AuthLoginSuccess        OutboundKind = "AUTH_LOGIN_SUCCESS"
	AuthLogout              OutboundKind = "AUTH_LOGOUT"
	NotificationDeployment  OutboundKind = "NOTIFICATION_DEPLOYMENT"
)

// Envelope is the `{type, timestamp, data}` wire message from §6.
type Envelope struct {
	Type      OutboundKind           `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// mapping is the fixed event-kind -> outbound-kind table.
var mapping = map[eventbus.Kind]OutboundKind{
	eventbus.DeploymentStarted:       DeploymentStatusChanged,
	eventbus.DeploymentCompleted:     DeploymentStatusChanged,
	eventbus.DeploymentFailed:        DeploymentStatusChanged,
	eventbus.DeploymentRolledBack:    DeploymentStatusChanged,
	eventbus.DeploymentStatusChanged: DeploymentStatusChanged,
	eventbus.DeploymentLogsUpdate:    DeploymentLogsUpdate,
	eventbus.DeploymentProgress:      DeploymentProgress,
	eventbus.AuthLoginSuccess:        AuthLoginSuccess,
	eventbus.AuthLogout:              AuthLogout,
}

// Bridge subscribes one handler per mapped kind on an Event Bus and
// forwards each matching event as a WebSocket broadcast through the
// Connection Registry.
type Bridge struct {
	bus *eventbus.Bus
	reg *registry.Registry
}

// New constructs a Bridge without yet subscribing; call Start to register
// handlers.
func New(bus *eventbus.Bus, reg *registry.Registry) *Bridge {
	return &Bridge{bus: bus, reg: reg}
}

// Start subscribes one handler per entry of the fixed mapping table. The
// Connection Registry's subscriber index is keyed by the outbound wire kind
// (the value clients pass as `event_type` when subscribing, per §6), not by
// the internal orchestrator event kind that triggered the handler — several
// internal kinds (DeploymentStarted/Completed/Failed/RolledBack) fan in to
// the same outbound kind, and clients never see the internal names.
func (b *Bridge) Start() {
	for kind, outbound := range mapping {
		outbound := outbound
		b.bus.Subscribe(kind, func(e eventbus.Event) error {
			msg := Envelope{
				Type:      outbound,
				Timestamp: e.Timestamp,
				Data:      e.Payload,
			}
			b.reg.BroadcastToEventSubscribers(eventbus.Kind(outbound), msg)
			if deploymentID := e.AggregateID; deploymentID != "" {
				b.reg.BroadcastDeploymentLogToSubscribers(deploymentID, msg)
			}
			return nil
		})
	}
}
