// Package eventbus implements the Event Bus (§4.E): in-process typed
// pub/sub over a closed set of event kinds. Handlers for a given kind run
// concurrently; a handler panic or returned error is logged and never
// propagates to the publisher.
//
// Grounded on original_source/backend/app/core/events.py's EventType enum
// and Event dataclass, translated into Go's idiomatic closed string-const
// set plus a handler-map/goroutine dispatcher.
package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Kind is one of the closed set of event kinds the bus carries.
type Kind string

const (
	DeploymentStatusChanged Kind = "deployment-status-changed"
	DeploymentLogsUpdate    Kind = "deployment-logs-update"
	DeploymentProgress      Kind = "deployment-progress"

	DeploymentStarted   Kind = "deployment.started"
	DeploymentCompleted Kind = "deployment.completed"
	DeploymentFailed    Kind = "deployment.failed"
	DeploymentRolledBack Kind = "deployment.rollback"

	AuthLoginSuccess Kind = "auth-login-success"
	AuthLogout       Kind = "auth-logout"

	TargetCreated      Kind = "target.created"
	TargetUpdated      Kind = "target.updated"
	TargetDeleted      Kind = "target.deleted"
	TargetHealthCheck  Kind = "target.health_check"

	StackCreated Kind = "stack.created"
	StackUpdated Kind = "stack.updated"
	StackDeleted Kind = "stack.deleted"

	OrganizationCreated Kind = "organization.created"
	OrganizationUpdated Kind = "organization.updated"

	UserCreated Kind = "user.created"
	UserUpdated Kind = "user.updated"
	UserLogin   Kind = "user.login"
	UserLogout  Kind = "user.logout"

	SessionExpired            Kind = "session-*"
	NotificationSystem        Kind = "notification-*"
	UIKind                    Kind = "ui-*"

	SystemError   Kind = "system.error"
	SystemWarning Kind = "system.warning"
)

// Event is one immutable fact published on the bus.
type Event struct {
	ID          string
	Kind        Kind
	AggregateID string
	Payload     map[string]interface{}
	Timestamp   time.Time
}

// NewEvent constructs an Event with a generated ID and current timestamp.
func NewEvent(kind Kind, aggregateID string, payload map[string]interface{}) Event {
	return Event{
		ID:          uuid.New().String(),
		Kind:        kind,
		AggregateID: aggregateID,
		Payload:     payload,
		Timestamp:   time.Now(),
	}
}

// Handler processes one published Event. A returned error is logged and
// swallowed; it never reaches the publisher.
type Handler func(Event) error

// Bus is an in-process, best-effort pub/sub dispatcher. There is no
// persistence queue in the core: delivery only reaches handlers registered
// at publish time.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	log      *logrus.Entry
}

// New returns a Bus. log may be nil.
func New(log *logrus.Entry) *Bus {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Bus{handlers: make(map[Kind][]Handler), log: log}
}

// Subscribe registers handler to run whenever an event of the given kind is
// published. Handlers accumulate; there is no dedup.
func (b *Bus) Subscribe(kind Kind, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// Unsubscribe removes every handler registered for kind. Go cannot compare
// func values, so a single handler cannot be removed on its own.
func (b *Bus) Unsubscribe(kind Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, kind)
}

// Publish dispatches event to every handler subscribed to its kind,
// concurrently. Handler errors are logged, never returned to the caller.
// Ordering from a single publisher within one kind's handler list is
// preserved in invocation (goroutines are started in registration order)
// though completion order is not guaranteed.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Kind]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					b.log.Errorf("event handler panic for %s: %v", event.Kind, r)
				}
			}()
			if err := h(event); err != nil {
				b.log.Errorf("event handler error for %s: %v", event.Kind, err)
			}
		}(h)
	}
}
