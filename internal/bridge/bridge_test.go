package bridge

import (
	"testing"
	"time"

	"superagent/internal/eventbus"
	"superagent/internal/registry"
)

type fakeSocket struct {
	writes []interface{}
}

func (f *fakeSocket) WriteJSON(v interface{}) error {
	f.writes = append(f.writes, v)
	return nil
}

func TestStartMapsDeploymentStartedToStatusChanged(t *testing.T) {
	bus := eventbus.New(nil)
	reg := registry.New(nil)
	b := New(bus, reg)
	b.Start()

	sock := &fakeSocket{}
	reg.AddConnection("user-1", sock)
	reg.Subscribe("user-1", eventbus.Kind(DeploymentStatusChanged))

	bus.Publish(eventbus.NewEvent(eventbus.DeploymentStarted, "dep-1", map[string]interface{}{"status": "running"}))

	if !waitFor(func() bool { return len(sock.writes) == 1 }, time.Second) {
		t.Fatal("expected one broadcast envelope")
	}
	env := sock.writes[0].(Envelope)
	if env.Type != DeploymentStatusChanged {
		t.Fatalf("Type = %v, want %v", env.Type, DeploymentStatusChanged)
	}
}

func TestStartForwardsDeploymentLogsUpdateToDeploymentConnections(t *testing.T) {
	bus := eventbus.New(nil)
	reg := registry.New(nil)
	b := New(bus, reg)
	b.Start()

	sock := &fakeSocket{}
	reg.AddDeploymentConnection("dep-1", sock)

	bus.Publish(eventbus.NewEvent(eventbus.DeploymentLogsUpdate, "dep-1", map[string]interface{}{"line": "hello"}))

	if !waitFor(func() bool { return len(sock.writes) == 1 }, time.Second) {
		t.Fatal("expected one broadcast envelope to the deployment-logs index")
	}
	env := sock.writes[0].(Envelope)
	if env.Type != DeploymentLogsUpdate {
		t.Fatalf("Type = %v, want %v", env.Type, DeploymentLogsUpdate)
	}
}

func TestStartDoesNotForwardUnmappedKinds(t *testing.T) {
	bus := eventbus.New(nil)
	reg := registry.New(nil)
	b := New(bus, reg)
	b.Start()

	sock := &fakeSocket{}
	reg.AddConnection("user-1", sock)
	reg.Subscribe("user-1", eventbus.StackCreated)

	bus.Publish(eventbus.NewEvent(eventbus.StackCreated, "stack-1", nil))

	time.Sleep(50 * time.Millisecond)
	if len(sock.writes) != 0 {
		t.Fatalf("got %d writes for an unmapped event kind, want 0", len(sock.writes))
	}
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
