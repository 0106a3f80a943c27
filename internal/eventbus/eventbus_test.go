package eventbus

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPublishDispatchesToAllSubscribers(t *testing.T) {
	b := New(nil)
	var wg sync.WaitGroup
	wg.Add(2)
	var mu sync.Mutex
	var seen []string

	b.Subscribe(DeploymentStarted, func(e Event) error {
		defer wg.Done()
		mu.Lock()
		seen = append(seen, "first")
		mu.Unlock()
		return nil
	})
	b.Subscribe(DeploymentStarted, func(e Event) error {
		defer wg.Done()
		mu.Lock()
		seen = append(seen, "second")
		mu.Unlock()
		return nil
	})

	b.Publish(NewEvent(DeploymentStarted, "dep-1", nil))

	if !waitTimeout(&wg, time.Second) {
		t.Fatal("handlers did not complete in time")
	}
	if len(seen) != 2 {
		t.Fatalf("got %d deliveries, want 2", len(seen))
	}
}

func TestPublishDoesNotDeliverToOtherKinds(t *testing.T) {
	b := New(nil)
	done := make(chan struct{}, 1)
	b.Subscribe(DeploymentFailed, func(e Event) error {
		done <- struct{}{}
		return nil
	})

	b.Publish(NewEvent(DeploymentStarted, "dep-1", nil))

	select {
	case <-done:
		t.Fatal("handler for a different kind should not have run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishSwallowsHandlerError(t *testing.T) {
	b := New(nil)
	called := make(chan struct{}, 1)
	b.Subscribe(SystemError, func(e Event) error {
		called <- struct{}{}
		return errors.New("boom")
	})

	// Must not panic or block the caller even though the handler errors.
	b.Publish(NewEvent(SystemError, "sys", nil))

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

func TestPublishSwallowsHandlerPanic(t *testing.T) {
	b := New(nil)
	called := make(chan struct{}, 1)
	b.Subscribe(SystemWarning, func(e Event) error {
		defer close(called)
		panic("unexpected")
	})

	b.Publish(NewEvent(SystemWarning, "sys", nil))

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

func TestUnsubscribeRemovesAllHandlersForKind(t *testing.T) {
	b := New(nil)
	called := make(chan struct{}, 1)
	b.Subscribe(UserLogin, func(e Event) error {
		called <- struct{}{}
		return nil
	})
	b.Unsubscribe(UserLogin)
	b.Publish(NewEvent(UserLogin, "user-1", nil))

	select {
	case <-called:
		t.Fatal("handler should have been removed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewEventStampsIDAndTimestamp(t *testing.T) {
	e := NewEvent(DeploymentCompleted, "dep-2", map[string]interface{}{"k": "v"})
	if e.ID == "" {
		t.Fatal("expected generated ID")
	}
	if e.Timestamp.IsZero() {
		t.Fatal("expected non-zero timestamp")
	}
	if e.AggregateID != "dep-2" {
		t.Fatalf("AggregateID = %q", e.AggregateID)
	}
}

func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
