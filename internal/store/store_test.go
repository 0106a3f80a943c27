package store

import (
	"context"
	"testing"
	"time"

	"superagent/internal/model"
)

func TestCreateRejectsDuplicateNameInOrganization(t *testing.T) {
	deps := NewMemDeployments()
	ctx := context.Background()

	first := &model.Deployment{ID: "d1", OrganizationID: "org-1", Name: "web"}
	if err := deps.Create(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := &model.Deployment{ID: "d2", OrganizationID: "org-1", Name: "web"}
	if err := deps.Create(ctx, second); err != ErrNameConflict {
		t.Fatalf("got %v, want ErrNameConflict", err)
	}
}

func TestCreateAllowsSameNameInDifferentOrganizations(t *testing.T) {
	deps := NewMemDeployments()
	ctx := context.Background()

	if err := deps.Create(ctx, &model.Deployment{ID: "d1", OrganizationID: "org-1", Name: "web"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := deps.Create(ctx, &model.Deployment{ID: "d2", OrganizationID: "org-2", Name: "web"}); err != nil {
		t.Fatalf("expected no conflict across organizations, got %v", err)
	}
}

func TestUpdateStatusSetsDeployDurationOnlyWhenBothTimestampsSet(t *testing.T) {
	deps := NewMemDeployments()
	ctx := context.Background()
	d := &model.Deployment{ID: "d1", OrganizationID: "org-1", Name: "web", Status: model.StatusPending}
	if err := deps.Create(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := deps.UpdateStatus(ctx, "d1", model.StatusRunning, "", ""); err != nil {
		t.Fatalf("update to running: %v", err)
	}
	got, _ := deps.GetByID(ctx, "d1")
	if got.DeployedAt == nil {
		t.Fatal("expected DeployedAt set on transition to RUNNING")
	}
	if got.DeployDurationSeconds != nil {
		t.Fatal("DeployDurationSeconds must stay unset until StoppedAt is also set")
	}

	if err := deps.UpdateStatus(ctx, "d1", model.StatusStopped, "", ""); err != nil {
		t.Fatalf("update to stopped: %v", err)
	}
	got, _ = deps.GetByID(ctx, "d1")
	if got.StoppedAt == nil {
		t.Fatal("expected StoppedAt set on transition to STOPPED")
	}
	if got.DeployDurationSeconds == nil {
		t.Fatal("expected DeployDurationSeconds set once both DeployedAt and StoppedAt are set")
	}
}

func TestUpdateStatusLeavesDurationUnsetWhenNeverDeployed(t *testing.T) {
	deps := NewMemDeployments()
	ctx := context.Background()
	d := &model.Deployment{ID: "d1", OrganizationID: "org-1", Name: "web", Status: model.StatusPending}
	if err := deps.Create(ctx, d); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := deps.UpdateStatus(ctx, "d1", model.StatusFailed, "boom", ""); err != nil {
		t.Fatalf("update to failed: %v", err)
	}
	got, _ := deps.GetByID(ctx, "d1")
	if got.DeployDurationSeconds != nil {
		t.Fatal("DeployDurationSeconds must stay nil when DeployedAt was never set")
	}
	if got.ErrorMessage != "boom" {
		t.Fatalf("ErrorMessage = %q", got.ErrorMessage)
	}
}

func TestGetStaleByStatusOnlyReturnsOlderRows(t *testing.T) {
	deps := NewMemDeployments()
	ctx := context.Background()

	old := &model.Deployment{ID: "old", OrganizationID: "org-1", Name: "old", Status: model.StatusPending}
	if err := deps.Create(ctx, old); err != nil {
		t.Fatalf("create old: %v", err)
	}

	cutoff := time.Now().Add(time.Hour)

	fresh := &model.Deployment{ID: "fresh", OrganizationID: "org-1", Name: "fresh", Status: model.StatusPending}
	if err := deps.Create(ctx, fresh); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	stale, err := deps.GetStaleByStatus(ctx, model.StatusPending, cutoff)
	if err != nil {
		t.Fatalf("GetStaleByStatus: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("got %d stale rows, want 2 (both created before the future cutoff)", len(stale))
	}

	pastCutoff, err := deps.GetStaleByStatus(ctx, model.StatusPending, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetStaleByStatus: %v", err)
	}
	if len(pastCutoff) != 0 {
		t.Fatalf("got %d rows older than a past cutoff, want 0", len(pastCutoff))
	}
}

func TestGetByIDNotFound(t *testing.T) {
	deps := NewMemDeployments()
	if _, err := deps.GetByID(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMemUsersLookupsByEmailAndUsername(t *testing.T) {
	users := NewMemUsers(map[string]*User{
		"u1": {ID: "u1", Email: "a@example.com", Username: "alice", IsActive: true, IsSuperuser: true},
	})
	ctx := context.Background()

	byEmail, err := users.GetByEmail(ctx, "a@example.com")
	if err != nil || byEmail.ID != "u1" {
		t.Fatalf("GetByEmail: %v, %v", byEmail, err)
	}
	byUsername, err := users.GetByUsername(ctx, "alice")
	if err != nil || byUsername.ID != "u1" {
		t.Fatalf("GetByUsername: %v, %v", byUsername, err)
	}
	superuser, err := users.GetFirstActiveSuperuser(ctx)
	if err != nil || superuser.ID != "u1" {
		t.Fatalf("GetFirstActiveSuperuser: %v, %v", superuser, err)
	}
}

func TestMemUsersGetByEmailNotFound(t *testing.T) {
	users := NewMemUsers(nil)
	if _, err := users.GetByEmail(context.Background(), "missing@example.com"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
