// Package store declares the persistence operations the core consumes
// (§6 external interfaces). It provides two Deployments implementations: a
// bare in-memory map (memDeployments, below) used by tests and by cmd/agent
// when no data directory is set, and an encrypted file-backed one
// (FileDeployments, in filestore.go) that cmd/agent wires up when a data
// directory is configured (the default configuration sets one), following the encrypted-at-rest local store pattern of
// internal/storage/secure_store.go. Stacks/Targets/Users have no
// equivalent file-backed variant here — in production they're served by
// the SQL persistence layer this package's interfaces stand in for (§1).
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"superagent/internal/model"
)

// ErrNotFound is returned by Get* operations when no matching row exists.
var ErrNotFound = errors.New("store: not found")

// ErrNameConflict is returned by Deployments.Create when (organization_id,
// name) already exists.
var ErrNameConflict = errors.New("store: deployment name already exists in organization")

// Deployments is the deployment persistence surface consumed by the
// orchestrator.
type Deployments interface {
	GetByID(ctx context.Context, id string) (*model.Deployment, error)
	ListByOrg(ctx context.Context, orgID string) ([]*model.Deployment, error)
	GetByName(ctx context.Context, orgID, name string) (*model.Deployment, error)
	Create(ctx context.Context, d *model.Deployment) error
	Update(ctx context.Context, d *model.Deployment) error
	UpdateStatus(ctx context.Context, id string, status model.DeploymentStatus, errMsg string, logsAppend string) error
	Delete(ctx context.Context, id string) error
	GetByStatus(ctx context.Context, status model.DeploymentStatus) ([]*model.Deployment, error)
	GetStaleByStatus(ctx context.Context, status model.DeploymentStatus, olderThan time.Time) ([]*model.Deployment, error)
}

// Stacks is the read surface the orchestrator needs from stack definitions.
type Stacks interface {
	GetByID(ctx context.Context, id string) (*model.Stack, error)
}

// Targets is the target persistence surface, including capability-scan
// acceptance.
type Targets interface {
	GetByID(ctx context.Context, id string) (*model.Target, error)
	UpdateCapabilities(ctx context.Context, id string, scan *model.ScanResult) error
	SetScanStatus(ctx context.Context, id string, status string) error
}

// User is the minimal user shape the WebSocket session handler needs.
type User struct {
	ID             string
	Email          string
	Username       string
	OrganizationID string
	IsActive       bool
	IsSuperuser    bool
}

// Users is the read surface consumed by auth/authorization checks.
type Users interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetFirstActiveSuperuser(ctx context.Context) (*User, error)
}

// Store bundles the four store surfaces the composition root wires into
// the orchestrator, scanner, and WebSocket session handler.
type Store struct {
	Deployments Deployments
	Stacks      Stacks
	Targets     Targets
	Users       Users
}

// memDeployments is the in-memory reference Deployments implementation.
type memDeployments struct {
	mu   sync.RWMutex
	rows map[string]*model.Deployment
}

// NewMemDeployments returns an in-memory Deployments store.
func NewMemDeployments() Deployments {
	return &memDeployments{rows: make(map[string]*model.Deployment)}
}

func (m *memDeployments) GetByID(_ context.Context, id string) (*model.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDeployments) ListByOrg(_ context.Context, orgID string) ([]*model.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Deployment
	for _, d := range m.rows {
		if d.OrganizationID == orgID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memDeployments) GetByName(_ context.Context, orgID, name string) (*model.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.rows {
		if d.OrganizationID == orgID && d.Name == name {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memDeployments) Create(_ context.Context, d *model.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.OrganizationID == d.OrganizationID && existing.Name == d.Name {
			return ErrNameConflict
		}
	}
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	cp := *d
	m.rows[d.ID] = &cp
	return nil
}

func (m *memDeployments) Update(_ context.Context, d *model.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[d.ID]; !ok {
		return ErrNotFound
	}
	d.UpdatedAt = time.Now()
	cp := *d
	m.rows[d.ID] = &cp
	return nil
}

func (m *memDeployments) UpdateStatus(_ context.Context, id string, status model.DeploymentStatus, errMsg string, logsAppend string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	if errMsg != "" {
		d.ErrorMessage = errMsg
	}
	if logsAppend != "" {
		if d.Logs != "" {
			d.Logs += "\n"
		}
		d.Logs += logsAppend
	}
	now := time.Now()
	switch status {
	case model.StatusRunning:
		d.DeployedAt = &now
	case model.StatusStopped, model.StatusFailed:
		d.StoppedAt = &now
		if d.DeployedAt != nil {
			secs := now.Sub(*d.DeployedAt).Seconds()
			d.DeployDurationSeconds = &secs
		}
	}
	d.UpdatedAt = now
	return nil
}

func (m *memDeployments) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memDeployments) GetByStatus(_ context.Context, status model.DeploymentStatus) ([]*model.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Deployment
	for _, d := range m.rows {
		if d.Status == status {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memDeployments) GetStaleByStatus(_ context.Context, status model.DeploymentStatus, olderThan time.Time) ([]*model.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Deployment
	for _, d := range m.rows {
		if d.Status == status && d.CreatedAt.Before(olderThan) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memStacks is a trivial in-memory Stacks store, used mainly by tests that
// preload fixtures.
type memStacks struct {
	mu   sync.RWMutex
	rows map[string]*model.Stack
}

// NewMemStacks returns an in-memory Stacks store seeded with the given rows.
func NewMemStacks(seed map[string]*model.Stack) Stacks {
	rows := make(map[string]*model.Stack, len(seed))
	for k, v := range seed {
		rows[k] = v
	}
	return &memStacks{rows: rows}
}

func (m *memStacks) GetByID(_ context.Context, id string) (*model.Stack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// memTargets is a trivial in-memory Targets store.
type memTargets struct {
	mu   sync.RWMutex
	rows map[string]*model.Target
}

// NewMemTargets returns an in-memory Targets store seeded with the given rows.
func NewMemTargets(seed map[string]*model.Target) Targets {
	rows := make(map[string]*model.Target, len(seed))
	for k, v := range seed {
		rows[k] = v
	}
	return &memTargets{rows: rows}
}

func (m *memTargets) GetByID(_ context.Context, id string) (*model.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTargets) UpdateCapabilities(_ context.Context, id string, scan *model.ScanResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	t.PlatformInfo = scan.Platform
	t.OSInfo = scan.OS
	now := scan.ScanDate
	t.ScanDate = &now
	t.ScanSuccess = scan.Success
	return nil
}

func (m *memTargets) SetScanStatus(_ context.Context, id string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	return nil
}

// memUsers is a trivial in-memory Users store, used by tests and by
// cmd/agent when no external user service is wired.
type memUsers struct {
	mu   sync.RWMutex
	rows map[string]*User
}

// NewMemUsers returns an in-memory Users store seeded with the given rows,
// keyed by user ID.
func NewMemUsers(seed map[string]*User) Users {
	rows := make(map[string]*User, len(seed))
	for k, v := range seed {
		rows[k] = v
	}
	return &memUsers{rows: rows}
}

func (m *memUsers) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.rows {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.rows {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) GetFirstActiveSuperuser(_ context.Context) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.rows {
		if u.IsActive && u.IsSuperuser {
			return u, nil
		}
	}
	return nil, ErrNotFound
}
