package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"superagent/internal/config"
	"superagent/internal/model"
)

// fileDeploymentsDoc is the envelope persisted to disk, mirroring
// internal/storage/secure_store.go's StoredData: versioned and
// checksummed, re-encrypted as a whole on every mutation.
type fileDeploymentsDoc struct {
	Version  int                          `json:"version"`
	Rows     map[string]*model.Deployment `json:"rows"`
	Checksum string                       `json:"checksum"`
}

// FileDeployments is the encrypted, file-backed Deployments implementation:
// the same row shape as memDeployments, but the whole map is AES-CBC
// encrypted (internal/config's Encrypt/Decrypt, derived via PBKDF2 from the
// configured encryption key, §"Security") and written to a single file
// after every mutation. Grounded on internal/storage/secure_store.go's
// load-whole-file/decrypt/verify-checksum and save-whole-file/encrypt/
// atomic-rename pattern, adapted from its ad hoc StoreDeploymentState/
// LoadDeploymentState methods into the full store.Deployments interface
// §6 requires. This is what actually protects Deployment.Variables (which
// routinely holds generated passwords/secrets produced by the renderer,
// §4.A) at rest; memDeployments above has no such protection and is the
// plain in-memory reference used by tests and by cmd/agent when no data
// directory is configured.
type FileDeployments struct {
	mu   sync.RWMutex
	path string
	key  []byte
	rows map[string]*model.Deployment
}

// NewFileDeployments opens (or initializes) an encrypted deployments store
// under dataDir, decrypting and loading any existing rows. key is typically
// obtained via config.EncryptionKey.
func NewFileDeployments(dataDir string, key []byte) (*FileDeployments, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	f := &FileDeployments{
		path: filepath.Join(dataDir, "deployments.enc"),
		key:  key,
		rows: make(map[string]*model.Deployment),
	}
	if _, err := os.Stat(f.path); err == nil {
		if err := f.load(); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("store: stat data file: %w", err)
	}
	return f, nil
}

func checksumRows(rows map[string]*model.Deployment) string {
	b, _ := json.Marshal(rows)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (f *FileDeployments) load() error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("store: read data file: %w", err)
	}
	plaintext, err := config.Decrypt(string(raw), f.key)
	if err != nil {
		return fmt.Errorf("store: decrypt data file: %w", err)
	}
	var doc fileDeploymentsDoc
	if err := json.Unmarshal([]byte(plaintext), &doc); err != nil {
		return fmt.Errorf("store: unmarshal data file: %w", err)
	}
	if doc.Rows == nil {
		doc.Rows = make(map[string]*model.Deployment)
	}
	if doc.Checksum != checksumRows(doc.Rows) {
		return fmt.Errorf("store: data file failed integrity check")
	}
	f.rows = doc.Rows
	return nil
}

// persist must be called with f.mu held for writing.
func (f *FileDeployments) persist() error {
	doc := fileDeploymentsDoc{Version: 1, Rows: f.rows, Checksum: checksumRows(f.rows)}
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: marshal data file: %w", err)
	}
	encrypted, err := config.Encrypt(string(plaintext), f.key)
	if err != nil {
		return fmt.Errorf("store: encrypt data file: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(encrypted), 0600); err != nil {
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: rename temp file: %w", err)
	}
	return nil
}

func (f *FileDeployments) GetByID(_ context.Context, id string) (*model.Deployment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, ok := f.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *FileDeployments) ListByOrg(_ context.Context, orgID string) ([]*model.Deployment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []*model.Deployment
	for _, d := range f.rows {
		if d.OrganizationID == orgID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *FileDeployments) GetByName(_ context.Context, orgID, name string) (*model.Deployment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, d := range f.rows {
		if d.OrganizationID == orgID && d.Name == name {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *FileDeployments) Create(_ context.Context, d *model.Deployment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.OrganizationID == d.OrganizationID && existing.Name == d.Name {
			return ErrNameConflict
		}
	}
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	cp := *d
	f.rows[d.ID] = &cp
	return f.persist()
}

func (f *FileDeployments) Update(_ context.Context, d *model.Deployment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[d.ID]; !ok {
		return ErrNotFound
	}
	d.UpdatedAt = time.Now()
	cp := *d
	f.rows[d.ID] = &cp
	return f.persist()
}

func (f *FileDeployments) UpdateStatus(_ context.Context, id string, status model.DeploymentStatus, errMsg string, logsAppend string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
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
	return f.persist()
}

func (f *FileDeployments) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return ErrNotFound
	}
	delete(f.rows, id)
	return f.persist()
}

func (f *FileDeployments) GetByStatus(_ context.Context, status model.DeploymentStatus) ([]*model.Deployment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []*model.Deployment
	for _, d := range f.rows {
		if d.Status == status {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *FileDeployments) GetStaleByStatus(_ context.Context, status model.DeploymentStatus, olderThan time.Time) ([]*model.Deployment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []*model.Deployment
	for _, d := range f.rows {
		if d.Status == status && d.CreatedAt.Before(olderThan) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}
