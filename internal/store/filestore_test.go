package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"superagent/internal/config"
	"superagent/internal/model"
)

const testSecretValue = "correct-horse-battery-staple-s3cr3t"

func TestFileDeploymentsEncryptsSecretsAtRest(t *testing.T) {
	dir := t.TempDir()
	key := config.DeriveKey("a passphrase")
	deps, err := NewFileDeployments(dir, key)
	if err != nil {
		t.Fatalf("NewFileDeployments: %v", err)
	}

	ctx := context.Background()
	d := &model.Deployment{
		ID:             "d1",
		OrganizationID: "org-1",
		Name:           "web",
		Variables:      map[string]interface{}{"db_password": testSecretValue},
	}
	if err := deps.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "deployments.enc"))
	if err != nil {
		t.Fatalf("read data file: %v", err)
	}
	if strings.Contains(string(raw), testSecretValue) {
		t.Fatalf("data file contains the plaintext secret, not encrypted at rest")
	}
	if !strings.HasPrefix(string(raw), "encrypted:") {
		t.Fatalf("data file does not look like the config package's encrypted envelope")
	}
}

func TestFileDeploymentsPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	key := config.DeriveKey("a passphrase")
	ctx := context.Background()

	deps1, err := NewFileDeployments(dir, key)
	if err != nil {
		t.Fatalf("NewFileDeployments: %v", err)
	}
	d := &model.Deployment{
		ID:             "d1",
		OrganizationID: "org-1",
		Name:           "web",
		Variables:      map[string]interface{}{"db_password": testSecretValue},
	}
	if err := deps1.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}

	deps2, err := NewFileDeployments(dir, key)
	if err != nil {
		t.Fatalf("reopen NewFileDeployments: %v", err)
	}
	got, err := deps2.GetByID(ctx, "d1")
	if err != nil {
		t.Fatalf("GetByID after reopen: %v", err)
	}
	if got.Name != "web" || got.Variables["db_password"] != testSecretValue {
		t.Fatalf("reopened row = %+v, want matching Name/Variables", got)
	}
}

func TestFileDeploymentsRejectsWrongKey(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	deps1, err := NewFileDeployments(dir, config.DeriveKey("correct passphrase"))
	if err != nil {
		t.Fatalf("NewFileDeployments: %v", err)
	}
	if err := deps1.Create(ctx, &model.Deployment{ID: "d1", OrganizationID: "org-1", Name: "web"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := NewFileDeployments(dir, config.DeriveKey("wrong passphrase")); err == nil {
		t.Fatal("expected an error opening the store with the wrong key")
	}
}

func TestFileDeploymentsSameInterfaceBehaviorAsMemDeployments(t *testing.T) {
	dir := t.TempDir()
	deps, err := NewFileDeployments(dir, config.DeriveKey("a passphrase"))
	if err != nil {
		t.Fatalf("NewFileDeployments: %v", err)
	}
	ctx := context.Background()

	if err := deps.Create(ctx, &model.Deployment{ID: "d1", OrganizationID: "org-1", Name: "web"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := deps.Create(ctx, &model.Deployment{ID: "d2", OrganizationID: "org-1", Name: "web"}); err != ErrNameConflict {
		t.Fatalf("got %v, want ErrNameConflict", err)
	}
	if err := deps.Delete(ctx, "d1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := deps.GetByID(ctx, "d1"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
