package composeexec

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v2"
)

func TestValidateRequiresVersion(t *testing.T) {
	spec := map[string]interface{}{
		"services": map[string]interface{}{"web": map[string]interface{}{"image": "nginx"}},
	}
	if err := Validate(spec); err == nil {
		t.Fatal("expected error for missing version")
	}
}

func TestValidateRequiresNonEmptyServices(t *testing.T) {
	spec := map[string]interface{}{"version": "3.8"}
	if err := Validate(spec); err == nil {
		t.Fatal("expected error for missing services")
	}
}

func TestValidateRequiresImageOrBuild(t *testing.T) {
	spec := map[string]interface{}{
		"version":  "3.8",
		"services": map[string]interface{}{"web": map[string]interface{}{"ports": []interface{}{"80:80"}}},
	}
	if err := Validate(spec); err == nil {
		t.Fatal("expected error when service has neither image nor build")
	}
}

func TestValidateAcceptsBuildWithoutImage(t *testing.T) {
	spec := map[string]interface{}{
		"version":  "3.8",
		"services": map[string]interface{}{"web": map[string]interface{}{"build": "."}},
	}
	if err := Validate(spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAcceptsWellFormedSpec(t *testing.T) {
	spec := map[string]interface{}{
		"version": "3.8",
		"services": map[string]interface{}{
			"db": map[string]interface{}{"image": "postgres:15"},
		},
	}
	if err := Validate(spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmitFileWritesReadableYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "docker-compose.yml")

	spec := map[string]interface{}{
		"version": "3.8",
		"services": map[string]interface{}{
			"web": map[string]interface{}{"image": "nginx:latest"},
		},
	}
	if err := EmitFile(spec, path); err != nil {
		t.Fatalf("EmitFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read emitted file: %v", err)
	}
	var out map[string]interface{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatalf("emitted file is not valid YAML: %v", err)
	}
	if out["version"] != "3.8" {
		t.Fatalf("version = %v", out["version"])
	}
}

func TestEmitFileRejectsInvalidSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docker-compose.yml")
	if err := EmitFile(map[string]interface{}{"version": "3.8"}, path); err == nil {
		t.Fatal("expected validation error before write")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("EmitFile should not write a file when validation fails")
	}
}

func TestComposeArgsPluginForm(t *testing.T) {
	e := New("", nil)
	bin, args := e.composeArgs("-p", "proj", "up", "-d")
	if bin != "docker" || args[0] != "compose" {
		t.Fatalf("bin=%q args=%v, want docker compose plugin invocation", bin, args)
	}
}

func TestComposeArgsStandaloneBinary(t *testing.T) {
	e := New("docker-compose", nil)
	bin, args := e.composeArgs("-p", "proj", "up", "-d")
	if bin != "docker-compose" || args[0] != "-p" {
		t.Fatalf("bin=%q args=%v, want standalone docker-compose invocation", bin, args)
	}
}
