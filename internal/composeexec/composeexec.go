// Package composeexec implements the Compose Executor (§4.C): YAML emission
// of a rendered compose spec plus `docker compose` subprocess operations.
//
// Grounded on internal/deploy/docker/docker_manager.go's subprocess idiom,
// generalized from single-container operations to the compose CLI surface;
// YAML emission uses gopkg.in/yaml.v2 to match the teacher's chosen version.
package composeexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"superagent/internal/logging"
)

const (
	deployTimeout = 300 * time.Second
	removeTimeout = 120 * time.Second
	defaultTimeout = 30 * time.Second
)

// Executor wraps `docker compose` CLI invocations.
type Executor struct {
	binary      string // "docker" (compose subcommand) or "docker-compose"
	auditLogger *logging.AuditLogger
}

// New returns a compose Executor using the `docker compose` plugin form by
// default.
func New(binary string, auditLogger *logging.AuditLogger) *Executor {
	if binary == "" {
		binary = "docker"
	}
	return &Executor{binary: binary, auditLogger: auditLogger}
}

func (e *Executor) audit(event string, fields map[string]interface{}) {
	if e.auditLogger != nil {
		e.auditLogger.LogEvent(event, fields)
	}
}

// composeArgs prefixes the compose subcommand appropriately for either
// `docker compose ...` (plugin) or a standalone `docker-compose ...` binary.
func (e *Executor) composeArgs(rest ...string) (string, []string) {
	if e.binary == "docker-compose" {
		return e.binary, rest
	}
	return "docker", append([]string{"compose"}, rest...)
}

func (e *Executor) run(ctx context.Context, timeout time.Duration, args ...string) (bool, string) {
	bin, fullArgs := e.composeArgs(args...)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, fullArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return false, "Timeout"
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return false, msg
	}
	return true, strings.TrimSpace(stdout.String())
}

// Validate implements §4.C's rendered compose spec validation.
func Validate(spec map[string]interface{}) error {
	if _, ok := spec["version"]; !ok {
		return fmt.Errorf("composeexec: missing required 'version' key")
	}
	services, ok := spec["services"].(map[string]interface{})
	if !ok || len(services) == 0 {
		return fmt.Errorf("composeexec: 'services' must be a non-empty mapping")
	}
	for name, raw := range services {
		svc, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("composeexec: service %q must be a mapping", name)
		}
		_, hasImage := svc["image"]
		_, hasBuild := svc["build"]
		if !hasImage && !hasBuild {
			return fmt.Errorf("composeexec: service %q must define 'image' or 'build'", name)
		}
	}
	return nil
}

// EmitFile serializes the rendered spec as YAML to path, creating parent
// directories as needed.
func EmitFile(spec map[string]interface{}, path string) error {
	if err := Validate(spec); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(spec)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Deploy implements `docker compose -f FILE -p NAME up -d`.
func (e *Executor) Deploy(ctx context.Context, composeFile, projectName string, env map[string]string) (bool, string) {
	args := []string{"-f", composeFile, "-p", projectName, "up", "-d"}
	_ = env // environment is applied via the rendered compose file's `environment` keys, not the CLI invocation
	ok, out := e.run(ctx, deployTimeout, args...)
	if ok {
		e.audit("COMPOSE_DEPLOY_SUCCESS", map[string]interface{}{"project": projectName})
	} else {
		e.audit("COMPOSE_DEPLOY_FAILED", map[string]interface{}{"project": projectName, "error": out})
	}
	return ok, out
}

// ServiceStatus is one entry of `docker compose ps --format json`.
type ServiceStatus struct {
	Name    string `json:"Name"`
	Service string `json:"Service"`
	State   string `json:"State"`
	Status  string `json:"Status"`
}

// Status implements `docker compose -p NAME ps --format json`.
func (e *Executor) Status(ctx context.Context, projectName string) ([]ServiceStatus, error) {
	ok, out := e.run(ctx, defaultTimeout, "-p", projectName, "ps", "--format", "json")
	if !ok {
		return nil, fmt.Errorf("compose ps %s: %s", projectName, out)
	}
	var statuses []ServiceStatus
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var s ServiceStatus
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			continue
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// Stop implements `docker compose -p NAME down`.
func (e *Executor) Stop(ctx context.Context, projectName string) (bool, string) {
	ok, out := e.run(ctx, removeTimeout, "-p", projectName, "down")
	e.auditResult(ok, "COMPOSE_STOP", projectName, out)
	return ok, out
}

// Remove implements `docker compose -p NAME down [-v] --remove-orphans`.
func (e *Executor) Remove(ctx context.Context, projectName string, removeVolumes bool) (bool, string) {
	args := []string{"-p", projectName, "down", "--remove-orphans"}
	if removeVolumes {
		args = append(args, "-v")
	}
	ok, out := e.run(ctx, removeTimeout, args...)
	e.auditResult(ok, "COMPOSE_REMOVE", projectName, out)
	return ok, out
}

// Logs implements `docker compose -p NAME logs --tail N [SERVICE]`.
func (e *Executor) Logs(ctx context.Context, projectName, service string, tail int) (bool, string) {
	args := []string{"-p", projectName, "logs", "--tail", strconv.Itoa(tail)}
	if service != "" {
		args = append(args, service)
	}
	return e.run(ctx, defaultTimeout, args...)
}

func (e *Executor) auditResult(ok bool, op, project, out string) {
	if ok {
		e.audit(op+"_SUCCESS", map[string]interface{}{"project": project})
	} else {
		e.audit(op+"_FAILED", map[string]interface{}{"project": project, "error": out})
	}
}
