// Package dockerexec implements the Docker Executor (§4.B): typed operations
// that shell out to the docker CLI with a bounded timeout, capture
// stdout/stderr, and report (false, stderr) on non-zero exit or
// (false, "Timeout") on deadline exceeded.
//
// Grounded on internal/deploy/docker/docker_manager.go's subprocess-building
// idiom (incremental arg-slice construction, audit-logging around every
// call, bufio.Scanner log streaming) generalized from its two-step
// create+start into the spec's single `docker run -d`.
package dockerexec

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/sirupsen/logrus"

	"superagent/internal/logging"
)

var containerNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

const defaultTimeout = 30 * time.Second

// DeploySpec is the validated, already-rendered container specification
// (§4.B's spec validation table).
type DeploySpec struct {
	Image          string
	ContainerName  string
	Ports          []string // "HOST:CONTAINER"
	Environment    map[string]string
	Volumes        []string // "HOST:CONTAINER[:MODE]"
	RestartPolicy  string
	HealthCmd      []string
	Labels         map[string]string
}

// Validate implements §4.B's pre-flight spec validation.
func (s *DeploySpec) Validate() error {
	if strings.TrimSpace(s.Image) == "" {
		return fmt.Errorf("dockerexec: image must not be empty")
	}
	if s.ContainerName != "" && !containerNamePattern.MatchString(s.ContainerName) {
		return fmt.Errorf("dockerexec: invalid container_name %q", s.ContainerName)
	}
	for _, p := range s.Ports {
		if !strings.Contains(p, ":") {
			return fmt.Errorf("dockerexec: port mapping %q must contain ':'", p)
		}
		if _, _, err := nat.ParsePortSpecs([]string{p}); err != nil {
			return fmt.Errorf("dockerexec: invalid port mapping %q: %w", p, err)
		}
	}
	return nil
}

// Status is the parsed result of `docker inspect`.
type Status struct {
	Status       string
	Running      bool
	StartedAt    string
	HealthStatus string
	RestartCount int
}

// Executor wraps docker CLI invocations as typed, timeout-bounded
// operations.
type Executor struct {
	binary      string
	auditLogger *logging.AuditLogger
	log         *logrus.Entry
}

// New returns an Executor. binary defaults to "docker" when empty.
func New(binary string, auditLogger *logging.AuditLogger, log *logrus.Entry) *Executor {
	if binary == "" {
		binary = "docker"
	}
	return &Executor{binary: binary, auditLogger: auditLogger, log: log}
}

func (e *Executor) audit(event string, fields map[string]interface{}) {
	if e.auditLogger != nil {
		e.auditLogger.LogEvent(event, fields)
	}
}

// run executes `docker <args...>` bounded by timeout, returning
// (success, combined-stdout-or-stderr).
func (e *Executor) run(ctx context.Context, timeout time.Duration, args ...string) (bool, string) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.binary, args...)
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

// DeployContainer implements `docker run -d ...` (§4.B).
func (e *Executor) DeployContainer(ctx context.Context, spec *DeploySpec) (bool, string) {
	if err := spec.Validate(); err != nil {
		return false, err.Error()
	}
	args := []string{"run", "-d"}
	if spec.ContainerName != "" {
		args = append(args, "--name", spec.ContainerName)
	}
	for k, v := range spec.Environment {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	for _, p := range spec.Ports {
		args = append(args, "-p", p)
	}
	for _, v := range spec.Volumes {
		args = append(args, "-v", v)
	}
	if spec.RestartPolicy != "" {
		args = append(args, "--restart", spec.RestartPolicy)
	}
	if len(spec.HealthCmd) > 0 {
		args = append(args, "--health-cmd", strings.Join(spec.HealthCmd, " "))
	}
	for k, v := range spec.Labels {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, spec.Image)

	ok, out := e.run(ctx, defaultTimeout, args...)
	if ok {
		e.audit("DOCKER_DEPLOY_SUCCESS", map[string]interface{}{"container": spec.ContainerName, "image": spec.Image})
	} else {
		e.audit("DOCKER_DEPLOY_FAILED", map[string]interface{}{"container": spec.ContainerName, "image": spec.Image, "error": out})
	}
	return ok, out
}

// GetStatus implements `docker inspect NAME`.
func (e *Executor) GetStatus(ctx context.Context, name string) (*Status, error) {
	ok, out := e.run(ctx, defaultTimeout, "inspect", name)
	if !ok {
		return nil, fmt.Errorf("docker inspect %s: %s", name, out)
	}
	var arr []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &arr); err != nil || len(arr) == 0 {
		return nil, fmt.Errorf("docker inspect %s: unparseable output", name)
	}
	state, _ := arr[0]["State"].(map[string]interface{})
	st := &Status{}
	if state != nil {
		st.Status, _ = state["Status"].(string)
		st.Running, _ = state["Running"].(bool)
		st.StartedAt, _ = state["StartedAt"].(string)
		if health, ok := state["Health"].(map[string]interface{}); ok {
			st.HealthStatus, _ = health["Status"].(string)
		}
	}
	if rc, ok := arr[0]["RestartCount"].(float64); ok {
		st.RestartCount = int(rc)
	}
	return st, nil
}

// Stop implements `docker stop -t T NAME`.
func (e *Executor) Stop(ctx context.Context, name string, timeoutSeconds int) (bool, string) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	ok, out := e.run(ctx, time.Duration(timeoutSeconds+5)*time.Second, "stop", "-t", strconv.Itoa(timeoutSeconds), name)
	e.auditResult(ok, "DOCKER_STOP", name, out)
	return ok, out
}

// Remove implements `docker rm [-f] [-v] NAME`.
func (e *Executor) Remove(ctx context.Context, name string, force, removeVolumes bool) (bool, string) {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	if removeVolumes {
		args = append(args, "-v")
	}
	args = append(args, name)
	ok, out := e.run(ctx, defaultTimeout, args...)
	e.auditResult(ok, "DOCKER_REMOVE", name, out)
	return ok, out
}

// Logs implements `docker logs --tail N [--since T] NAME`.
func (e *Executor) Logs(ctx context.Context, name string, tail int, since string) (bool, string) {
	args := []string{"logs", "--tail", strconv.Itoa(tail)}
	if since != "" {
		args = append(args, "--since", since)
	}
	args = append(args, name)
	return e.run(ctx, defaultTimeout, args...)
}

// Restart implements `docker restart -t T NAME`.
func (e *Executor) Restart(ctx context.Context, name string, timeoutSeconds int) (bool, string) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	ok, out := e.run(ctx, time.Duration(timeoutSeconds+5)*time.Second, "restart", "-t", strconv.Itoa(timeoutSeconds), name)
	e.auditResult(ok, "DOCKER_RESTART", name, out)
	return ok, out
}

// RemoveVolume implements `docker volume rm [-f] NAME`; "not found" is
// reported as success per §4.B.
func (e *Executor) RemoveVolume(ctx context.Context, name string, force bool) (bool, string) {
	args := []string{"volume", "rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, name)
	ok, out := e.run(ctx, defaultTimeout, args...)
	if !ok {
		lower := strings.ToLower(out)
		if strings.Contains(lower, "no such volume") || strings.Contains(lower, "not found") {
			e.audit("DOCKER_VOLUME_RM_SUCCESS", map[string]interface{}{"volume": name, "note": "already absent"})
			return true, out
		}
	}
	e.auditResult(ok, "DOCKER_VOLUME_RM", name, out)
	return ok, out
}

func (e *Executor) auditResult(ok bool, op, name, out string) {
	if ok {
		e.audit(op+"_SUCCESS", map[string]interface{}{"name": name})
	} else {
		e.audit(op+"_FAILED", map[string]interface{}{"name": name, "error": out})
	}
}

// StreamLogs runs `docker logs -f NAME` and invokes onLine for each output
// line until the context is cancelled or the process exits, mirroring
// docker_manager.go's readLogs bufio.Scanner idiom.
func (e *Executor) StreamLogs(ctx context.Context, name string, onLine func(line string)) error {
	cmd := exec.CommandContext(ctx, e.binary, "logs", "-f", name)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
	return cmd.Wait()
}
