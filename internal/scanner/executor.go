// Package scanner implements the Capability Scanner (§4.D): a fixed probe
// plan run over a CommandExecutor (local subprocess or SSH) that synthesizes
// a normalized ScanResult.
//
// Grounded on internal/deploy/docker/docker_manager.go's subprocess-call
// idiom for the local executor, and on the teacher's go.mod golang.org/x/crypto
// dependency for the SSH executor (golang.org/x/crypto/ssh), generalized from
// the teacher's local-only scope. The optional direct-Docker-socket probe is
// adapted from internal/docker/docker.go's SDK client usage (§4.D: "prefer
// direct socket queries... over subprocess").
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// CommandResult is the normalized outcome of one probe command.
type CommandResult struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

// CommandExecutor runs a shell command with a bounded timeout. When
// requireSuccess is true and the command exits non-zero, an error is
// returned in addition to the populated CommandResult.
type CommandExecutor interface {
	Run(ctx context.Context, command string, timeout time.Duration, requireSuccess bool) (CommandResult, error)
}

// LocalExecutor runs commands as local subprocesses via `/bin/sh -c`.
type LocalExecutor struct {
	SudoUser     string
	SudoPassword string
	UseSudo      bool
}

// Run implements CommandExecutor for local subprocess execution.
func (l *LocalExecutor) Run(ctx context.Context, command string, timeout time.Duration, requireSuccess bool) (CommandResult, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shellCmd := command
	var stdinPipe string
	if l.UseSudo {
		shellCmd = fmt.Sprintf("sudo -S -p '' -u %s %s", l.SudoUser, command)
		stdinPipe = l.SudoPassword + "\n"
	}

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", shellCmd)
	if stdinPipe != "" {
		cmd.Stdin = strings.NewReader(stdinPipe)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if exitErr, ok := err.(*exec.ExitError); ok {
		res.ExitStatus = exitErr.ExitCode()
	} else if err != nil {
		return res, err
	}
	if requireSuccess && res.ExitStatus != 0 {
		return res, fmt.Errorf("command %q exited %d: %s", command, res.ExitStatus, res.Stderr)
	}
	return res, nil
}

// SSHExecutor runs commands over a single multiplexed SSH session per call.
type SSHExecutor struct {
	Client       *ssh.Client
	SudoUser     string
	SudoPassword string
	UseSudo      bool
}

// NewSSHExecutor dials host:port with the given credentials.
func NewSSHExecutor(ctx context.Context, host string, port int, user, password string, timeout time.Duration) (*SSHExecutor, error) {
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	return &SSHExecutor{Client: client}, nil
}

// Run implements CommandExecutor over SSH, opening one session per call.
func (s *SSHExecutor) Run(ctx context.Context, command string, timeout time.Duration, requireSuccess bool) (CommandResult, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := s.Client.NewSession()
	if err != nil {
		return CommandResult{}, fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	shellCmd := command
	var stdinPipe string
	if s.UseSudo {
		shellCmd = fmt.Sprintf("sudo -S -p '' -u %s %s", s.SudoUser, command)
		stdinPipe = s.SudoPassword + "\n"
	}
	if stdinPipe != "" {
		session.Stdin = strings.NewReader(stdinPipe)
	}

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(shellCmd) }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return CommandResult{}, ctx.Err()
	case err := <-done:
		res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
		if exitErr, ok := err.(*ssh.ExitError); ok {
			res.ExitStatus = exitErr.ExitStatus()
		} else if err != nil {
			return res, err
		}
		if requireSuccess && res.ExitStatus != 0 {
			return res, fmt.Errorf("command %q exited %d: %s", command, res.ExitStatus, res.Stderr)
		}
		return res, nil
	}
}

// Close releases the underlying SSH client connection.
func (s *SSHExecutor) Close() error {
	return s.Client.Close()
}
