package scanner

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

// fakeExecutor maps exact command strings to canned results, letting the
// probe plan be exercised without any real subprocess or SSH session.
type fakeExecutor struct {
	results map[string]CommandResult
	errs    map[string]error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{results: make(map[string]CommandResult), errs: make(map[string]error)}
}

func (f *fakeExecutor) ok(cmd, stdout string) *fakeExecutor {
	f.results[cmd] = CommandResult{Stdout: stdout}
	return f
}

func (f *fakeExecutor) fail(cmd string) *fakeExecutor {
	f.errs[cmd] = fmt.Errorf("command %q failed", cmd)
	return f
}

func (f *fakeExecutor) Run(_ context.Context, command string, _ time.Duration, requireSuccess bool) (CommandResult, error) {
	if err, ok := f.errs[command]; ok {
		return CommandResult{}, err
	}
	if res, ok := f.results[command]; ok {
		return res, nil
	}
	if requireSuccess {
		return CommandResult{ExitStatus: 1}, fmt.Errorf("command %q not stubbed", command)
	}
	return CommandResult{ExitStatus: 1}, nil
}

func TestNormalizeArch(t *testing.T) {
	cases := map[string]string{
		"x86_64":  "x86_64",
		"amd64":   "x86_64",
		"aarch64": "arm64",
		"arm64":   "arm64",
		"armv7l":  "armv7",
		"i686":    "x86_32",
		"sparc":   "unknown",
	}
	for in, want := range cases {
		if got := normalizeArch(in); got != want {
			t.Errorf("normalizeArch(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseOSRelease(t *testing.T) {
	content := "NAME=\"Ubuntu\"\nVERSION=\"22.04.3 LTS (Jammy Jellyfish)\"\nID=ubuntu\n"
	name, version := parseOSRelease(content)
	if name != "Ubuntu" {
		t.Errorf("name = %q, want Ubuntu", name)
	}
	if version != "22.04.3 LTS (Jammy Jellyfish)" {
		t.Errorf("version = %q, want 22.04.3 LTS (Jammy Jellyfish)", version)
	}
}

func TestProbePlatform(t *testing.T) {
	exec := newFakeExecutor().
		ok("uname -m", "x86_64").
		ok("grep 'model name' /proc/cpuinfo | head -1 | cut -d: -f2", " Intel Xeon ").
		ok("nproc", "8").
		ok("grep MemTotal /proc/meminfo | awk '{print $2}'", "16777216")
	s := New(exec, "host-1", nil)

	p, err := s.probePlatform(context.Background())
	if err != nil {
		t.Fatalf("probePlatform: %v", err)
	}
	if p.Arch != "x86_64" {
		t.Errorf("Arch = %q, want x86_64", p.Arch)
	}
	if p.CPUModel != "Intel Xeon" {
		t.Errorf("CPUModel = %q, want Intel Xeon", p.CPUModel)
	}
	if p.Cores != 8 {
		t.Errorf("Cores = %d, want 8", p.Cores)
	}
	if p.MemGB < 15.9 || p.MemGB > 16.1 {
		t.Errorf("MemGB = %v, want ~16", p.MemGB)
	}
}

func TestProbeOSParsesDistro(t *testing.T) {
	exec := newFakeExecutor().
		ok("uname -s", "Linux").
		ok("uname -r", "6.1.0-generic").
		ok("cat /etc/os-release", "NAME=\"Debian\"\nVERSION=\"12\"\n")
	s := New(exec, "host-1", nil)

	o, err := s.probeOS(context.Background())
	if err != nil {
		t.Fatalf("probeOS: %v", err)
	}
	if o.System != "Linux" || o.Distribution != "Debian" || o.Version != "12" {
		t.Errorf("unexpected OSInfo: %+v", o)
	}
}

func TestProbeDockerSubprocessNotInstalled(t *testing.T) {
	exec := newFakeExecutor().fail("docker --version")
	s := New(exec, "host-1", nil)

	caps, err := s.probeDockerSubprocess(context.Background())
	if err != nil {
		t.Fatalf("probeDockerSubprocess: %v", err)
	}
	if caps.Installed {
		t.Fatal("expected Installed=false when docker --version fails")
	}
}

func TestProbeDockerSubprocessSwarmManager(t *testing.T) {
	exec := newFakeExecutor().
		ok("docker --version", "Docker version 24.0.7").
		ok("docker info --format '{{json .}}'", `{"Swarm":{"LocalNodeState":"active","ControlAvailable":true}}`).
		ok("docker compose version", "Docker Compose version v2.20.0")
	s := New(exec, "host-1", nil)

	caps, err := s.probeDockerSubprocess(context.Background())
	if err != nil {
		t.Fatalf("probeDockerSubprocess: %v", err)
	}
	if !caps.Installed || !caps.Running {
		t.Fatalf("expected Installed and Running, got %+v", caps)
	}
	if caps.Swarm == nil || !caps.Swarm.Available || !caps.Swarm.Active || caps.Swarm.NodeRole != "manager" {
		t.Fatalf("unexpected swarm state: %+v", caps.Swarm)
	}
	if caps.Compose == nil || !caps.Compose.Available {
		t.Fatalf("expected compose available, got %+v", caps.Compose)
	}
}

func TestScanAccumulatesPartialFailures(t *testing.T) {
	exec := newFakeExecutor().
		ok("uname -m", "x86_64").
		fail("grep 'model name' /proc/cpuinfo | head -1 | cut -d: -f2").
		fail("sysctl -n machdep.cpu.brand_string").
		ok("nproc", "4").
		fail("uname -s"). // forces the "os" probe into the errs slice
		fail("docker --version").
		fail("sysctl -n hw.memsize").
		fail("grep MemTotal /proc/meminfo | awk '{print $2}'")
	s := New(exec, "host-1", nil)

	result := s.Scan(context.Background())
	if result.Success {
		t.Fatal("expected Success=false because of the forced os-probe failure")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "os:") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an 'os:' entry in Errors, got %v", result.Errors)
	}
	if result.Docker == nil || result.Docker.Installed {
		t.Fatalf("expected Docker.Installed=false, got %+v", result.Docker)
	}
}
