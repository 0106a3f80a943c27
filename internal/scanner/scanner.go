package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	dockerclient "github.com/docker/docker/client"

	"superagent/internal/metrics"
	"superagent/internal/model"
)

const probeTimeout = 8 * time.Second

// Scanner runs the fixed probe plan (§4.D) over a CommandExecutor.
type Scanner struct {
	exec    CommandExecutor
	host    string
	metrics *metrics.Metrics
}

// New returns a Scanner bound to the given executor and host label. mtr may
// be nil, in which case scan measurements are recorded against a private,
// unshared registry.
func New(exec CommandExecutor, host string, mtr *metrics.Metrics) *Scanner {
	if mtr == nil {
		mtr = metrics.New()
	}
	return &Scanner{exec: exec, host: host, metrics: mtr}
}

// safe runs fn and records any error into errs rather than aborting the
// scan, matching §4.D's "safe helper" wrapper.
func (s *Scanner) safe(errs *[]string, mu *sync.Mutex, label string, fn func() error) {
	if err := fn(); err != nil {
		mu.Lock()
		*errs = append(*errs, fmt.Sprintf("%s: %v", label, err))
		mu.Unlock()
	}
}

// Scan executes the full probe plan concurrently and returns a normalized
// ScanResult. Partial tool failures accumulate in Errors but never abort
// the scan; Success is true iff Errors is empty.
func (s *Scanner) Scan(ctx context.Context) *model.ScanResult {
	start := time.Now()
	result := &model.ScanResult{
		Host:           s.host,
		ScanDate:       time.Now(),
		Virtualization: make(map[string]model.ToolInfo),
		Kubernetes:     make(map[string]model.ToolInfo),
	}
	var errs []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.safe(&errs, &mu, "platform", func() error {
			p, err := s.probePlatform(ctx)
			if err == nil {
				result.Platform = p
			}
			return err
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.safe(&errs, &mu, "os", func() error {
			o, err := s.probeOS(ctx)
			if err == nil {
				result.OS = o
			}
			return err
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		virt := s.probeVirtualization(ctx, &errs, &mu)
		mu.Lock()
		for k, v := range virt {
			result.Virtualization[k] = v
		}
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.safe(&errs, &mu, "docker", func() error {
			d, err := s.probeDocker(ctx)
			if err == nil {
				result.Docker = d
			}
			return err
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		k8s := s.probeKubernetes(ctx, &errs, &mu)
		mu.Lock()
		for k, v := range k8s {
			result.Kubernetes[k] = v
		}
		mu.Unlock()
	}()

	wg.Wait()
	result.Errors = errs
	result.Success = len(errs) == 0

	s.metrics.ScanDuration.Observe(time.Since(start).Seconds())
	if result.Success {
		s.metrics.ScansTotal.WithLabelValues("success").Inc()
	} else {
		s.metrics.ScansTotal.WithLabelValues("failure").Inc()
	}
	return result
}

func (s *Scanner) run(ctx context.Context, cmd string) (string, error) {
	res, err := s.exec.Run(ctx, cmd, probeTimeout, true)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func normalizeArch(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "x86_64", "amd64":
		return "x86_64"
	case "i386", "i686", "x86":
		return "x86_32"
	case "aarch64", "arm64":
		return "arm64"
	case "armv8", "armv8l":
		return "armv8"
	case "armv7", "armv7l":
		return "armv7"
	case "armv6", "armv6l":
		return "armv6"
	default:
		return "unknown"
	}
}

func (s *Scanner) probePlatform(ctx context.Context) (model.PlatformInfo, error) {
	archRaw, err := s.run(ctx, "uname -m")
	if err != nil {
		return model.PlatformInfo{}, err
	}
	p := model.PlatformInfo{Arch: normalizeArch(archRaw)}

	if out, err := s.run(ctx, "grep 'model name' /proc/cpuinfo | head -1 | cut -d: -f2"); err == nil {
		p.CPUModel = strings.TrimSpace(out)
	} else if out, err := s.run(ctx, "sysctl -n machdep.cpu.brand_string"); err == nil {
		p.CPUModel = strings.TrimSpace(out)
	}

	if out, err := s.run(ctx, "nproc"); err == nil {
		if n, cerr := strconv.Atoi(strings.TrimSpace(out)); cerr == nil {
			p.Cores = n
		}
	} else if out, err := s.run(ctx, "sysctl -n hw.ncpu"); err == nil {
		if n, cerr := strconv.Atoi(strings.TrimSpace(out)); cerr == nil {
			p.Cores = n
		}
	}

	if out, err := s.run(ctx, "grep MemTotal /proc/meminfo | awk '{print $2}'"); err == nil {
		if kb, cerr := strconv.ParseFloat(strings.TrimSpace(out), 64); cerr == nil {
			p.MemGB = kb / (1024 * 1024)
		}
	} else if out, err := s.run(ctx, "sysctl -n hw.memsize"); err == nil {
		if b, cerr := strconv.ParseFloat(strings.TrimSpace(out), 64); cerr == nil {
			p.MemGB = b / (1024 * 1024 * 1024)
		}
	}

	return p, nil
}

func (s *Scanner) probeOS(ctx context.Context) (model.OSInfo, error) {
	system, err := s.run(ctx, "uname -s")
	if err != nil {
		return model.OSInfo{}, err
	}
	o := model.OSInfo{System: strings.TrimSpace(system)}
	if kernel, err := s.run(ctx, "uname -r"); err == nil {
		o.Kernel = kernel
	}
	if release, err := s.run(ctx, "cat /etc/os-release"); err == nil {
		o.Distribution, o.Version = parseOSRelease(release)
	} else if lsb, err := s.run(ctx, "lsb_release -ds"); err == nil {
		o.Distribution = strings.Trim(lsb, `"`)
	}
	return o, nil
}

func parseOSRelease(content string) (name, version string) {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "NAME=") {
			name = strings.Trim(strings.TrimPrefix(line, "NAME="), `"`)
		}
		if strings.HasPrefix(line, "VERSION=") {
			version = strings.Trim(strings.TrimPrefix(line, "VERSION="), `"`)
		}
	}
	return
}

func (s *Scanner) probeTool(ctx context.Context, cmd string) model.ToolInfo {
	out, err := s.run(ctx, cmd)
	if err != nil {
		return model.ToolInfo{Available: false, Error: err.Error()}
	}
	return model.ToolInfo{Available: true, Version: out}
}

func (s *Scanner) probeVirtualization(ctx context.Context, errs *[]string, mu *sync.Mutex) map[string]model.ToolInfo {
	tools := map[string]string{
		"vboxmanage":          "vboxmanage --version",
		"vagrant":             "vagrant --version",
		"pve":                 "pveversion",
		"qemu":                "qemu-system-x86_64 --version",
	}
	out := make(map[string]model.ToolInfo, len(tools)+2)
	for name, cmd := range tools {
		out[name] = s.probeTool(ctx, cmd)
	}
	if res, err := s.exec.Run(ctx, "test -e /dev/kvm", probeTimeout, false); err == nil {
		out["kvm"] = model.ToolInfo{Available: res.ExitStatus == 0}
	} else {
		mu.Lock()
		*errs = append(*errs, fmt.Sprintf("kvm: %v", err))
		mu.Unlock()
	}
	if res, err := s.exec.Run(ctx, "test -e /var/run/libvirt/libvirt-sock", probeTimeout, false); err == nil && res.ExitStatus == 0 {
		out["libvirt"] = model.ToolInfo{Available: true}
	} else {
		out["libvirt"] = model.ToolInfo{Available: false}
	}
	return out
}

func (s *Scanner) probeKubernetes(ctx context.Context, errs *[]string, mu *sync.Mutex) map[string]model.ToolInfo {
	tools := map[string]string{
		"kubectl":          "kubectl version --client -o json",
		"kubeadm":          "kubeadm version -o json",
		"k3s":              "k3s --version",
		"microk8s.kubectl": "microk8s.kubectl version --output=json",
	}
	out := make(map[string]model.ToolInfo, len(tools))
	for name, cmd := range tools {
		out[name] = s.probeTool(ctx, cmd)
	}
	return out
}

// probeDocker implements §4.D's docker facet, preferring a direct socket
// query when running locally and /var/run/docker.sock is reachable.
func (s *Scanner) probeDocker(ctx context.Context) (*model.DockerCapabilities, error) {
	if _, isLocal := s.exec.(*LocalExecutor); isLocal {
		if _, err := os.Stat("/var/run/docker.sock"); err == nil {
			if caps, err := probeDockerSocket(ctx); err == nil {
				return caps, nil
			}
		}
	}
	return s.probeDockerSubprocess(ctx)
}

// probeDockerSocket queries the Docker daemon directly via the SDK,
// adapted from internal/docker/docker.go's client.NewClientWithOpts usage.
func probeDockerSocket(ctx context.Context) (*model.DockerCapabilities, error) {
	cli, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	defer cli.Close()

	info, err := cli.Info(ctx)
	if err != nil {
		return nil, err
	}
	version, _ := cli.ServerVersion(ctx)

	caps := &model.DockerCapabilities{
		Installed:        true,
		Version:          version.Version,
		Running:          true,
		SocketAccessible: true,
	}
	caps.Swarm = &model.DockerSwarmInfo{}
	state := string(info.Swarm.LocalNodeState)
	caps.Swarm.Available = state != "" && state != "inactive"
	caps.Swarm.Active = state == "active"
	if info.Swarm.ControlAvailable {
		caps.Swarm.NodeRole = "manager"
	} else {
		caps.Swarm.NodeRole = "worker"
	}
	return caps, nil
}

// dockerInfoJSON is the subset of `docker info --format '{{json .}}'` this
// scanner reads.
type dockerInfoJSON struct {
	Swarm struct {
		LocalNodeState   string `json:"LocalNodeState"`
		ControlAvailable bool   `json:"ControlAvailable"`
	} `json:"Swarm"`
}

func (s *Scanner) probeDockerSubprocess(ctx context.Context) (*model.DockerCapabilities, error) {
	versionOut, err := s.run(ctx, "docker --version")
	if err != nil {
		return &model.DockerCapabilities{Installed: false}, nil
	}
	caps := &model.DockerCapabilities{Installed: true, Version: versionOut}

	infoOut, err := s.run(ctx, "docker info --format '{{json .}}'")
	if err == nil {
		caps.Running = true
		var parsed dockerInfoJSON
		if jerr := json.Unmarshal([]byte(infoOut), &parsed); jerr == nil {
			swarm := &model.DockerSwarmInfo{}
			swarm.Available = parsed.Swarm.LocalNodeState != "" && parsed.Swarm.LocalNodeState != "inactive"
			swarm.Active = parsed.Swarm.LocalNodeState == "active"
			if parsed.Swarm.ControlAvailable {
				swarm.NodeRole = "manager"
			} else {
				swarm.NodeRole = "worker"
			}
			caps.Swarm = swarm
		}
	}

	if _, err := s.run(ctx, "docker compose version"); err == nil {
		caps.Compose = &model.ToolInfo{Available: true}
	} else if _, err := s.run(ctx, "docker-compose --version"); err == nil {
		caps.Compose = &model.ToolInfo{Available: true}
	} else {
		caps.Compose = &model.ToolInfo{Available: false}
	}

	return caps, nil
}
