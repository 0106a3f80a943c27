package model

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleStack = `
metadata:
  name: nginx-site
  version: "1.0"
  target_type: docker
template:
  image: "nginx:{{ tag }}"
  ports:
    - "{{ port }}:80"
variables:
  tag:
    type: string
    default: "1.25"
  port:
    type: integer
    default: 8080
  title:
    type: string
    default: "hello"
target_parameters:
  volumes:
    - "{{ deployment_name }}_data"
`

func writeStackFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write stack file: %v", err)
	}
	return path
}

func TestLoadStackFilePreservesVariableOrder(t *testing.T) {
	path := writeStackFile(t, sampleStack)
	stack, err := LoadStackFile(path)
	if err != nil {
		t.Fatalf("LoadStackFile: %v", err)
	}

	want := []string{"tag", "port", "title"}
	if len(stack.VariableOrder) != len(want) {
		t.Fatalf("VariableOrder = %v, want %v", stack.VariableOrder, want)
	}
	for i, name := range want {
		if stack.VariableOrder[i] != name {
			t.Fatalf("VariableOrder[%d] = %q, want %q", i, stack.VariableOrder[i], name)
		}
	}
	if stack.ID != "nginx-site" || stack.TargetType != TargetDocker {
		t.Fatalf("unexpected stack identity: %+v", stack)
	}
	if len(stack.Variables) != 3 {
		t.Fatalf("Variables len = %d, want 3", len(stack.Variables))
	}
}

func TestLoadStackFileDefaultsDeploymentName(t *testing.T) {
	path := writeStackFile(t, sampleStack)
	stack, err := LoadStackFile(path)
	if err != nil {
		t.Fatalf("LoadStackFile: %v", err)
	}
	if stack.DeploymentName != "windflow-{{ generate_uuid_short() }}" {
		t.Fatalf("DeploymentName = %q, want the default template", stack.DeploymentName)
	}
}

func TestLoadStackFileRejectsMissingName(t *testing.T) {
	path := writeStackFile(t, `
metadata:
  target_type: docker
template: {}
variables: {}
`)
	if _, err := LoadStackFile(path); err == nil {
		t.Fatal("expected error for missing metadata.name")
	}
}

func TestLoadStackFileRejectsMissingTargetType(t *testing.T) {
	path := writeStackFile(t, `
metadata:
  name: foo
template: {}
variables: {}
`)
	if _, err := LoadStackFile(path); err == nil {
		t.Fatal("expected error for missing metadata.target_type")
	}
}

func TestLoadStackFileRejectsMissingFile(t *testing.T) {
	if _, err := LoadStackFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for a nonexistent file")
	}
}

func TestInferTargetTypePriority(t *testing.T) {
	cases := []struct {
		name string
		scan ScanResult
		want TargetType
	}{
		{
			name: "swarm wins over plain docker",
			scan: ScanResult{
				Docker: &DockerCapabilities{Installed: true, Swarm: &DockerSwarmInfo{Available: true}},
			},
			want: TargetDockerSwarm,
		},
		{
			name: "docker wins over kubernetes",
			scan: ScanResult{
				Docker:     &DockerCapabilities{Installed: true},
				Kubernetes: map[string]ToolInfo{"kubectl": {Available: true}},
			},
			want: TargetDocker,
		},
		{
			name: "kubernetes wins over virtualization",
			scan: ScanResult{
				Kubernetes:     map[string]ToolInfo{"kubectl": {Available: true}},
				Virtualization: map[string]ToolInfo{"kvm": {Available: true}},
			},
			want: TargetKubernetes,
		},
		{
			name: "virtualization wins over physical",
			scan: ScanResult{
				Virtualization: map[string]ToolInfo{"kvm": {Available: true}},
			},
			want: TargetVM,
		},
		{
			name: "physical is the fallback",
			scan: ScanResult{},
			want: TargetPhysical,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.scan.InferTargetType(); got != tc.want {
				t.Fatalf("InferTargetType() = %s, want %s", got, tc.want)
			}
		})
	}
}
