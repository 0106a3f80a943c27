package dockerexec

import "testing"

func TestDeploySpecValidateRequiresImage(t *testing.T) {
	s := &DeploySpec{}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestDeploySpecValidateRejectsBadContainerName(t *testing.T) {
	s := &DeploySpec{Image: "nginx", ContainerName: "../etc/passwd"}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for invalid container name")
	}
}

func TestDeploySpecValidateAcceptsNormalContainerName(t *testing.T) {
	s := &DeploySpec{Image: "nginx", ContainerName: "windflow-ab12cd34"}
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeploySpecValidateRequiresPortColon(t *testing.T) {
	s := &DeploySpec{Image: "nginx", Ports: []string{"8080"}}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for port mapping without ':'")
	}
}

func TestDeploySpecValidateRejectsMalformedPort(t *testing.T) {
	s := &DeploySpec{Image: "nginx", Ports: []string{"abc:def"}}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for unparseable port mapping")
	}
}

func TestDeploySpecValidateAcceptsNormalPort(t *testing.T) {
	s := &DeploySpec{Image: "nginx", Ports: []string{"8080:80"}}
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewDefaultsBinaryToDocker(t *testing.T) {
	e := New("", nil, nil)
	if e.binary != "docker" {
		t.Fatalf("binary = %q, want docker", e.binary)
	}
}

func TestNewKeepsExplicitBinary(t *testing.T) {
	e := New("/usr/local/bin/docker", nil, nil)
	if e.binary != "/usr/local/bin/docker" {
		t.Fatalf("binary = %q", e.binary)
	}
}
