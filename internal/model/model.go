// Package model defines the core data shapes shared across the orchestrator,
// executors, scanner, and store: stacks, targets, deployments, and scan
// results.
package model

import "time"

// TargetType enumerates where a stack can be deployed.
type TargetType string

const (
	TargetDocker        TargetType = "docker"
	TargetDockerCompose TargetType = "docker_compose"
	TargetDockerSwarm   TargetType = "docker_swarm"
	TargetKubernetes    TargetType = "kubernetes"
	TargetVM            TargetType = "vm"
	TargetPhysical      TargetType = "physical"
)

// VariableType enumerates the scalar kinds a stack variable can take.
type VariableType string

const (
	VarString   VariableType = "string"
	VarNumber   VariableType = "number"
	VarInteger  VariableType = "integer"
	VarBoolean  VariableType = "boolean"
	VarPassword VariableType = "password"
	VarTextarea VariableType = "textarea"
)

// VariableSpec describes one entry of a Stack's variable schema.
type VariableSpec struct {
	Type        VariableType  `yaml:"type" json:"type"`
	Label       string        `yaml:"label" json:"label"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Default     interface{}   `yaml:"default,omitempty" json:"default,omitempty"`
	Required    bool          `yaml:"required,omitempty" json:"required,omitempty"`
	Group       string        `yaml:"group,omitempty" json:"group,omitempty"`
	Help        string        `yaml:"help,omitempty" json:"help,omitempty"`
	Pattern     string        `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Enum        []string      `yaml:"enum,omitempty" json:"enum,omitempty"`
	EnumLabels  []string      `yaml:"enum_labels,omitempty" json:"enum_labels,omitempty"`
	Minimum     *float64      `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum     *float64      `yaml:"maximum,omitempty" json:"maximum,omitempty"`
	MinLength   *int          `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength   *int          `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	DependsOn   []string      `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// StackMetadata is the required/optional `metadata` block of a stack file.
type StackMetadata struct {
	Name               string     `yaml:"name"`
	Version            string     `yaml:"version"`
	Category           string     `yaml:"category"`
	Author             string     `yaml:"author"`
	License            string     `yaml:"license"`
	Description        string     `yaml:"description"`
	TargetType         TargetType `yaml:"target_type"`
	IconURL            string     `yaml:"icon_url,omitempty"`
	DocumentationURL   string     `yaml:"documentation_url,omitempty"`
	Screenshots        []string   `yaml:"screenshots,omitempty"`
	Tags               []string   `yaml:"tags,omitempty"`
	IsPublic           bool       `yaml:"is_public,omitempty"`
	DeploymentName     string     `yaml:"deployment_name,omitempty"`
}

// Stack is a reusable parameterized deployment template plus variable schema.
type Stack struct {
	ID                string                  `json:"id"`
	TargetType        TargetType              `json:"target_type"`
	Template          map[string]interface{}  `json:"template"`
	Variables         map[string]VariableSpec `json:"variables"`
	TargetParameters  map[string]interface{}  `json:"target_parameters,omitempty"`
	DeploymentName    string                  `json:"deployment_name"`
	Version           string                  `json:"version"`
	VariableOrder     []string                `json:"-"` // insertion order, per §9 fixed-order rendering
}

// Credentials holds remote-execution credentials for a Target.
type Credentials struct {
	Host       string `json:"host,omitempty"`
	User       string `json:"user,omitempty"`
	Password   string `json:"password,omitempty"`
	SudoUser   string `json:"sudo_user,omitempty"`
	SudoPass   string `json:"sudo_password,omitempty"`
	UseSudo    bool   `json:"use_sudo,omitempty"`
}

// Target is a host with known credentials and detected capabilities.
type Target struct {
	ID           string      `json:"id"`
	Host         string      `json:"host"`
	Port         int         `json:"port"`
	Type         TargetType  `json:"type"`
	Credentials  Credentials `json:"credentials"`
	Status       string      `json:"status"`
	ScanDate     *time.Time  `json:"scan_date,omitempty"`
	ScanSuccess  bool        `json:"scan_success"`
	PlatformInfo interface{} `json:"platform_info,omitempty"`
	OSInfo       interface{} `json:"os_info,omitempty"`
}

// DeploymentStatus is the terminal/non-terminal state of a Deployment.
type DeploymentStatus string

const (
	StatusPending     DeploymentStatus = "PENDING"
	StatusDeploying   DeploymentStatus = "DEPLOYING"
	StatusRunning     DeploymentStatus = "RUNNING"
	StatusFailed      DeploymentStatus = "FAILED"
	StatusStopped     DeploymentStatus = "STOPPED"
	StatusRollingBack DeploymentStatus = "ROLLING_BACK"
)

// Deployment is a single attempt (with possible retries) to materialize a
// stack on a target.
type Deployment struct {
	ID                       string                 `json:"id"`
	StackID                  string                 `json:"stack_id"`
	TargetID                 string                 `json:"target_id"`
	OrganizationID           string                 `json:"organization_id"`
	Name                     string                 `json:"name"`
	Status                   DeploymentStatus       `json:"status"`
	Config                   map[string]interface{} `json:"config"`
	Variables                map[string]interface{} `json:"variables"`
	RenderedTargetParameters map[string]interface{} `json:"rendered_target_parameters,omitempty"`
	Logs                     string                 `json:"logs"`
	ErrorMessage             string                 `json:"error_message,omitempty"`
	DeployedAt               *time.Time             `json:"deployed_at,omitempty"`
	StoppedAt                *time.Time             `json:"stopped_at,omitempty"`
	DeployDurationSeconds    *float64               `json:"deploy_duration_seconds,omitempty"`
	TaskStartedAt            *time.Time             `json:"task_started_at,omitempty"`
	TaskRetryCount           int                    `json:"task_retry_count"`
	CreatedAt                time.Time              `json:"created_at"`
	UpdatedAt                time.Time              `json:"updated_at"`
}

// ToolInfo records whether an optional capability tool was found and its
// reported version.
type ToolInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PlatformInfo is the hardware facet of a ScanResult.
type PlatformInfo struct {
	Arch     string `json:"arch"`
	CPUModel string `json:"cpu_model,omitempty"`
	Cores    int    `json:"cores,omitempty"`
	MemGB    float64 `json:"mem_gb,omitempty"`
}

// OSInfo is the operating-system facet of a ScanResult.
type OSInfo struct {
	System       string `json:"system"`
	Distribution string `json:"distribution,omitempty"`
	Version      string `json:"version,omitempty"`
	Kernel       string `json:"kernel,omitempty"`
}

// DockerSwarmInfo captures the swarm sub-state of DockerCapabilities.
type DockerSwarmInfo struct {
	Available bool   `json:"available"`
	Active    bool   `json:"active"`
	NodeRole  string `json:"node_role,omitempty"` // "manager" | "worker"
}

// DockerCapabilities is the docker facet of a ScanResult.
type DockerCapabilities struct {
	Installed        bool             `json:"installed"`
	Version          string           `json:"version,omitempty"`
	Running          bool             `json:"running"`
	SocketAccessible bool             `json:"socket_accessible"`
	Compose          *ToolInfo        `json:"compose,omitempty"`
	Swarm            *DockerSwarmInfo `json:"swarm,omitempty"`
}

// ScanResult is the normalized outcome of a capability scan.
type ScanResult struct {
	Host            string                 `json:"host"`
	ScanDate        time.Time              `json:"scan_date"`
	Success         bool                   `json:"success"`
	Platform        PlatformInfo           `json:"platform"`
	OS              OSInfo                 `json:"os"`
	Virtualization  map[string]ToolInfo    `json:"virtualization"`
	Docker          *DockerCapabilities    `json:"docker,omitempty"`
	Kubernetes      map[string]ToolInfo    `json:"kubernetes"`
	Errors          []string               `json:"errors"`
}

// InferTargetType implements §4.D's type-inference rule from a completed scan.
func (s *ScanResult) InferTargetType() TargetType {
	if s.Docker != nil && s.Docker.Swarm != nil && s.Docker.Swarm.Available {
		return TargetDockerSwarm
	}
	if s.Docker != nil && s.Docker.Installed {
		return TargetDocker
	}
	for _, t := range s.Kubernetes {
		if t.Available {
			return TargetKubernetes
		}
	}
	for _, t := range s.Virtualization {
		if t.Available {
			return TargetVM
		}
	}
	return TargetPhysical
}
