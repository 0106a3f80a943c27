package orchestrator

import (
	"fmt"

	"superagent/internal/dockerexec"
)

// specFromConfig converts a rendered Docker-target config mapping into a
// dockerexec.DeploySpec, defaulting the container name to the
// "windflow-<id8>" convention from §8's scenario 1.
func specFromConfig(config map[string]interface{}, id8 string) (*dockerexec.DeploySpec, error) {
	spec := &dockerexec.DeploySpec{
		ContainerName: fmt.Sprintf("windflow-%s", id8),
		RestartPolicy: "unless-stopped",
	}

	image, _ := config["image"].(string)
	spec.Image = image

	if name, ok := config["container_name"].(string); ok && name != "" {
		spec.ContainerName = name
	}
	if rp, ok := config["restart_policy"].(string); ok && rp != "" {
		spec.RestartPolicy = rp
	}

	if rawPorts, ok := config["ports"].([]interface{}); ok {
		for _, p := range rawPorts {
			if s, ok := p.(string); ok {
				spec.Ports = append(spec.Ports, s)
			}
		}
	}
	if rawVolumes, ok := config["volumes"].([]interface{}); ok {
		for _, v := range rawVolumes {
			if s, ok := v.(string); ok {
				spec.Volumes = append(spec.Volumes, s)
			}
		}
	}
	if rawEnv, ok := config["environment"].(map[string]interface{}); ok {
		spec.Environment = make(map[string]string, len(rawEnv))
		for k, v := range rawEnv {
			spec.Environment[k] = fmt.Sprintf("%v", v)
		}
	}
	if rawLabels, ok := config["labels"].(map[string]interface{}); ok {
		spec.Labels = make(map[string]string, len(rawLabels))
		for k, v := range rawLabels {
			spec.Labels[k] = fmt.Sprintf("%v", v)
		}
	}
	if rawHealth, ok := config["health_cmd"].([]interface{}); ok {
		for _, h := range rawHealth {
			if s, ok := h.(string); ok {
				spec.HealthCmd = append(spec.HealthCmd, s)
			}
		}
	}

	return spec, spec.Validate()
}
