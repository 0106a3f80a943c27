// Command windflow-cli is an operator tool exercising the Template
// Renderer (§4.A) and Capability Scanner (§4.D) directly against stack
// files and hosts, without requiring the CRUD/API layer that §1 scopes out
// as an external collaborator.
//
// Adapted from cmd/cli/main.go and cmd/cli/app.go's cobra root command +
// olekukonko/tablewriter output idiom, repointed from PaaS app-catalog/
// customer/license management at deployment-orchestrator concerns.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"superagent/internal/model"
	"superagent/internal/render"
	"superagent/internal/scanner"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "windflow-cli",
		Short: "WindFlow operator CLI",
		Long:  "windflow-cli renders stack templates and scans hosts for deployment capabilities.",
	}

	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func renderCmd() *cobra.Command {
	var varFlags []string

	cmd := &cobra.Command{
		Use:   "render <stack-file>",
		Short: "Render a stack's template against variable overrides and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := model.LoadStackFile(args[0])
			if err != nil {
				return err
			}

			overrides, err := parseVarFlags(varFlags)
			if err != nil {
				return err
			}

			r := render.New(nil)
			renderedVars := r.MergeAndRenderVariables(stack, overrides)

			nameValue := r.RenderValue(stack.DeploymentName, renderedVars)
			name := fmt.Sprintf("%v", nameValue)

			renderedTemplate := r.RenderTemplate(stack.Template, renderedVars, name)

			out := map[string]interface{}{
				"deployment_name": name,
				"variables":       renderedVars,
				"config":          renderedTemplate,
			}
			data, err := yaml.Marshal(out)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&varFlags, "var", "v", nil, "variable override as name=value (repeatable)")
	return cmd
}

func parseVarFlags(flags []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(flags))
	for _, f := range flags {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --var %q, expected name=value", f)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

func scanCmd() *cobra.Command {
	var (
		host     string
		port     int
		user     string
		password string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Probe a host for Docker/Swarm/Kubernetes/virtualization capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			var exec scanner.CommandExecutor
			hostLabel := "localhost"
			if host != "" && host != "localhost" && host != "127.0.0.1" {
				sshExec, err := scanner.NewSSHExecutor(ctx, host, port, user, password, timeout)
				if err != nil {
					return fmt.Errorf("ssh connect: %w", err)
				}
				defer sshExec.Close()
				exec = sshExec
				hostLabel = host
			} else {
				exec = &scanner.LocalExecutor{}
			}

			result := scanner.New(exec, hostLabel, nil).Scan(ctx)
			printScanResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "target host (empty/localhost probes the local machine)")
	cmd.Flags().IntVar(&port, "port", 22, "SSH port")
	cmd.Flags().StringVar(&user, "user", "", "SSH user")
	cmd.Flags().StringVar(&password, "password", "", "SSH password")
	cmd.Flags().DurationVar(&timeout, "timeout", 20*time.Second, "overall scan timeout")
	return cmd
}

func printScanResult(r *model.ScanResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})

	rows := [][]string{
		{"host", r.Host},
		{"success", fmt.Sprintf("%v", r.Success)},
		{"arch", r.Platform.Arch},
		{"cpu", r.Platform.CPUModel},
		{"cores", fmt.Sprintf("%d", r.Platform.Cores)},
		{"mem_gb", fmt.Sprintf("%.1f", r.Platform.MemGB)},
		{"os", fmt.Sprintf("%s %s", r.OS.System, r.OS.Version)},
		{"inferred_target_type", string(r.InferTargetType())},
	}
	if r.Docker != nil {
		rows = append(rows, []string{"docker.installed", fmt.Sprintf("%v", r.Docker.Installed)})
		rows = append(rows, []string{"docker.running", fmt.Sprintf("%v", r.Docker.Running)})
		if r.Docker.Swarm != nil {
			rows = append(rows, []string{"docker.swarm.active", fmt.Sprintf("%v", r.Docker.Swarm.Active)})
		}
	}
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()

	if len(r.Errors) > 0 {
		fmt.Fprintln(os.Stderr, "probe errors:")
		for _, e := range r.Errors {
			fmt.Fprintln(os.Stderr, " -", e)
		}
	}
}
