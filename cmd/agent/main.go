// Command windflow-agent is the composition root (§9: "pass explicit
// handles through the application's composition root; at most, wrap them in
// a single Services struct"). It wires the deployments store (encrypted and
// file-backed when orchestrator.data_dir is set, as it is by default;
// in-memory otherwise), in-memory Stacks/Targets/Users stores, the
// Docker/Compose executors, the Renderer, the Event Bus, the Connection
// Registry, the Event Bridge, the Deployment Orchestrator, the Recovery
// Sweeper, and the WebSocket Session Handler together and serves.
//
// Adapted from cmd/agent/main.go's cobra root command + viper config
// loading; the PaaS-era subcommands (install, customer, license, app
// catalog) are replaced by the orchestrator-facing ones the new domain
// needs, matching the general cobra+subcommand layout the teacher uses.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"superagent/internal/auth"
	"superagent/internal/bridge"
	"superagent/internal/composeexec"
	"superagent/internal/config"
	"superagent/internal/dockerexec"
	"superagent/internal/eventbus"
	"superagent/internal/logging"
	"superagent/internal/metrics"
	"superagent/internal/orchestrator"
	"superagent/internal/registry"
	"superagent/internal/render"
	"superagent/internal/store"
	"superagent/internal/wsserver"
)

var (
	cfgFile   string
	logLevel  string
	version   = "0.1.0"
)

// Services bundles every explicit handle the composition root wires, per
// §9's guidance against process-global singletons.
type Services struct {
	Config       *config.Config
	Store        *store.Store
	Renderer     *render.Renderer
	Docker       *dockerexec.Executor
	Compose      *composeexec.Executor
	Bus          *eventbus.Bus
	Registry     *registry.Registry
	Bridge       *bridge.Bridge
	Orchestrator *orchestrator.Orchestrator
	Sweeper      *orchestrator.RecoverySweeper
	WSServer     *wsserver.Server
	Validator    *auth.SessionValidator
	Audit        *logging.AuditLogger
	Metrics      *metrics.Metrics
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "windflow-agent",
		Short: "WindFlow deployment orchestrator agent",
		Long: `windflow-agent renders stack templates, executes Docker/Compose
deployments, streams status and logs over WebSocket, and recovers in-flight
work after a crash.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.windflow.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				lvl = logrus.InfoLevel
			}
			logrus.SetLevel(lvl)
			logrus.SetFormatter(&logrus.JSONFormatter{})

			svc, err := newServices()
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			defer svc.Audit.Close()

			return svc.Run()
		},
	}
}

func newServices() (*Services, error) {
	path := cfgFile
	if path == "" {
		cfg, err := config.LoadDefault()
		if err != nil {
			return nil, err
		}
		return assemble(cfg)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return assemble(cfg)
}

// newDeploymentsStore picks the encrypted file-backed Deployments store
// (persisting under orchestrator.data_dir, keyed by security.encryption_key)
// when a data directory is configured, and falls back to the bare
// in-memory store otherwise.
func newDeploymentsStore(cfg *config.Config) (store.Deployments, error) {
	if cfg.Orchestrator.DataDir == "" {
		return store.NewMemDeployments(), nil
	}
	key, err := config.EncryptionKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("load encryption key: %w", err)
	}
	return store.NewFileDeployments(cfg.Orchestrator.DataDir, key)
}

func assemble(cfg *config.Config) (*Services, error) {
	var audit *logging.AuditLogger
	if cfg.Security.AuditLogEnabled {
		a, err := logging.NewAuditLogger(cfg.Security.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit logger: %w", err)
		}
		audit = a
	}

	deployments, err := newDeploymentsStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize deployments store: %w", err)
	}

	st := &store.Store{
		Deployments: deployments,
		Stacks:      store.NewMemStacks(nil),
		Targets:     store.NewMemTargets(nil),
		Users:       store.NewMemUsers(nil),
	}

	renderer := render.New(logrus.NewEntry(logrus.StandardLogger()))
	dockerExec := dockerexec.New(cfg.Docker.Binary, audit, logrus.NewEntry(logrus.StandardLogger()))
	composeExec := composeexec.New(cfg.Compose.Binary, audit)
	bus := eventbus.New(logrus.NewEntry(logrus.StandardLogger()))
	reg := registry.New(logrus.NewEntry(logrus.StandardLogger()))
	br := bridge.New(bus, reg)
	mtr := metrics.New()

	orch := orchestrator.New(st, renderer, dockerExec, composeExec, bus, mtr, logrus.NewEntry(logrus.StandardLogger()))

	staleMinutes := int(cfg.Orchestrator.StaleAfter / time.Minute)
	timeoutMinutes := int(cfg.Orchestrator.TimeoutAfter / time.Minute)
	sweeper := orchestrator.NewRecoverySweeper(orch, staleMinutes, timeoutMinutes)

	validator := auth.NewSessionValidator(st.Users)
	ws := wsserver.New(reg, bus, st, validator, orch, mtr, logrus.NewEntry(logrus.StandardLogger()))

	return &Services{
		Config:       cfg,
		Store:        st,
		Renderer:     renderer,
		Docker:       dockerExec,
		Compose:      composeExec,
		Bus:          bus,
		Registry:     reg,
		Bridge:       br,
		Orchestrator: orch,
		Sweeper:      sweeper,
		WSServer:     ws,
		Validator:    validator,
		Audit:        audit,
		Metrics:      mtr,
	}, nil
}

// Run starts the Event Bridge, the Recovery Sweeper, and the WebSocket
// server, blocking until SIGINT/SIGTERM.
func (s *Services) Run() error {
	s.Bridge.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Sweeper.RunPeriodically(ctx, s.Config.Orchestrator.SweepInterval)

	httpServer := &http.Server{
		Addr:    s.Config.WebSocket.ListenAddr,
		Handler: s.WSServer.Router(),
	}

	go func() {
		logrus.Infof("windflow-agent listening on %s", s.Config.WebSocket.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("websocket server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logrus.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
