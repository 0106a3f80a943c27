// Package orchestrator implements the Deployment Orchestrator (§4.H) and
// Recovery Sweeper (§4.I): lifecycle management of individual deployments
// through queuing, concurrent execution (one goroutine per started
// deployment, with no cap on how many run at once), exponential-backoff
// retries, crash recovery, and cancellation.
//
// Grounded on internal/deploy/deployment_engine.go's map[string]*Deployment
// + sync.RWMutex + per-deployment goroutine + status/log-append helper
// idiom, with the retry/backoff loop added per §4.H (the teacher has none)
// and the git/build-from-source branch removed (deployments here always
// start from an already-rendered spec).
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"superagent/internal/composeexec"
	"superagent/internal/dockerexec"
	"superagent/internal/eventbus"
	"superagent/internal/metrics"
	"superagent/internal/model"
	"superagent/internal/render"
	"superagent/internal/store"
)

// Retry policy (§4.H). These are vars rather than consts so tests can lower
// the delays without waiting out real minutes; production code never
// reassigns them.
var (
	MaxRetries        = 3
	InitialRetryDelay = 60 * time.Second
	MaxRetryDelay     = 600 * time.Second
)

// ErrInvalidState is returned by Start/Retry when the deployment is not in
// a state that permits the requested transition.
var ErrInvalidState = fmt.Errorf("orchestrator: deployment not in a startable state")

// Orchestrator owns deployment task lifecycle and coordinates the Renderer,
// executors, and event bus.
type Orchestrator struct {
	store    *store.Store
	renderer *render.Renderer
	docker   *dockerexec.Executor
	compose  *composeexec.Executor
	bus      *eventbus.Bus
	metrics  *metrics.Metrics
	log      *logrus.Entry

	mu          sync.Mutex
	activeTasks map[string]*TaskHandle
}

// New constructs an Orchestrator. log and mtr may be nil; mtr defaults to a
// fresh, unshared registry so callers that don't care about metrics never
// observe a nil pointer.
func New(st *store.Store, renderer *render.Renderer, docker *dockerexec.Executor, compose *composeexec.Executor, bus *eventbus.Bus, mtr *metrics.Metrics, log *logrus.Entry) *Orchestrator {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	if mtr == nil {
		mtr = metrics.New()
	}
	return &Orchestrator{
		store:       st,
		renderer:    renderer,
		docker:      docker,
		compose:     compose,
		bus:         bus,
		metrics:     mtr,
		log:         log,
		activeTasks: make(map[string]*TaskHandle),
	}
}

// Start loads the deployment, validates its state, and spawns a worker
// goroutine for it (§4.H).
func (o *Orchestrator) Start(ctx context.Context, deploymentID string) error {
	d, err := o.store.Deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return err
	}
	if d.Status != model.StatusPending && d.Status != model.StatusFailed {
		return ErrInvalidState
	}
	return o.launch(ctx, d)
}

// launch records the task start on d and spawns its worker goroutine.
func (o *Orchestrator) launch(ctx context.Context, d *model.Deployment) error {
	deploymentID := d.ID
	now := time.Now()
	d.TaskStartedAt = &now
	d.TaskRetryCount = 0
	if err := o.store.Deployments.Update(ctx, d); err != nil {
		return err
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	handle := newTaskHandle(deploymentID, cancel)

	o.mu.Lock()
	o.activeTasks[deploymentID] = handle
	o.mu.Unlock()
	o.metrics.ActiveTasks.Inc()

	go func() {
		start := time.Now()
		err := o.runWorker(workerCtx, deploymentID)
		handle.finish(err)
		o.mu.Lock()
		delete(o.activeTasks, deploymentID)
		o.mu.Unlock()
		o.metrics.ActiveTasks.Dec()
		o.metrics.DeployDuration.Observe(time.Since(start).Seconds())

		switch {
		case err == nil:
			o.metrics.DeploymentsTotal.WithLabelValues("succeeded").Inc()
			o.log.Infof("deployment %s finished successfully", deploymentID)
		case workerCtx.Err() == context.Canceled:
			o.metrics.DeploymentsTotal.WithLabelValues("cancelled").Inc()
			o.log.Warnf("deployment %s cancelled", deploymentID)
		default:
			o.metrics.DeploymentsTotal.WithLabelValues("failed").Inc()
			o.log.Errorf("deployment %s failed: %v", deploymentID, err)
		}
	}()

	return nil
}

// Cancel cancels the in-flight task for deploymentID, if any. It does not
// mutate the store row; the worker observes cancellation and writes a
// terminal status itself.
func (o *Orchestrator) Cancel(deploymentID string) {
	o.mu.Lock()
	handle, ok := o.activeTasks[deploymentID]
	o.mu.Unlock()
	if ok {
		handle.Cancel()
	}
}

// Retry implements §4.H's Retry(id, userID?): allowed iff the current
// status is PENDING or FAILED.
func (o *Orchestrator) Retry(ctx context.Context, deploymentID string) error {
	d, err := o.store.Deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return err
	}
	if d.Status != model.StatusPending && d.Status != model.StatusFailed {
		return ErrInvalidState
	}
	if err := o.UpdateStatus(ctx, deploymentID, model.StatusDeploying, "", logLine(logRetry, "Retry requested")); err != nil {
		return err
	}
	d, err = o.store.Deployments.GetByID(ctx, deploymentID)
	if err == nil {
		err = o.launch(ctx, d)
	}
	if err != nil {
		_ = o.UpdateStatus(ctx, deploymentID, model.StatusPending, "", logLine(logError, "Failed to start retry: %v", err))
		return err
	}
	return nil
}

// UpdateStatus implements §4.H's UpdateStatus: appends logs, manages
// deployed_at/stopped_at/deploy_duration_seconds, and publishes the
// corresponding events after commit.
func (o *Orchestrator) UpdateStatus(ctx context.Context, deploymentID string, newStatus model.DeploymentStatus, errMsg, logsAppend string) error {
	before, err := o.store.Deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return err
	}
	oldStatus := before.Status

	if err := o.store.Deployments.UpdateStatus(ctx, deploymentID, newStatus, errMsg, logsAppend); err != nil {
		return err
	}

	o.bus.Publish(eventbus.NewEvent(eventbus.DeploymentStatusChanged, deploymentID, map[string]interface{}{
		"deployment_id": deploymentID,
		"old_status":    oldStatus,
		"new_status":    newStatus,
	}))
	if logsAppend != "" {
		o.bus.Publish(eventbus.NewEvent(eventbus.DeploymentLogsUpdate, deploymentID, map[string]interface{}{
			"deployment_id": deploymentID,
			"logs":          logsAppend,
			"append":        true,
		}))
	}
	return nil
}

// Delete implements §4.H's Delete: cancel, tear down resources if the
// deployment was active, and only remove the row if teardown succeeded.
func (o *Orchestrator) Delete(ctx context.Context, deploymentID string) error {
	o.Cancel(deploymentID)

	d, err := o.store.Deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return err
	}

	if d.Status == model.StatusRunning || d.Status == model.StatusDeploying || d.Status == model.StatusPending {
		if ok, msg := o.teardown(ctx, d); !ok {
			_ = o.UpdateStatus(ctx, deploymentID, model.StatusFailed, msg, logLine(logError, "Failed to remove resources: %s", msg))
			return fmt.Errorf("orchestrator: teardown failed: %s", msg)
		}
	}

	return o.store.Deployments.Delete(ctx, deploymentID)
}

func (o *Orchestrator) teardown(ctx context.Context, d *model.Deployment) (bool, string) {
	stack, err := o.store.Stacks.GetByID(ctx, d.StackID)
	if err != nil {
		return false, err.Error()
	}

	containerName := fmt.Sprintf("windflow-%s", shortID(d.ID))

	switch stack.TargetType {
	case model.TargetDocker:
		ok, msg := o.docker.Remove(ctx, containerName, true, true)
		if !ok {
			return false, msg
		}
		if volumes, has := d.RenderedTargetParameters["volumes"].([]interface{}); has {
			for _, v := range volumes {
				name, _ := v.(string)
				if name == "" {
					continue
				}
				if ok, msg := o.docker.RemoveVolume(ctx, name, false); !ok {
					return false, msg
				}
			}
		}
		return true, ""
	default:
		projectName := d.Name
		ok, msg := o.compose.Remove(ctx, projectName, true)
		return ok, msg
	}
}

func shortID(id string) string {
	clean := id
	if len(clean) > 8 {
		return clean[:8]
	}
	return clean
}

// NewDeploymentID generates a fresh deployment ID.
func NewDeploymentID() string {
	return uuid.New().String()
}
