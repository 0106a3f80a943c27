package orchestrator

import (
	"context"
	"fmt"
	"time"

	"superagent/internal/composeexec"
	"superagent/internal/eventbus"
	"superagent/internal/model"
)

// runWorker implements §4.H's per-deployment worker loop: up to
// MaxRetries+1 attempts with exponential backoff, transitioning the row
// through DEPLOYING to a terminal status.
func (o *Orchestrator) runWorker(ctx context.Context, deploymentID string) error {
	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			if err := o.setRetryCount(ctx, deploymentID, attempt); err != nil {
				return err
			}
			o.metrics.RetriesTotal.WithLabelValues(o.targetTypeLabel(ctx, deploymentID)).Inc()
			delay := backoffDelay(attempt)
			select {
			case <-ctx.Done():
				return o.finishCancelled(deploymentID)
			case <-time.After(delay):
			}
		}

		if ctx.Err() != nil {
			return o.finishCancelled(deploymentID)
		}

		if err := o.UpdateStatus(ctx, deploymentID, model.StatusDeploying, "", logLine(logInfo, "Deployment starting")); err != nil {
			return err
		}
		o.bus.Publish(eventbus.NewEvent(eventbus.DeploymentStarted, deploymentID, nil))

		err := o.attempt(ctx, deploymentID)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return o.finishCancelled(deploymentID)
		}

		lastErr = err
		_ = o.UpdateStatus(ctx, deploymentID, model.StatusDeploying, "", logLine(logError, "%v", err))
	}

	finalMsg := fmt.Sprintf("After %d attempts: %v", MaxRetries, lastErr)
	_ = o.UpdateStatus(ctx, deploymentID, model.StatusFailed, finalMsg, logLine(logError, finalMsg))
	o.bus.Publish(eventbus.NewEvent(eventbus.DeploymentFailed, deploymentID, map[string]interface{}{
		"deployment_id": deploymentID,
		"error":         finalMsg,
	}))
	return lastErr
}

// attempt performs one deploy attempt: render (reusing the persisted
// config/variables snapshot, never re-rendering) and dispatch by target
// type, then commit RUNNING on success.
func (o *Orchestrator) attempt(ctx context.Context, deploymentID string) error {
	d, err := o.store.Deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return err
	}
	stack, err := o.store.Stacks.GetByID(ctx, d.StackID)
	if err != nil {
		return err
	}

	switch stack.TargetType {
	case model.TargetDocker:
		if err := o.deployDocker(ctx, d); err != nil {
			return err
		}
	default:
		if err := o.deployCompose(ctx, d, stack); err != nil {
			return err
		}
	}

	if err := o.UpdateStatus(ctx, deploymentID, model.StatusRunning, "", logLine(logSuccess, "Deployment completed")); err != nil {
		return err
	}
	o.bus.Publish(eventbus.NewEvent(eventbus.DeploymentCompleted, deploymentID, nil))
	return nil
}

func (o *Orchestrator) deployDocker(ctx context.Context, d *model.Deployment) error {
	spec, err := specFromConfig(d.Config, shortID(d.ID))
	if err != nil {
		return err
	}
	if ok, msg := o.docker.DeployContainer(ctx, spec); !ok {
		return fmt.Errorf("docker deploy: %s", msg)
	}
	return nil
}

func (o *Orchestrator) deployCompose(ctx context.Context, d *model.Deployment, stack *model.Stack) error {
	if err := composeexec.Validate(d.Config); err != nil {
		return err
	}
	path := fmt.Sprintf("/var/lib/windflow/deployments/%s/docker-compose.yml", d.ID)
	if err := composeexec.EmitFile(d.Config, path); err != nil {
		return err
	}
	ok, msg := o.compose.Deploy(ctx, path, d.Name, nil)
	if !ok {
		return fmt.Errorf("compose deploy: %s", msg)
	}
	return nil
}

// targetTypeLabel resolves a deployment's stack target type for metrics
// labeling, falling back to "unknown" rather than failing the retry.
func (o *Orchestrator) targetTypeLabel(ctx context.Context, deploymentID string) string {
	d, err := o.store.Deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return "unknown"
	}
	stack, err := o.store.Stacks.GetByID(ctx, d.StackID)
	if err != nil {
		return "unknown"
	}
	return string(stack.TargetType)
}

func (o *Orchestrator) setRetryCount(ctx context.Context, deploymentID string, attempt int) error {
	d, err := o.store.Deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return err
	}
	d.TaskRetryCount = attempt
	return o.store.Deployments.Update(ctx, d)
}

// backoffDelay implements exponential backoff base 2 from InitialRetryDelay,
// capped at MaxRetryDelay: min(INITIAL * 2^(attempt-1), MAX).
func backoffDelay(attempt int) time.Duration {
	delay := InitialRetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > MaxRetryDelay {
			return MaxRetryDelay
		}
	}
	if delay > MaxRetryDelay {
		return MaxRetryDelay
	}
	return delay
}

func (o *Orchestrator) finishCancelled(deploymentID string) error {
	_ = o.UpdateStatus(context.Background(), deploymentID, model.StatusFailed, "cancelled", logLine(logError, "cancelled"))
	return context.Canceled
}
