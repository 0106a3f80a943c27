package orchestrator

import (
	"context"
	"fmt"
	"time"

	"superagent/internal/model"
	"superagent/internal/store"
)

// CreateDeployment implements the "create deployment" data flow from §2:
// render the stack's variables and template exactly once, check
// (organization_id, name) uniqueness, and persist a new row in PENDING.
// Per §3 invariants 2/3/7, this is the only place a deployment's config and
// variables snapshots are ever produced; retries reuse them unmodified, and
// NameConflict is surfaced to the caller rather than silently retried.
func (o *Orchestrator) CreateDeployment(ctx context.Context, stackID, targetID, organizationID string, userVars map[string]interface{}) (*model.Deployment, error) {
	stack, err := o.store.Stacks.GetByID(ctx, stackID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load stack: %w", err)
	}

	renderedVars := o.renderer.MergeAndRenderVariables(stack, userVars)

	nameValue := o.renderer.RenderValue(stack.DeploymentName, renderedVars)
	name := fmt.Sprintf("%v", nameValue)

	renderedTemplate := o.renderer.RenderTemplate(stack.Template, renderedVars, name)

	var renderedTargetParams map[string]interface{}
	if len(stack.TargetParameters) > 0 {
		renderedTargetParams = o.renderer.RenderTemplate(stack.TargetParameters, renderedVars, name)
	}

	now := time.Now()
	d := &model.Deployment{
		ID:                       NewDeploymentID(),
		StackID:                  stackID,
		TargetID:                 targetID,
		OrganizationID:           organizationID,
		Name:                     name,
		Status:                   model.StatusPending,
		Config:                   renderedTemplate,
		Variables:                renderedVars,
		RenderedTargetParameters: renderedTargetParams,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	if err := o.store.Deployments.Create(ctx, d); err != nil {
		if err == store.ErrNameConflict {
			return nil, store.ErrNameConflict
		}
		return nil, fmt.Errorf("orchestrator: create deployment: %w", err)
	}

	return d, nil
}
