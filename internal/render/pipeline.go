package render

import "superagent/internal/model"

// MergeAndRenderVariables implements §4.A's variable-merging contract:
// start from each stack variable's default, overlay user-provided values,
// then render the merged mapping against itself with an empty context so
// that generator calls are resolved. Stack.VariableOrder (if set) fixes the
// iteration order per §9's design note that defaults render in the stack's
// declared insertion order; unordered variables fall back to map order.
func (r *Renderer) MergeAndRenderVariables(stack *model.Stack, userValues map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(stack.Variables))

	order := stack.VariableOrder
	if len(order) == 0 {
		for name := range stack.Variables {
			order = append(order, name)
		}
	}

	for _, name := range order {
		spec, ok := stack.Variables[name]
		if !ok {
			continue
		}
		if v, ok := userValues[name]; ok {
			merged[name] = v
		} else if spec.Default != nil {
			merged[name] = spec.Default
		}
	}
	for name, v := range userValues {
		if _, known := stack.Variables[name]; !known {
			merged[name] = v
		}
	}

	rendered := r.RenderValue(merged, map[string]interface{}{})
	return rendered.(map[string]interface{})
}

// RenderTemplate implements the second pass of §4.A: render the stack's
// template mapping using the already-rendered variables as context, with
// deploymentName added to the context after variable-render and before
// template-render.
func (r *Renderer) RenderTemplate(template map[string]interface{}, renderedVars map[string]interface{}, deploymentName string) map[string]interface{} {
	context := make(map[string]interface{}, len(renderedVars)+1)
	for k, v := range renderedVars {
		context[k] = v
	}
	context["deployment_name"] = deploymentName

	result := r.RenderValue(template, context)
	return result.(map[string]interface{})
}
