package render

import (
	"testing"

	"superagent/internal/model"
)

func testStack() *model.Stack {
	return &model.Stack{
		ID:             "postgres",
		DeploymentName: "windflow-{{ generate_uuid_short() }}",
		Variables: map[string]model.VariableSpec{
			"db_name":  {Default: "app"},
			"password": {Default: "{{ generate_password(length=16) }}"},
		},
		VariableOrder: []string{"db_name", "password"},
		Template: map[string]interface{}{
			"image": "postgres:15",
			"environment": map[string]interface{}{
				"POSTGRES_DB":       "{{ db_name }}",
				"POSTGRES_PASSWORD": "{{ password }}",
				"CONTAINER_NAME":    "{{ deployment_name }}",
			},
		},
	}
}

func TestMergeAndRenderVariablesAppliesDefaults(t *testing.T) {
	r := New(nil)
	stack := testStack()
	rendered := r.MergeAndRenderVariables(stack, nil)
	if rendered["db_name"] != "app" {
		t.Fatalf("db_name = %v, want default app", rendered["db_name"])
	}
	pw, _ := rendered["password"].(string)
	if len(pw) != 16 {
		t.Fatalf("password len = %d, want 16 (generator resolved)", len(pw))
	}
}

func TestMergeAndRenderVariablesUserOverrideWins(t *testing.T) {
	r := New(nil)
	stack := testStack()
	rendered := r.MergeAndRenderVariables(stack, map[string]interface{}{"db_name": "override"})
	if rendered["db_name"] != "override" {
		t.Fatalf("db_name = %v, want override", rendered["db_name"])
	}
}

func TestMergeAndRenderVariablesKeepsUnknownUserValues(t *testing.T) {
	r := New(nil)
	stack := testStack()
	rendered := r.MergeAndRenderVariables(stack, map[string]interface{}{"extra": "value"})
	if rendered["extra"] != "value" {
		t.Fatalf("extra = %v, want value to pass through unknown keys", rendered["extra"])
	}
}

func TestRenderTemplateSubstitutesVariablesAndDeploymentName(t *testing.T) {
	r := New(nil)
	stack := testStack()
	vars := r.MergeAndRenderVariables(stack, map[string]interface{}{"db_name": "orders"})
	out := r.RenderTemplate(stack.Template, vars, "windflow-abc123")

	env := out["environment"].(map[string]interface{})
	if env["POSTGRES_DB"] != "orders" {
		t.Fatalf("POSTGRES_DB = %v", env["POSTGRES_DB"])
	}
	if env["CONTAINER_NAME"] != "windflow-abc123" {
		t.Fatalf("CONTAINER_NAME = %v, want deployment_name substituted", env["CONTAINER_NAME"])
	}
}

func TestRenderTemplateIsIdempotentForGeneratorFreeTemplates(t *testing.T) {
	r := New(nil)
	vars := map[string]interface{}{"tag": "v1"}
	tmpl := map[string]interface{}{"image": "app:{{ tag }}"}

	first := r.RenderTemplate(tmpl, vars, "d1")
	second := r.RenderTemplate(first, vars, "d1")

	if first["image"] != second["image"] {
		t.Fatalf("re-rendering an already-rendered, generator-free template changed output: %v -> %v", first["image"], second["image"])
	}
}

// Variables render against an empty context (only generator calls resolve);
// one variable's default cannot reference another's value.
func TestMergeAndRenderVariablesDoesNotCrossReference(t *testing.T) {
	r := New(nil)
	stack := &model.Stack{
		Variables: map[string]model.VariableSpec{
			"base":      {Default: "root"},
			"composite": {Default: "{{ base }}-suffix"},
		},
		VariableOrder: []string{"base", "composite"},
	}
	rendered := r.MergeAndRenderVariables(stack, nil)
	if rendered["composite"] != "{{ base }}-suffix" {
		t.Fatalf("composite = %v, want literal left unchanged (no cross-variable context)", rendered["composite"])
	}
}
