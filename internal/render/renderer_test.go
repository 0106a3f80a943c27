package render

import "testing"

func TestRenderValueBareVariable(t *testing.T) {
	r := New(nil)
	out := r.RenderValue("{{ name }}", map[string]interface{}{"name": "db"})
	if out != "db" {
		t.Fatalf("got %v, want db", out)
	}
}

func TestRenderValueBareVariablePreservesType(t *testing.T) {
	r := New(nil)
	out := r.RenderValue("{{ port }}", map[string]interface{}{"port": 5432})
	if out != 5432 {
		t.Fatalf("got %v (%T), want int 5432", out, out)
	}
}

func TestRenderValueInterpolatesStringAroundExpr(t *testing.T) {
	r := New(nil)
	out := r.RenderValue("postgres://{{ host }}:{{ port }}/db", map[string]interface{}{
		"host": "localhost",
		"port": 5432,
	})
	if out != "postgres://localhost:5432/db" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderValueUndefinedVariableLeavesOriginal(t *testing.T) {
	r := New(nil)
	out := r.RenderValue("{{ missing }}", map[string]interface{}{})
	if out != "{{ missing }}" {
		t.Fatalf("got %q, want original string preserved", out)
	}
}

func TestRenderValueRecursesIntoMapsAndSlices(t *testing.T) {
	r := New(nil)
	vars := map[string]interface{}{"tag": "v2"}
	tmpl := map[string]interface{}{
		"image": "app:{{ tag }}",
		"env":   []interface{}{"TAG={{ tag }}"},
	}
	out := r.RenderValue(tmpl, vars).(map[string]interface{})
	if out["image"] != "app:v2" {
		t.Fatalf("image = %v", out["image"])
	}
	env := out["env"].([]interface{})
	if env[0] != "TAG=v2" {
		t.Fatalf("env[0] = %v", env[0])
	}
}

func TestRenderValueNonStringLeavesUnchanged(t *testing.T) {
	r := New(nil)
	if out := r.RenderValue(42, nil); out != 42 {
		t.Fatalf("got %v", out)
	}
	if out := r.RenderValue(true, nil); out != true {
		t.Fatalf("got %v", out)
	}
}

func TestBase64RoundTrip(t *testing.T) {
	r := New(nil)
	vars := map[string]interface{}{"secret": "hunter2"}
	encoded := r.RenderValue("{{ base64_encode(secret) }}", vars)
	decoded := r.RenderValue("{{ base64_decode(encoded) }}", map[string]interface{}{"encoded": encoded})
	if decoded != "hunter2" {
		t.Fatalf("round trip got %v", decoded)
	}
}

func TestRandomStringLength(t *testing.T) {
	r := New(nil)
	out := r.RenderValue("{{ random_string(length=20) }}", nil).(string)
	if len(out) != 20 {
		t.Fatalf("len = %d, want 20", len(out))
	}
}

func TestGeneratePasswordDefaultLength(t *testing.T) {
	r := New(nil)
	out := r.RenderValue("{{ generate_password() }}", nil).(string)
	if len(out) != 24 {
		t.Fatalf("len = %d, want 24", len(out))
	}
}

func TestGenerateUUIDShortLength(t *testing.T) {
	r := New(nil)
	out := r.RenderValue("{{ generate_uuid_short() }}", nil).(string)
	if len(out) != 12 {
		t.Fatalf("len = %d, want 12", len(out))
	}
}

func TestHashValueSHA256(t *testing.T) {
	r := New(nil)
	out := r.RenderValue("{{ hash_value('hello', algo='sha256') }}", nil)
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if out != want {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestRandomPortBounds(t *testing.T) {
	r := New(nil)
	for i := 0; i < 20; i++ {
		out := r.RenderValue("{{ random_port(min=100, max=200) }}", nil).(int)
		if out < 100 || out > 200 {
			t.Fatalf("port %d out of bounds", out)
		}
	}
}

func TestEnvFunctionFallsBackToDefault(t *testing.T) {
	r := New(nil)
	out := r.RenderValue("{{ env('WINDFLOW_TEST_VAR_UNSET', 'fallback') }}", nil)
	if out != "fallback" {
		t.Fatalf("got %v", out)
	}
}

func TestUnknownFunctionIsNonFatal(t *testing.T) {
	r := New(nil)
	out := r.RenderValue("{{ nope() }}", nil)
	if out != "{{ nope() }}" {
		t.Fatalf("got %v, want original string on unknown function", out)
	}
}
