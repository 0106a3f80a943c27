// Package render implements the Template Renderer (§4.A): a pure function
// (template, vars) -> rendered spec that recursively walks a nested mapping,
// substituting `{{ name }}` variable references and `{{ func(args) }}`
// generator calls in every string leaf.
//
// Grounded on original_source/backend/app/helper/template_renderer.py, which
// wraps Jinja2's Template(value).render(**context) recursively over
// dict/list/str/primitive and swallows per-leaf syntax/undefined errors by
// returning the original string. No templating-engine library appears
// anywhere in the example corpus, so this package is a small hand-rolled
// recursive-descent evaluator over the narrower `{{ name }}` / `{{ func(args)
// }}` grammar actually used by stack templates, rather than text/template
// (whose pipeline/action syntax does not map cleanly onto "leave malformed
// text unchanged").
package render

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var exprPattern = regexp.MustCompile(`\{\{\s*(.*?)\s*\}\}`)

// Renderer renders templates against a variable context with the fixed
// generator-function library from functions.go.
type Renderer struct {
	log *logrus.Entry
}

// New returns a Renderer. log may be nil, in which case a disabled logger is
// used.
func New(log *logrus.Entry) *Renderer {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Renderer{log: log}
}

// RenderValue recursively walks value (expected to be a map, slice, string,
// or primitive) substituting `{{ }}` expressions in every string leaf.
// Missing variables and syntax errors are non-fatal: the original string
// leaf is retained and a warning logged, matching the Jinja original's
// per-leaf try/except.
func (r *Renderer) RenderValue(value interface{}, vars map[string]interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = r.RenderValue(val, vars)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = r.RenderValue(item, vars)
		}
		return out
	case string:
		rendered, err := r.renderString(v, vars)
		if err != nil {
			r.log.Warnf("template render error in %q: %v", v, err)
			return v
		}
		return rendered
	default:
		return value
	}
}

// renderString substitutes every `{{ expr }}` occurrence in s. A string that
// is exactly one `{{ expr }}` with nothing else around it returns the raw
// evaluated value (so e.g. `{{ random_port() }}` yields an int, not
// "8080" wrapped in more text); otherwise results are stringified and
// concatenated, matching Jinja's string-interpolation behavior.
func (r *Renderer) renderString(s string, vars map[string]interface{}) (interface{}, error) {
	matches := exprPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		expr := s[matches[0][2]:matches[0][3]]
		return r.evalExpr(expr, vars)
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		expr := s[m[2]:m[3]]
		val, err := r.evalExpr(expr, vars)
		if err != nil {
			return nil, err
		}
		sb.WriteString(toDisplayString(val))
		last = m[1]
	}
	sb.WriteString(s[last:])
	return sb.String(), nil
}

func toDisplayString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// evalExpr evaluates the inside of one `{{ ... }}` — either a bare variable
// name or a single function call.
func (r *Renderer) evalExpr(expr string, vars map[string]interface{}) (interface{}, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", fmt.Errorf("empty expression")
	}
	if isIdentifier(expr) {
		if val, ok := vars[expr]; ok {
			return val, nil
		}
		return nil, fmt.Errorf("undefined variable %q", expr)
	}

	open := strings.IndexByte(expr, '(')
	if open < 0 || !strings.HasSuffix(expr, ")") {
		return nil, fmt.Errorf("unsupported expression syntax: %q", expr)
	}
	name := strings.TrimSpace(expr[:open])
	if !isIdentifier(name) {
		return nil, fmt.Errorf("invalid function name: %q", name)
	}
	fn, ok := library[name]
	if !ok {
		return nil, fmt.Errorf("unknown function: %q", name)
	}
	argsStr := expr[open+1 : len(expr)-1]
	args, err := parseArgs(argsStr, vars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return fn(args)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		if i > 0 && c >= '0' && c <= '9' {
			continue
		}
		return false
	}
	return true
}

// callArgs holds the positional and keyword arguments parsed out of one
// function-call expression.
type callArgs struct {
	positional []interface{}
	keyword    map[string]interface{}
}

func (a *callArgs) get(name string, index int) (interface{}, bool) {
	if v, ok := a.keyword[name]; ok {
		return v, true
	}
	if index >= 0 && index < len(a.positional) {
		return a.positional[index], true
	}
	return nil, false
}

func (a *callArgs) intArg(name string, def int) int {
	if v, ok := a.get(name, argIndex[name]); ok {
		switch t := v.(type) {
		case int:
			return t
		case float64:
			return int(t)
		case string:
			if n, err := strconv.Atoi(t); err == nil {
				return n
			}
		}
	}
	return def
}

func (a *callArgs) boolArg(name string, def bool) bool {
	if v, ok := a.get(name, argIndex[name]); ok {
		switch t := v.(type) {
		case bool:
			return t
		case string:
			if b, err := strconv.ParseBool(t); err == nil {
				return b
			}
		}
	}
	return def
}

func (a *callArgs) stringArg(name string, def string) string {
	if v, ok := a.get(name, argIndex[name]); ok {
		return toDisplayString(v)
	}
	return def
}

func (a *callArgs) positionalString(index int, def string) string {
	if index >= 0 && index < len(a.positional) {
		return toDisplayString(a.positional[index])
	}
	return def
}

func (a *callArgs) allPositionalStrings() []string {
	out := make([]string, 0, len(a.positional))
	for _, v := range a.positional {
		out = append(out, toDisplayString(v))
	}
	return out
}

// argIndex maps well-known keyword-argument names to their conventional
// positional slot, so that e.g. both `random_string(16)` and
// `random_string(length=16)` resolve the same way.
var argIndex = map[string]int{
	"length": 0, "include_special": 1, "charset": 1, "algo": 1,
	"min": 0, "max": 1, "start": 0, "max_attempts": 1,
	"prefix": 0, "style": 1,
}

// parseArgs splits a top-level comma-separated argument list into positional
// values and name=value keyword pairs, resolving bare identifiers against
// vars (Jinja treats an unquoted bare name inside a call as a variable
// reference) and literal string/number/bool tokens as themselves.
func parseArgs(s string, vars map[string]interface{}) (*callArgs, error) {
	out := &callArgs{keyword: map[string]interface{}{}}
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, part := range splitTopLevel(s) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if eq := topLevelEquals(part); eq >= 0 {
			key := strings.TrimSpace(part[:eq])
			valStr := strings.TrimSpace(part[eq+1:])
			val, err := parseLiteralOrVar(valStr, vars)
			if err != nil {
				return nil, err
			}
			out.keyword[key] = val
			continue
		}
		val, err := parseLiteralOrVar(part, vars)
		if err != nil {
			return nil, err
		}
		out.positional = append(out.positional, val)
	}
	return out, nil
}

func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	inQuote := byte(0)
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			if c == inQuote && (i == 0 || s[i-1] != '\\') {
				inQuote = 0
			}
		case c == '\'' || c == '"':
			inQuote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[last:i])
			last = i + 1
		}
	}
	parts = append(parts, s[last:])
	return parts
}

func topLevelEquals(s string) int {
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			inQuote = c
			continue
		}
		if c == '=' {
			return i
		}
	}
	return -1
}

func parseLiteralOrVar(s string, vars map[string]interface{}) (interface{}, error) {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], nil
	}
	if s == "true" || s == "True" {
		return true, nil
	}
	if s == "false" || s == "False" {
		return false, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	if isIdentifier(s) {
		if val, ok := vars[s]; ok {
			return val, nil
		}
		return nil, fmt.Errorf("undefined variable %q", s)
	}
	return nil, fmt.Errorf("unparseable argument: %q", s)
}
