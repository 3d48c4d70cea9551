// Package prompt compiles and renders prompt templates.
//
// Templates use Jinja syntax ({{ var }} substitution, {% if %} conditionals,
// {% for %} loops) via pongo2. pongo2 silently renders unknown variables as
// empty strings; prompts sent to an LLM with missing substitutions are a
// silent quality bug, so Render additionally requires every top-level
// variable referenced by the template source to be present.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// Template is a compiled, named prompt template.
type Template struct {
	name     string
	source   string
	tpl      *pongo2.Template
	required []string
}

// New compiles a template. Syntax errors fail here, not at render time.
func New(name, source string) (*Template, error) {
	tpl, err := pongo2.FromString(source)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	return &Template{
		name:     name,
		source:   source,
		tpl:      tpl,
		required: requiredVariables(source),
	}, nil
}

// Name returns the template's registered name.
func (t *Template) Name() string {
	return t.name
}

// RequiredVariables returns the top-level variable names the template
// references, sorted.
func (t *Template) RequiredVariables() []string {
	out := make([]string, len(t.required))
	copy(out, t.required)
	return out
}

// Render substitutes vars into the template. Referencing a variable the
// caller did not supply is an error.
func (t *Template) Render(vars map[string]any) (string, error) {
	var missing []string
	for _, name := range t.required {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("template %q: missing variables: %s", t.name, strings.Join(missing, ", "))
	}

	ctx := make(pongo2.Context, len(vars))
	for k, v := range vars {
		ctx[k] = v
	}

	out, err := t.tpl.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("template %q: %w", t.name, err)
	}
	return out, nil
}

var (
	outputTagRe  = regexp.MustCompile(`\{\{-?\s*(.*?)\s*-?\}\}`)
	controlTagRe = regexp.MustCompile(`\{%-?\s*(\w+)\s*(.*?)\s*-?%\}`)
	identRe      = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	stringLitRe  = regexp.MustCompile(`"[^"]*"|'[^']*'`)

	templateKeywords = map[string]bool{
		"and": true, "or": true, "not": true, "in": true, "is": true,
		"true": true, "false": true, "none": true,
		"True": true, "False": true, "None": true,
		"loop": true, "forloop": true, "block": true, "super": true,
	}
)

// requiredVariables scans the template source for the top-level identifiers
// it references, excluding names bound by for/set tags and builtins. Only
// the leading identifier of each expression counts: attribute access,
// subscripts and filters resolve from it.
func requiredVariables(source string) []string {
	bound := map[string]bool{}
	refs := map[string]bool{}

	addExpr := func(expr string) {
		expr = stringLitRe.ReplaceAllString(expr, "")
		// Filters resolve against the leading value, not a variable.
		for _, segment := range splitExprSegments(expr) {
			if ident := identRe.FindString(segment); ident != "" && !templateKeywords[ident] {
				refs[ident] = true
			}
		}
	}

	for _, m := range controlTagRe.FindAllStringSubmatch(source, -1) {
		tag, rest := m[1], m[2]
		switch tag {
		case "for":
			// {% for a, b in expr %}
			if idx := strings.Index(rest, " in "); idx >= 0 {
				for _, name := range identRe.FindAllString(rest[:idx], -1) {
					bound[name] = true
				}
				addExpr(rest[idx+4:])
			}
		case "set":
			// {% set name = expr %}
			if idx := strings.Index(rest, "="); idx >= 0 {
				if name := identRe.FindString(rest[:idx]); name != "" {
					bound[name] = true
				}
				addExpr(rest[idx+1:])
			}
		case "if", "elif":
			addExpr(rest)
		}
	}

	for _, m := range outputTagRe.FindAllStringSubmatch(source, -1) {
		addExpr(m[1])
	}

	var required []string
	for name := range refs {
		if !bound[name] {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	return required
}

// splitExprSegments breaks an expression into segments whose leading
// identifier is a variable reference: boolean operators and comparison
// operands start new segments, while dots, subscripts and filter chains
// stay attached to their base.
func splitExprSegments(expr string) []string {
	separators := []string{" and ", " or ", "==", "!=", ">=", "<=", ">", "<", "+", "-", "*", "(", ","}
	segments := []string{expr}
	for _, sep := range separators {
		var next []string
		for _, seg := range segments {
			next = append(next, strings.Split(seg, sep)...)
		}
		segments = next
	}

	var out []string
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		seg = strings.TrimPrefix(seg, "not ")
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
