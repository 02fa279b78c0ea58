// Package generate implements the fifth pipeline stage: rendering validated
// tokens into a canonical intermediate representation and then into one or
// more textual export formats through per-format templates.
//
// Generation is deterministic: the same token sequence and format always
// produce byte-identical output.
package generate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"text/template"

	"github.com/adalundhe/prism/core/errors"
	"github.com/adalundhe/prism/core/token"
)

// Agent is the generator stage. New formats are registered as templates;
// the pipeline code never changes per format.
type Agent struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewAgent creates a generator with the built-in formats: css, scss, json,
// and tailwind.
func NewAgent() *Agent {
	a := &Agent{templates: make(map[string]*template.Template)}

	builtins := map[string]string{
		"css":      cssTemplate,
		"scss":     scssTemplate,
		"json":     jsonTemplate,
		"tailwind": tailwindTemplate,
	}
	for name, text := range builtins {
		if err := a.RegisterTemplate(name, text); err != nil {
			panic(err)
		}
	}
	return a
}

// RegisterTemplate adds or replaces an export format.
func (a *Agent) RegisterTemplate(name, text string) error {
	tmpl, err := template.New(name).Funcs(templateFuncs()).Parse(text)
	if err != nil {
		return fmt.Errorf("parsing template %q: %w", name, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.templates[name] = tmpl
	return nil
}

// Formats returns the registered format names in stable order.
func (a *Agent) Formats() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.templates))
	for name := range a.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate renders the tokens in the named format.
func (a *Agent) Generate(tokens []token.Validated, format string) (string, error) {
	a.mu.RLock()
	tmpl, ok := a.templates[format]
	a.mu.RUnlock()

	if !ok {
		return "", errors.New(errors.KindUnsupportedFormat,
			fmt.Sprintf("no template registered for format %q", format), nil)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, buildIR(tokens)); err != nil {
		return "", fmt.Errorf("rendering format %q: %w", format, err)
	}
	return buf.String(), nil
}

// templateFuncs returns the helpers available to format templates.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"json": func(v any) (string, error) {
			b, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
		"tailwindKey": tailwindKey,
	}
}

// tailwindKey maps categories onto Tailwind theme sections.
func tailwindKey(category string) string {
	switch token.Category(category) {
	case token.CategoryColor:
		return "colors"
	case token.CategorySpacing:
		return "spacing"
	case token.CategoryRadius:
		return "borderRadius"
	case token.CategoryShadow:
		return "boxShadow"
	case token.CategoryGradient:
		return "backgroundImage"
	case token.CategoryTypography:
		return "fontFamily"
	default:
		return category
	}
}
