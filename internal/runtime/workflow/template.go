package workflow

import (
	"github.com/aymerick/raymond"

	"github.com/runloom/orchestra/pkg/apperror"
)

// Template wraps a parsed Handlebars template, following the
// parse-once/exec-many pattern used for rendering elsewhere in this
// codebase's template service. Workflow nodes parse their
// input_template/merge_template once at load time so a malformed template
// fails ConfigError before any run starts, instead of mid-execution.
type Template struct {
	tmpl *raymond.Template
	raw  string
}

// ParseTemplate compiles source. An empty source renders to "".
func ParseTemplate(source string) (*Template, error) {
	if source == "" {
		return &Template{raw: source}, nil
	}
	t, err := raymond.Parse(source)
	if err != nil {
		return nil, apperror.ErrConfig.WithMessage("invalid template").WithInternal(err)
	}
	return &Template{tmpl: t, raw: source}, nil
}

// Render executes the template against ctx ({input, nodes.*.output, loop.*}
// per spec §4.J).
func (t *Template) Render(ctx map[string]any) (string, error) {
	if t.tmpl == nil {
		return "", nil
	}
	out, err := t.tmpl.Exec(ctx)
	if err != nil {
		return "", apperror.NewInternal("template render failed", err)
	}
	return out, nil
}

func (t *Template) String() string { return t.raw }
