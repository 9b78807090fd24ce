// Package prompts holds the fixed prompt templates used for question
// answering. Templates use Go template syntax ({{.name}}) and are validated
// when constructed, so a typo in a placeholder fails at startup rather than
// on the first request.
package prompts

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/tmc/langchaingo/prompts"
)

var ErrInvalidConfig = errors.New("invalid prompt config")

// Config describes one prompt
type Config struct {
	Name               string
	SystemInstructions string
	Template           string
	InputVariables     []string
}

// Prompt is a validated Config ready for formatting
type Prompt struct {
	name     string
	system   string
	vars     []string
	template prompts.PromptTemplate
}

var placeholderRe = regexp.MustCompile(`\{\{\s*\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// New validates cfg: the template must be non-empty, every input variable must
// appear as a placeholder, every placeholder must be declared, and the
// template must render with all variables set.
func New(cfg Config) (*Prompt, error) {
	if cfg.Template == "" {
		return nil, fmt.Errorf("%w: %s: empty template", ErrInvalidConfig, cfg.Name)
	}

	declared := make(map[string]bool, len(cfg.InputVariables))
	for _, v := range cfg.InputVariables {
		if declared[v] {
			return nil, fmt.Errorf("%w: %s: duplicate input variable %q", ErrInvalidConfig, cfg.Name, v)
		}
		declared[v] = true
	}

	used := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(cfg.Template, -1) {
		used[m[1]] = true
		if !declared[m[1]] {
			return nil, fmt.Errorf("%w: %s: placeholder %q is not an input variable", ErrInvalidConfig, cfg.Name, m[1])
		}
	}
	for _, v := range cfg.InputVariables {
		if !used[v] {
			return nil, fmt.Errorf("%w: %s: input variable %q not used in template", ErrInvalidConfig, cfg.Name, v)
		}
	}

	if err := prompts.CheckValidTemplate(cfg.Template, prompts.TemplateFormatGoTemplate, cfg.InputVariables); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, cfg.Name, err)
	}

	tmpl := prompts.NewPromptTemplate(cfg.Template, cfg.InputVariables)
	tmpl.TemplateFormat = prompts.TemplateFormatGoTemplate

	return &Prompt{
		name:     cfg.Name,
		system:   cfg.SystemInstructions,
		vars:     append([]string(nil), cfg.InputVariables...),
		template: tmpl,
	}, nil
}

// MustNew is New for package-level templates known at compile time
func MustNew(cfg Config) *Prompt {
	p, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Prompt) Name() string { return p.name }

// System returns the system instructions, possibly empty
func (p *Prompt) System() string { return p.system }

// Format renders the template. Every input variable must be present in values.
func (p *Prompt) Format(values map[string]any) (string, error) {
	for _, v := range p.vars {
		if _, ok := values[v]; !ok {
			return "", fmt.Errorf("prompt %s: missing value for %q", p.name, v)
		}
	}
	out, err := p.template.Format(values)
	if err != nil {
		return "", fmt.Errorf("prompt %s: %w", p.name, err)
	}
	return out, nil
}
