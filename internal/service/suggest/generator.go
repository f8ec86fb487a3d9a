// Package suggest drafts campaign messages from canned templates. Output is
// deterministic; no model is called.
package suggest

import (
	"fmt"
	"strings"

	"github.com/osteele/liquid"

	apperrors "github.com/acme/crm-pro/pkg/errors"
)

// Template kinds offered in the message composer.
const (
	KindVIP       = "vip"
	KindReturning = "returning"
	KindNew       = "new"
)

var templates = map[string]string{
	KindVIP:       `Hello {{ name }}, as one of our VIP customers, we have an exclusive offer for you based on your recent interest in {{ product }}.`,
	KindReturning: `Hi {{ name }}, it's been a while! We've updated our catalog and thought you might like these new items.`,
	KindNew:       `Welcome {{ name }}! Thanks for joining us. Here is a 10% discount code for your first order: WELCOME10`,
}

const fallbackTemplate = `Hello {{ name }}, checking in regarding your order.`

const adjustmentTemplate = `

[AI Adjustment based on "{{ prompt }}"]: We also noticed you prefer premium quality, so we've highlighted our top-tier selection just for you.`

// Request describes a suggestion.
type Request struct {
	Kind       string `json:"template_type"`
	ClientName string `json:"client_name"`
	Product    string `json:"product,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
}

// Generator renders suggestions. It is safe for concurrent use.
type Generator struct {
	engine   *liquid.Engine
	parsed   map[string]*liquid.Template
	fallback *liquid.Template
	adjust   *liquid.Template
}

// NewGenerator parses the built-in templates.
func NewGenerator() (*Generator, error) {
	engine := liquid.NewEngine()
	g := &Generator{engine: engine, parsed: make(map[string]*liquid.Template, len(templates))}

	for kind, src := range templates {
		tpl, err := engine.ParseString(src)
		if err != nil {
			return nil, fmt.Errorf("suggest: parse %s template: %w", kind, err)
		}
		g.parsed[kind] = tpl
	}

	var err error
	if g.fallback, err = parse(engine, fallbackTemplate); err != nil {
		return nil, fmt.Errorf("suggest: parse fallback template: %w", err)
	}
	if g.adjust, err = parse(engine, adjustmentTemplate); err != nil {
		return nil, fmt.Errorf("suggest: parse adjustment template: %w", err)
	}
	return g, nil
}

// Kinds lists the known template kinds.
func Kinds() []string {
	return []string{KindVIP, KindReturning, KindNew}
}

// Suggest renders a message. Unknown kinds use a generic check-in text. A
// non-empty prompt appends an adjustment paragraph.
func (g *Generator) Suggest(req Request) (string, error) {
	if strings.TrimSpace(req.ClientName) == "" {
		return "", fmt.Errorf("%w: client name is required", apperrors.ErrValidation)
	}

	tpl, ok := g.parsed[strings.ToLower(strings.TrimSpace(req.Kind))]
	if !ok {
		tpl = g.fallback
	}

	product := req.Product
	if product == "" {
		product = "[Product]"
	}
	bindings := map[string]any{
		"name":    req.ClientName,
		"product": product,
		"prompt":  req.Prompt,
	}
	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("suggest: render: %w", err)
	}

	if req.Prompt != "" {
		adj, err := g.adjust.RenderString(bindings)
		if err != nil {
			return "", fmt.Errorf("suggest: render adjustment: %w", err)
		}
		out += adj
	}
	return out, nil
}

func parse(engine *liquid.Engine, src string) (*liquid.Template, error) {
	tpl, err := engine.ParseString(src)
	if err != nil {
		return nil, err
	}
	return tpl, nil
}
