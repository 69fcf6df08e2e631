// Package catalog provides the company context injected into analysis
// prompts: who the company is, what it sells, and which qualification
// questions the SDR script expects.
package catalog

import "context"

type Category struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
}

type Product struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	CategoryID   string   `json:"category_id"`
	Technologies []string `json:"technologies,omitempty"`
}

type Context struct {
	CompanyName  string     `json:"company_name"`
	Segment      string     `json:"segment"`
	Categories   []Category `json:"categories"`
	Products     []Product  `json:"products,omitempty"`
	SDRQuestions []string   `json:"sdr_questions"`
}

// Provider resolves the current company context.
type Provider interface {
	Context(ctx context.Context) (*Context, error)
}

// Static serves the compiled-in context. Used directly in deploys without
// a catalog service and as the fallback for the API provider.
type Static struct {
	ctx *Context
}

func NewStatic() *Static {
	return &Static{ctx: defaultContext()}
}

func (s *Static) Context(context.Context) (*Context, error) {
	return s.ctx, nil
}

func defaultContext() *Context {
	return &Context{
		CompanyName: "uma empresa de equipamentos",
		Segment:     "equipamentos médicos",
		Categories: []Category{
			{ID: "categoria_a", Name: "produtos do tipo A"},
			{ID: "categoria_b", Name: "produtos do tipo B"},
			{ID: "categoria_c", Name: "produtos do tipo C"},
		},
		SDRQuestions: []string{
			"Área de interesse do cliente",
			"Tipo de negócio/perfil",
			"Localização",
			"Situação atual",
			"Orçamento disponível",
			"Prazo para decisão",
		},
	}
}

var _ Provider = (*Static)(nil)
