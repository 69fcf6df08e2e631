package gemini

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/catalog"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/llm"
)

// Axis identifies one of the four analysis dimensions.
type Axis string

const (
	AxisCX      Axis = "cx"
	AxisProduct Axis = "product"
	AxisSales   Axis = "sales"
	AxisQA      Axis = "qa"
)

// Axes lists the dimensions in dispatch order.
var Axes = [4]Axis{AxisCX, AxisProduct, AxisSales, AxisQA}

var (
	//go:embed prompts/cx.txt
	promptCX string

	//go:embed prompts/product.txt
	promptProduct string

	//go:embed prompts/sales.txt
	promptSales string

	//go:embed prompts/qa.txt
	promptQA string
)

const (
	systemJSON   = "Responda somente com um objeto JSON válido, sem markdown e sem texto fora do JSON."
	systemRepair = "Você é uma ferramenta de correção de JSON. Retorne somente um objeto JSON válido com exatamente os campos pedidos."
)

// Prompts renders the per-axis analysis requests. Templates ship embedded;
// a YAML file can override any subset of them without a rebuild.
type Prompts struct {
	templates map[Axis]string
}

func DefaultPrompts() *Prompts {
	return &Prompts{templates: map[Axis]string{
		AxisCX:      promptCX,
		AxisProduct: promptProduct,
		AxisSales:   promptSales,
		AxisQA:      promptQA,
	}}
}

type promptOverrides struct {
	CX      string `yaml:"cx"`
	Product string `yaml:"product"`
	Sales   string `yaml:"sales"`
	QA      string `yaml:"qa"`
}

// LoadPrompts returns the defaults overlaid with the YAML file at path.
// An empty path means defaults only. Keys absent from the file keep their
// embedded template.
func LoadPrompts(path string) (*Prompts, error) {
	p := DefaultPrompts()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	var over promptOverrides
	if err := yaml.Unmarshal(raw, &over); err != nil {
		return nil, fmt.Errorf("parse prompts file: %w", err)
	}
	if strings.TrimSpace(over.CX) != "" {
		p.templates[AxisCX] = over.CX
	}
	if strings.TrimSpace(over.Product) != "" {
		p.templates[AxisProduct] = over.Product
	}
	if strings.TrimSpace(over.Sales) != "" {
		p.templates[AxisSales] = over.Sales
	}
	if strings.TrimSpace(over.QA) != "" {
		p.templates[AxisQA] = over.QA
	}
	return p, nil
}

// Build renders the axis request for one transcript.
func (p *Prompts) Build(axis Axis, company *catalog.Context, transcript string) (llm.Request, error) {
	template, ok := p.templates[axis]
	if !ok {
		return llm.Request{}, fmt.Errorf("unknown analysis axis %q", axis)
	}
	prompt := render(template, company) + "\n\nTranscrição:\n" + transcript
	return llm.Request{System: systemJSON, Prompt: prompt}, nil
}

// BuildRepair renders the stricter retry for a reply that failed schema
// validation: same instructions, plus the validation reason and the reply
// to fix.
func (p *Prompts) BuildRepair(axis Axis, company *catalog.Context, transcript, raw, reason string) (llm.Request, error) {
	req, err := p.Build(axis, company, transcript)
	if err != nil {
		return llm.Request{}, err
	}
	var b strings.Builder
	b.WriteString(req.Prompt)
	b.WriteString("\n\nA resposta anterior não passou na validação")
	if strings.TrimSpace(reason) != "" {
		b.WriteString(": ")
		b.WriteString(reason)
	}
	b.WriteString("\nCorrija a resposta abaixo e retorne somente o JSON válido:\n")
	b.WriteString(raw)
	return llm.Request{System: systemRepair, Prompt: b.String()}, nil
}

func render(template string, company *catalog.Context) string {
	if company == nil {
		company = &catalog.Context{}
	}
	replacer := strings.NewReplacer(
		"{{COMPANY_NAME}}", company.CompanyName,
		"{{SEGMENT}}", company.Segment,
		"{{CATEGORIES}}", renderCategories(company.Categories),
		"{{PRODUCTS}}", renderProducts(company.Products),
		"{{SDR_QUESTIONS}}", renderQuestions(company.SDRQuestions),
	)
	return strings.TrimRight(replacer.Replace(template), "\n")
}

func renderCategories(categories []catalog.Category) string {
	lines := make([]string, 0, len(categories))
	for _, c := range categories {
		line := "- " + c.ID + ": " + c.Name
		if len(c.Keywords) > 0 {
			line += " (palavras-chave: " + strings.Join(c.Keywords, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderProducts(products []catalog.Product) string {
	if len(products) == 0 {
		return ""
	}
	lines := make([]string, 0, len(products)+1)
	lines = append(lines, "\nPRODUTOS DO CATÁLOGO:")
	for _, p := range products {
		line := "- " + p.Name
		if len(p.Technologies) > 0 {
			line += " (tecnologias: " + strings.Join(p.Technologies, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n") + "\n"
}

func renderQuestions(questions []string) string {
	lines := make([]string, 0, len(questions))
	for i, q := range questions {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, q))
	}
	return strings.Join(lines, "\n")
}
