package gemini

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/catalog"
)

func staticContext(t *testing.T) *catalog.Context {
	t.Helper()
	ctx, err := catalog.NewStatic().Context(context.Background())
	if err != nil {
		t.Fatalf("static context: %v", err)
	}
	return ctx
}

func TestBuildRendersCompanyContext(t *testing.T) {
	p := DefaultPrompts()
	company := staticContext(t)
	transcript := "Agente (09:15): Bom dia!\nCliente (09:16): Olá, tudo bem?"

	tests := []struct {
		axis     Axis
		contains []string
	}{
		{
			axis: AxisCX,
			contains: []string{
				"vendas B2B de equipamentos médicos",
				`- sentiment: "positivo", "neutro" ou "negativo"`,
			},
		},
		{
			axis: AxisProduct,
			contains: []string{
				"Você é um analista de produto de uma empresa de equipamentos.",
				"- categoria_a: produtos do tipo A",
				`use category="indefinido"`,
			},
		},
		{
			axis: AxisSales,
			contains: []string{
				"ESTÁGIOS DO FUNIL:",
				`"qualificacao", "apresentacao", "negociacao", "encaminhamento" ou "fechamento"`,
			},
		},
		{
			axis: AxisQA,
			contains: []string{
				"1. Área de interesse do cliente",
				"6. Prazo para decisão",
				"- overall_score: inteiro de 1 a 5",
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.axis), func(t *testing.T) {
			req, err := p.Build(tt.axis, company, transcript)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(req.Prompt, want) {
					t.Fatalf("prompt missing %q:\n%s", want, req.Prompt)
				}
			}
			if !strings.HasSuffix(req.Prompt, "Transcrição:\n"+transcript) {
				t.Fatal("prompt must end with the transcript")
			}
			if req.System == "" {
				t.Fatal("system instruction missing")
			}
			if strings.Contains(req.Prompt, "{{") {
				t.Fatalf("unreplaced placeholder in prompt:\n%s", req.Prompt)
			}
		})
	}
}

func TestBuildUnknownAxis(t *testing.T) {
	p := DefaultPrompts()
	if _, err := p.Build(Axis("marketing"), staticContext(t), "t"); err == nil {
		t.Fatal("expected error for unknown axis")
	}
}

func TestBuildRendersProductsWhenPresent(t *testing.T) {
	p := DefaultPrompts()
	company := staticContext(t)
	company.Products = []catalog.Product{
		{ID: "hb-200", Name: "Analisador HB-200", CategoryID: "categoria_a", Technologies: []string{"impedância"}},
	}
	req, err := p.Build(AxisProduct, company, "t")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(req.Prompt, "PRODUTOS DO CATÁLOGO:") {
		t.Fatal("products section missing")
	}
	if !strings.Contains(req.Prompt, "Analisador HB-200 (tecnologias: impedância)") {
		t.Fatalf("product line missing:\n%s", req.Prompt)
	}
}

func TestBuildRepairAppendsReplyAndReason(t *testing.T) {
	p := DefaultPrompts()
	raw := `{"sentiment":"otimo"}`
	req, err := p.BuildRepair(AxisCX, staticContext(t), "transcript", raw, "sentiment inválido")
	if err != nil {
		t.Fatalf("build repair: %v", err)
	}
	if !strings.Contains(req.Prompt, "não passou na validação: sentiment inválido") {
		t.Fatal("validation reason missing")
	}
	if !strings.HasSuffix(req.Prompt, raw) {
		t.Fatal("original reply missing from repair prompt")
	}
	if req.System != systemRepair {
		t.Fatalf("system = %q, want repair instruction", req.System)
	}
}

func TestLoadPromptsOverridesSubset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	override := "cx: |\n  Prompt de CX customizado para {{COMPANY_NAME}}.\n"
	if err := os.WriteFile(path, []byte(override), 0o600); err != nil {
		t.Fatalf("write override: %v", err)
	}

	p, err := LoadPrompts(path)
	if err != nil {
		t.Fatalf("load prompts: %v", err)
	}

	company := staticContext(t)
	cx, err := p.Build(AxisCX, company, "t")
	if err != nil {
		t.Fatalf("build cx: %v", err)
	}
	if !strings.Contains(cx.Prompt, "Prompt de CX customizado para uma empresa de equipamentos.") {
		t.Fatalf("override not applied:\n%s", cx.Prompt)
	}

	qa, err := p.Build(AxisQA, company, "t")
	if err != nil {
		t.Fatalf("build qa: %v", err)
	}
	if !strings.Contains(qa.Prompt, "script de qualificação") {
		t.Fatal("default qa template lost after partial override")
	}
}

func TestLoadPromptsEmptyPathUsesDefaults(t *testing.T) {
	p, err := LoadPrompts("")
	if err != nil {
		t.Fatalf("load prompts: %v", err)
	}
	if len(p.templates) != 4 {
		t.Fatalf("templates = %d, want 4", len(p.templates))
	}
}

func TestLoadPromptsMissingFile(t *testing.T) {
	if _, err := LoadPrompts("/nonexistent/prompts.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
