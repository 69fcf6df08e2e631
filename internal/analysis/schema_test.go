package analysis

import (
	"context"
	"strings"
	"testing"
)

func TestCXAnalysisValidate(t *testing.T) {
	valid := validAxes().CX

	tests := []struct {
		name    string
		mutate  func(*CXAnalysis)
		wantErr string
	}{
		{"valid", func(*CXAnalysis) {}, ""},
		{"accented resolution", func(a *CXAnalysis) { a.ResolutionStatus = "não_resolvido" }, ""},
		{"plain resolution", func(a *CXAnalysis) { a.ResolutionStatus = "nao_resolvido" }, ""},
		{"bad sentiment", func(a *CXAnalysis) { a.Sentiment = "feliz" }, "sentiment"},
		{"score too low", func(a *CXAnalysis) { a.HumanizationScore = 0 }, "humanization_score"},
		{"score too high", func(a *CXAnalysis) { a.HumanizationScore = 6 }, "humanization_score"},
		{"nps negative", func(a *CXAnalysis) { a.NPSPrediction = -1 }, "nps_prediction"},
		{"nps too high", func(a *CXAnalysis) { a.NPSPrediction = 11 }, "nps_prediction"},
		{"bad resolution", func(a *CXAnalysis) { a.ResolutionStatus = "finalizado" }, "resolution_status"},
		{"missing comment", func(a *CXAnalysis) { a.SatisfactionComment = "  " }, "satisfaction_comment"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			err := a.Validate()
			checkValidateErr(t, err, tt.wantErr)
		})
	}
}

func TestProductAnalysisValidate(t *testing.T) {
	valid := validAxes().Product

	tests := []struct {
		name    string
		mutate  func(*ProductAnalysis)
		wantErr string
	}{
		{"valid", func(*ProductAnalysis) {}, ""},
		{"no products is fine", func(a *ProductAnalysis) { a.ProductsMentioned = nil; a.Category = "indefinido" }, ""},
		{"missing category", func(a *ProductAnalysis) { a.Category = "" }, "category"},
		{"bad interest", func(a *ProductAnalysis) { a.InterestLevel = "enorme" }, "interest_level"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			err := a.Validate()
			checkValidateErr(t, err, tt.wantErr)
		})
	}
}

func TestSalesAnalysisValidate(t *testing.T) {
	valid := validAxes().Sales

	tests := []struct {
		name    string
		mutate  func(*SalesAnalysis)
		wantErr string
	}{
		{"valid", func(*SalesAnalysis) {}, ""},
		{"forwarding stage", func(a *SalesAnalysis) { a.FunnelStage = "encaminhamento" }, ""},
		{"lost with reason", func(a *SalesAnalysis) { a.Outcome = "perdido"; a.RejectionReason = "preco alto" }, ""},
		{"bad stage", func(a *SalesAnalysis) { a.FunnelStage = "descoberta" }, "funnel_stage"},
		{"bad outcome", func(a *SalesAnalysis) { a.Outcome = "ganho" }, "outcome"},
		{"missing lead type", func(a *SalesAnalysis) { a.LeadType = "" }, "lead_type"},
		{"missing next step", func(a *SalesAnalysis) { a.NextStep = "" }, "next_step"},
		{"bad urgency", func(a *SalesAnalysis) { a.Urgency = "urgente" }, "urgency"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			err := a.Validate()
			checkValidateErr(t, err, tt.wantErr)
		})
	}
}

func TestQAAnalysisValidate(t *testing.T) {
	valid := validAxes().QA

	tests := []struct {
		name    string
		mutate  func(*QAAnalysis)
		wantErr string
	}{
		{"valid", func(*QAAnalysis) {}, ""},
		{"bad response time", func(a *QAAnalysis) { a.ResponseTimeQuality = "instantaneo" }, "response_time_quality"},
		{"score too low", func(a *QAAnalysis) { a.OverallScore = 0 }, "overall_score"},
		{"score too high", func(a *QAAnalysis) { a.OverallScore = 6 }, "overall_score"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			err := a.Validate()
			checkValidateErr(t, err, tt.wantErr)
		})
	}
}

func TestAxisResultsValidatePrefixes(t *testing.T) {
	axes := validAxes()
	axes.Sales.Urgency = "nenhuma"
	err := axes.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "sales:") {
		t.Fatalf("error = %v, want sales-prefixed", err)
	}
}

func TestRepoCheckpointSeedsFromRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	if _, err := repo.SaveResults(ctx, []Result{makeResult("chat-1"), makeResult("chat-2")}, testWindowStart, testWindowEnd, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cp, err := NewRepoCheckpoint(ctx, repo, testWindowStart)
	if err != nil {
		t.Fatalf("NewRepoCheckpoint: %v", err)
	}
	if cp.Len() != 2 {
		t.Fatalf("seeded len = %d, want 2", cp.Len())
	}
	if !cp.Contains(ctx, "chat-1") || cp.Contains(ctx, "chat-9") {
		t.Fatal("seeded membership wrong")
	}
	if err := cp.Add(ctx, "chat-3"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if cp.Len() != 3 {
		t.Fatalf("len after add = %d, want 3", cp.Len())
	}
}

func checkValidateErr(t *testing.T, err error, want string) {
	t.Helper()
	if want == "" {
		if err != nil {
			t.Fatalf("Validate() = %v, want nil", err)
		}
		return
	}
	if err == nil {
		t.Fatalf("Validate() = nil, want error mentioning %q", want)
	}
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("Validate() = %v, want error mentioning %q", err, want)
	}
}
