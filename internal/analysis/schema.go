package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// Axis structs mirror the JSON contracts the prompts ask the model for.
// Validate methods reject anything outside the agreed enums and ranges so
// bad model output never reaches the database.

// CXAnalysis scores the customer-experience axis of one conversation.
type CXAnalysis struct {
	Sentiment           string `json:"sentiment"`
	HumanizationScore   int    `json:"humanization_score"`
	NPSPrediction       int    `json:"nps_prediction"`
	ResolutionStatus    string `json:"resolution_status"`
	PersonalizationUsed bool   `json:"personalization_used"`
	SatisfactionComment string `json:"satisfaction_comment"`
}

func (a *CXAnalysis) Validate() error {
	if !oneOf(a.Sentiment, "positivo", "neutro", "negativo") {
		return fmt.Errorf("sentiment: %q not one of positivo/neutro/negativo", a.Sentiment)
	}
	if a.HumanizationScore < 1 || a.HumanizationScore > 5 {
		return fmt.Errorf("humanization_score: %d outside 1-5", a.HumanizationScore)
	}
	if a.NPSPrediction < 0 || a.NPSPrediction > 10 {
		return fmt.Errorf("nps_prediction: %d outside 0-10", a.NPSPrediction)
	}
	// The model answers with and without the accent depending on the
	// prompt language drift; both spellings are canon in the table.
	if !oneOf(a.ResolutionStatus, "resolvido", "nao_resolvido", "não_resolvido", "pendente") {
		return fmt.Errorf("resolution_status: %q not one of resolvido/nao_resolvido/não_resolvido/pendente", a.ResolutionStatus)
	}
	if strings.TrimSpace(a.SatisfactionComment) == "" {
		return errors.New("satisfaction_comment: required")
	}
	return nil
}

// ProductAnalysis captures product interest signals.
type ProductAnalysis struct {
	ProductsMentioned []string `json:"products_mentioned"`
	Category          string   `json:"category"`
	InterestLevel     string   `json:"interest_level"`
	BudgetMentioned   bool     `json:"budget_mentioned"`
	Trends            []string `json:"trends"`
}

func (a *ProductAnalysis) Validate() error {
	if strings.TrimSpace(a.Category) == "" {
		return errors.New("category: required")
	}
	if !oneOf(a.InterestLevel, "alto", "medio", "baixo") {
		return fmt.Errorf("interest_level: %q not one of alto/medio/baixo", a.InterestLevel)
	}
	return nil
}

// SalesAnalysis captures funnel progress and outcome.
type SalesAnalysis struct {
	FunnelStage     string `json:"funnel_stage"`
	Outcome         string `json:"outcome"`
	LeadType        string `json:"lead_type"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	NextStep        string `json:"next_step"`
	Urgency         string `json:"urgency"`
}

func (a *SalesAnalysis) Validate() error {
	if !oneOf(a.FunnelStage, "qualificacao", "apresentacao", "negociacao", "encaminhamento", "fechamento") {
		return fmt.Errorf("funnel_stage: %q not a known stage", a.FunnelStage)
	}
	if !oneOf(a.Outcome, "qualificado", "nao_qualificado", "convertido", "perdido", "em_andamento") {
		return fmt.Errorf("outcome: %q not a known outcome", a.Outcome)
	}
	if strings.TrimSpace(a.LeadType) == "" {
		return errors.New("lead_type: required")
	}
	if strings.TrimSpace(a.NextStep) == "" {
		return errors.New("next_step: required")
	}
	if !oneOf(a.Urgency, "alta", "media", "baixa") {
		return fmt.Errorf("urgency: %q not one of alta/media/baixa", a.Urgency)
	}
	return nil
}

// QAAnalysis captures script adherence and coaching signals.
type QAAnalysis struct {
	ScriptAdherence     bool     `json:"script_adherence"`
	QuestionsAsked      []string `json:"questions_asked"`
	QuestionsMissing    []string `json:"questions_missing"`
	ResponseTimeQuality string   `json:"response_time_quality"`
	ImprovementAreas    []string `json:"improvement_areas"`
	OverallScore        int      `json:"overall_score"`
}

func (a *QAAnalysis) Validate() error {
	if !oneOf(a.ResponseTimeQuality, "rapido", "adequado", "lento") {
		return fmt.Errorf("response_time_quality: %q not one of rapido/adequado/lento", a.ResponseTimeQuality)
	}
	if a.OverallScore < 1 || a.OverallScore > 5 {
		return fmt.Errorf("overall_score: %d outside 1-5", a.OverallScore)
	}
	return nil
}

// AxisResults groups the four validated analyses for one chat. This is
// also the cache payload shape.
type AxisResults struct {
	CX      CXAnalysis      `json:"cx"`
	Product ProductAnalysis `json:"product"`
	Sales   SalesAnalysis   `json:"sales"`
	QA      QAAnalysis      `json:"qa"`
}

func (r *AxisResults) Validate() error {
	if err := r.CX.Validate(); err != nil {
		return fmt.Errorf("cx: %w", err)
	}
	if err := r.Product.Validate(); err != nil {
		return fmt.Errorf("product: %w", err)
	}
	if err := r.Sales.Validate(); err != nil {
		return fmt.Errorf("sales: %w", err)
	}
	if err := r.QA.Validate(); err != nil {
		return fmt.Errorf("qa: %w", err)
	}
	return nil
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
