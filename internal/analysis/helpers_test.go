package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/chats"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/opsmetrics"
)

func validAxes() AxisResults {
	return AxisResults{
		CX: CXAnalysis{
			Sentiment:           "positivo",
			HumanizationScore:   4,
			NPSPrediction:       9,
			ResolutionStatus:    "resolvido",
			PersonalizationUsed: true,
			SatisfactionComment: "Atendimento cordial e objetivo.",
		},
		Product: ProductAnalysis{
			ProductsMentioned: []string{"Produto A1"},
			Category:          "categoria_a",
			InterestLevel:     "alto",
			BudgetMentioned:   true,
			Trends:            []string{"prazo de entrega"},
		},
		Sales: SalesAnalysis{
			FunnelStage: "qualificacao",
			Outcome:     "qualificado",
			LeadType:    "clinica",
			NextStep:    "Agendar demonstracao",
			Urgency:     "alta",
		},
		QA: QAAnalysis{
			ScriptAdherence:     true,
			QuestionsAsked:      []string{"Qual equipamento?"},
			QuestionsMissing:    []string{},
			ResponseTimeQuality: "rapido",
			ImprovementAreas:    []string{},
			OverallScore:        5,
		},
	}
}

func makeResult(chatID string) Result {
	return Result{
		ChatID:       chatID,
		AxisResults:  validAxes(),
		Ops:          opsmetrics.ChatMetrics{ChatID: chatID, TMESeconds: 45, TMASeconds: 300, ResponseCount: 3},
		AgentName:    "Gabriel",
		Tags:         []string{"orcamento"},
		ProcessingMS: 10,
		ModelVersion: "gemini-2.0-flash",
		CostUSD:      decimal.RequireFromString("0.00009"),
		AnalyzedAt:   time.Date(2026, 2, 7, 8, 0, 0, 0, time.UTC),
		RawResponse:  []byte(`{"cached":false}`),
	}
}

// stubAnalyzer satisfies ChatAnalyzer with canned results and tracks
// in-flight concurrency.
type stubAnalyzer struct {
	mu       sync.Mutex
	calls    []string
	inFlight int
	peak     int

	delay time.Duration
	fail  func(chat *chats.Chat) error
}

func (s *stubAnalyzer) AnalyzeFull(ctx context.Context, chat *chats.Chat) (*Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, chat.ID)
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fail != nil {
		if err := s.fail(chat); err != nil {
			return nil, err
		}
	}
	res := makeResult(chat.ID)
	return &res, nil
}

func (s *stubAnalyzer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubAnalyzer) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *stubAnalyzer) peakInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func chatFixtures(n int) []*chats.Chat {
	out := make([]*chats.Chat, 0, n)
	base := time.Date(2026, 2, 2, 13, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("chat-%04d", i+1)
		out = append(out, &chats.Chat{
			ID: id,
			Messages: []chats.Message{
				{ID: id + "-m1", Body: "Olá", At: base, SentBy: &chats.Sender{Type: chats.SenderContact}},
				{ID: id + "-m2", Body: "Como posso ajudar?", At: base.Add(time.Minute), SentBy: &chats.Sender{Type: chats.SenderAgent, Name: "Gabriel"}},
			},
			Agent: &chats.Agent{ID: "agent-1", Name: "Gabriel"},
		})
	}
	return out
}

var (
	testWindowStart = time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	testWindowEnd   = time.Date(2026, 2, 6, 23, 59, 59, 999_000_000, time.UTC)
)
