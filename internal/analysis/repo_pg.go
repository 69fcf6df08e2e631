package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/metrics"
)

// PGRepo implements Repo using Postgres. Results live in chat_analyses,
// keyed by (chat_id, window_start), so re-running a window replaces rows
// instead of duplicating them.
type PGRepo struct {
	DB *sql.DB
}

const insertColumns = `chat_id, window_start, window_end, agent_name, tags,
cx_sentiment, cx_humanization_score, cx_nps_prediction, cx_resolution_status, cx_personalization_used, cx_satisfaction_comment,
product_names, product_category, product_interest_level, product_budget_mentioned, product_trends,
sales_funnel_stage, sales_outcome, sales_lead_type, sales_rejection_reason, sales_next_step, sales_urgency,
qa_script_adherence, qa_questions_asked, qa_questions_missing, qa_response_time_quality, qa_improvement_areas, qa_overall_score,
ops_tme_seconds, ops_tma_seconds, ops_response_count,
processing_ms, cache_hit, model_version, api_cost_usd, analyzed_at, full_response`

const numInsertColumns = 37

const upsertClause = `
ON CONFLICT (chat_id, window_start) DO UPDATE SET
	window_end = EXCLUDED.window_end,
	agent_name = EXCLUDED.agent_name,
	tags = EXCLUDED.tags,
	cx_sentiment = EXCLUDED.cx_sentiment,
	cx_humanization_score = EXCLUDED.cx_humanization_score,
	cx_nps_prediction = EXCLUDED.cx_nps_prediction,
	cx_resolution_status = EXCLUDED.cx_resolution_status,
	cx_personalization_used = EXCLUDED.cx_personalization_used,
	cx_satisfaction_comment = EXCLUDED.cx_satisfaction_comment,
	product_names = EXCLUDED.product_names,
	product_category = EXCLUDED.product_category,
	product_interest_level = EXCLUDED.product_interest_level,
	product_budget_mentioned = EXCLUDED.product_budget_mentioned,
	product_trends = EXCLUDED.product_trends,
	sales_funnel_stage = EXCLUDED.sales_funnel_stage,
	sales_outcome = EXCLUDED.sales_outcome,
	sales_lead_type = EXCLUDED.sales_lead_type,
	sales_rejection_reason = EXCLUDED.sales_rejection_reason,
	sales_next_step = EXCLUDED.sales_next_step,
	sales_urgency = EXCLUDED.sales_urgency,
	qa_script_adherence = EXCLUDED.qa_script_adherence,
	qa_questions_asked = EXCLUDED.qa_questions_asked,
	qa_questions_missing = EXCLUDED.qa_questions_missing,
	qa_response_time_quality = EXCLUDED.qa_response_time_quality,
	qa_improvement_areas = EXCLUDED.qa_improvement_areas,
	qa_overall_score = EXCLUDED.qa_overall_score,
	ops_tme_seconds = EXCLUDED.ops_tme_seconds,
	ops_tma_seconds = EXCLUDED.ops_tma_seconds,
	ops_response_count = EXCLUDED.ops_response_count,
	processing_ms = EXCLUDED.processing_ms,
	cache_hit = EXCLUDED.cache_hit,
	model_version = EXCLUDED.model_version,
	api_cost_usd = EXCLUDED.api_cost_usd,
	analyzed_at = EXCLUDED.analyzed_at,
	full_response = EXCLUDED.full_response,
	updated_at = now()`

// SaveResults upserts results in chunks. A failing chunk stops the walk;
// the returned count is what committed before it.
func (r *PGRepo) SaveResults(ctx context.Context, results []Result, windowStart, windowEnd time.Time, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	written := 0
	for start := 0; start < len(results); start += chunkSize {
		end := start + chunkSize
		if end > len(results) {
			end = len(results)
		}
		if err := r.saveChunk(ctx, results[start:end], windowStart, windowEnd); err != nil {
			return written, fmt.Errorf("%w: rows %d-%d: %v", ErrStorageWrite, start, end-1, err)
		}
		written += end - start
		metrics.AddResultsWritten(end - start)
	}
	return written, nil
}

func (r *PGRepo) saveChunk(ctx context.Context, chunk []Result, windowStart, windowEnd time.Time) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO chat_analyses (")
	sb.WriteString(insertColumns)
	sb.WriteString(")\nVALUES ")

	args := make([]any, 0, len(chunk)*numInsertColumns)
	for i := range chunk {
		if i > 0 {
			sb.WriteString(",\n")
		}
		sb.WriteByte('(')
		for j := 0; j < numInsertColumns; j++ {
			if j > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "$%d", i*numInsertColumns+j+1)
		}
		sb.WriteByte(')')

		row, err := rowValues(&chunk[i], windowStart, windowEnd)
		if err != nil {
			return err
		}
		args = append(args, row...)
	}
	sb.WriteString(upsertClause)

	_, err := r.DB.ExecContext(ctx, sb.String(), args...)
	return err
}

func rowValues(res *Result, windowStart, windowEnd time.Time) ([]any, error) {
	tags, err := marshalList(res.Tags)
	if err != nil {
		return nil, err
	}
	products, err := marshalList(res.Product.ProductsMentioned)
	if err != nil {
		return nil, err
	}
	trends, err := marshalList(res.Product.Trends)
	if err != nil {
		return nil, err
	}
	asked, err := marshalList(res.QA.QuestionsAsked)
	if err != nil {
		return nil, err
	}
	missing, err := marshalList(res.QA.QuestionsMissing)
	if err != nil {
		return nil, err
	}
	areas, err := marshalList(res.QA.ImprovementAreas)
	if err != nil {
		return nil, err
	}

	return []any{
		res.ChatID, windowStart, windowEnd, nullIfEmpty(res.AgentName), tags,
		res.CX.Sentiment, res.CX.HumanizationScore, res.CX.NPSPrediction, res.CX.ResolutionStatus, res.CX.PersonalizationUsed, res.CX.SatisfactionComment,
		products, res.Product.Category, res.Product.InterestLevel, res.Product.BudgetMentioned, trends,
		res.Sales.FunnelStage, res.Sales.Outcome, res.Sales.LeadType, nullIfEmpty(res.Sales.RejectionReason), res.Sales.NextStep, res.Sales.Urgency,
		res.QA.ScriptAdherence, asked, missing, res.QA.ResponseTimeQuality, areas, res.QA.OverallScore,
		res.Ops.TMESeconds, res.Ops.TMASeconds, res.Ops.ResponseCount,
		res.ProcessingMS, res.CacheHit, res.ModelVersion, res.CostUSD, res.AnalyzedAt, rawOrNil(res.RawResponse),
	}, nil
}

const loadResultsQuery = `
SELECT chat_id, window_start, window_end, agent_name, tags,
       cx_sentiment, cx_humanization_score, cx_nps_prediction, cx_resolution_status, cx_personalization_used, cx_satisfaction_comment,
       product_names, product_category, product_interest_level, product_budget_mentioned, product_trends,
       sales_funnel_stage, sales_outcome, sales_lead_type, sales_rejection_reason, sales_next_step, sales_urgency,
       qa_script_adherence, qa_questions_asked, qa_questions_missing, qa_response_time_quality, qa_improvement_areas, qa_overall_score,
       ops_tme_seconds, ops_tma_seconds, ops_response_count,
       processing_ms, cache_hit, model_version, api_cost_usd, analyzed_at, updated_at, full_response
FROM chat_analyses
WHERE window_start = $1
ORDER BY chat_id`

// LoadResults returns every stored result for the window, ErrNotFound
// when the window was never analyzed.
func (r *PGRepo) LoadResults(ctx context.Context, windowStart time.Time) ([]StoredResult, error) {
	rows, err := r.DB.QueryContext(ctx, loadResultsQuery, windowStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredResult
	for rows.Next() {
		s, err := scanStoredResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func scanStoredResult(rows *sql.Rows) (StoredResult, error) {
	var s StoredResult
	var (
		agentName   sql.NullString
		tagsRaw     []byte
		cxSentiment sql.NullString
		cxHuman     sql.NullInt64
		cxNPS       sql.NullInt64
		cxRes       sql.NullString
		cxPers      sql.NullBool
		cxComment   sql.NullString

		productNames []byte
		category     sql.NullString
		interest     sql.NullString
		budget       sql.NullBool
		trends       []byte

		funnelStage sql.NullString
		outcome     sql.NullString
		leadType    sql.NullString
		rejection   sql.NullString
		nextStep    sql.NullString
		urgency     sql.NullString

		script  sql.NullBool
		asked   []byte
		missing []byte
		rtq     sql.NullString
		areas   []byte
		score   sql.NullInt64

		tme       sql.NullFloat64
		tma       sql.NullFloat64
		respCount sql.NullInt64

		fullResponse []byte
	)

	err := rows.Scan(
		&s.ChatID, &s.WindowStart, &s.WindowEnd, &agentName, &tagsRaw,
		&cxSentiment, &cxHuman, &cxNPS, &cxRes, &cxPers, &cxComment,
		&productNames, &category, &interest, &budget, &trends,
		&funnelStage, &outcome, &leadType, &rejection, &nextStep, &urgency,
		&script, &asked, &missing, &rtq, &areas, &score,
		&tme, &tma, &respCount,
		&s.ProcessingMS, &s.CacheHit, &s.ModelVersion, &s.CostUSD, &s.AnalyzedAt, &s.UpdatedAt, &fullResponse,
	)
	if err != nil {
		return StoredResult{}, err
	}

	if agentName.Valid {
		s.AgentName = agentName.String
	}
	s.Tags = unmarshalList(tagsRaw)

	s.CX.Sentiment = cxSentiment.String
	s.CX.HumanizationScore = int(cxHuman.Int64)
	s.CX.NPSPrediction = int(cxNPS.Int64)
	s.CX.ResolutionStatus = cxRes.String
	s.CX.PersonalizationUsed = cxPers.Bool
	s.CX.SatisfactionComment = cxComment.String

	s.Product.ProductsMentioned = unmarshalList(productNames)
	s.Product.Category = category.String
	s.Product.InterestLevel = interest.String
	s.Product.BudgetMentioned = budget.Bool
	s.Product.Trends = unmarshalList(trends)

	s.Sales.FunnelStage = funnelStage.String
	s.Sales.Outcome = outcome.String
	s.Sales.LeadType = leadType.String
	s.Sales.RejectionReason = rejection.String
	s.Sales.NextStep = nextStep.String
	s.Sales.Urgency = urgency.String

	s.QA.ScriptAdherence = script.Bool
	s.QA.QuestionsAsked = unmarshalList(asked)
	s.QA.QuestionsMissing = unmarshalList(missing)
	s.QA.ResponseTimeQuality = rtq.String
	s.QA.ImprovementAreas = unmarshalList(areas)
	s.QA.OverallScore = int(score.Int64)

	s.Ops.ChatID = s.ChatID
	s.Ops.TMESeconds = tme.Float64
	s.Ops.TMASeconds = tma.Float64
	s.Ops.ResponseCount = int(respCount.Int64)

	if len(fullResponse) > 0 {
		s.RawResponse = json.RawMessage(fullResponse)
	}
	return s, nil
}

const listWindowsQuery = `
SELECT window_start, window_end, COUNT(*) AS total_chats, COUNT(DISTINCT agent_name) AS total_agents
FROM chat_analyses
GROUP BY window_start, window_end
ORDER BY window_start DESC
LIMIT 52`

// ListWindows returns the analyzed windows, newest first, capped at one
// year of weekly runs.
func (r *PGRepo) ListWindows(ctx context.Context) ([]WindowInfo, error) {
	rows, err := r.DB.QueryContext(ctx, listWindowsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WindowInfo
	for rows.Next() {
		var w WindowInfo
		if err := rows.Scan(&w.WindowStart, &w.WindowEnd, &w.TotalChats, &w.TotalAgents); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

const analyzedIDsQuery = `SELECT chat_id FROM chat_analyses WHERE window_start = $1`

func (r *PGRepo) AnalyzedIDs(ctx context.Context, windowStart time.Time) (map[string]struct{}, error) {
	rows, err := r.DB.QueryContext(ctx, analyzedIDsQuery, windowStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)

// marshalList keeps JSONB list columns non-null: a nil slice stores [].
func marshalList(values []string) ([]byte, error) {
	if values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(values)
}

func unmarshalList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	_ = json.Unmarshal(raw, &out)
	return out
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
