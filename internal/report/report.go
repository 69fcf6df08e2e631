// Package report folds persisted per-chat analyses into the aggregate
// views the dashboard consumes: agent ranking, product cloud, sales
// funnel and CX distributions.
package report

import (
	"sort"
	"time"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/analysis"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/opsmetrics"
)

const topProducts = 10

// AgentLine is one row of the agent ranking. Averages are per chat, so a
// high-volume agent is not penalized for handling more conversations.
type AgentLine struct {
	Agent           string  `json:"agent"`
	Chats           int     `json:"chats"`
	AvgTMESeconds   float64 `json:"avg_tme_seconds"`
	AvgTMASeconds   float64 `json:"avg_tma_seconds"`
	AvgHumanization float64 `json:"avg_humanization"`
}

// ProductCount is one entry of the product cloud.
type ProductCount struct {
	Product  string `json:"product"`
	Mentions int    `json:"mentions"`
}

// ReasonCount is one loss reason with how many lost chats cited it.
type ReasonCount struct {
	Reason string `json:"reason"`
	Chats  int    `json:"chats"`
}

// Report is the consolidated view of one analysis window.
type Report struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	TotalChats  int       `json:"total_chats"`

	AgentRanking []AgentLine    `json:"agent_ranking"`
	ProductCloud []ProductCount `json:"product_cloud"`

	SalesFunnel    map[string]int `json:"sales_funnel"`
	ConversionRate float64        `json:"conversion_rate"`
	LossReasons    []ReasonCount  `json:"loss_reasons"`

	Sentiment       map[string]int `json:"sentiment"`
	AvgNPS          float64        `json:"avg_nps"`
	AvgHumanization float64        `json:"avg_humanization"`

	TagCounts map[string]int `json:"tag_counts"`
}

// Build aggregates stored results into a Report. Chats without an
// assigned agent count toward the totals but stay out of the ranking.
func Build(results []analysis.StoredResult) *Report {
	r := &Report{
		TotalChats:  len(results),
		SalesFunnel: make(map[string]int),
		Sentiment:   make(map[string]int),
		TagCounts:   make(map[string]int),
	}
	if len(results) == 0 {
		r.AgentRanking = []AgentLine{}
		r.ProductCloud = []ProductCount{}
		r.LossReasons = []ReasonCount{}
		return r
	}
	r.WindowStart = results[0].WindowStart
	r.WindowEnd = results[0].WindowEnd

	type agentAcc struct {
		chats        int
		tme          float64
		tma          float64
		humanization int
	}
	agents := make(map[string]*agentAcc)
	products := make(map[string]int)
	lossReasons := make(map[string]int)

	var npsSum, humanizationSum int
	converted := 0

	for i := range results {
		res := &results[i]

		if res.AgentName != "" && res.AgentName != opsmetrics.UnassignedAgent {
			a := agents[res.AgentName]
			if a == nil {
				a = &agentAcc{}
				agents[res.AgentName] = a
			}
			a.chats++
			a.tme += res.Ops.TMESeconds
			a.tma += res.Ops.TMASeconds
			a.humanization += res.CX.HumanizationScore
		}

		for _, p := range res.Product.ProductsMentioned {
			products[p]++
		}

		r.SalesFunnel[res.Sales.Outcome]++
		if res.Sales.Outcome == "convertido" {
			converted++
		}
		if res.Sales.Outcome == "perdido" && res.Sales.RejectionReason != "" {
			lossReasons[res.Sales.RejectionReason]++
		}

		r.Sentiment[res.CX.Sentiment]++
		npsSum += res.CX.NPSPrediction
		humanizationSum += res.CX.HumanizationScore

		for _, tag := range res.Tags {
			r.TagCounts[tag]++
		}
	}

	r.AgentRanking = make([]AgentLine, 0, len(agents))
	for name, a := range agents {
		n := float64(a.chats)
		r.AgentRanking = append(r.AgentRanking, AgentLine{
			Agent:           name,
			Chats:           a.chats,
			AvgTMESeconds:   a.tme / n,
			AvgTMASeconds:   a.tma / n,
			AvgHumanization: float64(a.humanization) / n,
		})
	}
	sort.Slice(r.AgentRanking, func(i, j int) bool {
		if r.AgentRanking[i].AvgTMESeconds == r.AgentRanking[j].AvgTMESeconds {
			return r.AgentRanking[i].Agent < r.AgentRanking[j].Agent
		}
		return r.AgentRanking[i].AvgTMESeconds < r.AgentRanking[j].AvgTMESeconds
	})

	ranked := rankCounts(products)
	if len(ranked) > topProducts {
		ranked = ranked[:topProducts]
	}
	r.ProductCloud = make([]ProductCount, 0, len(ranked))
	for _, p := range ranked {
		r.ProductCloud = append(r.ProductCloud, ProductCount{Product: p.name, Mentions: p.n})
	}

	r.LossReasons = make([]ReasonCount, 0, len(lossReasons))
	for _, p := range rankCounts(lossReasons) {
		r.LossReasons = append(r.LossReasons, ReasonCount{Reason: p.name, Chats: p.n})
	}

	total := float64(len(results))
	r.ConversionRate = float64(converted) / total * 100
	r.AvgNPS = float64(npsSum) / total
	r.AvgHumanization = float64(humanizationSum) / total
	return r
}

type countPair struct {
	name string
	n    int
}

// rankCounts orders a counter map by count descending, name ascending on
// ties so output is stable across runs.
func rankCounts(counts map[string]int) []countPair {
	pairs := make([]countPair, 0, len(counts))
	for name, n := range counts {
		pairs = append(pairs, countPair{name, n})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].n == pairs[j].n {
			return pairs[i].name < pairs[j].name
		}
		return pairs[i].n > pairs[j].n
	})
	return pairs
}
