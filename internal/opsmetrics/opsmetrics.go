// Package opsmetrics computes operational chat statistics: wait time (TME),
// handling time (TMA), agent performance, message volume and tag frequency.
// Everything here is pure computation over chat records.
package opsmetrics

import (
	"sort"
	"sync"
	"time"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/chats"
)

// UnassignedAgent labels chats without a responsible agent.
const UnassignedAgent = "Sem Agente"

var (
	tzOnce sync.Once
	tz     *time.Location
)

// Location returns the company timezone used for business-hour checks.
func Location() *time.Location {
	tzOnce.Do(func() {
		loc, err := time.LoadLocation("America/Sao_Paulo")
		if err != nil {
			loc = time.FixedZone("-03", -3*60*60)
		}
		tz = loc
	})
	return tz
}

// ChatMetrics holds per-chat operational measurements.
type ChatMetrics struct {
	ChatID        string    `json:"chat_id"`
	TMESeconds    float64   `json:"tme_seconds"`
	TMASeconds    float64   `json:"tma_seconds"`
	ResponseCount int       `json:"response_count"`
	FirstAt       time.Time `json:"first_at"`
	LastAt        time.Time `json:"last_at"`
}

// AgentPerformance aggregates chat metrics per agent.
type AgentPerformance struct {
	Agent         string  `json:"agent"`
	Chats         int     `json:"chats"`
	AvgTMESeconds float64 `json:"avg_tme_seconds"`
	AvgTMASeconds float64 `json:"avg_tma_seconds"`
}

// InBusinessHours reports whether t falls inside company hours:
// Mon-Thu 08:00-18:00, Fri 08:00-17:00, America/Sao_Paulo.
func InBusinessHours(t time.Time) bool {
	local := t.In(Location())
	wd := local.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	if wd == time.Friday {
		return minute >= 8*60 && minute <= 17*60
	}
	return minute >= 8*60 && minute <= 18*60
}

// Compute derives TME and TMA for a single chat. TME is the mean wait between
// a customer message and the agent response that follows it, counting only
// responses sent within business hours. TMA is the span between the first and
// last message.
func Compute(chat *chats.Chat, companyDomain string) ChatMetrics {
	m := ChatMetrics{ChatID: chat.ID}
	if len(chat.Messages) == 0 {
		return m
	}

	msgs := chat.Messages
	m.FirstAt = msgs[0].At
	m.LastAt = msgs[len(msgs)-1].At
	m.TMASeconds = m.LastAt.Sub(m.FirstAt).Seconds()

	var totalWait float64
	for i := 1; i < len(msgs); i++ {
		cur, prev := msgs[i], msgs[i-1]
		if !chats.IsAgentMessage(cur, companyDomain) || chats.IsAgentMessage(prev, companyDomain) {
			continue
		}
		if !InBusinessHours(cur.At) {
			continue
		}
		totalWait += cur.At.Sub(prev.At).Seconds()
		m.ResponseCount++
	}
	if m.ResponseCount > 0 {
		m.TMESeconds = totalWait / float64(m.ResponseCount)
	}
	return m
}

// AnalyzeAgents aggregates per-agent performance across chats. Average TME is
// weighted by each chat's response count so agents are compared by actual
// responses, not by chat volume. Sorted fastest TME first.
func AnalyzeAgents(list []*chats.Chat, companyDomain string) []AgentPerformance {
	type acc struct {
		chats          int
		weightedTME    float64
		totalTMA       float64
		totalResponses int
	}
	byAgent := make(map[string]*acc)

	for _, chat := range list {
		name := chat.AgentName()
		if name == "" {
			name = UnassignedAgent
		}
		a := byAgent[name]
		if a == nil {
			a = &acc{}
			byAgent[name] = a
		}
		m := Compute(chat, companyDomain)
		a.chats++
		a.weightedTME += m.TMESeconds * float64(m.ResponseCount)
		a.totalTMA += m.TMASeconds
		a.totalResponses += m.ResponseCount
	}

	out := make([]AgentPerformance, 0, len(byAgent))
	for name, a := range byAgent {
		perf := AgentPerformance{Agent: name, Chats: a.chats}
		if a.totalResponses > 0 {
			perf.AvgTMESeconds = a.weightedTME / float64(a.totalResponses)
		}
		if a.chats > 0 {
			perf.AvgTMASeconds = a.totalTMA / float64(a.chats)
		}
		out = append(out, perf)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgTMESeconds == out[j].AvgTMESeconds {
			return out[i].Agent < out[j].Agent
		}
		return out[i].AvgTMESeconds < out[j].AvgTMESeconds
	})
	return out
}

// Heatmap counts messages by weekday and hour in local time.
// Weekday index 0 is Monday.
func Heatmap(list []*chats.Chat) [7][24]int {
	var grid [7][24]int
	for _, chat := range list {
		for _, msg := range chat.Messages {
			local := msg.At.In(Location())
			day := (int(local.Weekday()) + 6) % 7
			grid[day][local.Hour()]++
		}
	}
	return grid
}

// TagCounts counts tag frequency across chats.
func TagCounts(list []*chats.Chat) map[string]int {
	counts := make(map[string]int)
	for _, chat := range list {
		for _, name := range chat.TagNames() {
			counts[name]++
		}
	}
	return counts
}
