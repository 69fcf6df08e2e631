package chats

import (
	"testing"
	"time"
)

func msgAt(t *testing.T, stamp string, senderType string) Message {
	t.Helper()
	at, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	m := Message{ID: stamp, Body: "oi", At: at, Type: "text"}
	if senderType != "" {
		m.SentBy = &Sender{ID: "s1", Type: senderType}
	}
	return m
}

func TestValidate(t *testing.T) {
	chat := &Chat{
		ID: "chat-1",
		Messages: []Message{
			msgAt(t, "2025-12-01T10:00:00Z", SenderContact),
			msgAt(t, "2025-12-01T10:05:00Z", SenderAgent),
		},
	}
	if err := chat.Validate(); err != nil {
		t.Fatalf("expected valid chat, got %v", err)
	}

	if err := (&Chat{Messages: chat.Messages}).Validate(); err != ErrMissingID {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if err := (&Chat{ID: "chat-2"}).Validate(); err != ErrNoMessages {
		t.Fatalf("expected ErrNoMessages, got %v", err)
	}

	outOfOrder := &Chat{
		ID: "chat-3",
		Messages: []Message{
			msgAt(t, "2025-12-01T11:00:00Z", SenderContact),
			msgAt(t, "2025-12-01T10:00:00Z", SenderAgent),
		},
	}
	if err := outOfOrder.Validate(); err == nil {
		t.Fatalf("expected ordering error")
	}
	outOfOrder.SortMessages()
	if err := outOfOrder.Validate(); err != nil {
		t.Fatalf("expected valid after sort, got %v", err)
	}
}

func TestIsAgentMessage(t *testing.T) {
	cases := []struct {
		name   string
		msg    Message
		domain string
		want   bool
	}{
		{"typed agent", Message{SentBy: &Sender{Type: SenderAgent}}, "company.exemplo.com", true},
		{"contact", Message{SentBy: &Sender{Type: SenderContact}}, "company.exemplo.com", false},
		{"company email no type", Message{SentBy: &Sender{Email: "ana@Company.Exemplo.Com"}}, "company.exemplo.com", true},
		{"external email", Message{SentBy: &Sender{Email: "ana@gmail.com"}}, "company.exemplo.com", false},
		{"no sender", Message{}, "company.exemplo.com", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAgentMessage(tc.msg, tc.domain); got != tc.want {
				t.Fatalf("IsAgentMessage=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestTagNamesAndAgentName(t *testing.T) {
	chat := &Chat{
		ID:   "chat-1",
		Tags: []Tag{{Name: "orcamento"}, {Name: ""}, {Name: "urgente"}},
	}
	got := chat.TagNames()
	if len(got) != 2 || got[0] != "orcamento" || got[1] != "urgente" {
		t.Fatalf("unexpected tag names: %v", got)
	}
	if chat.AgentName() != "" {
		t.Fatalf("expected empty agent name")
	}
	chat.Agent = &Agent{ID: "a1", Name: "Maria"}
	if chat.AgentName() != "Maria" {
		t.Fatalf("expected Maria, got %s", chat.AgentName())
	}
}

func TestFirstLastAtPreferMessages(t *testing.T) {
	first := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	last := time.Date(2025, 12, 1, 9, 30, 0, 0, time.UTC)
	summary := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	chat := &Chat{
		ID:             "chat-1",
		FirstMessageAt: &summary,
		LastMessageAt:  &summary,
		Messages: []Message{
			{ID: "m1", At: first},
			{ID: "m2", At: last},
		},
	}
	if !chat.FirstAt().Equal(first) {
		t.Fatalf("FirstAt=%v, want %v", chat.FirstAt(), first)
	}
	if !chat.LastAt().Equal(last) {
		t.Fatalf("LastAt=%v, want %v", chat.LastAt(), last)
	}
}
