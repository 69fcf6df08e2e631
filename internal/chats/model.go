package chats

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// Participant types as reported by the source system.
const (
	SenderAgent   = "agent"
	SenderContact = "contact"
)

// Organization is the company a contact belongs to.
type Organization struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Contact is the customer side of a conversation.
type Contact struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email,omitempty"`
	Organization *Organization `json:"organization,omitempty"`
}

// Agent is the human attendant responsible for a chat.
type Agent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Sender identifies who sent a message; may be an agent or the contact.
type Sender struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Message is a single message within a conversation.
type Message struct {
	ID     string     `json:"id"`
	Body   string     `json:"body"`
	At     time.Time  `json:"time"`
	ReadAt *time.Time `json:"readAt,omitempty"`
	SentBy *Sender    `json:"sentBy,omitempty"`
	Type   string     `json:"type"`
	ChatID string     `json:"chatId"`
}

// Tag is a label attached to a chat by the support team.
type Tag struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name"`
}

// ClosedInfo records when and by whom a chat was closed.
type ClosedInfo struct {
	ClosedAt time.Time `json:"closedAt"`
	ClosedBy *Agent    `json:"closedBy,omitempty"`
}

// Chat is one complete support conversation. Constructed once per ingestion
// pass and treated as immutable afterwards.
type Chat struct {
	ID             string      `json:"id"`
	Number         string      `json:"number"`
	Channel        string      `json:"channel"`
	Contact        Contact     `json:"contact"`
	Agent          *Agent      `json:"agent,omitempty"`
	Messages       []Message   `json:"messages"`
	Status         string      `json:"status"`
	Closed         *ClosedInfo `json:"closed,omitempty"`
	WaitingTime    *int        `json:"waitingTime,omitempty"`
	Tags           []Tag       `json:"tags,omitempty"`
	FirstMessageAt *time.Time  `json:"firstMessageDate,omitempty"`
	LastMessageAt  *time.Time  `json:"lastMessageDate,omitempty"`
}

var (
	// ErrNoMessages marks a chat that cannot be analyzed.
	ErrNoMessages = errors.New("chat has no messages")
	// ErrMissingID marks a chat without an identifier.
	ErrMissingID = errors.New("chat has no id")
)

// Validate checks the invariants the pipeline relies on: a chat has an id and
// at least one message, and messages are ordered by timestamp non-decreasing.
func (c *Chat) Validate() error {
	if c.ID == "" {
		return ErrMissingID
	}
	if len(c.Messages) == 0 {
		return ErrNoMessages
	}
	for i := 1; i < len(c.Messages); i++ {
		if c.Messages[i].At.Before(c.Messages[i-1].At) {
			return errors.New("messages out of order")
		}
	}
	return nil
}

// SortMessages orders messages by timestamp. Sources call it defensively
// before handing a chat to the pipeline.
func (c *Chat) SortMessages() {
	sort.SliceStable(c.Messages, func(i, j int) bool {
		return c.Messages[i].At.Before(c.Messages[j].At)
	})
}

// AgentName returns the responsible agent's name, or empty when unassigned.
func (c *Chat) AgentName() string {
	if c.Agent == nil {
		return ""
	}
	return c.Agent.Name
}

// TagNames flattens chat tags to their names.
func (c *Chat) TagNames() []string {
	if len(c.Tags) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.Tags))
	for _, t := range c.Tags {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names
}

// FirstAt returns the first message timestamp, preferring the message list
// over the source-system summary field.
func (c *Chat) FirstAt() time.Time {
	if len(c.Messages) > 0 {
		return c.Messages[0].At
	}
	if c.FirstMessageAt != nil {
		return *c.FirstMessageAt
	}
	return time.Time{}
}

// LastAt returns the last message timestamp.
func (c *Chat) LastAt() time.Time {
	if n := len(c.Messages); n > 0 {
		return c.Messages[n-1].At
	}
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return time.Time{}
}

// IsAgentMessage reports whether a message came from the human agent side.
// The source system tags senders with type "agent"; older exports only carry
// a company email address.
func IsAgentMessage(m Message, companyDomain string) bool {
	if m.SentBy == nil {
		return false
	}
	if m.SentBy.Type == SenderAgent {
		return true
	}
	if companyDomain != "" && m.SentBy.Email != "" {
		return strings.Contains(strings.ToLower(m.SentBy.Email), strings.ToLower(companyDomain))
	}
	return false
}
