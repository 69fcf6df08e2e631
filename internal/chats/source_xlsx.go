package chats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// XLSXSource reads chat exports in spreadsheet form: one row per message,
// consecutive rows for the same chat id grouped into one Chat. Column
// positions are detected from the header row.
type XLSXSource struct {
	file *excelize.File
	rows *excelize.Rows
	cols xlsxColumns

	pending *Chat
	done    bool
}

type xlsxColumns struct {
	chatID     int
	number     int
	channel    int
	contact    int
	agentName  int
	agentEmail int
	status     int
	tags       int
	body       int
	sentAt     int
	senderType int
	senderName int
}

// NewXLSXSource opens a spreadsheet export and positions the reader after the
// header row.
func NewXLSXSource(path string) (*XLSXSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if !rows.Next() {
		_ = rows.Close()
		_ = f.Close()
		return nil, fmt.Errorf("spreadsheet has no header row")
	}
	header, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		_ = f.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := detectColumns(header)
	if err != nil {
		_ = rows.Close()
		_ = f.Close()
		return nil, err
	}
	return &XLSXSource{file: f, rows: rows, cols: cols}, nil
}

func detectColumns(header []string) (xlsxColumns, error) {
	cols := xlsxColumns{
		chatID: -1, number: -1, channel: -1, contact: -1, agentName: -1,
		agentEmail: -1, status: -1, tags: -1, body: -1, sentAt: -1,
		senderType: -1, senderName: -1,
	}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case l == "chat_id" || l == "chatid" || l == "chat":
			cols.chatID = i
		case strings.Contains(l, "number") || l == "numero":
			cols.number = i
		case strings.Contains(l, "channel") || l == "canal":
			cols.channel = i
		case strings.Contains(l, "contact") || strings.Contains(l, "cliente"):
			cols.contact = i
		case strings.Contains(l, "agent") && strings.Contains(l, "email"):
			cols.agentEmail = i
		case strings.Contains(l, "agent") || strings.Contains(l, "atendente"):
			cols.agentName = i
		case strings.Contains(l, "status"):
			cols.status = i
		case strings.Contains(l, "tag"):
			cols.tags = i
		case strings.Contains(l, "body") || strings.Contains(l, "message") || strings.Contains(l, "mensagem"):
			cols.body = i
		case strings.Contains(l, "time") || strings.Contains(l, "date") || l == "hora":
			cols.sentAt = i
		case strings.Contains(l, "sender_type") || l == "remetente_tipo":
			cols.senderType = i
		case strings.Contains(l, "sender") || strings.Contains(l, "remetente"):
			cols.senderName = i
		}
	}
	if cols.chatID < 0 || cols.body < 0 || cols.sentAt < 0 {
		return cols, fmt.Errorf("spreadsheet missing required columns (chat_id, body, time)")
	}
	return cols, nil
}

func (s *XLSXSource) Next(ctx context.Context) (*Chat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.done {
		return nil, ErrDone
	}

	current := s.pending
	s.pending = nil

	for s.rows.Next() {
		row, err := s.rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		chatID := cell(row, s.cols.chatID)
		if chatID == "" {
			continue
		}
		msg, err := s.messageFromRow(row, chatID)
		if err != nil {
			continue
		}
		if current == nil {
			current = s.chatFromRow(row, chatID)
		}
		if chatID != current.ID {
			// First row of the next chat; park it and emit the current one.
			next := s.chatFromRow(row, chatID)
			next.Messages = append(next.Messages, msg)
			s.pending = next
			current.SortMessages()
			return current, nil
		}
		current.Messages = append(current.Messages, msg)
	}

	s.done = true
	_ = s.rows.Close()
	_ = s.file.Close()
	if current != nil {
		current.SortMessages()
		return current, nil
	}
	return nil, ErrDone
}

// Close releases the spreadsheet handles. Safe after a drained Next.
func (s *XLSXSource) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	_ = s.rows.Close()
	return s.file.Close()
}

func (s *XLSXSource) chatFromRow(row []string, chatID string) *Chat {
	c := &Chat{
		ID:      chatID,
		Number:  cell(row, s.cols.number),
		Channel: cell(row, s.cols.channel),
		Contact: Contact{ID: chatID, Name: cell(row, s.cols.contact)},
		Status:  cell(row, s.cols.status),
	}
	if name := cell(row, s.cols.agentName); name != "" {
		c.Agent = &Agent{ID: name, Name: name, Email: cell(row, s.cols.agentEmail)}
	}
	if raw := cell(row, s.cols.tags); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if name := strings.TrimSpace(t); name != "" {
				c.Tags = append(c.Tags, Tag{Name: name})
			}
		}
	}
	return c
}

func (s *XLSXSource) messageFromRow(row []string, chatID string) (Message, error) {
	at, err := parseCellTime(cell(row, s.cols.sentAt))
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		ID:     fmt.Sprintf("%s-%d", chatID, at.UnixNano()),
		Body:   cell(row, s.cols.body),
		At:     at,
		Type:   "text",
		ChatID: chatID,
	}
	senderType := strings.ToLower(cell(row, s.cols.senderType))
	senderName := cell(row, s.cols.senderName)
	if senderType != "" || senderName != "" {
		if senderType != SenderAgent {
			senderType = SenderContact
		}
		msg.SentBy = &Sender{ID: senderName, Name: senderName, Type: senderType}
	}
	return msg, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

var cellTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01-02-06 15:04",
	"1/2/06 15:04",
}

func parseCellTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range cellTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
