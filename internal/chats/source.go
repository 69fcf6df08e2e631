package chats

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
)

// ErrDone signals a source has no more chats.
var ErrDone = errors.New("chat source exhausted")

// Source produces chat records one at a time so callers can bound how much
// of the input is resident at once.
type Source interface {
	Next(ctx context.Context) (*Chat, error)
}

// SliceSource serves chats from an in-memory slice.
type SliceSource struct {
	chats []*Chat
	pos   int
}

// NewSliceSource wraps already-materialized chats as a source.
func NewSliceSource(chats []*Chat) *SliceSource {
	return &SliceSource{chats: chats}
}

func (s *SliceSource) Next(ctx context.Context) (*Chat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.chats) {
		return nil, ErrDone
	}
	c := s.chats[s.pos]
	s.pos++
	return c, nil
}

// JSONSource streams chats out of an exported JSON array file without
// materializing the whole file. Chats that fail to parse are skipped with a
// warning, matching how exports with a few malformed rows are handled.
type JSONSource struct {
	file    *os.File
	dec     *json.Decoder
	started bool
	closed  bool
	skipped int
}

// NewJSONSource opens a JSON export for streaming.
func NewJSONSource(path string) (*JSONSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chat export: %w", err)
	}
	return &JSONSource{file: f, dec: json.NewDecoder(f)}, nil
}

func (s *JSONSource) Next(ctx context.Context) (*Chat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.started {
		tok, err := s.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read chat export: %w", err)
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			return nil, fmt.Errorf("chat export must be a JSON array, got %v", tok)
		}
		s.started = true
	}
	for s.dec.More() {
		var raw json.RawMessage
		if err := s.dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("read chat export: %w", err)
		}
		var c Chat
		if err := json.Unmarshal(raw, &c); err != nil || c.ID == "" {
			s.skipped++
			telemetry.Warn("chat export entry skipped", map[string]any{
				"skipped": s.skipped,
				"err":     errString(err),
			})
			continue
		}
		c.SortMessages()
		return &c, nil
	}
	_ = s.Close()
	return nil, ErrDone
}

// Close releases the export file. Safe to call after a drained Next.
func (s *JSONSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// Skipped reports how many entries failed to parse.
func (s *JSONSource) Skipped() int { return s.skipped }

func errString(err error) string {
	if err == nil {
		return "missing id"
	}
	return err.Error()
}

// PGSource pages through the chats mirror table with a keyset cursor, holding
// at most one page of decoded chats in memory.
type PGSource struct {
	db       *sql.DB
	from, to time.Time
	pageSize int

	page    []*Chat
	pos     int
	lastAt  time.Time
	lastID  string
	drained bool
}

const pgSourceQuery = `
SELECT id, payload, first_message_at
FROM chats
WHERE first_message_at >= $1 AND first_message_at < $2
  AND (first_message_at, id) > ($3, $4)
ORDER BY first_message_at, id
LIMIT $5`

// NewPGSource builds a paginated source over the given analysis window.
func NewPGSource(db *sql.DB, from, to time.Time, pageSize int) *PGSource {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &PGSource{
		db:       db,
		from:     from,
		to:       to,
		pageSize: pageSize,
		lastAt:   from.Add(-time.Second),
	}
}

func (s *PGSource) Next(ctx context.Context) (*Chat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for s.pos >= len(s.page) {
		if s.drained {
			return nil, ErrDone
		}
		if err := s.fetchPage(ctx); err != nil {
			return nil, err
		}
	}
	c := s.page[s.pos]
	s.pos++
	return c, nil
}

func (s *PGSource) fetchPage(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, pgSourceQuery, s.from, s.to, s.lastAt, s.lastID, s.pageSize)
	if err != nil {
		return fmt.Errorf("query chats page: %w", err)
	}
	defer rows.Close()

	s.page = s.page[:0]
	s.pos = 0
	scanned := 0
	for rows.Next() {
		var (
			id      string
			payload []byte
			firstAt time.Time
		)
		if err := rows.Scan(&id, &payload, &firstAt); err != nil {
			return fmt.Errorf("scan chat row: %w", err)
		}
		scanned++
		s.lastAt, s.lastID = firstAt, id
		var c Chat
		if err := json.Unmarshal(payload, &c); err != nil {
			telemetry.Warn("chat payload skipped", map[string]any{"chat_id": id, "err": err.Error()})
			continue
		}
		if c.ID == "" {
			c.ID = id
		}
		c.SortMessages()
		s.page = append(s.page, &c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate chats page: %w", err)
	}
	if scanned < s.pageSize {
		s.drained = true
	}
	return nil
}
