package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dyike/DexterGo/internal/models"
)

// Repository persists research events and session summaries. Writes are
// idempotent: re-executing a plan step replaces its earlier event, and a
// session summary is replaced wholesale on every sync.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	r := &Repository{db: db}
	if err := r.initTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) initTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS research_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			plan_id INTEGER NOT NULL,
			step_id TEXT NOT NULL,
			symbol_key TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			args_json TEXT,
			data_json TEXT,
			quality TEXT NOT NULL,
			source_provider TEXT,
			message TEXT,
			requester TEXT,
			trigger_reason TEXT,
			timestamp DATETIME NOT NULL,
			UNIQUE(session_id, plan_id, step_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_research_events_symbol
			ON research_events(symbol_key, timestamp);`,
		`CREATE TABLE IF NOT EXISTS research_sessions (
			session_id TEXT PRIMARY KEY,
			symbol_key TEXT NOT NULL,
			query TEXT,
			plans_json TEXT,
			total_tool_calls INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("init tables: %w", err)
		}
	}
	return nil
}

// SaveEvent upserts one tool execution record keyed on
// (session_id, plan_id, step_id). Step IDs are only unique within a plan, so
// the plan id is part of the key.
func (r *Repository) SaveEvent(ctx context.Context, ev *models.ResearchEvent) error {
	argsJSON, err := json.Marshal(ev.Args)
	if err != nil {
		return fmt.Errorf("marshal event args: %w", err)
	}
	dataJSON, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO research_events
			(session_id, plan_id, step_id, symbol_key, tool_name, args_json,
			 data_json, quality, source_provider, message, requester,
			 trigger_reason, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, plan_id, step_id) DO UPDATE SET
			symbol_key = excluded.symbol_key,
			tool_name = excluded.tool_name,
			args_json = excluded.args_json,
			data_json = excluded.data_json,
			quality = excluded.quality,
			source_provider = excluded.source_provider,
			message = excluded.message,
			requester = excluded.requester,
			trigger_reason = excluded.trigger_reason,
			timestamp = excluded.timestamp
	`, ev.SessionID, ev.PlanID, ev.StepID, ev.SymbolKey, ev.ToolName,
		string(argsJSON), string(dataJSON), string(ev.Quality),
		ev.SourceProvider, ev.Message, ev.Requester, string(ev.TriggerReason),
		ev.Timestamp)
	if err != nil {
		return fmt.Errorf("save research event: %w", err)
	}
	return nil
}

// SaveSession replaces the session summary row.
func (r *Repository) SaveSession(ctx context.Context, s *models.SessionSummary) error {
	plansJSON, err := json.Marshal(s.Plans)
	if err != nil {
		return fmt.Errorf("marshal session plans: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO research_sessions
			(session_id, symbol_key, query, plans_json, total_tool_calls,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.SessionID, s.SymbolKey, s.Query, string(plansJSON),
		s.TotalToolCalls, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save research session: %w", err)
	}
	return nil
}

// EventsBySession returns the session's events ordered by plan then step.
func (r *Repository) EventsBySession(ctx context.Context, sessionID string) ([]*models.ResearchEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, plan_id, step_id, symbol_key, tool_name, args_json,
		       data_json, quality, source_provider, message, requester,
		       trigger_reason, timestamp
		FROM research_events
		WHERE session_id = ?
		ORDER BY plan_id, step_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsBySymbol returns recent events touching the symbol across sessions,
// newest first.
func (r *Repository) EventsBySymbol(ctx context.Context, symbolKey string, limit int) ([]*models.ResearchEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, plan_id, step_id, symbol_key, tool_name, args_json,
		       data_json, quality, source_provider, message, requester,
		       trigger_reason, timestamp
		FROM research_events
		WHERE symbol_key = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, symbolKey, limit)
	if err != nil {
		return nil, fmt.Errorf("query symbol events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Session loads one session summary, or nil when absent.
func (r *Repository) Session(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT session_id, symbol_key, query, plans_json, total_tool_calls,
		       created_at, updated_at
		FROM research_sessions
		WHERE session_id = ?
	`, sessionID)

	var s models.SessionSummary
	var plansJSON string
	err := row.Scan(&s.SessionID, &s.SymbolKey, &s.Query, &plansJSON,
		&s.TotalToolCalls, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if plansJSON != "" {
		if err := json.Unmarshal([]byte(plansJSON), &s.Plans); err != nil {
			return nil, fmt.Errorf("decode session plans: %w", err)
		}
	}
	return &s, nil
}

func scanEvents(rows *sql.Rows) ([]*models.ResearchEvent, error) {
	var events []*models.ResearchEvent
	for rows.Next() {
		var ev models.ResearchEvent
		var argsJSON, dataJSON, quality, trigger string
		var ts time.Time
		if err := rows.Scan(&ev.SessionID, &ev.PlanID, &ev.StepID,
			&ev.SymbolKey, &ev.ToolName, &argsJSON, &dataJSON, &quality,
			&ev.SourceProvider, &ev.Message, &ev.Requester, &trigger,
			&ts); err != nil {
			return nil, fmt.Errorf("scan research event: %w", err)
		}
		ev.Quality = models.Quality(quality)
		ev.TriggerReason = models.TriggerReason(trigger)
		ev.Timestamp = ts
		if argsJSON != "" && argsJSON != "null" {
			if err := json.Unmarshal([]byte(argsJSON), &ev.Args); err != nil {
				return nil, fmt.Errorf("decode event args: %w", err)
			}
		}
		if dataJSON != "" && dataJSON != "null" {
			if err := json.Unmarshal([]byte(dataJSON), &ev.Data); err != nil {
				return nil, fmt.Errorf("decode event data: %w", err)
			}
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}
