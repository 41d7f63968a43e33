package history

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// SQLitePersistence durably backs a Store's comprehensive log in a
// single-file sqlite database: load the full transcript on open, replace
// it wholesale after compaction or a send. The Store itself stays
// in-memory; this is an optional durable mirror.
type SQLitePersistence struct {
	db        *sql.DB
	sessionID string
}

// OpenSQLitePersistence opens (creating if absent) the sqlite database at
// path and prepares the session's transcript table.
func OpenSQLitePersistence(path, sessionID string) (*SQLitePersistence, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite at %q: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS history_entries (
			session_id TEXT NOT NULL,
			seq        INTEGER NOT NULL,
			role       TEXT NOT NULL,
			parts_json TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}
	return &SQLitePersistence{db: db, sessionID: sessionID}, nil
}

func (p *SQLitePersistence) Close() error { return p.db.Close() }

// Load reconstructs the comprehensive log for this session in sequence
// order, for seeding a fresh in-memory Store on process start.
func (p *SQLitePersistence) Load() ([]protocol.Content, error) {
	rows, err := p.db.Query(
		`SELECT role, parts_json FROM history_entries WHERE session_id = ? ORDER BY seq ASC`,
		p.sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []protocol.Content
	for rows.Next() {
		var role, partsJSON string
		if err := rows.Scan(&role, &partsJSON); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		var parts []protocol.Part
		if err := json.Unmarshal([]byte(partsJSON), &parts); err != nil {
			return nil, fmt.Errorf("history: decode parts: %w", err)
		}
		out = append(out, protocol.Content{Role: protocol.Role(role), Parts: parts})
	}
	return out, rows.Err()
}

// SaveAll replaces the session's persisted transcript with log in a single
// transaction. Used after Store.Replace (compaction) and after every send.
func (p *SQLitePersistence) SaveAll(log []protocol.Content) error {
	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("history: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM history_entries WHERE session_id = ?`, p.sessionID); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	for i, c := range log {
		raw, err := json.Marshal(c.Parts)
		if err != nil {
			return fmt.Errorf("history: encode parts: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO history_entries (session_id, seq, role, parts_json) VALUES (?, ?, ?, ?)`,
			p.sessionID, i, string(c.Role), string(raw),
		); err != nil {
			return fmt.Errorf("history: insert: %w", err)
		}
	}
	return tx.Commit()
}

// NewDurable opens sqlite persistence at path, loads any prior transcript
// for sessionID into a fresh Store, and returns both so the caller can
// persist future appends via SaveAll.
func NewDurable(path, sessionID string) (*Store, *SQLitePersistence, error) {
	persist, err := OpenSQLitePersistence(path, sessionID)
	if err != nil {
		return nil, nil, err
	}
	prior, err := persist.Load()
	if err != nil {
		persist.Close()
		return nil, nil, err
	}
	store := New()
	if len(prior) > 0 {
		store.Replace(prior)
	}
	return store, persist, nil
}
