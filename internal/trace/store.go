// Package trace persists parameter resolution traces to SQLite so a session
// of chain building can be audited afterwards: which query resolved to which
// parameter, through which matching tier, under which correlation id.
package trace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mparcell123/Ableton-MCP/internal/engine"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Entry is one persisted resolution trace.
type Entry struct {
	ID              int64    `json:"id"`
	CorrelationID   string   `json:"correlation_id"`
	DeviceName      string   `json:"device_name"`
	Query           string   `json:"query"`
	NormalizedQuery string   `json:"normalized_query"`
	MatchedBy       string   `json:"matched_by"`
	ResolvedParam   string   `json:"resolved_param,omitempty"`
	CandidateChain  []string `json:"candidate_chain,omitempty"`
	CreatedAt       string   `json:"created_at"`
}

// Stats aggregates traces per matching tier. Unresolved queries count under
// the empty tier.
type Stats struct {
	Total  int            `json:"total"`
	ByTier map[string]int `json:"by_tier"`
}

// Store is the trace log backed by SQLite.
type Store struct {
	db  *sql.DB
	log *logrus.Logger
}

// New opens (or creates) the trace database at dbPath and runs migrations.
func New(dbPath string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("trace: create data dir: %w", err)
	}

	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("trace: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("trace: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("trace: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS resolution_traces (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			correlation_id   TEXT NOT NULL,
			device_name      TEXT NOT NULL,
			query            TEXT NOT NULL,
			normalized_query TEXT NOT NULL,
			matched_by       TEXT NOT NULL,
			resolved_param   TEXT,
			candidate_chain  TEXT,
			created_at       TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_traces_correlation
			ON resolution_traces(correlation_id);
		CREATE INDEX IF NOT EXISTS idx_traces_created
			ON resolution_traces(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Record implements engine.TraceSink. Persistence failures are logged and
// swallowed; tracing never fails the operation it observes.
func (s *Store) Record(correlationID, deviceName string, trace engine.ResolutionTrace) {
	chain, err := json.Marshal(trace.CandidateChain)
	if err != nil {
		chain = []byte("[]")
	}
	_, err = s.db.Exec(`
		INSERT INTO resolution_traces
			(correlation_id, device_name, query, normalized_query, matched_by, resolved_param, candidate_chain)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		correlationID, deviceName, trace.Query, trace.NormalizedQuery,
		string(trace.MatchedBy), trace.ResolvedParamName, string(chain),
	)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"correlation_id": correlationID,
			"device":         deviceName,
		}).WithError(err).Warn("trace record failed")
	}
}

// Recent returns the newest traces, optionally filtered by correlation id.
func (s *Store) Recent(correlationID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, correlation_id, device_name, query, normalized_query,
		       matched_by, COALESCE(resolved_param, ''), COALESCE(candidate_chain, '[]'), created_at
		FROM resolution_traces`
	var args []any
	if strings.TrimSpace(correlationID) != "" {
		query += " WHERE correlation_id = ?"
		args = append(args, correlationID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("trace: query recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var chain string
		if err := rows.Scan(&e.ID, &e.CorrelationID, &e.DeviceName, &e.Query,
			&e.NormalizedQuery, &e.MatchedBy, &e.ResolvedParam, &chain, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("trace: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(chain), &e.CandidateChain); err != nil {
			e.CandidateChain = nil
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trace: rows: %w", err)
	}
	return out, nil
}

// TierStats aggregates trace counts by matching tier.
func (s *Store) TierStats() (Stats, error) {
	stats := Stats{ByTier: map[string]int{}}

	rows, err := s.db.Query(`
		SELECT matched_by, COUNT(*)
		FROM resolution_traces
		GROUP BY matched_by`)
	if err != nil {
		return stats, fmt.Errorf("trace: query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return stats, fmt.Errorf("trace: scan stats: %w", err)
		}
		stats.ByTier[tier] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("trace: rows: %w", err)
	}
	return stats, nil
}

// Prune deletes traces older than the retention window. It returns the
// number of rows removed.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02 15:04:05")
	res, err := s.db.Exec(`DELETE FROM resolution_traces WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("trace: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
