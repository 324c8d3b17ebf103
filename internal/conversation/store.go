// Package conversation persists multi-turn exchanges in SQLite so tool calls
// can resume an earlier thread by ID. Threads expire a fixed TTL after their
// last activity; expiry is enforced lazily on every read and periodically by
// the Sweeper, so correctness never depends on the sweep having run.
//
// The backing file holds user prompts and file contents, so the store keeps
// the database directory and files readable by the owning user only.
package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrTurnLimit reports an append rejected by the per-thread turn cap.
var ErrTurnLimit = errors.New("conversation has reached the maximum number of turns")

const defaultListLimit = 20

// Store is the single process-wide conversation store. Safe for concurrent
// use; writes serialize on one database connection so concurrent appends to
// the same thread keep a consistent total order.
type Store struct {
	db       *sql.DB
	ttl      time.Duration
	maxTurns int
	logger   *slog.Logger
}

// Open creates or opens the SQLite store at dbPath, applying the schema and
// restricting the directory and database files to the owning user.
func Open(dbPath string, ttl time.Duration, maxTurns int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: SQLite allows a single writer anyway, and a lone
	// connection makes every transaction a serialization point.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	restrictPerms(dbPath)

	return &Store{db: db, ttl: ttl, maxTurns: maxTurns, logger: logger}, nil
}

// restrictPerms chmods the database file and its WAL/SHM companions to
// owner-only. Best effort; the companions may not exist yet.
func restrictPerms(dbPath string) {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		_ = os.Chmod(p, 0o600)
	}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateThread allocates a new thread with a fresh opaque ID and records it
// in the listing index.
func (s *Store) CreateThread(ctx context.Context, title, mode string) (string, error) {
	id := uuid.NewString()
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO conversations (id, title, mode, created_at, last_activity) VALUES (?, ?, ?, ?, ?)",
		id, title, mode, now.UnixNano(), now.UnixNano(),
	); err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO conversation_index (conversation_id, title, mode, last_used) VALUES (?, ?, ?, ?)",
		id, title, mode, now.UnixNano(),
	); err != nil {
		return "", fmt.Errorf("indexing thread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing thread: %w", err)
	}

	s.logger.Debug("thread created", "thread_id", id, "mode", mode)
	return id, nil
}

// GetThread returns the thread's metadata, or nil if it does not exist or
// has passed its TTL. An expired thread is purged on the spot, so a caller
// never observes stale data regardless of sweep timing.
func (s *Store) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	var (
		t                   Thread
		createdNs, activeNs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.title, c.mode, c.created_at, c.last_activity,
		        (SELECT COUNT(*) FROM turns WHERE conversation_id = c.id)
		 FROM conversations c WHERE c.id = ?`,
		threadID,
	).Scan(&t.ID, &t.Title, &t.Mode, &createdNs, &activeNs, &t.TurnCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading thread: %w", err)
	}

	t.CreatedAt = time.Unix(0, createdNs)
	t.LastActivity = time.Unix(0, activeNs)

	if time.Since(t.LastActivity) > s.ttl {
		if err := s.DeleteThread(ctx, threadID); err != nil {
			s.logger.Warn("purging expired thread", "thread_id", threadID, "error", err)
		}
		return nil, nil
	}

	return &t, nil
}

// AddTurn appends a turn to threadID, bumping the thread's activity clock
// and the index's turn count in the same transaction. Returns false without
// error when the thread is absent, expired, or already at the turn cap; the
// caller is expected to report the cap to the user, not drop the turn
// silently.
func (s *Store) AddTurn(ctx context.Context, threadID string, turn Turn) (bool, error) {
	filesJSON, err := json.Marshal(turn.Files)
	if err != nil {
		return false, fmt.Errorf("encoding file list: %w", err)
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var activeNs int64
	err = tx.QueryRowContext(ctx,
		"SELECT last_activity FROM conversations WHERE id = ?", threadID,
	).Scan(&activeNs)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading thread: %w", err)
	}
	if time.Since(time.Unix(0, activeNs)) > s.ttl {
		// Expired: purge inside the same transaction, reject the append.
		if _, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", threadID); err != nil {
			return false, fmt.Errorf("purging expired thread: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("committing purge: %w", err)
		}
		return false, nil
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM turns WHERE conversation_id = ?", threadID,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("counting turns: %w", err)
	}
	if count >= s.maxTurns {
		s.logger.Warn("turn cap reached", "thread_id", threadID, "max_turns", s.maxTurns)
		return false, nil
	}

	now := turn.Timestamp.UnixNano()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (conversation_id, seq, role, content, tool_name, files, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		threadID, count, turn.Role, turn.Content, turn.ToolName, string(filesJSON), now,
	); err != nil {
		return false, fmt.Errorf("appending turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE conversations SET last_activity = ? WHERE id = ?", now, threadID,
	); err != nil {
		return false, fmt.Errorf("updating activity: %w", err)
	}

	if count == 0 && turn.Role == RoleUser {
		if _, err := tx.ExecContext(ctx,
			"UPDATE conversation_index SET first_prompt = ? WHERE conversation_id = ?",
			snippet(turn.Content), threadID,
		); err != nil {
			return false, fmt.Errorf("recording first prompt: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE conversation_index SET turn_count = ?, last_used = ? WHERE conversation_id = ?",
		count+1, now, threadID,
	); err != nil {
		return false, fmt.Errorf("updating index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing turn: %w", err)
	}
	return true, nil
}

// History returns the thread's turns in insertion order, empty if the
// thread is absent or expired.
func (s *Store) History(ctx context.Context, threadID string) ([]Turn, error) {
	t, err := s.GetThread(ctx, threadID)
	if err != nil || t == nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool_name, files, created_at
		 FROM turns WHERE conversation_id = ? ORDER BY seq ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			turn      Turn
			filesJSON string
			ns        int64
		)
		if err := rows.Scan(&turn.Role, &turn.Content, &turn.ToolName, &filesJSON, &ns); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turn.Timestamp = time.Unix(0, ns)
		if err := json.Unmarshal([]byte(filesJSON), &turn.Files); err != nil {
			return nil, fmt.Errorf("decoding file list: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// BuildContext reconstructs a transcript bounded by maxChars for reuse as
// model context. Turns are selected newest-first until the budget would be
// exceeded, then emitted oldest-first: recent turns are the most valuable,
// so older ones are the first dropped, but the surviving window still reads
// chronologically.
func (s *Store) BuildContext(ctx context.Context, threadID string, maxChars int) (string, error) {
	turns, err := s.History(ctx, threadID)
	if err != nil || len(turns) == 0 {
		return "", err
	}

	var (
		kept  []string
		total int
	)
	for i := len(turns) - 1; i >= 0; i-- {
		entry := formatTurn(turns[i])
		if total+len(entry) > maxChars && len(kept) > 0 {
			break
		}
		if len(entry) > maxChars {
			break
		}
		kept = append(kept, entry)
		total += len(entry)
	}

	// kept is newest-first; reverse for chronological display.
	var b strings.Builder
	for i := len(kept) - 1; i >= 0; i-- {
		b.WriteString(kept[i])
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func formatTurn(t Turn) string {
	var b strings.Builder
	b.WriteString("--- ")
	b.WriteString(t.Role)
	if t.ToolName != "" {
		b.WriteString(" (")
		b.WriteString(t.ToolName)
		b.WriteString(")")
	}
	b.WriteString(" ---\n")
	b.WriteString(t.Content)
	b.WriteString("\n\n")
	return b.String()
}

// GetOrCreateThread is the resume-or-start entry point. A continuation ID
// that resolves to a live thread is reused; anything else, including an
// expired ID, yields a brand-new thread under a new ID. Expired threads are
// never resurrected.
func (s *Store) GetOrCreateThread(ctx context.Context, continuationID, title, mode string) (string, bool, *Thread, error) {
	if continuationID != "" {
		t, err := s.GetThread(ctx, continuationID)
		if err != nil {
			return "", false, nil, err
		}
		if t != nil {
			return t.ID, false, t, nil
		}
		s.logger.Debug("continuation not found, starting fresh", "thread_id", continuationID)
	}

	id, err := s.CreateThread(ctx, title, mode)
	if err != nil {
		return "", false, nil, err
	}
	t, err := s.GetThread(ctx, id)
	if err != nil {
		return "", false, nil, err
	}
	return id, true, t, nil
}

// CleanupExpired bulk-purges every thread whose TTL has elapsed. Idempotent
// and safe alongside concurrent reads and appends.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.ttl).UnixNano()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM conversations WHERE last_activity < ?", cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purging expired threads: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged threads: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired conversations purged", "count", n)
	}
	return n, nil
}

// DeleteThread removes the thread, its turns, and its index entry. Foreign
// keys cascade the dependents. Deleting an absent thread is a no-op.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM conversations WHERE id = ?", threadID,
	); err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	return nil
}

// UpdateTitle replaces a thread's title in both the thread row and index.
func (s *Store) UpdateTitle(ctx context.Context, threadID, title string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"UPDATE conversations SET title = ? WHERE id = ?", title, threadID,
	); err != nil {
		return fmt.Errorf("updating title: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE conversation_index SET title = ? WHERE conversation_id = ?", title, threadID,
	); err != nil {
		return fmt.Errorf("updating index title: %w", err)
	}
	return tx.Commit()
}

// ListConversations returns index entries for live threads, most recently
// used first. Expired threads are excluded even before a sweep removes them.
func (s *Store) ListConversations(ctx context.Context, filter ListFilter) ([]IndexEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT conversation_id, title, mode, first_prompt, turn_count, last_used
	          FROM conversation_index WHERE last_used >= ?`
	args := []any{time.Now().Add(-s.ttl).UnixNano()}

	if filter.Mode != "" {
		query += " AND mode = ?"
		args = append(args, filter.Mode)
	}
	if filter.Search != "" {
		query += " AND (title LIKE ? OR first_prompt LIKE ?)"
		like := "%" + filter.Search + "%"
		args = append(args, like, like)
	}
	query += " ORDER BY last_used DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var entries []IndexEntry
	for rows.Next() {
		var (
			e  IndexEntry
			ns int64
		)
		if err := rows.Scan(&e.ThreadID, &e.Title, &e.Mode, &e.FirstPrompt, &e.TurnCount, &ns); err != nil {
			return nil, fmt.Errorf("scanning index entry: %w", err)
		}
		e.LastUsed = time.Unix(0, ns)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FindByTitle returns the most recently used live thread whose title
// matches exactly, or nil.
func (s *Store) FindByTitle(ctx context.Context, title string) (*IndexEntry, error) {
	var (
		e  IndexEntry
		ns int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, title, mode, first_prompt, turn_count, last_used
		 FROM conversation_index
		 WHERE title = ? AND last_used >= ?
		 ORDER BY last_used DESC LIMIT 1`,
		title, time.Now().Add(-s.ttl).UnixNano(),
	).Scan(&e.ThreadID, &e.Title, &e.Mode, &e.FirstPrompt, &e.TurnCount, &ns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding by title: %w", err)
	}
	e.LastUsed = time.Unix(0, ns)
	return &e, nil
}

// Stats reports totals over live threads.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	cutoff := time.Now().Add(-s.ttl).UnixNano()
	var (
		st             Stats
		oldest, newest sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        (SELECT COUNT(*) FROM turns t JOIN conversations c2 ON c2.id = t.conversation_id WHERE c2.last_activity >= ?),
		        MIN(last_activity), MAX(last_activity)
		 FROM conversations WHERE last_activity >= ?`,
		cutoff, cutoff,
	).Scan(&st.Threads, &st.Turns, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("collecting stats: %w", err)
	}
	if oldest.Valid {
		st.OldestUsed = time.Unix(0, oldest.Int64)
	}
	if newest.Valid {
		st.NewestUsed = time.Unix(0, newest.Int64)
	}
	return st, nil
}
