package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"quill/internal/config"
)

// Store manages content item persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	applyConflictAttempts = 5
)

// Open initializes or connects to the item database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens a store at an explicit database path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create registers a new raw input at the input stage. The fingerprint is a
// caller-supplied content digest used to reject duplicate registrations.
func (s *Store) Create(ctx context.Context, fingerprint string, payloadRefs []string) (*Item, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return nil, errors.New("fingerprint is required")
	}

	refsJSON, err := encodePayloadRefs(payloadRefs)
	if err != nil {
		return nil, err
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	var id int64
	err = retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(
			ctx,
			`INSERT INTO content_items (
                fingerprint, stage, payload_refs, created_at, stage_updated_at, attempt_count
            ) VALUES (?, ?, ?, ?, ?, 0)`,
			fingerprint,
			StageInput,
			refsJSON,
			timestamp,
			timestamp,
		)
		if execErr != nil {
			return execErr
		}
		id, execErr = res.LastInsertId()
		return execErr
	})
	if err != nil {
		if isUniqueViolation(err, "fingerprint") {
			return nil, fmt.Errorf("%w: fingerprint %q already registered", ErrDuplicateInput, fingerprint)
		}
		return nil, fmt.Errorf("insert item: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a content item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM content_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// FindByFingerprint returns the item registered for a fingerprint, or
// ErrNotFound.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM content_items WHERE fingerprint = ?`,
		strings.TrimSpace(fingerprint),
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: fingerprint %q", ErrNotFound, fingerprint)
	}
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return item, nil
}

// ItemsByStage returns items in a stage ordered by stage entry time, oldest
// first, so processing within a stage is FIFO. Callers re-fetch on every
// scheduling pass, which keeps the sequence restartable across crashes.
func (s *Store) ItemsByStage(ctx context.Context, stage Stage) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM content_items WHERE stage = ? ORDER BY stage_updated_at, id`,
		stage,
	)
	if err != nil {
		return nil, fmt.Errorf("query by stage: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// List returns items filtered by stage set (or all items when no stage is
// provided), ordered by creation time.
func (s *Store) List(ctx context.Context, stages ...Stage) ([]*Item, error) {
	baseQuery := `SELECT ` + itemColumns + ` FROM content_items`
	orderClause := ` ORDER BY created_at, id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(stages) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(stages))
		args := make([]any, len(stages))
		for i, stage := range stages {
			args[i] = stage
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE stage IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Apply performs an atomic read-modify-write on a single item. The mutation
// callback receives a copy; returning an error aborts with the stored state
// untouched. Concurrent writers to the same item are detected via the
// stage_updated_at version token and the whole operation is re-run against a
// fresh read. The new state is durable before Apply returns.
func (s *Store) Apply(ctx context.Context, id int64, mutate func(*Item) error) (*Item, error) {
	if mutate == nil {
		return nil, errors.New("mutation is required")
	}

	var conflictErr error
	for attempt := 0; attempt < applyConflictAttempts; attempt++ {
		item, err := s.applyOnce(ctx, id, mutate)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, errApplyConflict) {
			return nil, err
		}
		conflictErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(busyRetryInitialBackoff):
		}
	}
	return nil, fmt.Errorf("apply item %d: %w", id, conflictErr)
}

var errApplyConflict = errors.New("concurrent modification")

func (s *Store) applyOnce(ctx context.Context, id int64, mutate func(*Item) error) (*Item, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Fingerprint = current.Fingerprint
	next.CreatedAt = current.CreatedAt
	if next.Stage != current.Stage {
		next.StageUpdatedAt = time.Now().UTC()
	}

	refsJSON, err := encodePayloadRefs(next.PayloadRefs)
	if err != nil {
		return nil, err
	}

	var res sql.Result
	err = retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(
			ctx,
			`UPDATE content_items
             SET stage = ?, payload_refs = ?, stage_updated_at = ?,
                 attempt_count = ?, last_error = ?, published_post_id = ?
             WHERE id = ? AND stage = ? AND stage_updated_at = ?`,
			next.Stage,
			refsJSON,
			next.StageUpdatedAt.Format(time.RFC3339Nano),
			next.AttemptCount,
			nullableString(next.LastError),
			nullableString(next.PublishedPostID),
			id,
			current.Stage,
			current.StageUpdatedAt.Format(time.RFC3339Nano),
		)
		return execErr
	})
	if err != nil {
		if isUniqueViolation(err, "published_post_id") {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePost, next.PublishedPostID)
		}
		return nil, fmt.Errorf("update item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, errApplyConflict
	}
	return next, nil
}

// Stats returns a count of items grouped by stage. Stages with no items are
// present with a zero count so reports stay shaped.
func (s *Store) Stats(ctx context.Context) (map[Stage]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage, COUNT(1) FROM content_items GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("item stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Stage]int, len(allStages))
	for _, stage := range allStages {
		stats[stage] = 0
	}
	for rows.Next() {
		var stage Stage
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		stats[stage] = count
	}
	return stats, rows.Err()
}

const itemColumns = "id, fingerprint, stage, payload_refs, created_at, stage_updated_at, attempt_count, last_error, published_post_id"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		fingerprint  string
		stageStr     string
		refsJSON     string
		createdRaw   string
		stageUpdated string
		attemptCount int
		lastError    sql.NullString
		postID       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&fingerprint,
		&stageStr,
		&refsJSON,
		&createdRaw,
		&stageUpdated,
		&attemptCount,
		&lastError,
		&postID,
	); err != nil {
		return nil, err
	}

	refs, err := decodePayloadRefs(refsJSON)
	if err != nil {
		return nil, fmt.Errorf("decode payload refs for item %d: %w", id, err)
	}

	item := &Item{
		ID:              id,
		Fingerprint:     fingerprint,
		Stage:           Stage(stageStr),
		PayloadRefs:     refs,
		AttemptCount:    attemptCount,
		LastError:       lastError.String,
		PublishedPostID: postID.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(stageUpdated); err == nil {
		item.StageUpdatedAt = updated
	}
	return item, nil
}

func encodePayloadRefs(refs []string) (string, error) {
	if len(refs) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return "", fmt.Errorf("encode payload refs: %w", err)
	}
	return string(data), nil
}

func decodePayloadRefs(value string) ([]string, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var refs []string
	if err := json.Unmarshal([]byte(value), &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
