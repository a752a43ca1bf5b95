package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/mfbot-download/pkg/core"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

const downloadColumns = `id, message, thread, flow, run_id, artifact, location, status, bytes, error, created_at, completed_at`

// SQLiteStore implements core.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// NewSQLiteStoreWithDB wraps an already opened database.
func NewSQLiteStoreWithDB(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	s := NewSQLiteStore(logger)
	s.db = db
	return s
}

// Open opens a connection to the SQLite database, creating its directory.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := ":memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened state database", "path", path)
	return nil
}

// OpenSQLiteStore opens and migrates a store in one step.
func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	s := NewSQLiteStore(logger)
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// CreateDownload inserts a new ledger entry. ID, CreatedAt and Status are
// filled in when empty.
func (s *SQLiteStore) CreateDownload(ctx context.Context, d *Download) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if d.ID == "" {
		d.ID = generateID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Status == "" {
		d.Status = core.DownloadStatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downloads (`+downloadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Message, d.Thread, d.Flow, d.RunID, d.Artifact, d.Location,
		string(d.Status), d.Bytes, nullString(d.Error), d.CreatedAt.UnixMilli(), nullMillis(d.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create download: %w", err)
	}
	return nil
}

// UpdateDownload overwrites the mutable fields of an entry. Reaching a
// terminal status stamps CompletedAt when it is unset.
func (s *SQLiteStore) UpdateDownload(ctx context.Context, d *Download) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if d.Status.Terminal() && d.CompletedAt == nil {
		now := time.Now().UTC()
		d.CompletedAt = &now
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE downloads SET flow = ?, run_id = ?, artifact = ?, location = ?, status = ?, bytes = ?, error = ?, completed_at = ?
		 WHERE id = ?`,
		d.Flow, d.RunID, d.Artifact, d.Location, string(d.Status), d.Bytes,
		nullString(d.Error), nullMillis(d.CompletedAt), d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, d.ID)
	}
	return nil
}

// GetDownload retrieves an entry by ID.
func (s *SQLiteStore) GetDownload(ctx context.Context, id string) (*Download, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+downloadColumns+` FROM downloads WHERE id = ?`, id)
	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download: %w", err)
	}
	return d, nil
}

// ListDownloads returns entries newest first.
func (s *SQLiteStore) ListDownloads(ctx context.Context, opts ListOptions) ([]*Download, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var (
		where []string
		args  []any
	)
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}
	if opts.Flow != "" {
		where = append(where, "flow = ?")
		args = append(args, opts.Flow)
	}

	query := `SELECT ` + downloadColumns + ` FROM downloads`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDownload(row scanner) (*Download, error) {
	var (
		d           Download
		status      string
		errMsg      sql.NullString
		createdAt   int64
		completedAt sql.NullInt64
	)
	if err := row.Scan(&d.ID, &d.Message, &d.Thread, &d.Flow, &d.RunID, &d.Artifact, &d.Location,
		&status, &d.Bytes, &errMsg, &createdAt, &completedAt); err != nil {
		return nil, err
	}

	d.Status = core.DownloadStatus(status)
	d.CreatedAt = time.UnixMilli(createdAt).UTC()
	if errMsg.Valid {
		d.Error = errMsg.String
	}
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		d.CompletedAt = &t
	}
	return &d, nil
}

// nullString returns a sql.NullString for optional string fields.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
