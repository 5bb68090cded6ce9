// Package storage provides SQLite-backed persistence for transactions and
// analysis runs.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/salesmap/internal/models"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db              *sql.DB
	maxTransactions int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/salesmap/data.db.
func New(maxTransactions int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "salesmap", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxTransactions: maxTransactions}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id              TEXT PRIMARY KEY,
			vendor_id       TEXT NOT NULL DEFAULT '',
			amount          REAL NOT NULL,
			payment_method  TEXT NOT NULL DEFAULT '',
			ts              INTEGER,
			lat             REAL,
			lng             REAL,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id              TEXT PRIMARY KEY,
			mode            TEXT NOT NULL,
			total_input     INTEGER NOT NULL,
			analyzed        INTEGER NOT NULL,
			has_busy        INTEGER NOT NULL DEFAULT 0,
			busy_lat        REAL NOT NULL DEFAULT 0,
			busy_lng        REAL NOT NULL DEFAULT 0,
			busy_revenue    REAL NOT NULL DEFAULT 0,
			notified        INTEGER NOT NULL DEFAULT 0,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON analysis_runs(created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AddTransaction stores tx. A transaction whose ID already exists is left
// untouched and reported as not inserted.
func (s *Storage) AddTransaction(tx *models.Transaction) (bool, error) {
	inserted, err := s.AddTransactions([]models.Transaction{*tx})
	if err != nil {
		return false, err
	}
	return inserted[0], nil
}

// AddTransactions stores txs atomically: every transaction is validated
// before the first insert, and either all rows are written or none are.
// The returned slice reports per transaction whether it was new.
func (s *Storage) AddTransactions(txs []models.Transaction) ([]bool, error) {
	for i := range txs {
		if err := txs[i].Validate(); err != nil {
			return nil, fmt.Errorf("transaction %d (%s): %w", i, txs[i].ID, err)
		}
	}

	dbtx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbtx.Rollback() //nolint:errcheck

	stmt, err := dbtx.Prepare(`
		INSERT OR IGNORE INTO transactions
			(id, vendor_id, amount, payment_method, ts, lat, lng, created_at)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := make([]bool, len(txs))
	total := int64(0)
	for i := range txs {
		tx := &txs[i]
		var ts sql.NullInt64
		if !tx.Timestamp.IsZero() {
			ts = sql.NullInt64{Int64: tx.Timestamp.UnixNano(), Valid: true}
		}
		var lat, lng sql.NullFloat64
		if tx.Location != nil {
			lat = sql.NullFloat64{Float64: tx.Location.Lat, Valid: true}
			lng = sql.NullFloat64{Float64: tx.Location.Lng, Valid: true}
		}

		res, err := stmt.Exec(tx.ID, tx.VendorID, tx.Amount, tx.PaymentMethod, ts, lat, lng, tx.CreatedAt.UnixNano())
		if err != nil {
			return nil, fmt.Errorf("failed to insert transaction %s: %w", tx.ID, err)
		}
		n, _ := res.RowsAffected()
		inserted[i] = n > 0
		total += n
	}

	if total > 0 && s.maxTransactions > 0 {
		if _, err = dbtx.Exec(`
			DELETE FROM transactions WHERE id NOT IN (
				SELECT id FROM transactions ORDER BY created_at DESC LIMIT ?
			)`, s.maxTransactions); err != nil {
			return nil, fmt.Errorf("failed to enforce transaction cap: %w", err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

func (s *Storage) GetTransaction(id string) (*models.Transaction, error) {
	row := s.db.QueryRow(`SELECT `+transactionCols+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// ListTransactions returns every stored transaction, oldest first.
func (s *Storage) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionCols+` FROM transactions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

// Revision identifies the current transaction set. It changes whenever a
// transaction is added or rotated out.
type Revision struct {
	Count      int
	MaxCreated int64
	MinCreated int64
}

func (s *Storage) Revision(ctx context.Context) (Revision, error) {
	var r Revision
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(created_at), 0), COALESCE(MIN(created_at), 0)
		FROM transactions`).Scan(&r.Count, &r.MaxCreated, &r.MinCreated)
	if err != nil {
		return Revision{}, fmt.Errorf("failed to read revision: %w", err)
	}
	return r, nil
}

// RotateTransactions keeps at most maxTransactions newest transactions by
// created_at.
func (s *Storage) RotateTransactions() error {
	if s.maxTransactions <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		DELETE FROM transactions WHERE id NOT IN (
			SELECT id FROM transactions ORDER BY created_at DESC LIMIT ?
		)`, s.maxTransactions)
	if err != nil {
		return fmt.Errorf("failed to rotate transactions: %w", err)
	}
	return nil
}

// SaveRun persists an analysis summary, assigning an ID when empty.
func (s *Storage) SaveRun(run *models.AnalysisRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO analysis_runs
			(id, mode, total_input, analyzed, has_busy, busy_lat, busy_lng,
			 busy_revenue, notified, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.Mode, run.TotalInput, run.Analyzed, boolToInt(run.HasBusy),
		run.BusyLat, run.BusyLng, run.BusyRevenue, boolToInt(run.Notified),
		run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// LatestRun returns the newest run for mode. With notifiedOnly set, only runs
// that triggered a notification are considered.
func (s *Storage) LatestRun(mode string, notifiedOnly bool) (*models.AnalysisRun, error) {
	query := `SELECT ` + runCols + ` FROM analysis_runs WHERE mode = ?`
	if notifiedOnly {
		query += ` AND notified = 1`
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	var run models.AnalysisRun
	var hasBusy, notified int
	var createdAtNano int64
	err := s.db.QueryRow(query, mode).Scan(
		&run.ID, &run.Mode, &run.TotalInput, &run.Analyzed, &hasBusy,
		&run.BusyLat, &run.BusyLng, &run.BusyRevenue, &notified, &createdAtNano,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run for mode %s: %w", mode, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	run.HasBusy = hasBusy != 0
	run.Notified = notified != 0
	run.CreatedAt = time.Unix(0, createdAtNano)
	return &run, nil
}

const transactionCols = `id, vendor_id, amount, payment_method, ts, lat, lng, created_at`

const runCols = `id, mode, total_input, analyzed, has_busy, busy_lat, busy_lng,
	busy_revenue, notified, created_at`

func scanTransaction(scan func(...any) error) (*models.Transaction, error) {
	var tx models.Transaction
	var ts sql.NullInt64
	var lat, lng sql.NullFloat64
	var createdAtNano int64
	err := scan(
		&tx.ID, &tx.VendorID, &tx.Amount, &tx.PaymentMethod,
		&ts, &lat, &lng, &createdAtNano,
	)
	if err != nil {
		return nil, err
	}
	if ts.Valid {
		tx.Timestamp = time.Unix(0, ts.Int64)
	}
	if lat.Valid && lng.Valid {
		tx.Location = &models.LatLng{Lat: lat.Float64, Lng: lng.Float64}
	}
	tx.CreatedAt = time.Unix(0, createdAtNano)
	return &tx, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
