package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/model"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const (
	dateFormat  = "2006-01-02"
	maxAttempts = 5
)

// SQL is a Repository backed by SQLite or PostgreSQL.
type SQL struct {
	db     *sqlx.DB
	driver string
	log    *zap.Logger
}

// Open connects to the database and creates the schema if needed.
// For SQLite, dsn is a file path or ":memory:".
func Open(ctx context.Context, driver, dsn string, log *zap.Logger) (*SQL, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer at a time; also keeps ":memory:" on a single database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(30)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	s := &SQL{db: db, driver: driver, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

// Close closes the database connection.
func (s *SQL) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id          TEXT PRIMARY KEY,
	code        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	parent_id   TEXT REFERENCES accounts(id),
	description TEXT NOT NULL DEFAULT '',
	retired     BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS journals (
	id          TEXT PRIMARY KEY,
	reference   TEXT NOT NULL UNIQUE,
	entry_date  TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	posted_at   TEXT,
	posted_by   TEXT NOT NULL DEFAULT '',
	voided_at   TEXT,
	voided_by   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS journal_items (
	id         TEXT PRIMARY KEY,
	journal_id TEXT NOT NULL REFERENCES journals(id),
	account_id TEXT NOT NULL REFERENCES accounts(id),
	line       INTEGER NOT NULL,
	debit      TEXT NOT NULL,
	credit     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_items_journal ON journal_items(journal_id);
CREATE INDEX IF NOT EXISTS idx_journal_items_account ON journal_items(account_id);
CREATE INDEX IF NOT EXISTS idx_journals_entry_date ON journals(entry_date);
`

func (s *SQL) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

type accountRow struct {
	ID          string         `db:"id"`
	Code        string         `db:"code"`
	Name        string         `db:"name"`
	Type        string         `db:"type"`
	ParentID    sql.NullString `db:"parent_id"`
	Description string         `db:"description"`
	Retired     bool           `db:"retired"`
}

func toAccountRow(a model.Account) accountRow {
	return accountRow{
		ID:          a.ID,
		Code:        a.Code,
		Name:        a.Name,
		Type:        string(a.Type),
		ParentID:    sql.NullString{String: a.ParentID, Valid: a.ParentID != ""},
		Description: a.Description,
		Retired:     a.Retired,
	}
}

func (r accountRow) account() model.Account {
	return model.Account{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		Type:        model.AccountType(r.Type),
		ParentID:    r.ParentID.String,
		Description: r.Description,
		Retired:     r.Retired,
	}
}

type journalRow struct {
	ID          string         `db:"id"`
	Reference   string         `db:"reference"`
	EntryDate   string         `db:"entry_date"`
	Description string         `db:"description"`
	Status      string         `db:"status"`
	CreatedAt   string         `db:"created_at"`
	PostedAt    sql.NullString `db:"posted_at"`
	PostedBy    string         `db:"posted_by"`
	VoidedAt    sql.NullString `db:"voided_at"`
	VoidedBy    string         `db:"voided_by"`
}

func toJournalRow(j model.Journal) journalRow {
	return journalRow{
		ID:          j.ID,
		Reference:   j.Reference,
		EntryDate:   j.Date.Format(dateFormat),
		Description: j.Description,
		Status:      string(j.Status),
		CreatedAt:   j.CreatedAt.UTC().Format(time.RFC3339Nano),
		PostedAt:    nullTime(j.PostedAt),
		PostedBy:    j.PostedBy,
		VoidedAt:    nullTime(j.VoidedAt),
		VoidedBy:    j.VoidedBy,
	}
}

func (r journalRow) journal() (model.Journal, error) {
	date, err := time.Parse(dateFormat, r.EntryDate)
	if err != nil {
		return model.Journal{}, fmt.Errorf("parsing entry_date %q: %w", r.EntryDate, err)
	}
	created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return model.Journal{}, fmt.Errorf("parsing created_at %q: %w", r.CreatedAt, err)
	}
	posted, err := parseNullTime(r.PostedAt)
	if err != nil {
		return model.Journal{}, err
	}
	voided, err := parseNullTime(r.VoidedAt)
	if err != nil {
		return model.Journal{}, err
	}
	return model.Journal{
		ID:          r.ID,
		Reference:   r.Reference,
		Date:        date,
		Description: r.Description,
		Status:      model.JournalStatus(r.Status),
		CreatedAt:   created,
		PostedAt:    posted,
		PostedBy:    r.PostedBy,
		VoidedAt:    voided,
		VoidedBy:    r.VoidedBy,
	}, nil
}

type itemRow struct {
	ID        string `db:"id"`
	JournalID string `db:"journal_id"`
	AccountID string `db:"account_id"`
	Line      int    `db:"line"`
	Debit     string `db:"debit"`
	Credit    string `db:"credit"`
}

func toItemRow(it model.JournalItem) itemRow {
	return itemRow{
		ID:        it.ID,
		JournalID: it.JournalID,
		AccountID: it.AccountID,
		Line:      it.Line,
		Debit:     it.Debit.String(),
		Credit:    it.Credit.String(),
	}
}

func (r itemRow) item() (model.JournalItem, error) {
	debit, err := decimal.NewFromString(r.Debit)
	if err != nil {
		return model.JournalItem{}, fmt.Errorf("parsing debit %q: %w", r.Debit, err)
	}
	credit, err := decimal.NewFromString(r.Credit)
	if err != nil {
		return model.JournalItem{}, fmt.Errorf("parsing credit %q: %w", r.Credit, err)
	}
	return model.JournalItem{
		ID:        r.ID,
		JournalID: r.JournalID,
		AccountID: r.AccountID,
		Line:      r.Line,
		Debit:     debit,
		Credit:    credit,
	}, nil
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseNullTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", ns.String, err)
	}
	return t, nil
}

const (
	insertAccountSQL = `INSERT INTO accounts (id, code, name, type, parent_id, description, retired)
		VALUES (:id, :code, :name, :type, :parent_id, :description, :retired)`
	updateAccountSQL = `UPDATE accounts SET code = :code, name = :name, type = :type,
		parent_id = :parent_id, description = :description, retired = :retired WHERE id = :id`
	insertJournalSQL = `INSERT INTO journals (id, reference, entry_date, description, status, created_at, posted_at, posted_by, voided_at, voided_by)
		VALUES (:id, :reference, :entry_date, :description, :status, :created_at, :posted_at, :posted_by, :voided_at, :voided_by)`
	updateJournalSQL = `UPDATE journals SET entry_date = :entry_date, description = :description, status = :status,
		posted_at = :posted_at, posted_by = :posted_by, voided_at = :voided_at, voided_by = :voided_by WHERE id = :id`
	insertItemSQL = `INSERT INTO journal_items (id, journal_id, account_id, line, debit, credit)
		VALUES (:id, :journal_id, :account_id, :line, :debit, :credit)`
)

func (s *SQL) InsertAccount(ctx context.Context, a model.Account) error {
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, insertAccountSQL, toAccountRow(a))
		return err
	})
	if isUniqueViolation(err) {
		return &model.Error{Kind: model.ErrDuplicateCode, AccountCode: a.Code}
	}
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (s *SQL) UpdateAccount(ctx context.Context, a model.Account) error {
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, updateAccountSQL, toAccountRow(a))
		if err != nil {
			return err
		}
		return requireRow(res, &model.Error{Kind: model.ErrNotFound, AccountCode: a.Code})
	})
	if isUniqueViolation(err) {
		return &model.Error{Kind: model.ErrDuplicateCode, AccountCode: a.Code}
	}
	if err != nil {
		return fmt.Errorf("updating account: %w", err)
	}
	return nil
}

func (s *SQL) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var rows []accountRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, code, name, type, parent_id, description, retired FROM accounts ORDER BY code`); err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	out := make([]model.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.account())
	}
	return out, nil
}

func (s *SQL) InsertJournal(ctx context.Context, j model.Journal) error {
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, insertJournalSQL, toJournalRow(j))
		return err
	})
	if isUniqueViolation(err) {
		return &model.Error{Kind: model.ErrDuplicateReference, Reference: j.Reference}
	}
	if err != nil {
		return fmt.Errorf("inserting journal: %w", err)
	}
	return nil
}

func (s *SQL) UpdateJournal(ctx context.Context, j model.Journal) error {
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, updateJournalSQL, toJournalRow(j))
		if err != nil {
			return err
		}
		return requireRow(res, &model.Error{Kind: model.ErrNotFound, Reference: j.Reference})
	})
	if err != nil {
		return fmt.Errorf("updating journal: %w", err)
	}
	return nil
}

func (s *SQL) DeleteJournal(ctx context.Context, id string) error {
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM journal_items WHERE journal_id = ?`), id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM journals WHERE id = ?`), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting journal: %w", err)
	}
	return nil
}

func (s *SQL) InsertItem(ctx context.Context, it model.JournalItem) error {
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, insertItemSQL, toItemRow(it))
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting journal item: %w", err)
	}
	return nil
}

func (s *SQL) DeleteItem(ctx context.Context, id string) error {
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM journal_items WHERE id = ?`), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting journal item: %w", err)
	}
	return nil
}

func (s *SQL) ListJournals(ctx context.Context) ([]model.Journal, error) {
	var jrows []journalRow
	if err := s.db.SelectContext(ctx, &jrows, `SELECT id, reference, entry_date, description, status, created_at,
		posted_at, posted_by, voided_at, voided_by FROM journals ORDER BY entry_date, reference`); err != nil {
		return nil, fmt.Errorf("listing journals: %w", err)
	}
	var irows []itemRow
	if err := s.db.SelectContext(ctx, &irows, `SELECT id, journal_id, account_id, line, debit, credit
		FROM journal_items ORDER BY journal_id, line`); err != nil {
		return nil, fmt.Errorf("listing journal items: %w", err)
	}

	items := make(map[string][]model.JournalItem)
	for _, r := range irows {
		it, err := r.item()
		if err != nil {
			return nil, fmt.Errorf("journal item %s: %w", r.ID, err)
		}
		items[it.JournalID] = append(items[it.JournalID], it)
	}

	out := make([]model.Journal, 0, len(jrows))
	for _, r := range jrows {
		j, err := r.journal()
		if err != nil {
			return nil, fmt.Errorf("journal %s: %w", r.Reference, err)
		}
		j.Items = items[j.ID]
		out = append(out, j)
	}
	return out, nil
}

// WithTx runs fn in a transaction, serializable on PostgreSQL. Serialization
// failures and SQLite lock contention are retried with backoff.
func (s *SQL) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	opts := &sql.TxOptions{}
	if s.driver == DriverPostgres {
		opts.Isolation = sql.LevelSerializable
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tx, err := s.db.BeginTxx(ctx, opts)
		if err != nil {
			if isRetryable(err) && attempt < maxAttempts {
				s.backoff(ctx, attempt, err)
				continue
			}
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if isRetryable(err) && attempt < maxAttempts {
				s.backoff(ctx, attempt, err)
				continue
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			if isRetryable(err) && attempt < maxAttempts {
				s.backoff(ctx, attempt, err)
				continue
			}
			return err
		}
		return nil
	}
	return errors.New("transaction retry limit exceeded")
}

func (s *SQL) backoff(ctx context.Context, attempt int, cause error) {
	s.log.Debug("retrying transaction", zap.Int("attempt", attempt), zap.Error(cause))

	base := 20 * time.Millisecond
	wait := time.Duration(attempt*attempt)*base + time.Duration(rand.Int63n(int64(10*time.Millisecond)))
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
