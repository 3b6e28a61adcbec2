package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Supported database/sql driver names.
const (
	DriverSQLite3  = "sqlite3"  // github.com/mattn/go-sqlite3, cgo
	DriverSQLite   = "sqlite"   // modernc.org/sqlite, pure Go
	DriverPgx      = "pgx"      // github.com/jackc/pgx/v5/stdlib
	DriverPostgres = "postgres" // github.com/lib/pq
)

const (
	defaultLoanPeriodDays = 14
	defaultBusyTimeoutMS  = 5000
	defaultListLimit      = 100
)

const (
	logMsgSQLExecuted       = "executed sql"
	logMsgSQLFailed         = "sql statement failed"
	logMsgRollbackFailed    = "rollback failed"
	logMsgUnitFailed        = "unit of work aborted"
	logMsgMigrated          = "schema migrated"
	logMsgLoanCreated       = "loan created"
	logMsgLoanClosed        = "loan closed"
	logMsgLoanConflict      = "concurrent loan detected"
	logMsgBookRemoved       = "book removed"
	logMsgBookStatusChanged = "book status changed"
	logAttrOp               = "op"
	logAttrOpID             = "op_id"
	logAttrQuery            = "query"
	logAttrError            = "error"
	logAttrDurationMS       = "duration_ms"
	logAttrBookID           = "book_id"
	logAttrBorrowerID       = "person_id"
	logAttrTransactionID    = "transaction_id"
	logAttrStatus           = "status"
	logAttrDaysLate         = "days_late"
	logAttrVersion          = "schema_version"
)

// Logger receives SQL timings at debug level, loan outcomes at info level,
// lost races and rollback problems at warn level, and store failures at error
// level. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Database is the library store. All loan and availability rules are enforced
// by its methods; each mutating method runs as one database transaction.
type Database struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
	driver  string

	// postgres locks rows it is about to change and reads generated ids
	// back with RETURNING; SQLite serializes writers with BEGIN IMMEDIATE.
	rowLocks  bool
	returning bool

	logger        Logger
	clock         func() time.Time
	loanPeriod    int
	busyTimeoutMS int
}

// Option configures a Database.
type Option func(*Database) error

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger Logger) Option {
	return func(d *Database) error {
		if logger == nil {
			return invalidInput("logger must not be nil")
		}
		d.logger = logger
		return nil
	}
}

// WithClock sets the source of "today" for default loan, due and return
// dates and for overdue calculations.
func WithClock(now func() time.Time) Option {
	return func(d *Database) error {
		if now == nil {
			return invalidInput("clock must not be nil")
		}
		d.clock = now
		return nil
	}
}

// WithLoanPeriod sets the default number of days between loan and due date.
func WithLoanPeriod(days int) Option {
	return func(d *Database) error {
		if days <= 0 {
			return invalidInput("loan period must be positive, got %d", days)
		}
		d.loanPeriod = days
		return nil
	}
}

// WithBusyTimeout sets how long a SQLite writer waits for the write lock.
// It has no effect on PostgreSQL.
func WithBusyTimeout(ms int) Option {
	return func(d *Database) error {
		if ms < 0 {
			return invalidInput("busy timeout must not be negative, got %d", ms)
		}
		d.busyTimeoutMS = ms
		return nil
	}
}

// NewDatabase opens (or creates) the SQLite database at dbPath with the cgo
// driver and applies schema migrations.
func NewDatabase(dbPath string, opts ...Option) (*Database, error) {
	return Open(context.Background(), DriverSQLite3, dbPath, opts...)
}

// Open connects with the named driver. For the SQLite drivers dsn may be a
// plain file path; connection parameters for busy timeout, foreign keys and
// immediate write transactions are then added. A dsn that already carries a
// query string is used as given.
func Open(ctx context.Context, driverName, dsn string, opts ...Option) (*Database, error) {
	d := &Database{
		driver:        driverName,
		logger:        slog.New(slog.DiscardHandler),
		clock:         time.Now,
		loanPeriod:    defaultLoanPeriodDays,
		busyTimeoutMS: defaultBusyTimeoutMS,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	switch driverName {
	case DriverSQLite3, DriverSQLite:
		d.dialect = goqu.Dialect("sqlite3")
	case DriverPgx, DriverPostgres:
		d.dialect = goqu.Dialect("postgres")
		d.rowLocks = true
		d.returning = true
	default:
		return nil, invalidInput("unsupported driver %q", driverName)
	}

	connStr, err := d.connString(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	d.db = db

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", driverName, err)
	}
	if err := d.applyMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) connString(dsn string) (string, error) {
	if d.isPostgres() || strings.Contains(dsn, "?") {
		return dsn, nil
	}
	if dsn == "" {
		return "", invalidInput("database path is empty")
	}
	path := strings.TrimPrefix(dsn, "file:")
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create db dir: %w", err)
		}
	}
	if d.driver == DriverSQLite {
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_txlock=immediate",
			path, d.busyTimeoutMS), nil
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=1&_txlock=immediate",
		path, d.busyTimeoutMS), nil
}

func (d *Database) isPostgres() bool {
	return d.driver == DriverPgx || d.driver == DriverPostgres
}

// Close closes the connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// Driver returns the driver name the store was opened with.
func (d *Database) Driver() string { return d.driver }

// LoanPeriod returns the default loan length in days.
func (d *Database) LoanPeriod() int { return d.loanPeriod }

func (d *Database) today() Date {
	return DateOf(d.clock())
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func (d *Database) applyMigrations(ctx context.Context) error {
	if !d.isPostgres() {
		// WAL lets readers run next to the single writer.
		if _, err := d.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
	}

	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	var current string
	err := d.get(ctx, d.db, &current,
		d.from("meta").Select("value").Where(goqu.C("key").Eq("schema_version")))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v, _ := strconv.Atoi(current); v >= schemaVersion {
		return nil
	}

	return d.withTx(ctx, "migrate", func(ctx context.Context, tx *sqlx.Tx) error {
		for _, stmt := range d.schema() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration: %w", err)
			}
		}
		if _, err := d.exec(ctx, tx, d.deleteFrom("meta").Where(goqu.C("key").Eq("schema_version"))); err != nil {
			return err
		}
		if _, err := d.exec(ctx, tx, d.insertInto("meta").Rows(goqu.Record{
			"key":   "schema_version",
			"value": strconv.Itoa(schemaVersion),
		})); err != nil {
			return err
		}
		d.logger.Info(logMsgMigrated, d.attrs(ctx, logAttrVersion, schemaVersion)...)
		return nil
	})
}

func (d *Database) schema() []string {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.isPostgres() {
		pk = "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS books (
            book_id ` + pk + `,
            title TEXT NOT NULL,
            author TEXT NOT NULL DEFAULT '',
            isbn TEXT,
            cost_book NUMERIC(10,2),
            book_status TEXT NOT NULL DEFAULT 'AVAILABLE'
                CHECK (book_status IN ('AVAILABLE','BORROWED','LOST','DAMAGED','REMOVED'))
        );`,
		`CREATE TABLE IF NOT EXISTS borrowers (
            person_id ` + pk + `,
            first_name TEXT NOT NULL DEFAULT '',
            last_name TEXT NOT NULL DEFAULT '',
            email TEXT,
            phone_number TEXT,
            relationship_type TEXT,
            address TEXT,
            status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE','INACTIVE'))
        );`,
		`CREATE TABLE IF NOT EXISTS transactions (
            transaction_id ` + pk + `,
            book_id BIGINT NOT NULL REFERENCES books(book_id),
            person_id BIGINT NOT NULL REFERENCES borrowers(person_id),
            loan_date DATE NOT NULL,
            due_date DATE NOT NULL,
            actual_return_date DATE,
            CHECK (due_date >= loan_date),
            CHECK (actual_return_date IS NULL OR actual_return_date >= loan_date)
        );`,
		// At most one open loan per book, whatever path the write took.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_open_book
            ON transactions(book_id) WHERE actual_return_date IS NULL;`,
		`CREATE INDEX IF NOT EXISTS ix_transactions_person ON transactions(person_id);`,
		`CREATE INDEX IF NOT EXISTS ix_transactions_due ON transactions(due_date);`,
	}
}

// ---------------------------------------------------------------------------
// Units of work
// ---------------------------------------------------------------------------

type opIDKey struct{}

// withTx runs fn inside one database transaction. Any error from fn rolls the
// whole unit back; the transaction is released on every path.
func (d *Database) withTx(ctx context.Context, op string, fn func(context.Context, *sqlx.Tx) error) error {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	ctx = context.WithValue(ctx, opIDKey{}, id.String())

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		d.logger.Error(logMsgUnitFailed, d.attrs(ctx, logAttrOp, op, logAttrError, err.Error())...)
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			d.logger.Warn(logMsgRollbackFailed, d.attrs(ctx, logAttrOp, op, logAttrError, rbErr.Error())...)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		d.logUnitFailure(ctx, op, err)
		return err
	}
	if err := tx.Commit(); err != nil {
		d.logger.Error(logMsgUnitFailed, d.attrs(ctx, logAttrOp, op, logAttrError, err.Error())...)
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (d *Database) logUnitFailure(ctx context.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrConflict):
		d.logger.Warn(logMsgUnitFailed, d.attrs(ctx, logAttrOp, op, logAttrError, err.Error())...)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidState), errors.Is(err, ErrValidation):
		d.logger.Debug(logMsgUnitFailed, d.attrs(ctx, logAttrOp, op, logAttrError, err.Error())...)
	default:
		d.logger.Error(logMsgUnitFailed, d.attrs(ctx, logAttrOp, op, logAttrError, err.Error())...)
	}
}

// attrs appends the unit-of-work id, when there is one, to a log record.
func (d *Database) attrs(ctx context.Context, args ...any) []any {
	if id, ok := ctx.Value(opIDKey{}).(string); ok {
		return append(args, logAttrOpID, id)
	}
	return args
}

// ---------------------------------------------------------------------------
// Statement helpers
// ---------------------------------------------------------------------------

// builder is satisfied by every goqu dataset.
type builder interface {
	ToSQL() (string, []any, error)
}

func (d *Database) build(b builder) (string, []any, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return query, args, nil
}

func (d *Database) get(ctx context.Context, q sqlx.QueryerContext, dest any, b builder) error {
	query, args, err := d.build(b)
	if err != nil {
		return err
	}
	start := time.Now()
	err = sqlx.GetContext(ctx, q, dest, query, args...)
	d.logQuery(ctx, query, time.Since(start), err)
	return err
}

func (d *Database) selectRows(ctx context.Context, q sqlx.QueryerContext, dest any, b builder) error {
	query, args, err := d.build(b)
	if err != nil {
		return err
	}
	start := time.Now()
	err = sqlx.SelectContext(ctx, q, dest, query, args...)
	d.logQuery(ctx, query, time.Since(start), err)
	return err
}

func (d *Database) exec(ctx context.Context, q sqlx.ExecerContext, b builder) (sql.Result, error) {
	query, args, err := d.build(b)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := q.ExecContext(ctx, query, args...)
	d.logQuery(ctx, query, time.Since(start), err)
	return res, err
}

// insert runs ds and returns the generated key in idCol.
func (d *Database) insert(ctx context.Context, q sqlx.ExtContext, ds *goqu.InsertDataset, idCol string) (int64, error) {
	if d.returning {
		var id int64
		err := d.get(ctx, q, &id, ds.Returning(goqu.C(idCol)))
		return id, err
	}
	res, err := d.exec(ctx, q, ds)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// affected runs ds and returns the number of rows it changed.
func (d *Database) affected(ctx context.Context, q sqlx.ExecerContext, ds builder) (int64, error) {
	res, err := d.exec(ctx, q, ds)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *Database) logQuery(ctx context.Context, query string, took time.Duration, err error) {
	ms := float64(took.Microseconds()) / 1000
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		d.logger.Debug(logMsgSQLFailed, d.attrs(ctx, logAttrQuery, query, logAttrDurationMS, ms, logAttrError, err.Error())...)
		return
	}
	d.logger.Debug(logMsgSQLExecuted, d.attrs(ctx, logAttrQuery, query, logAttrDurationMS, ms)...)
}

// The dataset constructors below switch goqu to prepared mode so values are
// always sent as bound parameters.

func (d *Database) from(table any) *goqu.SelectDataset {
	return d.dialect.From(table).Prepared(true)
}

func (d *Database) insertInto(table string) *goqu.InsertDataset {
	return d.dialect.Insert(table).Prepared(true)
}

func (d *Database) update(table string) *goqu.UpdateDataset {
	return d.dialect.Update(table).Prepared(true)
}

func (d *Database) deleteFrom(table string) *goqu.DeleteDataset {
	return d.dialect.Delete(table).Prepared(true)
}

// lock adds FOR UPDATE where the store supports row locks.
func (d *Database) lock(ds *goqu.SelectDataset) *goqu.SelectDataset {
	if d.rowLocks {
		return ds.ForUpdate(exp.Wait)
	}
	return ds
}
