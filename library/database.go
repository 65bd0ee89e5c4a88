package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// TimeLayout is how borrow timestamps are stored.
const TimeLayout = "2006-01-02 15:04:05"

// Table names of the persisted layout.
const (
	TableBookStatus = "BookStatus"
	TableBook       = "Book"
	TableUser       = "User"
	TableBorrow     = "Borrow"
	TableFine       = "Fine"
	tableMeta       = "meta"
)

// Tables lists the data tables in foreign key order.
var Tables = []string{TableBookStatus, TableBook, TableUser, TableBorrow, TableFine}

// Database provides high-level helpers around a SQLite connection.
type Database struct {
	db      *sqlx.DB
	path    string
	dialect goqu.DialectWrapper
}

// NewDatabase opens (or creates) the SQLite database at dbPath, resets it
// according to mode, and makes sure the schema and status lookup exist.
func NewDatabase(dbPath string, mode ResetMode) (*Database, error) {
	if _, err := ParseResetMode(string(mode)); err != nil {
		return nil, err
	}
	if mode == ResetDeleteFile {
		if err := removeDatabaseFiles(dbPath); err != nil {
			return nil, err
		}
	}

	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Enable busy_timeout and foreign keys. Timestamps are stored as naive
	// wall-clock text and come back with the same wall clock in UTC.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	if err := applySchema(db, mode == ResetDropTables); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db, path: dbPath, dialect: goqu.Dialect("sqlite3")}, nil
}

// Close closes the DB.
func (d *Database) Close() error { return d.db.Close() }

// Path returns the file the database lives in.
func (d *Database) Path() string { return d.path }

// removeDatabaseFiles deletes the database together with its WAL and SHM files.
func removeDatabaseFiles(dbPath string) error {
	for _, file := range []string{dbPath, dbPath + "-shm", dbPath + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", file, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applySchema(db *sqlx.DB, dropTables bool) error {
	// WAL keeps readers unblocked while the bulk insert runs.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var stmts []string
	if dropTables {
		for _, table := range []string{TableFine, TableBorrow, TableUser, TableBook, TableBookStatus, tableMeta} {
			stmts = append(stmts, "DROP TABLE IF EXISTS "+table+";")
		}
	}
	stmts = append(stmts,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`,
		`CREATE TABLE IF NOT EXISTS BookStatus (
            statusID INTEGER PRIMARY KEY,
            statusDetail TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS Book (
            bookID TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            author TEXT NOT NULL,
            publish_year INTEGER,
            intro TEXT,
            statusID INTEGER,
            FOREIGN KEY (statusID) REFERENCES BookStatus(statusID)
        );`,
		`CREATE TABLE IF NOT EXISTS User (
            UserID TEXT PRIMARY KEY,
            email TEXT UNIQUE NOT NULL,
            phone_number TEXT NOT NULL,
            username TEXT UNIQUE NOT NULL,
            password TEXT NOT NULL,
            bookBorrowLimit INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS Borrow (
            BorrowID TEXT PRIMARY KEY,
            UserID TEXT NOT NULL,
            BookID TEXT NOT NULL,
            datetime_borrowed DATETIME NOT NULL,
            except_return_date DATETIME NOT NULL,
            is_returned BOOLEAN NOT NULL DEFAULT 0,
            is_overdue BOOLEAN NOT NULL DEFAULT 0,
            FOREIGN KEY (UserID) REFERENCES User(UserID),
            FOREIGN KEY (BookID) REFERENCES Book(bookID)
        );`,
		`CREATE TABLE IF NOT EXISTS Fine (
            FineID TEXT PRIMARY KEY,
            BorrowID TEXT NOT NULL,
            fine_amount REAL NOT NULL,
            is_paid BOOLEAN NOT NULL DEFAULT 0,
            overdue_days INTEGER NOT NULL,
            FOREIGN KEY (BorrowID) REFERENCES Borrow(BorrowID)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_borrow_user ON Borrow(UserID);`,
		`CREATE INDEX IF NOT EXISTS idx_borrow_book ON Borrow(BookID);`,
		`CREATE INDEX IF NOT EXISTS idx_fine_borrow ON Fine(BorrowID);`,
	)
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	for _, s := range BookStatuses() {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO BookStatus (statusID, statusDetail) VALUES (?, ?)`, int(s.ID), s.Detail); err != nil {
			return fmt.Errorf("seed book status: %w", err)
		}
	}
	if err := setMeta(tx, "schema_version", strconv.Itoa(schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func txMeta(tx *sqlx.Tx, key string) (string, error) {
	var v string
	err := tx.Get(&v, `SELECT value FROM meta WHERE key=?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read meta %s: %w", key, err)
	}
	return v, nil
}

func setMeta(tx *sqlx.Tx, key, value string) error {
	_, err := tx.Exec(`INSERT INTO meta(key,value) VALUES(?,?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Bulk persist
// ---------------------------------------------------------------------------

// PersistOptions tunes Persist.
type PersistOptions struct {
	// Strict fails on duplicate keys instead of skipping the row.
	Strict    bool
	BatchSize int
}

// TableStats counts what happened to the rows offered for one table.
type TableStats struct {
	Table    string
	Rows     int
	Inserted int
}

// Skipped is the number of rows ignored because of a key conflict.
func (s TableStats) Skipped() int { return s.Rows - s.Inserted }

// PersistStats summarises a Persist call.
type PersistStats struct {
	Tables        []TableStats
	StatusUpdates int
}

// Skipped sums the skipped rows over all tables.
func (s PersistStats) Skipped() int {
	n := 0
	for _, t := range s.Tables {
		n += t.Skipped()
	}
	return n
}

// Inserted sums the inserted rows over all tables.
func (s PersistStats) Inserted() int {
	n := 0
	for _, t := range s.Tables {
		n += t.Inserted
	}
	return n
}

// Persist writes the snapshot in a single transaction: books, users, borrows
// and fines, then the pending status updates, then the run metadata. A store
// that already holds rows of another seed is refused with ErrSeedMismatch.
func (d *Database) Persist(snap *Snapshot, opts PersistOptions) (*PersistStats, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultConfig().BatchSize
	}

	tx, err := d.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("begin persist: %w", err)
	}
	defer tx.Rollback()

	// Sequential ids only line up with rows of the same seed.
	stored, err := txMeta(tx, "seed")
	if err != nil {
		return nil, err
	}
	if seed := strconv.FormatUint(snap.Seed, 10); stored != "" && stored != seed {
		return nil, fmt.Errorf("%w: store holds seed %s, run uses %s", ErrSeedMismatch, stored, seed)
	}

	stats := &PersistStats{}
	inserts := []struct {
		table string
		cols  []any
		rows  [][]any
	}{
		{TableBook, []any{"bookID", "name", "author", "publish_year", "intro", "statusID"}, bookRows(snap.Books)},
		{TableUser, []any{"UserID", "email", "phone_number", "username", "password", "bookBorrowLimit"}, userRows(snap.Users)},
		{TableBorrow, []any{"BorrowID", "UserID", "BookID", "datetime_borrowed", "except_return_date", "is_returned", "is_overdue"}, borrowRows(snap.Borrows)},
		{TableFine, []any{"FineID", "BorrowID", "fine_amount", "is_paid", "overdue_days"}, fineRows(snap.Fines)},
	}
	for _, in := range inserts {
		ts, err := d.insertRows(tx, in.table, in.cols, in.rows, opts)
		if err != nil {
			return nil, err
		}
		stats.Tables = append(stats.Tables, ts)
	}

	n, err := d.applyStatusUpdates(tx, snap.StatusUpdates, opts.BatchSize)
	if err != nil {
		return nil, err
	}
	stats.StatusUpdates = n

	// Stored overdue flags belong to the generation time of the run that
	// inserted them, so a run that only skipped rows keeps the old metadata.
	if stats.Inserted() > 0 {
		meta := [][2]string{
			{"run_id", snap.RunID},
			{"generated_at", snap.GeneratedAt.Format(TimeLayout)},
			{"seed", strconv.FormatUint(snap.Seed, 10)},
		}
		for _, kv := range meta {
			if err := setMeta(tx, kv[0], kv[1]); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit persist: %w", err)
	}
	return stats, nil
}

func (d *Database) insertRows(tx *sqlx.Tx, table string, cols []any, rows [][]any, opts PersistOptions) (TableStats, error) {
	ts := TableStats{Table: table, Rows: len(rows)}
	for start := 0; start < len(rows); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(rows))
		ds := d.dialect.Insert(table).Cols(cols...).Vals(rows[start:end]...).Prepared(true)
		if !opts.Strict {
			ds = ds.OnConflict(goqu.DoNothing())
		}
		query, args, err := ds.ToSQL()
		if err != nil {
			return ts, fmt.Errorf("build insert %s: %w", table, err)
		}
		res, err := tx.Exec(query, args...)
		if err != nil {
			return ts, fmt.Errorf("insert %s rows %d-%d: %w", table, start, end-1, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return ts, err
		}
		ts.Inserted += int(affected)
	}
	return ts, nil
}

// hasOpenBorrow restricts Borrowed updates to books with a stored open borrow.
var hasOpenBorrow = goqu.L(`EXISTS (SELECT 1 FROM Borrow r WHERE r.BookID = Book.bookID AND r.is_returned = 0)`)

func (d *Database) applyStatusUpdates(tx *sqlx.Tx, updates []StatusUpdate, batchSize int) (int, error) {
	byStatus := make(map[StatusID][]string)
	for _, u := range updates {
		byStatus[u.Status] = append(byStatus[u.Status], u.BookID)
	}
	statuses := make([]StatusID, 0, len(byStatus))
	for s := range byStatus {
		statuses = append(statuses, s)
	}
	slices.Sort(statuses)

	applied := 0
	for _, status := range statuses {
		ids := byStatus[status]
		for start := 0; start < len(ids); start += batchSize {
			end := min(start+batchSize, len(ids))
			where := []exp.Expression{goqu.C("bookID").In(ids[start:end])}
			if status == StatusBorrowed {
				where = append(where, hasOpenBorrow)
			}
			query, args, err := d.dialect.Update(TableBook).
				Set(goqu.Record{"statusID": int(status)}).
				Where(where...).
				Prepared(true).
				ToSQL()
			if err != nil {
				return applied, fmt.Errorf("build status update: %w", err)
			}
			res, err := tx.Exec(query, args...)
			if err != nil {
				return applied, fmt.Errorf("update book status: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return applied, err
			}
			applied += int(n)
		}
	}
	return applied, nil
}

func bookRows(books []Book) [][]any {
	rows := make([][]any, 0, len(books))
	for _, b := range books {
		rows = append(rows, []any{b.ID, b.Name, b.Author, b.PublishYear, b.Intro, int(b.Status)})
	}
	return rows
}

func userRows(users []User) [][]any {
	rows := make([][]any, 0, len(users))
	for _, u := range users {
		rows = append(rows, []any{u.ID, u.Email, u.PhoneNumber, u.Username, u.Password, u.BorrowLimit})
	}
	return rows
}

func borrowRows(borrows []Borrow) [][]any {
	rows := make([][]any, 0, len(borrows))
	for _, b := range borrows {
		rows = append(rows, []any{
			b.ID, b.UserID, b.BookID,
			b.BorrowedAt.Format(TimeLayout), b.ExpectedReturnAt.Format(TimeLayout),
			b.Returned, b.Overdue,
		})
	}
	return rows
}

func fineRows(fines []Fine) [][]any {
	rows := make([][]any, 0, len(fines))
	for _, f := range fines {
		rows = append(rows, []any{f.ID, f.BorrowID, f.Amount.InexactFloat64(), f.Paid, f.OverdueDays})
	}
	return rows
}

// ---------------------------------------------------------------------------
// Read helpers
// ---------------------------------------------------------------------------

// ErrUnknownTable is returned by read helpers for tables outside the layout.
var ErrUnknownTable = errors.New("unknown table")

func checkTable(table string) error {
	if table == tableMeta || slices.Contains(Tables, table) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownTable, table)
}

// Count returns the number of rows in table.
func (d *Database) Count(table string) (int, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	var n int
	if err := d.db.Get(&n, `SELECT COUNT(*) FROM `+table); err != nil {
		return 0, err
	}
	return n, nil
}

// GetBook fetches a single book.
func (d *Database) GetBook(id string) (*Book, error) {
	var b Book
	err := d.db.Get(&b, `SELECT bookID,name,author,publish_year,COALESCE(intro,'') AS intro,statusID FROM Book WHERE bookID=?`, id)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetUser fetches a single user.
func (d *Database) GetUser(id string) (*User, error) {
	var u User
	if err := d.db.Get(&u, `SELECT UserID,email,phone_number,username,password,bookBorrowLimit FROM User WHERE UserID=?`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetAllBorrows returns all borrows ordered by id.
func (d *Database) GetAllBorrows() ([]Borrow, error) {
	var borrows []Borrow
	err := d.db.Select(&borrows, `SELECT BorrowID,UserID,BookID,datetime_borrowed,except_return_date,is_returned,is_overdue FROM Borrow ORDER BY BorrowID`)
	return borrows, err
}

// GetAllFines returns all fines ordered by id.
func (d *Database) GetAllFines() ([]Fine, error) {
	var fines []Fine
	err := d.db.Select(&fines, `SELECT FineID,BorrowID,fine_amount,is_paid,overdue_days FROM Fine ORDER BY FineID`)
	return fines, err
}

// Meta returns a value from the meta table, or "" when the key is absent.
func (d *Database) Meta(key string) (string, error) {
	var v string
	err := d.db.Get(&v, `SELECT value FROM meta WHERE key=?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// Preview returns the column names and the first limit rows of table as text.
func (d *Database) Preview(table string, limit int) ([]string, [][]string, error) {
	if err := checkTable(table); err != nil {
		return nil, nil, err
	}
	rows, err := d.db.Queryx(`SELECT * FROM `+table+` LIMIT ?`, limit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]string
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, nil, err
		}
		line := make([]string, len(vals))
		for i, v := range vals {
			line[i] = formatValue(v)
		}
		out = append(out, line)
	}
	return cols, out, rows.Err()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(TimeLayout)
	default:
		return fmt.Sprint(t)
	}
}
