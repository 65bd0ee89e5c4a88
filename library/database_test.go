package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"), ResetDropTables)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func persistSnapshot(t *testing.T, db *Database, snap *Snapshot) *PersistStats {
	t.Helper()
	stats, err := db.Persist(snap, PersistOptions{BatchSize: 64})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	return stats
}

func TestSchemaSeedsStatuses(t *testing.T) {
	db := tempDB(t)

	n, err := db.Count(TableBookStatus)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, rows, err := db.Preview(TableBookStatus, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "Available"}, {"2", "Borrowed"}, {"3", "Lost"}}, rows)

	v, err := db.Meta("schema_version")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestPersistAndVerify(t *testing.T) {
	cfg := smallConfig(t)
	snap := generateSnapshot(t, cfg)
	db := tempDB(t)

	stats := persistSnapshot(t, db, snap)
	require.Len(t, stats.Tables, 4)
	assert.Zero(t, stats.Skipped())
	assert.Equal(t, len(snap.StatusUpdates), stats.StatusUpdates)

	v, err := db.Verify(cfg.FinePerDay)
	require.NoError(t, err)
	assert.True(t, v.OK(), v.String())
	assert.Equal(t, len(snap.Books), v.Books)
	assert.Equal(t, len(snap.Users), v.Users)
	assert.Equal(t, len(snap.Borrows), v.Borrows)
	assert.Equal(t, len(snap.Fines), v.Fines)
	assert.Equal(t, snap.CountBooks(StatusLost), v.Lost)
	assert.Equal(t, len(snap.Borrows), v.Borrowed)
	assert.True(t, v.DefaultUserPresent)

	u, err := db.GetUser(DefaultUserID)
	require.NoError(t, err)
	assert.Equal(t, DefaultEmail, u.Email)
	assert.Equal(t, DefaultPassword, u.Password)
	assert.Equal(t, DefaultPhone, u.PhoneNumber)

	for _, br := range snap.Borrows {
		b, err := db.GetBook(br.BookID)
		require.NoError(t, err)
		assert.Equal(t, StatusBorrowed, b.Status, "book %s", b.ID)
	}

	borrows, err := db.GetAllBorrows()
	require.NoError(t, err)
	require.Len(t, borrows, len(snap.Borrows))
	for i, got := range borrows {
		want := snap.Borrows[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.BorrowedAt.Format(TimeLayout), got.BorrowedAt.Format(TimeLayout))
		assert.Equal(t, want.ExpectedReturnAt.Format(TimeLayout), got.ExpectedReturnAt.Format(TimeLayout))
		assert.Equal(t, want.Overdue, got.Overdue)
		assert.False(t, got.Returned)
	}

	fines, err := db.GetAllFines()
	require.NoError(t, err)
	require.Len(t, fines, len(snap.Fines))
	for i, got := range fines {
		assert.True(t, snap.Fines[i].Amount.Equal(got.Amount), "fine %s: %s != %s", got.ID, snap.Fines[i].Amount, got.Amount)
	}

	runID, err := db.Meta("run_id")
	require.NoError(t, err)
	assert.Equal(t, "test-run", runID)
	at, err := db.Meta("generated_at")
	require.NoError(t, err)
	assert.Equal(t, testNow.Format(TimeLayout), at)
}

func TestPersistTwiceSkipsConflicts(t *testing.T) {
	snap := generateSnapshot(t, smallConfig(t))
	db := tempDB(t)
	persistSnapshot(t, db, snap)

	stats := persistSnapshot(t, db, snap)
	for _, ts := range stats.Tables {
		assert.Zero(t, ts.Inserted, ts.Table)
	}
	want := len(snap.Books) + len(snap.Users) + len(snap.Borrows) + len(snap.Fines)
	assert.Equal(t, want, stats.Skipped())

	n, err := db.Count(TableBook)
	require.NoError(t, err)
	assert.Equal(t, len(snap.Books), n)
}

func TestPersistWithoutInsertsKeepsRunMetadata(t *testing.T) {
	snap := generateSnapshot(t, smallConfig(t))
	db := tempDB(t)
	persistSnapshot(t, db, snap)

	again := *snap
	again.RunID = "second-run"
	again.GeneratedAt = testNow.AddDate(0, 0, 30)
	persistSnapshot(t, db, &again)

	runID, err := db.Meta("run_id")
	require.NoError(t, err)
	assert.Equal(t, "test-run", runID)
	at, err := db.Meta("generated_at")
	require.NoError(t, err)
	assert.Equal(t, testNow.Format(TimeLayout), at)
}

func TestPersistRefusesRowsOfAnotherSeed(t *testing.T) {
	cfg := smallConfig(t)
	db := tempDB(t)
	persistSnapshot(t, db, generateSnapshot(t, cfg))

	cfg.Seed = 43
	_, err := db.Persist(generateSnapshot(t, cfg), PersistOptions{BatchSize: 64})
	require.ErrorIs(t, err, ErrSeedMismatch)

	v, err := db.Verify(cfg.FinePerDay)
	require.NoError(t, err)
	assert.True(t, v.OK(), v.String())
	seed, err := db.Meta("seed")
	require.NoError(t, err)
	assert.Equal(t, "42", seed)
}

func TestStatusUpdateWithoutStoredBorrowIsIgnored(t *testing.T) {
	cfg := smallConfig(t)
	snap := generateSnapshot(t, cfg)
	db := tempDB(t)
	persistSnapshot(t, db, snap)

	var idle string
	for _, b := range snap.Books {
		if b.Status == StatusAvailable {
			idle = b.ID
			break
		}
	}
	require.NotEmpty(t, idle)

	again := *snap
	again.StatusUpdates = append(append([]StatusUpdate(nil), snap.StatusUpdates...),
		StatusUpdate{BookID: idle, Status: StatusBorrowed})
	stats := persistSnapshot(t, db, &again)
	assert.Equal(t, len(snap.StatusUpdates), stats.StatusUpdates)

	b, err := db.GetBook(idle)
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, b.Status)

	v, err := db.Verify(cfg.FinePerDay)
	require.NoError(t, err)
	assert.Zero(t, v.BorrowedWithoutLoan)
	assert.True(t, v.OK(), v.String())
}

func TestStrictPersistFailsOnConflict(t *testing.T) {
	snap := generateSnapshot(t, smallConfig(t))
	db := tempDB(t)
	persistSnapshot(t, db, snap)

	_, err := db.Persist(snap, PersistOptions{Strict: true, BatchSize: 64})
	assert.Error(t, err)
}

func TestPersistRollsBackOnForeignKeyFailure(t *testing.T) {
	snap := generateSnapshot(t, smallConfig(t))
	require.NotEmpty(t, snap.Borrows)
	snap.Borrows[0].UserID = "U99999"
	db := tempDB(t)

	_, err := db.Persist(snap, PersistOptions{BatchSize: 64})
	require.Error(t, err)

	for _, table := range []string{TableBook, TableUser, TableBorrow, TableFine} {
		n, err := db.Count(table)
		require.NoError(t, err)
		assert.Zero(t, n, table)
	}
	runID, err := db.Meta("run_id")
	require.NoError(t, err)
	assert.Empty(t, runID)
}

func TestResetModes(t *testing.T) {
	snap := generateSnapshot(t, smallConfig(t))

	cases := []struct {
		mode     ResetMode
		keepRows bool
	}{
		{ResetDropTables, false},
		{ResetDeleteFile, false},
		{ResetNone, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "reset.db")
			db, err := NewDatabase(path, ResetDropTables)
			require.NoError(t, err)
			persistSnapshot(t, db, snap)
			require.NoError(t, db.Close())

			db, err = NewDatabase(path, tc.mode)
			require.NoError(t, err)
			defer db.Close()

			n, err := db.Count(TableBook)
			require.NoError(t, err)
			if tc.keepRows {
				assert.Equal(t, len(snap.Books), n)
			} else {
				assert.Zero(t, n)
			}
			statuses, err := db.Count(TableBookStatus)
			require.NoError(t, err)
			assert.Equal(t, 3, statuses)
		})
	}
}

func TestNewDatabaseFailsOnUnwritablePath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := NewDatabase(filepath.Join(blocker, "test.db"), ResetDropTables)
	assert.Error(t, err)

	_, err = NewDatabase(filepath.Join(t.TempDir(), "test.db"), ResetMode("truncate"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestReadHelpersRejectUnknownTables(t *testing.T) {
	db := tempDB(t)

	_, _, err := db.Preview("Book; DROP TABLE Book", 1)
	assert.ErrorIs(t, err, ErrUnknownTable)
	_, err = db.Count("sqlite_master")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestVerifyFlagsInconsistentRows(t *testing.T) {
	cfg := smallConfig(t)
	snap := generateSnapshot(t, cfg)
	db := tempDB(t)
	persistSnapshot(t, db, snap)

	_, err := db.db.Exec(`UPDATE Book SET statusID = 1 WHERE bookID = ?`, snap.Borrows[0].BookID)
	require.NoError(t, err)
	_, err = db.db.Exec(`UPDATE Fine SET fine_amount = fine_amount + 1`)
	require.NoError(t, err)

	v, err := db.Verify(cfg.FinePerDay)
	require.NoError(t, err)
	assert.False(t, v.OK())
	assert.Equal(t, 1, v.LoanOnUnborrowed)
	assert.Equal(t, len(snap.Fines), v.WrongFineAmount)
	assert.Contains(t, v.String(), "problems:")
}
