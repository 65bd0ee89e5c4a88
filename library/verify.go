package library

import (
	"fmt"
	"strings"
)

// Verification is a post-run consistency report computed from stored rows.
type Verification struct {
	Books   int `db:"books"`
	Users   int `db:"users"`
	Borrows int `db:"borrows"`
	Fines   int `db:"fines"`

	Available int `db:"available"`
	Borrowed  int `db:"borrowed"`
	Lost      int `db:"lost"`

	InvalidStatus       int `db:"invalid_status"`
	BorrowedWithoutLoan int `db:"borrowed_without_loan"`
	LoanOnUnborrowed    int `db:"loan_on_unborrowed"`
	DoubleLent          int `db:"double_lent"`
	UsersOverLimit      int `db:"users_over_limit"`
	OverdueWithoutFine  int `db:"overdue_without_fine"`
	FineWithoutOverdue  int `db:"fine_without_overdue"`
	WrongFineAmount     int `db:"wrong_fine_amount"`
	OverdueFlagMismatch int `db:"overdue_flag_mismatch"`

	DefaultUserPresent bool `db:"default_user_present"`
}

// Problems lists every violated invariant; empty means the store is consistent.
func (v *Verification) Problems() []string {
	var p []string
	add := func(n int, what string) {
		if n > 0 {
			p = append(p, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(v.InvalidStatus, "books with an unknown status")
	add(v.BorrowedWithoutLoan, "borrowed books without an open borrow")
	add(v.LoanOnUnborrowed, "open borrows on books not marked borrowed")
	add(v.DoubleLent, "books lent more than once")
	add(v.UsersOverLimit, "users over their borrow limit")
	add(v.OverdueWithoutFine, "overdue borrows without a fine")
	add(v.FineWithoutOverdue, "fines on borrows that are not overdue")
	add(v.WrongFineAmount, "fines with a wrong amount")
	add(v.OverdueFlagMismatch, "borrows whose overdue flag disagrees with the generation time")
	if !v.DefaultUserPresent {
		p = append(p, "default user "+DefaultUserID+" missing")
	}
	return p
}

// OK reports whether no invariant is violated.
func (v *Verification) OK() bool { return len(v.Problems()) == 0 }

func (v *Verification) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "books=%d (available=%d borrowed=%d lost=%d) users=%d borrows=%d fines=%d",
		v.Books, v.Available, v.Borrowed, v.Lost, v.Users, v.Borrows, v.Fines)
	if problems := v.Problems(); len(problems) > 0 {
		sb.WriteString("\nproblems: " + strings.Join(problems, "; "))
	}
	return sb.String()
}

const verifyQuery = `
SELECT
    (SELECT COUNT(*) FROM Book)   AS books,
    (SELECT COUNT(*) FROM User)   AS users,
    (SELECT COUNT(*) FROM Borrow) AS borrows,
    (SELECT COUNT(*) FROM Fine)   AS fines,
    (SELECT COUNT(*) FROM Book WHERE statusID = 1) AS available,
    (SELECT COUNT(*) FROM Book WHERE statusID = 2) AS borrowed,
    (SELECT COUNT(*) FROM Book WHERE statusID = 3) AS lost,
    (SELECT COUNT(*) FROM Book WHERE statusID NOT IN (1,2,3) OR statusID IS NULL) AS invalid_status,
    (SELECT COUNT(*) FROM Book b WHERE b.statusID = 2
        AND NOT EXISTS (SELECT 1 FROM Borrow r WHERE r.BookID = b.bookID AND r.is_returned = 0)) AS borrowed_without_loan,
    (SELECT COUNT(*) FROM Borrow r JOIN Book b ON b.bookID = r.BookID
        WHERE r.is_returned = 0 AND b.statusID <> 2) AS loan_on_unborrowed,
    (SELECT COUNT(*) FROM (SELECT BookID FROM Borrow WHERE is_returned = 0
        GROUP BY BookID HAVING COUNT(*) > 1)) AS double_lent,
    (SELECT COUNT(*) FROM User u
        WHERE (SELECT COUNT(*) FROM Borrow r WHERE r.UserID = u.UserID) > u.bookBorrowLimit) AS users_over_limit,
    (SELECT COUNT(*) FROM Borrow r WHERE r.is_overdue = 1
        AND NOT EXISTS (SELECT 1 FROM Fine f WHERE f.BorrowID = r.BorrowID)) AS overdue_without_fine,
    (SELECT COUNT(*) FROM Fine f JOIN Borrow r ON r.BorrowID = f.BorrowID
        WHERE r.is_overdue = 0) AS fine_without_overdue,
    (SELECT COUNT(*) FROM Fine WHERE ABS(fine_amount - overdue_days * ?) > 1e-6) AS wrong_fine_amount,
    (SELECT COUNT(*) FROM Borrow r, (SELECT value AS now FROM meta WHERE key = 'generated_at') m
        WHERE r.is_overdue <> (r.except_return_date < m.now)) AS overdue_flag_mismatch,
    EXISTS (SELECT 1 FROM User WHERE UserID = ?) AS default_user_present
`

// Verify checks the stored dataset against the generator's invariants.
// finePerDay is the rate fines are expected to have been computed with.
func (d *Database) Verify(finePerDay float64) (*Verification, error) {
	var v Verification
	if err := d.db.Get(&v, verifyQuery, finePerDay, DefaultUserID); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	return &v, nil
}
