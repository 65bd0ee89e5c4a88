package library

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusID identifies a row of the BookStatus lookup table.
type StatusID int

const (
	StatusAvailable StatusID = 1
	StatusBorrowed  StatusID = 2
	StatusLost      StatusID = 3
)

func (s StatusID) String() string {
	switch s {
	case StatusAvailable:
		return "Available"
	case StatusBorrowed:
		return "Borrowed"
	case StatusLost:
		return "Lost"
	default:
		return "Unknown"
	}
}

// Valid reports whether s is one of the seeded lookup values.
func (s StatusID) Valid() bool {
	return s == StatusAvailable || s == StatusBorrowed || s == StatusLost
}

// BookStatus is a row of the fixed lookup table.
type BookStatus struct {
	ID     StatusID `json:"status_id" db:"statusID"`
	Detail string   `json:"status_detail" db:"statusDetail"`
}

// BookStatuses returns the lookup rows in id order.
func BookStatuses() []BookStatus {
	return []BookStatus{
		{ID: StatusAvailable, Detail: StatusAvailable.String()},
		{ID: StatusBorrowed, Detail: StatusBorrowed.String()},
		{ID: StatusLost, Detail: StatusLost.String()},
	}
}

// Book is a catalog entry. Status reflects the final state after borrowing.
type Book struct {
	ID          string   `json:"book_id" db:"bookID"`
	Name        string   `json:"name" db:"name"`
	Author      string   `json:"author" db:"author"`
	PublishYear int      `json:"publish_year" db:"publish_year"`
	Intro       string   `json:"intro" db:"intro"`
	Status      StatusID `json:"status_id" db:"statusID"`
}

// User is a library patron.
// Password is plaintext unless the generator was configured to hash it.
type User struct {
	ID          string `json:"user_id" db:"UserID"`
	Email       string `json:"email" db:"email"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`
	Username    string `json:"username" db:"username"`
	Password    string `json:"-" db:"password"`
	BorrowLimit int    `json:"book_borrow_limit" db:"bookBorrowLimit"`
}

// Borrow links one user to one book for a loan period.
type Borrow struct {
	ID               string    `json:"borrow_id" db:"BorrowID"`
	UserID           string    `json:"user_id" db:"UserID"`
	BookID           string    `json:"book_id" db:"BookID"`
	BorrowedAt       time.Time `json:"datetime_borrowed" db:"datetime_borrowed"`
	ExpectedReturnAt time.Time `json:"except_return_date" db:"except_return_date"`
	Returned         bool      `json:"is_returned" db:"is_returned"`
	Overdue          bool      `json:"is_overdue" db:"is_overdue"`
}

// Fine is the penalty derived from an overdue borrow.
type Fine struct {
	ID          string          `json:"fine_id" db:"FineID"`
	BorrowID    string          `json:"borrow_id" db:"BorrowID"`
	Amount      decimal.Decimal `json:"fine_amount" db:"fine_amount"`
	Paid        bool            `json:"is_paid" db:"is_paid"`
	OverdueDays int             `json:"overdue_days" db:"overdue_days"`
}

// StatusUpdate is a pending book status transition produced by borrowing.
type StatusUpdate struct {
	BookID string
	Status StatusID
}

// Snapshot is the complete staged dataset of one generation run.
type Snapshot struct {
	RunID         string
	Seed          uint64
	GeneratedAt   time.Time
	Statuses      []BookStatus
	Books         []Book
	Users         []User
	Borrows       []Borrow
	Fines         []Fine
	StatusUpdates []StatusUpdate
}

// CountBooks returns how many books of the snapshot carry status s.
func (s *Snapshot) CountBooks(status StatusID) int {
	n := 0
	for i := range s.Books {
		if s.Books[i].Status == status {
			n++
		}
	}
	return n
}
