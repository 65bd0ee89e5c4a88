package library

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// Relationships is the output of the relationship stage.
type Relationships struct {
	// Now is the wall-clock reading of the generation time, zoned as UTC.
	Now           time.Time
	Borrows       []Borrow
	Fines         []Fine
	StatusUpdates []StatusUpdate
}

// BorrowID formats the sequential identifier of the i-th borrow.
func BorrowID(i int) string { return fmt.Sprintf("BOR%05d", i) }

// FineID formats the sequential identifier of the i-th fine.
func FineID(i int) string { return fmt.Sprintf("F%05d", i) }

// GenerateRelationships lends books to users in slice order and derives fines
// for loans already overdue at now. Lent books are marked Borrowed in books.
// All timestamps are wall-clock readings of now's zone, so a loan always spans
// exactly LoanDays calendar days even across a DST change.
func (g *Generator) GenerateRelationships(books []Book, users []User, now time.Time) (*Relationships, error) {
	now = wallClock(now)
	windowStart := now.AddDate(0, 0, -g.cfg.BorrowWindowDays)
	loan := time.Duration(g.cfg.LoanDays) * day
	rate := decimal.NewFromFloat(g.cfg.FinePerDay)

	pool := newBookPool(books)
	rel := &Relationships{Now: now}
	g.log.Debug("borrowing from pool", "available", pool.len(), "users", len(users))

	for _, u := range users {
		want := g.borrowCount(u.BorrowLimit)
		for range want {
			if pool.len() == 0 {
				break
			}
			book, err := pool.take(pool.pick(g.rng))
			if err != nil {
				return nil, err
			}
			rel.StatusUpdates = append(rel.StatusUpdates, StatusUpdate{BookID: book.ID, Status: StatusBorrowed})

			borrowedAt := g.fake.DateTimeBetween(windowStart, now).Truncate(time.Second)
			expected := borrowedAt.Add(loan)
			b := Borrow{
				ID:               BorrowID(len(rel.Borrows)),
				UserID:           u.ID,
				BookID:           book.ID,
				BorrowedAt:       borrowedAt,
				ExpectedReturnAt: expected,
				Overdue:          now.After(expected),
			}
			rel.Borrows = append(rel.Borrows, b)

			if !b.Overdue {
				continue
			}
			days := int(now.Sub(expected) / day)
			rel.Fines = append(rel.Fines, Fine{
				ID:          FineID(len(rel.Fines)),
				BorrowID:    b.ID,
				Amount:      FineAmount(days, rate),
				OverdueDays: days,
			})
		}
	}

	g.log.Info("generated borrows",
		"borrows", len(rel.Borrows),
		"fines", len(rel.Fines),
		"still_available", pool.len(),
	)
	return rel, nil
}

// wallClock keeps the reading of t to the second and drops its zone.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// FineAmount is overdueDays times the per-day rate.
func FineAmount(overdueDays int, rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(int64(overdueDays)))
}

// borrowCount draws from BorrowWeights restricted to 0..limit.
func (g *Generator) borrowCount(limit int) int {
	weights := g.cfg.BorrowWeights
	if limit+1 < len(weights) {
		weights = weights[:max(limit+1, 0)]
	}
	total := 0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0
	}
	r := g.rng.IntN(total)
	for n, w := range weights {
		if r < w {
			return n
		}
		r -= w
	}
	return len(weights) - 1
}
