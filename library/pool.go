package library

import (
	"fmt"
	"math/rand/v2"
)

// bookPool is the set of books that can still be lent during one run.
// books is the caller's slice and acts as the status shadow; ids holds the
// available book ids and pos maps an id to its index in ids so removal is O(1).
type bookPool struct {
	books []Book
	slot  map[string]int
	ids   []string
	pos   map[string]int
}

func newBookPool(books []Book) *bookPool {
	p := &bookPool{
		books: books,
		slot:  make(map[string]int, len(books)),
		pos:   make(map[string]int, len(books)),
	}
	for i := range books {
		p.slot[books[i].ID] = i
		if books[i].Status != StatusAvailable {
			continue
		}
		p.pos[books[i].ID] = len(p.ids)
		p.ids = append(p.ids, books[i].ID)
	}
	return p
}

func (p *bookPool) len() int { return len(p.ids) }

// pick returns a uniformly random available id without removing it.
func (p *bookPool) pick(rng *rand.Rand) string {
	return p.ids[rng.IntN(len(p.ids))]
}

// take removes id from the pool and marks the shadow book Borrowed.
func (p *bookPool) take(id string) (*Book, error) {
	i, ok := p.pos[id]
	if !ok {
		return nil, fmt.Errorf("%w: book %s is not available", ErrInvariantViolation, id)
	}
	book := &p.books[p.slot[id]]
	if book.Status != StatusAvailable {
		return nil, fmt.Errorf("%w: pooled book %s has status %s", ErrInvariantViolation, id, book.Status)
	}

	last := len(p.ids) - 1
	p.ids[i] = p.ids[last]
	p.pos[p.ids[i]] = i
	p.ids = p.ids[:last]
	delete(p.pos, id)

	book.Status = StatusBorrowed
	return book, nil
}
