package library

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Generator produces a consistent dataset in memory. It is not safe for
// concurrent use: the random source and uniqueness tracking are single-owner.
type Generator struct {
	cfg  Config
	fake Faker
	rng  *rand.Rand
	log  *slog.Logger
}

// NewGenerator validates cfg and binds the collaborators of one run.
// A nil logger falls back to slog.Default.
func NewGenerator(cfg Config, fake Faker, rng *rand.Rand, log *slog.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fake == nil {
		return nil, ErrMissingFaker
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is nil", ErrInvalidConfig)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{cfg: cfg, fake: fake, rng: rng, log: log}, nil
}

// NewRand returns the sampling source used for a given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Generate runs the entity and relationship stages against the clock value now.
func (g *Generator) Generate(now time.Time) (*Snapshot, error) {
	books := g.GenerateBooks()

	users, err := g.GenerateUsers()
	if err != nil {
		return nil, fmt.Errorf("generate users: %w", err)
	}

	rel, err := g.GenerateRelationships(books, users, now)
	if err != nil {
		return nil, fmt.Errorf("generate borrows: %w", err)
	}

	return &Snapshot{
		Seed:          g.cfg.Seed,
		GeneratedAt:   rel.Now,
		Statuses:      BookStatuses(),
		Books:         books,
		Users:         users,
		Borrows:       rel.Borrows,
		Fines:         rel.Fines,
		StatusUpdates: rel.StatusUpdates,
	}, nil
}
