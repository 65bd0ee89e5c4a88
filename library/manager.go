package library

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Seeder runs the whole pipeline: schema, entities, relationships, persist.
type Seeder struct {
	cfg  Config
	fake Faker
	log  *slog.Logger
	now  func() time.Time

	// autoSeed is set when the seed was picked at random rather than configured.
	autoSeed bool
	ownFaker bool
}

// Option customises a Seeder.
type Option func(*Seeder)

// WithFaker replaces the gofakeit-backed provider.
func WithFaker(f Faker) Option { return func(s *Seeder) { s.fake, s.ownFaker = f, false } }

// WithLogger sets the logger used for progress messages.
func WithLogger(l *slog.Logger) Option { return func(s *Seeder) { s.log = l } }

// WithClock fixes the generation time, mostly for tests.
func WithClock(now func() time.Time) Option { return func(s *Seeder) { s.now = now } }

// NewSeeder validates cfg and prepares a run. A zero cfg.Seed is replaced by a
// random one so the report can tell how to reproduce the run; with ResetNone
// the seed of the stored run is reused instead.
func NewSeeder(cfg Config, opts ...Option) (*Seeder, error) {
	autoSeed := cfg.Seed == 0
	if autoSeed {
		cfg.Seed = rand.Uint64()
	}
	s := &Seeder{
		cfg:      cfg,
		log:      slog.Default(),
		now:      time.Now,
		autoSeed: autoSeed,
		ownFaker: true,
	}
	s.fake = NewGoFakeit(int64(cfg.Seed))
	for _, opt := range opts {
		opt(s)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s.fake == nil {
		return nil, ErrMissingFaker
	}
	return s, nil
}

// Config returns the effective configuration, including the chosen seed.
func (s *Seeder) Config() Config { return s.cfg }

// Report summarises a finished run.
type Report struct {
	RunID         string
	Seed          uint64
	DBPath        string
	Books         int
	Users         int
	Borrows       int
	Fines         int
	LostBooks     int
	BorrowedBooks int
	Persist       PersistStats
	Duration      time.Duration
}

// Run executes the pipeline once. Any error aborts the run; nothing generated
// by this run is committed unless every stage succeeded.
func (s *Seeder) Run() (*Report, error) {
	start := time.Now()
	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	log := s.log.With("run_id", runID.String())
	log.Info("starting generation", "db", s.cfg.DBPath, "reset", s.cfg.Reset, "seed", s.cfg.Seed)

	db, err := NewDatabase(s.cfg.DBPath, s.cfg.Reset)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	log.Info("schema ready", "db", db.Path())

	if s.autoSeed && s.cfg.Reset == ResetNone {
		if err := s.adoptStoredSeed(db, log); err != nil {
			return nil, err
		}
	}

	gen, err := NewGenerator(s.cfg, s.fake, NewRand(s.cfg.Seed), log)
	if err != nil {
		return nil, err
	}
	snap, err := gen.Generate(s.now())
	if err != nil {
		return nil, err
	}
	snap.RunID = runID.String()

	stats, err := db.Persist(snap, PersistOptions{Strict: s.cfg.Strict, BatchSize: s.cfg.BatchSize})
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	for _, t := range stats.Tables {
		if t.Skipped() > 0 {
			log.Info("skipped conflicting rows", "table", t.Table, "skipped", t.Skipped(), "inserted", t.Inserted)
		}
	}

	report := &Report{
		RunID:         snap.RunID,
		Seed:          s.cfg.Seed,
		DBPath:        s.cfg.DBPath,
		Books:         len(snap.Books),
		Users:         len(snap.Users),
		Borrows:       len(snap.Borrows),
		Fines:         len(snap.Fines),
		LostBooks:     snap.CountBooks(StatusLost),
		BorrowedBooks: snap.CountBooks(StatusBorrowed),
		Persist:       *stats,
		Duration:      time.Since(start),
	}
	log.Info("generation committed",
		"books", report.Books,
		"users", report.Users,
		"borrows", report.Borrows,
		"fines", report.Fines,
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

// adoptStoredSeed switches to the seed of the run already in db, if any, so a
// run without reset extends that dataset instead of clashing with it.
func (s *Seeder) adoptStoredSeed(db *Database, log *slog.Logger) error {
	stored, err := db.Meta("seed")
	if err != nil || stored == "" {
		return err
	}
	seed, err := strconv.ParseUint(stored, 10, 64)
	if err != nil {
		return fmt.Errorf("stored seed %q: %w", stored, err)
	}
	s.cfg.Seed = seed
	if s.ownFaker {
		s.fake = NewGoFakeit(int64(seed))
	}
	log.Info("reusing seed of stored run", "seed", seed)
	return nil
}
