package library

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// stubFaker is a fast, deterministic Faker for tests.
type stubFaker struct {
	n     int
	dates *rand.Rand
}

func newStubFaker() *stubFaker {
	return &stubFaker{dates: rand.New(rand.NewPCG(7, 11))}
}

func (f *stubFaker) next() int { f.n++; return f.n }

func (f *stubFaker) CatchPhrase() string {
	return fmt.Sprintf("Synergized %d zero tolerance matrix", f.next())
}
func (f *stubFaker) Name() string          { return fmt.Sprintf("Author %d", f.next()) }
func (f *stubFaker) Year() int             { return 1950 + f.next()%70 }
func (f *stubFaker) Paragraph(int) string  { return "A short blurb. Another sentence." }
func (f *stubFaker) Username() string      { return fmt.Sprintf("reader%d", f.next()) }
func (f *stubFaker) Email() string         { return fmt.Sprintf("reader%d@example.org", f.next()) }
func (f *stubFaker) Phone() string         { return "5550001234" }
func (f *stubFaker) Password(n int) string { return strings.Repeat("p", n) }

func (f *stubFaker) DateTimeBetween(start, end time.Time) time.Time {
	span := end.Sub(start)
	if span <= 0 {
		return start
	}
	return start.Add(time.Duration(f.dates.Int64N(int64(span))))
}

// fixedDatesFaker returns the queued borrow dates in order.
type fixedDatesFaker struct {
	*stubFaker
	dates []time.Time
}

func (f *fixedDatesFaker) DateTimeBetween(time.Time, time.Time) time.Time {
	d := f.dates[0]
	f.dates = f.dates[1:]
	return d
}

// sameUsernameFaker always proposes the same username.
type sameUsernameFaker struct{ *stubFaker }

func (sameUsernameFaker) Username() string { return "same" }

var testNow = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// smallConfig keeps generation fast enough for unit tests.
func smallConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "library.db")
	cfg.NumBooks = 300
	cfg.MinUsers = 20
	cfg.MaxUsers = 30
	cfg.Seed = 42
	cfg.BatchSize = 64
	return cfg
}

func newTestGenerator(t *testing.T, cfg Config, fake Faker) *Generator {
	t.Helper()
	g, err := NewGenerator(cfg, fake, NewRand(cfg.Seed), discardLogger())
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g
}

func generateSnapshot(t *testing.T, cfg Config) *Snapshot {
	t.Helper()
	snap, err := newTestGenerator(t, cfg, newStubFaker()).Generate(testNow)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	snap.RunID = "test-run"
	return snap
}
