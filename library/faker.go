package library

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Faker supplies realistic looking values for generated records.
type Faker interface {
	CatchPhrase() string
	Name() string
	Year() int
	Paragraph(sentences int) string
	Username() string
	Email() string
	Phone() string
	Password(length int) string
	DateTimeBetween(start, end time.Time) time.Time
}

// GoFakeit adapts a seeded gofakeit instance to Faker.
type GoFakeit struct {
	f *gofakeit.Faker
}

// NewGoFakeit returns a Faker seeded with seed. A zero seed is random.
func NewGoFakeit(seed int64) *GoFakeit {
	return &GoFakeit{f: gofakeit.New(seed)}
}

func (g *GoFakeit) CatchPhrase() string { return g.f.HackerPhrase() }
func (g *GoFakeit) Name() string        { return g.f.Name() }
func (g *GoFakeit) Year() int           { return g.f.Year() }
func (g *GoFakeit) Username() string    { return g.f.Username() }
func (g *GoFakeit) Email() string       { return g.f.Email() }
func (g *GoFakeit) Phone() string       { return g.f.Phone() }

func (g *GoFakeit) Paragraph(sentences int) string {
	return g.f.Paragraph(1, sentences, 10, " ")
}

// Password mixes lower, upper, digit and special characters.
func (g *GoFakeit) Password(length int) string {
	return g.f.Password(true, true, true, true, false, length)
}

// DateTimeBetween returns a time in [start, end] in start's location;
// gofakeit itself answers in UTC.
func (g *GoFakeit) DateTimeBetween(start, end time.Time) time.Time {
	return g.f.DateRange(start, end).In(start.Location())
}

// maxUniqueAttempts matches the retry budget of common fake-data libraries.
const maxUniqueAttempts = 1000

// uniqueSet hands out values from a generator that were never handed out before.
type uniqueSet struct {
	label string
	seen  map[string]struct{}
}

func newUniqueSet(label string, reserved ...string) *uniqueSet {
	u := &uniqueSet{label: label, seen: make(map[string]struct{}, len(reserved))}
	for _, r := range reserved {
		u.seen[strings.ToLower(r)] = struct{}{}
	}
	return u
}

// next calls gen until it yields an unseen value, ignoring case.
func (u *uniqueSet) next(gen func() string) (string, error) {
	for range maxUniqueAttempts {
		v := gen()
		key := strings.ToLower(v)
		if _, dup := u.seen[key]; dup {
			continue
		}
		u.seen[key] = struct{}{}
		return v, nil
	}
	return "", fmt.Errorf("%w: no new %s after %d attempts", ErrUniquenessExhausted, u.label, maxUniqueAttempts)
}
