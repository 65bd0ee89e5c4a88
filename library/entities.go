package library

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// The default account is always present and used for manual logins.
const (
	DefaultUserID   = "U00000"
	DefaultEmail    = "default@example.com"
	DefaultPhone    = "12345678"
	DefaultUsername = "123"
	DefaultPassword = "123"
)

const bookNameWords = 3

// BookID formats the sequential identifier of the i-th book.
func BookID(i int) string { return fmt.Sprintf("B%05d", i) }

// UserID formats the sequential identifier of the i-th user; 0 is the default account.
func UserID(i int) string { return fmt.Sprintf("U%05d", i) }

// GenerateBooks returns NumBooks books, each Lost with LostProbability and
// Available otherwise.
func (g *Generator) GenerateBooks() []Book {
	books := make([]Book, 0, g.cfg.NumBooks)
	for i := range g.cfg.NumBooks {
		status := StatusAvailable
		if g.rng.Float64() < g.cfg.LostProbability {
			status = StatusLost
		}
		books = append(books, Book{
			ID:          BookID(i),
			Name:        firstWords(g.fake.CatchPhrase(), bookNameWords),
			Author:      g.fake.Name(),
			PublishYear: g.fake.Year(),
			Intro:       g.fake.Paragraph(2),
			Status:      status,
		})
	}
	g.log.Info("generated books", "count", len(books))
	return books
}

// GenerateUsers returns the default account followed by a uniformly chosen
// number of users in [MinUsers, MaxUsers].
func (g *Generator) GenerateUsers() ([]User, error) {
	n := g.cfg.MinUsers + g.rng.IntN(g.cfg.MaxUsers-g.cfg.MinUsers+1)

	usernames := newUniqueSet("username", DefaultUsername)
	emails := newUniqueSet("email", DefaultEmail)

	users := make([]User, 0, n+1)
	def := User{
		ID:          DefaultUserID,
		Email:       DefaultEmail,
		PhoneNumber: DefaultPhone,
		Username:    DefaultUsername,
		Password:    DefaultPassword,
		BorrowLimit: g.cfg.BorrowLimit,
	}
	if err := g.encodePassword(&def); err != nil {
		return nil, err
	}
	users = append(users, def)

	for i := 1; i <= n; i++ {
		username, err := usernames.next(g.fake.Username)
		if err != nil {
			return nil, err
		}
		email, err := emails.next(g.fake.Email)
		if err != nil {
			return nil, err
		}
		u := User{
			ID:          UserID(i),
			Email:       email,
			PhoneNumber: truncate(g.fake.Phone(), g.cfg.PhoneLength),
			Username:    username,
			Password:    g.fake.Password(g.cfg.PasswordLength),
			BorrowLimit: g.cfg.BorrowLimit,
		}
		if err := g.encodePassword(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	g.log.Info("generated users", "count", len(users), "including_default", true)
	return users, nil
}

func (g *Generator) encodePassword(u *User) error {
	if !g.cfg.HashPasswords {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", u.ID, err)
	}
	u.Password = string(hash)
	return nil
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
