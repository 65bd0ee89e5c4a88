package library

import (
	"errors"
	"fmt"
	"strings"
)

// ResetMode selects how NewDatabase treats an existing store.
type ResetMode string

const (
	// ResetDropTables drops the known tables in place and recreates them.
	ResetDropTables ResetMode = "drop"
	// ResetDeleteFile removes the database file (and WAL/SHM siblings) first.
	ResetDeleteFile ResetMode = "file"
	// ResetNone keeps whatever is already stored.
	ResetNone ResetMode = "none"
)

// ParseResetMode accepts "drop", "file" or "none" (case insensitive).
func ParseResetMode(s string) (ResetMode, error) {
	switch m := ResetMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ResetDropTables, ResetDeleteFile, ResetNone:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown reset mode %q", ErrInvalidConfig, s)
	}
}

// Config holds every tunable of a generation run.
type Config struct {
	DBPath string    `mapstructure:"db_path"`
	Reset  ResetMode `mapstructure:"reset"`

	NumBooks        int     `mapstructure:"num_books"`
	LostProbability float64 `mapstructure:"lost_probability"`

	MinUsers       int  `mapstructure:"min_users"`
	MaxUsers       int  `mapstructure:"max_users"`
	BorrowLimit    int  `mapstructure:"borrow_limit"`
	PhoneLength    int  `mapstructure:"phone_length"`
	PasswordLength int  `mapstructure:"password_length"`
	HashPasswords  bool `mapstructure:"hash_passwords"`

	// BorrowWeights[i] is the relative weight of a user holding i books.
	BorrowWeights    []int   `mapstructure:"borrow_weights"`
	BorrowWindowDays int     `mapstructure:"borrow_window_days"`
	LoanDays         int     `mapstructure:"loan_days"`
	FinePerDay       float64 `mapstructure:"fine_per_day"`

	// Seed drives both the fake-data provider and sampling; 0 picks one at random.
	Seed uint64 `mapstructure:"seed"`

	// Strict turns primary key and uniqueness conflicts during persist into errors.
	Strict    bool `mapstructure:"strict"`
	BatchSize int  `mapstructure:"batch_size"`
}

// DefaultConfig mirrors the dataset the library demo was built against.
func DefaultConfig() Config {
	return Config{
		DBPath:           "library.db",
		Reset:            ResetDropTables,
		NumBooks:         100000,
		LostProbability:  0.05,
		MinUsers:         7000,
		MaxUsers:         9000,
		BorrowLimit:      6,
		PhoneLength:      8,
		PasswordLength:   10,
		BorrowWeights:    []int{5, 10, 15, 20, 40, 15, 5},
		BorrowWindowDays: 60,
		LoanDays:         7,
		FinePerDay:       5.125,
		BatchSize:        500,
	}
}

// Validate checks the configuration for values the generator cannot honour.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("db path is empty"))
	}
	if _, err := ParseResetMode(string(c.Reset)); err != nil {
		errs = append(errs, err)
	}
	if c.NumBooks < 0 {
		errs = append(errs, fmt.Errorf("num books %d is negative", c.NumBooks))
	}
	if c.LostProbability < 0 || c.LostProbability > 1 {
		errs = append(errs, fmt.Errorf("lost probability %v outside [0,1]", c.LostProbability))
	}
	if c.MinUsers < 0 || c.MaxUsers < c.MinUsers {
		errs = append(errs, fmt.Errorf("user range [%d,%d] is invalid", c.MinUsers, c.MaxUsers))
	}
	if c.BorrowLimit < 0 {
		errs = append(errs, fmt.Errorf("borrow limit %d is negative", c.BorrowLimit))
	}
	if len(c.BorrowWeights) != c.BorrowLimit+1 {
		errs = append(errs, fmt.Errorf("need %d borrow weights (0..%d), got %d", c.BorrowLimit+1, c.BorrowLimit, len(c.BorrowWeights)))
	} else {
		total := 0
		for _, w := range c.BorrowWeights {
			if w < 0 {
				errs = append(errs, fmt.Errorf("borrow weight %d is negative", w))
			}
			total += w
		}
		if total <= 0 {
			errs = append(errs, errors.New("borrow weights sum to zero"))
		}
	}
	if c.PhoneLength <= 0 {
		errs = append(errs, fmt.Errorf("phone length %d must be positive", c.PhoneLength))
	}
	if c.PasswordLength <= 0 {
		errs = append(errs, fmt.Errorf("password length %d must be positive", c.PasswordLength))
	}
	if c.BorrowWindowDays <= 0 {
		errs = append(errs, fmt.Errorf("borrow window %d days must be positive", c.BorrowWindowDays))
	}
	if c.LoanDays <= 0 {
		errs = append(errs, fmt.Errorf("loan period %d days must be positive", c.LoanDays))
	}
	if c.FinePerDay < 0 {
		errs = append(errs, fmt.Errorf("fine per day %v is negative", c.FinePerDay))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size %d must be positive", c.BatchSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
