package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"library-seed/library"
)

const (
	envPrefix   = "LIBSEED"
	keyLogLevel = "log_level"
	keyPreview  = "preview"
)

// registerFlags defines the command line flags and binds each one to its
// config key, so flag > env > config file > default.
func registerFlags(fs *pflag.FlagSet, v *viper.Viper) {
	d := library.DefaultConfig()

	fs.String("db", d.DBPath, "SQLite database path")
	fs.String("reset", string(d.Reset), "reset mode: drop (drop tables), file (delete the file) or none")
	fs.Uint64("seed", 0, "random seed; 0 picks one and logs it")
	fs.Int("books", d.NumBooks, "number of books to generate")
	fs.Float64("lost-probability", d.LostProbability, "probability a book starts out lost")
	fs.Int("min-users", d.MinUsers, "lower bound of the generated user count")
	fs.Int("max-users", d.MaxUsers, "upper bound of the generated user count")
	fs.Int("borrow-limit", d.BorrowLimit, "books a user may hold")
	fs.IntSlice("borrow-weights", d.BorrowWeights, "relative weights of holding 0..borrow-limit books")
	fs.Int("borrow-window-days", d.BorrowWindowDays, "borrow dates fall within this many days before now")
	fs.Int("loan-days", d.LoanDays, "loan period in days")
	fs.Float64("fine-per-day", d.FinePerDay, "fine per overdue day")
	fs.Bool("strict", d.Strict, "fail on duplicate keys instead of skipping them")
	fs.Bool("hash-passwords", d.HashPasswords, "store bcrypt hashes instead of plaintext passwords")
	fs.Int("batch-size", d.BatchSize, "rows per INSERT statement")
	fs.Int("preview", 0, "print the first N rows of every table after loading")
	fs.String("log-level", "info", "debug, info, warn or error")

	bindings := map[string]string{
		"db_path":            "db",
		"reset":              "reset",
		"seed":               "seed",
		"num_books":          "books",
		"lost_probability":   "lost-probability",
		"min_users":          "min-users",
		"max_users":          "max-users",
		"borrow_limit":       "borrow-limit",
		"borrow_weights":     "borrow-weights",
		"borrow_window_days": "borrow-window-days",
		"loan_days":          "loan-days",
		"fine_per_day":       "fine-per-day",
		"strict":             "strict",
		"hash_passwords":     "hash-passwords",
		"batch_size":         "batch-size",
		keyPreview:           "preview",
		keyLogLevel:          "log-level",
	}
	for key, flag := range bindings {
		// Lookup cannot fail for flags registered above.
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
	v.SetDefault("phone_length", d.PhoneLength)
	v.SetDefault("password_length", d.PasswordLength)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

// loadConfig reads the optional config file and decodes everything into a library.Config.
func loadConfig(v *viper.Viper, cfgFile string) (library.Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return library.Config{}, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("library-seed")
		v.AddConfigPath(".")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return library.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := library.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return library.Config{}, fmt.Errorf("decode config: %w", err)
	}
	mode, err := library.ParseResetMode(string(cfg.Reset))
	if err != nil {
		return library.Config{}, err
	}
	cfg.Reset = mode
	return cfg, cfg.Validate()
}
