// Package connstore persists per-provider OAuth tokens for the agent's
// connectors. The orchestrator never touches this directly — the tool
// executor's connectors look tokens up at startup, and the OAuth flow
// handler writes them after an exchange.
package connstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by GetToken when no token is stored for the
// provider. Callers branch on it to distinguish "not connected" from a
// storage failure.
var ErrNotFound = errors.New("connstore: no token for provider")

// Token is one provider's stored credential set.
type Token struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the access token has an expiry in the past.
// A zero expiry means the token does not expire.
func (t Token) Expired() bool {
	return !t.Expiry.IsZero() && time.Now().After(t.Expiry)
}

// Store is a per-provider token store backed by SQLite. All public
// methods are safe for concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// NewStore creates a token store at the given database path. The schema
// is created automatically on first use.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS connections (
		provider      TEXT PRIMARY KEY,
		access_token  TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		expiry        TEXT NOT NULL DEFAULT '',
		updated_at    TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetToken returns the stored token for a provider, or ErrNotFound.
func (s *Store) GetToken(provider string) (Token, error) {
	var t Token
	var expiry, updated string

	err := s.db.QueryRow(
		`SELECT provider, access_token, refresh_token, expiry, updated_at
		 FROM connections WHERE provider = ?`,
		provider,
	).Scan(&t.Provider, &t.AccessToken, &t.RefreshToken, &expiry, &updated)
	if err == sql.ErrNoRows {
		return Token{}, fmt.Errorf("%w: %s", ErrNotFound, provider)
	}
	if err != nil {
		return Token{}, fmt.Errorf("get token %s: %w", provider, err)
	}

	if expiry != "" {
		t.Expiry, _ = time.Parse(time.RFC3339, expiry)
	}
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return t, nil
}

// SetToken upserts a provider's token. Existing tokens are overwritten.
func (s *Store) SetToken(t Token) error {
	expiry := ""
	if !t.Expiry.IsZero() {
		expiry = t.Expiry.UTC().Format(time.RFC3339)
	}

	_, err := s.db.Exec(
		`INSERT INTO connections (provider, access_token, refresh_token, expiry, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (provider) DO UPDATE
		 SET access_token = excluded.access_token,
		     refresh_token = excluded.refresh_token,
		     expiry = excluded.expiry,
		     updated_at = excluded.updated_at`,
		t.Provider, t.AccessToken, t.RefreshToken, expiry,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("set token %s: %w", t.Provider, err)
	}
	return nil
}

// DeleteToken removes a provider's token. No error is returned if the
// provider has no token.
func (s *Store) DeleteToken(provider string) error {
	_, err := s.db.Exec(`DELETE FROM connections WHERE provider = ?`, provider)
	if err != nil {
		return fmt.Errorf("delete token %s: %w", provider, err)
	}
	return nil
}

// Providers returns the providers with stored tokens, sorted by name.
func (s *Store) Providers() ([]string, error) {
	rows, err := s.db.Query(`SELECT provider FROM connections ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}
