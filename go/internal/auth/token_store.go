// Package auth persists the opaque session token used for bearer
// authentication against the backend.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no stored token")
	ErrUnauthorized = errors.New("stored token is expired, log in again")
)

// Token is the persisted blob.
type Token struct {
	Token    string `json:"token"`
	Username string `json:"username,omitempty"`
}

// TokenSetter is implemented by clients.BaseClient.
type TokenSetter interface {
	SetToken(token string)
}

// TokenStore reads and writes a Token at a fixed path.
type TokenStore struct {
	path string
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

func (s *TokenStore) Path() string {
	return s.path
}

// Load returns ErrNoToken when nothing has been saved yet.
func (s *TokenStore) Load() (Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Token{}, ErrNoToken
	}
	if err != nil {
		return Token{}, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, fmt.Errorf("failed to decode token file %s: %w", s.path, err)
	}
	if tok.Token == "" {
		return Token{}, ErrNoToken
	}
	return tok, nil
}

func (s *TokenStore) Save(tok Token) error {
	if tok.Token == "" {
		return errors.New("token is required")
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s *TokenStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// Apply loads the stored token and hands it to the client when it is usable.
func (s *TokenStore) Apply(client TokenSetter, now time.Time) (Token, error) {
	tok, err := s.Load()
	if err != nil {
		return Token{}, err
	}
	if tok.Expired(now) {
		return tok, ErrUnauthorized
	}
	client.SetToken(tok.Token)
	return tok, nil
}

// ExpiresAt reads the exp claim without verifying the signature; the backend
// does the verification. ok is false for opaque tokens and tokens without exp.
func (t Token) ExpiresAt() (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.Token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether a JWT's exp claim is at or before now. Tokens that
// are not JWTs never expire.
func (t Token) Expired(now time.Time) bool {
	exp, ok := t.ExpiresAt()
	if !ok {
		return false
	}
	return !now.Before(exp)
}
