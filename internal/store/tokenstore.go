package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playhead/playhead/internal/domain"
)

// ErrTokenNotFound is returned when a pairing token does not exist.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore persistently stores hashed pairing tokens in the filesystem.
//
// All methods are safe for use from multiple goroutines.
type TokenStore struct {
	dataDir string
	mu      sync.RWMutex
}

// NewTokenStore creates a new TokenStore instance with the specified data
// directory.
func NewTokenStore(dataDir string) *TokenStore {
	return &TokenStore{dataDir: dataDir}
}

type tokenRecord struct {
	HashedToken string    `json:"hashed_token"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

// Get retrieves a token from the store by its key.
func (s *TokenStore) Get(key string) (domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fptr, err := os.Open(filepath.Join(s.dataDir, key+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Token{}, ErrTokenNotFound
		}
		return domain.Token{}, fmt.Errorf("open file %s: %w", key, err)
	}
	defer fptr.Close() //nolint:errcheck

	var record tokenRecord
	if err := json.NewDecoder(fptr).Decode(&record); err != nil {
		return domain.Token{}, fmt.Errorf("unmarshal: %w", err)
	}

	return domain.Token{
		Hashed:    record.HashedToken,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Put stores a token in the store under the specified key.
func (s *TokenStore) Put(key string, tok domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := json.Marshal(tokenRecord{HashedToken: tok.Hashed, ExpiresAt: tok.ExpiresAt})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if err := os.WriteFile(filepath.Join(s.dataDir, key+".json"), record, 0600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// Delete removes a token from the store by its key.
func (s *TokenStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(s.dataDir, key+".json")); err != nil {
		return fmt.Errorf("remove file %s: %w", key, err)
	}

	return nil
}
