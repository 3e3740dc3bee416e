package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/playhead/playhead/internal/domain"
)

// ErrServerNotFound is returned when a server record does not exist.
var ErrServerNotFound = errors.New("server not found")

// ServerRecord is a saved media server, keyed by its ID once known. Before
// the first successful connection a record may exist keyed only by address.
//
// AccessToken and UserID are always cleared together, never independently.
type ServerRecord struct {
	ID                 string                `json:"Id,omitempty"`
	Name               string                `json:"Name,omitempty"`
	LocalAddress       string                `json:"LocalAddress,omitempty"`
	ManualAddress      string                `json:"ManualAddress,omitempty"`
	RemoteAddress      string                `json:"RemoteAddress,omitempty"`
	ManualAddressOnly  bool                  `json:"ManualAddressOnly,omitempty"`
	LastConnectionMode domain.ConnectionMode `json:"LastConnectionMode"`
	DateLastAccessed   time.Time             `json:"DateLastAccessed,omitzero"`
	UserID             string                `json:"UserId,omitempty"`
	AccessToken        string                `json:"AccessToken,omitempty"`
	ExchangeToken      string                `json:"ExchangeToken,omitempty"`
	IsGuest            bool                  `json:"IsGuest,omitempty"`
}

// Address returns the address for the given connection mode, which may be
// empty.
func (r ServerRecord) Address(mode domain.ConnectionMode) string {
	switch mode {
	case domain.ConnectionModeManual:
		return r.ManualAddress
	case domain.ConnectionModeRemote:
		return r.RemoteAddress
	default:
		return r.LocalAddress
	}
}

// ClearAuth clears the access token and user ID together.
func (r *ServerRecord) ClearAuth() {
	r.AccessToken = ""
	r.UserID = ""
	r.ExchangeToken = ""
}

// Credentials is the storable persistent credential set.
type Credentials struct {
	Servers []ServerRecord `json:"Servers"`
}

// Clone performs a deep copy of Credentials.
func (c Credentials) Clone() Credentials {
	return Credentials{Servers: slices.Clone(c.Servers)}
}

// CredentialStore is a file-based store for saved servers and their access
// tokens. The document is read and written as a whole, never incrementally.
// All methods are safe for use from multiple goroutines.
type CredentialStore struct {
	path  string
	mu    sync.Mutex
	creds Credentials
}

// New creates a new CredentialStore backed by the provided file path,
// creating the file if it does not exist.
func New(path string) (*CredentialStore, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createFile(path)
	} else if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	return readFile(path)
}

func createFile(path string) (*CredentialStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}

	var creds Credentials
	bytes, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	if err := os.WriteFile(path, bytes, 0600); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	return &CredentialStore{path: path, creds: creds}, nil
}

func readFile(path string) (*CredentialStore, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var creds Credentials
	if err = json.Unmarshal(bytes, &creds); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	if err := validate(creds); err != nil {
		return nil, fmt.Errorf("stored credentials are invalid: %w", err)
	}

	return &CredentialStore{path: path, creds: creds}, nil
}

// Get returns the current credential set.
func (s *CredentialStore) Get() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.creds.Clone()
}

// Set replaces the credential set with the provided one.
func (s *CredentialStore) Set(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(creds)
}

// UpsertServer inserts or replaces a server record, matching by ID first and
// falling back to any address match for records which do not yet have an ID.
func (s *CredentialStore) UpsertServer(rec ServerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := s.creds.Clone()
	idx := slices.IndexFunc(creds.Servers, func(existing ServerRecord) bool {
		if rec.ID != "" && existing.ID == rec.ID {
			return true
		}
		return existing.ID == "" && addressMatches(existing, rec)
	})

	if idx >= 0 {
		creds.Servers[idx] = rec
	} else {
		creds.Servers = append(creds.Servers, rec)
	}

	return s.write(creds)
}

// DeleteServer removes the server record with the given ID.
func (s *CredentialStore) DeleteServer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := s.creds.Clone()
	idx := slices.IndexFunc(creds.Servers, func(rec ServerRecord) bool { return rec.ID == id })
	if idx < 0 {
		return ErrServerNotFound
	}

	creds.Servers = slices.Delete(creds.Servers, idx, idx+1)

	return s.write(creds)
}

// ClearAuth clears the access token and user ID on every non-guest server
// record.
func (s *CredentialStore) ClearAuth() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := s.creds.Clone()
	for i := range creds.Servers {
		if creds.Servers[i].IsGuest {
			continue
		}
		creds.Servers[i].ClearAuth()
	}

	return s.write(creds)
}

// write persists creds and replaces the in-memory copy. The caller must hold
// the mutex.
func (s *CredentialStore) write(creds Credentials) error {
	if err := validate(creds); err != nil {
		return err
	}

	bytes, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(s.path, bytes, 0600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	s.creds = creds

	return nil
}

func validate(creds Credentials) error {
	seen := make(map[string]struct{}, len(creds.Servers))

	for _, rec := range creds.Servers {
		if rec.ID == "" {
			continue
		}
		if _, ok := seen[rec.ID]; ok {
			return fmt.Errorf("duplicate server ID: %s", rec.ID)
		}
		seen[rec.ID] = struct{}{}
	}

	return nil
}

func addressMatches(a, b ServerRecord) bool {
	for _, addr := range []string{a.LocalAddress, a.ManualAddress, a.RemoteAddress} {
		if addr == "" {
			continue
		}
		if addr == b.LocalAddress || addr == b.ManualAddress || addr == b.RemoteAddress {
			return true
		}
	}
	return false
}
