// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"

	"github.com/courtside/courtside/internal/xdg"
)

// Credentials is a persisted session: tokens plus the last known user.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// Clone returns a deep copy.
func (c *Credentials) Clone() *Credentials {
	if c == nil {
		return nil
	}
	out := *c
	out.User = c.User.Clone()
	return &out
}

// AccessTokenExpiry reads the exp claim of a JWT access token without
// verifying its signature; the server verifies, the client only needs to
// know when to refresh. Opaque tokens report ok=false.
func AccessTokenExpiry(token string) (exp time.Time, ok bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Store persists credentials between process runs.
type Store interface {
	// Load returns ErrNoCredentials when nothing is stored.
	Load(ctx context.Context) (*Credentials, error)
	Save(ctx context.Context, creds *Credentials) error
	// Clear removes stored credentials. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// MemoryStore keeps credentials for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	creds *Credentials
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return nil, ErrNoCredentials
	}
	return m.creds.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, creds *Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds.Clone()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	return nil
}

// FileStore keeps credentials in a JSON file readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore stores credentials at path. An empty path selects the XDG
// state directory.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		def, err := xdg.CredentialsFile()
		if err != nil {
			return nil, err
		}
		path = def
	}
	return &FileStore{path: path}, nil
}

// Path returns the credentials file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(_ context.Context) (*Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, oops.Code(CodeStoreFailed).With("path", f.path).Wrap(err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, oops.Code(CodeStoreFailed).
			With("path", f.path).
			Wrapf(err, "corrupt credentials file")
	}
	if creds.AccessToken == "" {
		return nil, ErrNoCredentials
	}
	return &creds, nil
}

// Save writes to a temporary file and renames it over the target so a
// crash never leaves a truncated credentials file.
func (f *FileStore) Save(_ context.Context, creds *Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(creds)
	if err != nil {
		return oops.Code(CodeStoreFailed).Wrap(err)
	}

	dir := filepath.Dir(f.path)
	if err := xdg.EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return oops.Code(CodeStoreFailed).With("dir", dir).Wrap(err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return oops.Code(CodeStoreFailed).With("path", tmpName).Wrap(err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return oops.Code(CodeStoreFailed).With("path", tmpName).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code(CodeStoreFailed).With("path", tmpName).Wrap(err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return oops.Code(CodeStoreFailed).With("path", f.path).Wrap(err)
	}
	return nil
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return oops.Code(CodeStoreFailed).With("path", f.path).Wrap(err)
	}
	return nil
}
