package mlx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Sessions outlive a single run; the endpoint rotates them daily.
const cookieTTL = 24 * time.Hour

type cookieFile struct {
	FetchedAt time.Time         `json:"fetched_at"`
	Cookies   map[string]string `json:"cookies"`
}

// cookieStore persists session cookies between runs. An empty path
// disables persistence.
type cookieStore struct {
	path string
}

func newCookieStore(path string) *cookieStore {
	return &cookieStore{path: path}
}

// Load returns the persisted cookies, or ok=false when none exist, the
// file is unreadable, or the session is older than cookieTTL.
func (s *cookieStore) Load() (map[string]string, bool) {
	if s.path == "" {
		return nil, false
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false
	}
	var cf cookieFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, false
	}
	if time.Since(cf.FetchedAt) >= cookieTTL || len(cf.Cookies) == 0 {
		return nil, false
	}
	return cf.Cookies, true
}

func (s *cookieStore) Save(cookies map[string]string) error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(cookieFile{
		FetchedAt: time.Now().UTC(),
		Cookies:   cookies,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("cookie dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cookies: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace cookies: %w", err)
	}
	return nil
}
