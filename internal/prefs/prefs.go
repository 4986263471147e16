// Package prefs persists client-side preferences (theme and API token)
// in a small TOML file under the user config directory.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the preferences file name inside the arc config directory.
const FileName = "prefs.toml"

// Values is the on-disk preferences document.
type Values struct {
	Theme string `toml:"theme,omitempty"`
	Token string `toml:"arc-token,omitempty"`
}

// Store is a preferences file guarded for concurrent use. Reads go to the
// in-memory copy; writes update memory and then the file.
type Store struct {
	mu     sync.RWMutex
	path   string
	values Values
}

// DefaultPath returns $XDG_CONFIG_HOME/arc/prefs.toml or the platform
// equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(dir, "arc", FileName), nil
}

// Load reads the preferences at path. A missing file yields empty values.
// An empty path resolves to DefaultPath.
func Load(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read prefs: %w", err)
	}

	if err := toml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("failed to parse prefs %s: %w", path, err)
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Values returns a copy of the current preferences.
func (s *Store) Values() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// Token returns the stored bearer token, or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Token
}

// Theme returns the stored theme, or "".
func (s *Store) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Theme
}

// SetTheme stores and saves the theme.
func (s *Store) SetTheme(theme string) error {
	return s.update(func(v *Values) { v.Theme = theme })
}

// SetToken stores and saves the bearer token. An empty token removes it.
func (s *Store) SetToken(token string) error {
	return s.update(func(v *Values) { v.Token = token })
}

// Save writes the current values to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *Store) update(fn func(*Values)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.values)
	return s.save()
}

// save must be called with mu held.
func (s *Store) save() error {
	data, err := toml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to encode prefs: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create prefs dir: %w", err)
	}

	// Write-then-rename so a crash never leaves a truncated file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write prefs: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace prefs: %w", err)
	}
	return nil
}
