package store

import "sync"

// Theme is the colour scheme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark".
func ParseTheme(s string) (Theme, bool) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), true
	}
	return "", false
}

// ThemePersister saves the theme preference across sessions.
type ThemePersister interface {
	SetTheme(theme string) error
}

// UIState holds layout preferences.
type UIState struct {
	ActiveTab        string
	Theme            Theme
	SidebarOpen      bool
	SidebarCollapsed bool
}

// UIStore owns layout preferences.
type UIStore struct {
	mu        sync.RWMutex
	state     UIState
	persister ThemePersister
	hub       hub[UIState]
}

// NewUIStore creates a UI store starting on the samplesheet tab. A nil
// persister keeps the theme in memory only.
func NewUIStore(theme Theme, persister ThemePersister) *UIStore {
	if _, ok := ParseTheme(string(theme)); !ok {
		theme = ThemeLight
	}
	return &UIStore{
		state:     UIState{ActiveTab: "samplesheet", Theme: theme},
		persister: persister,
	}
}

// Update applies fn under the write lock and notifies subscribers.
func (s *UIStore) Update(fn func(*UIState)) {
	s.hub.commit(func() UIState {
		s.mu.Lock()
		defer s.mu.Unlock()
		fn(&s.state)
		return s.state
	})
}

// Snapshot returns the current state.
func (s *UIStore) Snapshot() UIState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn for post-update snapshots.
func (s *UIStore) Subscribe(fn func(UIState)) func() {
	return s.hub.subscribe(fn)
}

// SetActiveTab switches the workspace tab.
func (s *UIStore) SetActiveTab(tab string) {
	s.Update(func(st *UIState) { st.ActiveTab = tab })
}

// SetTheme changes and persists the theme.
func (s *UIStore) SetTheme(theme Theme) error {
	s.Update(func(st *UIState) { st.Theme = theme })
	if s.persister == nil {
		return nil
	}
	return s.persister.SetTheme(string(theme))
}

// ToggleSidebar flips the sidebar open flag.
func (s *UIStore) ToggleSidebar() {
	s.Update(func(st *UIState) { st.SidebarOpen = !st.SidebarOpen })
}

// ToggleSidebarCollapsed flips the sidebar collapsed flag.
func (s *UIStore) ToggleSidebarCollapsed() {
	s.Update(func(st *UIState) { st.SidebarCollapsed = !st.SidebarCollapsed })
}
