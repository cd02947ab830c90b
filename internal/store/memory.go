package store

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/i474232898/nimbus/internal/weather"
)

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned by Login on any mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
	ErrUsernameExists     = errors.New("username already exists")
)

// StartingCoins is the balance given to every new user.
const StartingCoins = 50

// Preferences are the per-user settings the weather views are driven by.
type Preferences struct {
	Region            *weather.Region            `json:"userRegion"`
	Locations         []weather.FavoriteLocation `json:"userLocations"`
	Lang              string                     `json:"userLang,omitempty"`
	AllowGamification bool                       `json:"allowGamification"`
	SelectedAvatar    string                     `json:"selectedAvatar,omitempty"`
}

// PreferencesPatch carries a partial update; nil fields are left unchanged.
type PreferencesPatch struct {
	Region            *weather.Region             `json:"userRegion"`
	Locations         *[]weather.FavoriteLocation `json:"userLocations"`
	Lang              *string                     `json:"userLang" validate:"omitempty,min=2,max=8"`
	AllowGamification *bool                       `json:"allowGamification"`
	SelectedAvatar    *string                     `json:"selectedAvatar" validate:"omitempty,max=64"`
}

// User is a registered account. Values handed out by the store are copies.
type User struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	NimbusCoins int    `json:"nimbusCoins"`
	Preferences

	passwordHash []byte
}

func (u *User) clone() User {
	c := *u
	if u.Region != nil {
		r := *u.Region
		c.Region = &r
	}
	if u.Locations != nil {
		c.Locations = append([]weather.FavoriteLocation(nil), u.Locations...)
	}
	c.passwordHash = nil
	return c
}

// MemoryStore is a concurrency-safe in-memory user list.
type MemoryStore struct {
	mu sync.RWMutex

	// key: username
	users map[string]*User

	cost int
}

// NewMemoryStore creates an empty store hashing passwords with the given
// bcrypt cost. Out-of-range costs fall back to bcrypt.DefaultCost.
func NewMemoryStore(cost int) *MemoryStore {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &MemoryStore{
		users: make(map[string]*User),
		cost:  cost,
	}
}

// Seed registers the demo accounts.
func (s *MemoryStore) Seed() error {
	demo := []struct{ email, username, password string }{
		{"maria@example.com", "maria", "54321"},
		{"john@example.com", "john", "12345"},
	}
	for _, d := range demo {
		if _, err := s.Register(d.email, d.username, d.password); err != nil &&
			!errors.Is(err, ErrEmailExists) && !errors.Is(err, ErrUsernameExists) {
			return err
		}
	}
	return nil
}

// Register adds a user with default preferences. Email and username must be
// unused.
func (s *MemoryStore) Register(email, username, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return User{}, ErrEmailExists
		}
	}
	if _, ok := s.users[username]; ok {
		return User{}, ErrUsernameExists
	}

	u := &User{
		Username:     username,
		Email:        email,
		NimbusCoins:  StartingCoins,
		Preferences:  Preferences{Locations: []weather.FavoriteLocation{}},
		passwordHash: hash,
	}
	s.users[username] = u
	return u.clone(), nil
}

// Login matches identifier against username or email and checks password.
func (s *MemoryStore) Login(identifier, password string) (User, error) {
	s.mu.RLock()
	var candidates []*User
	for _, u := range s.users {
		if u.Username == identifier || strings.EqualFold(u.Email, identifier) {
			candidates = append(candidates, u)
		}
	}
	s.mu.RUnlock()

	for _, u := range candidates {
		if bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)) == nil {
			s.mu.RLock()
			c := u.clone()
			s.mu.RUnlock()
			return c, nil
		}
	}
	return User{}, ErrInvalidCredentials
}

// Get returns the user with the given username.
func (s *MemoryStore) Get(username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return u.clone(), nil
}

// SavePreferences merges patch into the user's preferences.
func (s *MemoryStore) SavePreferences(username string, patch PreferencesPatch) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return User{}, ErrNotFound
	}

	if patch.Region != nil {
		r := *patch.Region
		u.Region = &r
	}
	if patch.Locations != nil {
		u.Locations = append([]weather.FavoriteLocation{}, (*patch.Locations)...)
	}
	if patch.Lang != nil {
		u.Lang = *patch.Lang
	}
	if patch.AllowGamification != nil {
		u.AllowGamification = *patch.AllowGamification
	}
	if patch.SelectedAvatar != nil {
		u.SelectedAvatar = *patch.SelectedAvatar
	}
	return u.clone(), nil
}

// List returns all users ordered by username.
func (s *MemoryStore) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
