// ABOUTME: Mock Store implementation for testing
// ABOUTME: Keeps each team's rules as encoded JSON so reads never see a half-applied update

package store

import (
	"context"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	teams         map[string][]byte        // keyed by team ID, encoded Rules
	installations map[string]*Installation // keyed by team ID
	writeErr      error
	locks         *keyedMutex
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		teams:         make(map[string][]byte),
		installations: make(map[string]*Installation),
		locks:         newKeyedMutex(),
	}
}

// FailWrites makes every subsequent rule write return err. Pass nil to
// restore normal behavior.
func (m *MockStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// GetRules returns the emoji set bound to (team, channel, user).
func (m *MockStore) GetRules(ctx context.Context, teamID, channelID, userID string) (EmojiSet, error) {
	rules, err := m.TeamRules(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return rules.Lookup(channelID, userID), nil
}

// TeamRules returns a copy of the team's document.
func (m *MockStore) TeamRules(ctx context.Context, teamID string) (Rules, error) {
	m.mu.RLock()
	data := m.teams[teamID]
	m.mu.RUnlock()
	return decodeRules(data)
}

// AddEmojis unions emojis into the rule for (team, channel, user).
func (m *MockStore) AddEmojis(ctx context.Context, teamID, channelID, userID string, emojis EmojiSet) error {
	return m.mutate(ctx, teamID, func(rules Rules) bool {
		return rules.Add(channelID, userID, emojis)
	})
}

// RemoveRule deletes the rule for (team, channel, user).
func (m *MockStore) RemoveRule(ctx context.Context, teamID, channelID, userID string) error {
	return m.mutate(ctx, teamID, func(rules Rules) bool {
		return rules.Remove(channelID, userID)
	})
}

func (m *MockStore) mutate(ctx context.Context, teamID string, fn func(Rules) bool) error {
	unlock := m.locks.Lock(teamID)
	defer unlock()

	rules, err := m.TeamRules(ctx, teamID)
	if err != nil {
		return err
	}
	if !fn(rules) {
		return nil
	}

	data, err := encodeRules(rules)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	if len(rules) == 0 {
		delete(m.teams, teamID)
		return nil
	}
	m.teams[teamID] = data
	return nil
}

// PutRawRules stores a raw JSON document for a team, bypassing validation.
// Used to exercise records written by older versions.
func (m *MockStore) PutRawRules(teamID string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[teamID] = data
}

// SaveInstallation stores the credentials for a team.
func (m *MockStore) SaveInstallation(ctx context.Context, inst *Installation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := *inst
	if i.InstalledAt.IsZero() {
		i.InstalledAt = time.Now().UTC()
	}
	m.installations[i.TeamID] = &i
	return nil
}

// GetInstallation returns the credentials for a team, or ErrNotFound.
func (m *MockStore) GetInstallation(ctx context.Context, teamID string) (*Installation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.installations[teamID]
	if !ok {
		return nil, ErrNotFound
	}
	result := *inst
	return &result, nil
}

// DeleteInstallation removes the credentials for a team.
func (m *MockStore) DeleteInstallation(ctx context.Context, teamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.installations[teamID]; !ok {
		return ErrNotFound
	}
	delete(m.installations, teamID)
	return nil
}

// Ping always succeeds.
func (m *MockStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// Compile-time interface checks
var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
