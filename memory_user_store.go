package goAccount

import (
	"context"
	"errors"
	"fmt"
	"crypto/subtle"
	"strings"
	"sync"
	"time"
)

// MemoryUserStore is an in-process UserStore for tests and local tooling.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]UserRecord
}

// NewMemoryUserStore returns a store holding users.
func NewMemoryUserStore(users ...UserRecord) *MemoryUserStore {
	s := &MemoryUserStore{users: make(map[string]UserRecord, len(users))}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

// FindByID returns the user with id.
func (s *MemoryUserStore) FindByID(ctx context.Context, id string) (UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return UserRecord{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return u, nil
}

// FindByEmail returns the user whose email matches case-insensitively.
func (s *MemoryUserStore) FindByEmail(ctx context.Context, email string) (UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

// Save inserts or replaces user.
func (s *MemoryUserStore) Save(ctx context.Context, user UserRecord) error {
	if user.ID == "" {
		return errors.New("save user: empty id")
	}
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
	return nil
}

// RecordLogin sets the last login time of id.
func (s *MemoryUserStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return s.update(id, func(u *UserRecord) error {
		u.LastLogin = at
		return nil
	})
}

// RecordRefresh sets the last refresh time of id.
func (s *MemoryUserStore) RecordRefresh(ctx context.Context, id string, at time.Time) error {
	return s.update(id, func(u *UserRecord) error {
		u.LastRefresh = at
		return nil
	})
}

// SetEnabled sets the enabled flag of id.
func (s *MemoryUserStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return s.update(id, func(u *UserRecord) error {
		u.Enabled = enabled
		return nil
	})
}

// SetRole assigns roleID to id.
func (s *MemoryUserStore) SetRole(ctx context.Context, id, roleID string) error {
	return s.update(id, func(u *UserRecord) error {
		u.RoleID = roleID
		return nil
	})
}

// SetPasswordHash replaces the password hash of id.
func (s *MemoryUserStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	return s.update(id, func(u *UserRecord) error {
		u.PasswordHash = hash
		return nil
	})
}

// SwapPasswordHash replaces the password hash of id if it still equals current.
func (s *MemoryUserStore) SwapPasswordHash(ctx context.Context, id, current, next string) error {
	return s.update(id, func(u *UserRecord) error {
		if u.PasswordHash != current {
			return ErrUserChanged
		}
		u.PasswordHash = next
		return nil
	})
}

// SetOneTimeToken stores token in the field used by purpose.
func (s *MemoryUserStore) SetOneTimeToken(ctx context.Context, id string, purpose OneTimePurpose, token string) error {
	return s.update(id, func(u *UserRecord) error {
		u.setOneTimeToken(purpose, token)
		return nil
	})
}

// CompleteOneTime burns token and applies change if the purpose's field
// still holds token.
func (s *MemoryUserStore) CompleteOneTime(ctx context.Context, id string, purpose OneTimePurpose, token string, change OneTimeChange) error {
	return s.update(id, func(u *UserRecord) error {
		held := u.oneTimeToken(purpose)
		if token == "" || subtle.ConstantTimeCompare([]byte(held), []byte(token)) != 1 {
			return ErrTokenInvalidOrExpired
		}
		u.setOneTimeToken(purpose, "")
		if change.PasswordHash != "" {
			u.PasswordHash = change.PasswordHash
		}
		if change.MarkVerified {
			u.Verified = true
		}
		return nil
	})
}

func (s *MemoryUserStore) update(id string, fn func(*UserRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if err := fn(&u); err != nil {
		return err
	}
	s.users[id] = u
	return nil
}
