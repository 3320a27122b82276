package jwt

import (
	"errors"
	"fmt"
	"time"
)

// Codec holds the access and refresh managers. Each kind has its own key and
// lifetime, so a token of one kind never verifies as the other.
type Codec struct {
	access  *Manager
	refresh *Manager
}

// NewCodec builds both managers. The Kind field of each config is forced to
// the matching kind.
func NewCodec(access, refresh Config) (*Codec, error) {
	access.Kind = KindAccess
	refresh.Kind = KindRefresh

	am, err := NewManager(access)
	if err != nil {
		return nil, fmt.Errorf("access token config: %w", err)
	}
	rm, err := NewManager(refresh)
	if err != nil {
		return nil, fmt.Errorf("refresh token config: %w", err)
	}
	return &Codec{access: am, refresh: rm}, nil
}

// Manager returns the manager for kind.
func (c *Codec) Manager(kind Kind) (*Manager, error) {
	switch kind {
	case KindAccess:
		return c.access, nil
	case KindRefresh:
		return c.refresh, nil
	default:
		return nil, errors.New("unknown token kind")
	}
}

// Issue signs a token of the given kind.
func (c *Codec) Issue(kind Kind, id Identity, jti string) (string, time.Time, error) {
	m, err := c.Manager(kind)
	if err != nil {
		return "", time.Time{}, err
	}
	return m.Issue(id, jti)
}

// Parse verifies a token of the given kind.
func (c *Codec) Parse(kind Kind, token string) (*Claims, error) {
	m, err := c.Manager(kind)
	if err != nil {
		return nil, err
	}
	return m.Parse(token)
}

// TTL reports the lifetime configured for kind, or zero for an unknown kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	m, err := c.Manager(kind)
	if err != nil {
		return 0
	}
	return m.TTL()
}
