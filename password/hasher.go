package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrTooLong is returned when a password exceeds Config.MaxPasswordBytes.
var ErrTooLong = errors.New("password exceeds maximum length")

// Config holds the argon2id parameters for new hashes.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MaxPasswordBytes bounds the work a single Verify call can cause.
	// Zero means 1024.
	MaxPasswordBytes int
}

// DefaultConfig returns argon2id parameters suited to interactive logins.
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: 1024,
	}
}

// Hasher hashes new passwords with argon2id and verifies both argon2id and
// legacy bcrypt hashes, so accounts imported from the previous system keep
// working until their next password change.
type Hasher struct {
	config Config
}

// New validates cfg and returns a Hasher.
func New(cfg Config) (*Hasher, error) {
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = 1024
	}
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password key length must be >= 16")
	case cfg.MaxPasswordBytes < 0:
		return nil, errors.New("password max bytes must be positive")
	}
	return &Hasher{config: cfg}, nil
}

// Hash returns an argon2id PHC string for password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	if len(password) > h.config.MaxPasswordBytes {
		return "", ErrTooLong
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	p := phc{
		memory:      h.config.Memory,
		time:        h.config.Time,
		parallelism: h.config.Parallelism,
		salt:        salt,
	}
	p.hash = argon2.IDKey([]byte(password), salt, p.time, p.memory, p.parallelism, h.config.KeyLength)
	return p.encode(), nil
}

// Verify reports whether password matches encoded. A malformed hash is an
// error; a wrong password is (false, nil).
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	if len(password) > h.config.MaxPasswordBytes {
		return false, ErrTooLong
	}

	if isBcrypt(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
			return false, nil
		default:
			return false, err
		}
	}

	p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.hash)))
	return subtle.ConstantTimeCompare(computed, p.hash) == 1, nil
}

// NeedsRehash reports whether encoded should be replaced by a fresh Hash
// result: it is a legacy bcrypt hash or uses weaker argon2id parameters.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	if isBcrypt(encoded) {
		return true, nil
	}
	p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	return h.config.Memory > p.memory ||
		h.config.Time > p.time ||
		h.config.Parallelism > p.parallelism ||
		h.config.KeyLength != uint32(len(p.hash)), nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}
