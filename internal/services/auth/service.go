package auth

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tabletop-bank/internal/dependencies/clock"
)

// Errors
var (
	ErrInvalidPIN = errors.New("invalid admin PIN")
	ErrLockedOut  = errors.New("too many failed PIN attempts, try again later")
)

// Config holds configuration for the admin guard
type Config struct {
	// MaxAttempts is the number of consecutive failures before lockout
	MaxAttempts int
	// LockoutDuration is how long verification is refused after MaxAttempts failures
	LockoutDuration time.Duration
}

// DefaultConfig returns default guard configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		LockoutDuration: time.Minute,
	}
}

// Service guards destructive bank operations behind an admin PIN.
// A service created without a PIN lets every request through.
type Service struct {
	clock clock.Clock
	hash  []byte
	cfg   Config

	mu          sync.Mutex
	failures    int
	lockedUntil time.Time
}

// New creates a guard for pin. An empty pin disables the guard.
func New(pin string, clk clock.Clock, cfg Config) (*Service, error) {
	if pin == "" {
		return NewFromHash(nil, clk, cfg), nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return NewFromHash(hash, clk, cfg), nil
}

// NewFromHash creates a guard from an existing bcrypt hash
func NewFromHash(hash []byte, clk clock.Clock, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	return &Service{clock: clk, hash: hash, cfg: cfg}
}

// Enabled reports whether a PIN is required
func (s *Service) Enabled() bool {
	return len(s.hash) > 0
}

// Verify checks pin against the configured PIN
func (s *Service) Verify(pin string) error {
	if !s.Enabled() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if now.Before(s.lockedUntil) {
		return ErrLockedOut
	}

	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(pin)); err != nil {
		s.failures++
		if s.failures >= s.cfg.MaxAttempts {
			s.failures = 0
			s.lockedUntil = now.Add(s.cfg.LockoutDuration)
		}
		return ErrInvalidPIN
	}

	s.failures = 0
	return nil
}
