package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

var ErrInvalidRefresh = errors.New("invalid or expired refresh token")

// Service wraps repository operations with business logic
type Service struct {
	repo Repository
	ttl  time.Duration
}

func NewService(r Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{repo: r, ttl: ttl}
}

// CreateSession stores a new refresh session for the user and returns the refresh token
func (s *Service) CreateSession(ctx context.Context, userID string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	r := hex.EncodeToString(b)
	now := time.Now().UTC()
	sess := &Session{
		RefreshToken: r,
		UserID:       userID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return r, nil
}

// Rotate consumes a refresh token and issues a new one for the same user.
// Concurrent rotations of one token yield a single winner.
func (s *Service) Rotate(ctx context.Context, refresh string) (string, *Session, error) {
	if refresh == "" {
		return "", nil, ErrInvalidRefresh
	}
	sess, err := s.repo.Consume(ctx, refresh)
	if err != nil {
		return "", nil, err
	}
	if sess == nil || sess.Expired(time.Now().UTC()) {
		return "", nil, ErrInvalidRefresh
	}
	next, err := s.CreateSession(ctx, sess.UserID)
	if err != nil {
		return "", nil, err
	}
	return next, sess, nil
}

func (s *Service) DeleteRefresh(ctx context.Context, refresh string) error {
	return s.repo.DeleteByRefresh(ctx, refresh)
}
