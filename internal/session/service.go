package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const claimSessionID = "sid"

type Service struct {
	repo   Repository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

func NewService(repo Repository, secret []byte, ttl time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, secret: secret, ttl: ttl, now: time.Now, log: log}
}

// Start creates an empty session and returns it together with the signed
// cookie value identifying it.
func (s *Service) Start(ctx context.Context) (Session, string, error) {
	now := s.now().UTC()
	created, err := s.repo.Create(ctx, Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Session{}, "", err
	}

	claims := jwt.MapClaims{
		claimSessionID: created.ID,
		"exp":          now.Add(s.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, "", err
	}
	return created, signed, nil
}

func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Update applies fn to the stored session and stamps UpdatedAt.
func (s *Service) Update(ctx context.Context, id string, fn func(*Session) error) (Session, error) {
	if id == "" {
		return Session{}, ErrNotFound
	}
	return s.repo.Update(ctx, id, func(sess *Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		sess.UpdatedAt = s.now().UTC()
		return nil
	})
}

func (s *Service) IsAuthenticated(ctx context.Context, id string) bool {
	sess, err := s.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Error("session lookup failed", zap.String("session", id), zap.Error(err))
		}
		return false
	}
	return sess.IsAuthenticated()
}

// GetToken returns the bearer token for protected API calls.
func (s *Service) GetToken(ctx context.Context, id string) (string, bool) {
	sess, err := s.Get(ctx, id)
	if err != nil || sess.Token == "" {
		return "", false
	}
	return sess.Token, true
}

// SaveLogin replaces the identity in the session. The cached profile is kept
// only when the same user signs in again.
func (s *Service) SaveLogin(ctx context.Context, id string, login Login) error {
	_, err := s.Update(ctx, id, func(sess *Session) error {
		if sess.Username != login.Username {
			sess.Height = nil
			sess.Weight = nil
			sess.DietPreference = ""
		}
		sess.Token = login.Token
		sess.Username = login.Username
		sess.UserID = login.UserID
		sess.Dashboard.Reset()
		return nil
	})
	return err
}

// CacheProfile stores whichever profile fields are present.
func (s *Service) CacheProfile(ctx context.Context, id string, p Profile) error {
	_, err := s.Update(ctx, id, func(sess *Session) error {
		if p.Height != nil {
			sess.Height = p.Height
		}
		if p.Weight != nil {
			sess.Weight = p.Weight
		}
		if p.DietPreference != "" {
			sess.DietPreference = p.DietPreference
		}
		return nil
	})
	return err
}

// Logout drops the token, the user id and the dashboard list. Other cached
// fields stay, as they did in local storage.
func (s *Service) Logout(ctx context.Context, id string) error {
	_, err := s.Update(ctx, id, func(sess *Session) error {
		sess.clearIdentity()
		return nil
	})
	return err
}

// Sweep removes sessions that have not been updated within the TTL.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.repo.DeleteExpired(ctx, s.now().UTC().Add(-s.ttl))
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.log.Info("expired sessions removed", zap.Int("count", n))
			}
		}
	}
}

func (s *Service) expired(sess Session) bool {
	return sess.UpdatedAt.Before(s.now().UTC().Add(-s.ttl))
}

// discard deletes a session that can no longer be used.
func (s *Service) discard(ctx context.Context, id string) {
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Error("failed to delete expired session", zap.String("session", id), zap.Error(err))
	}
}
