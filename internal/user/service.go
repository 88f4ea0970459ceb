package user

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/wichananm65/nutribuddy-web/internal/api"
	"github.com/wichananm65/nutribuddy-web/internal/session"
)

var (
	ErrLoginFailed      = errors.New("login failed")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// API is the part of the backend the account pages talk to.
type API interface {
	Login(ctx context.Context, username, password string) (api.LoginResponse, error)
	Signup(ctx context.Context, in api.SignupRequest) (api.SignupResponse, error)
	Profile(ctx context.Context, token, userID string) (api.Profile, error)
	UpdateUser(ctx context.Context, token, userID string, in api.UpdateUserRequest) error
	ChangePassword(ctx context.Context, token, userID string, in api.ChangePasswordRequest) error
	Refresh(ctx context.Context, userID string) error
}

type Service struct {
	api      API
	sessions *session.Service
	log      *zap.Logger
}

func NewService(backend API, sessions *session.Service, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{api: backend, sessions: sessions, log: log}
}

// Login authenticates against the backend and stores the identity in the
// session. Profile caching and the recommendation refresh that follow are
// best effort.
func (s *Service) Login(ctx context.Context, sid string, form LoginForm) error {
	res, err := s.api.Login(ctx, form.Username, form.Password)
	if err != nil {
		s.log.Info("login rejected", zap.String("username", form.Username), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if res.AccessToken == "" {
		s.log.Error("login response carried no token", zap.String("username", form.Username))
		return ErrLoginFailed
	}

	userID := ""
	if res.UserID != 0 {
		userID = strconv.Itoa(res.UserID)
	} else if id, ok := userIDFromToken(res.AccessToken); ok {
		userID = id
	} else {
		s.log.Error("user id missing from login response", zap.String("username", form.Username))
	}

	if err := s.sessions.SaveLogin(ctx, sid, session.Login{
		Token:    res.AccessToken,
		UserID:   userID,
		Username: form.Username,
	}); err != nil {
		return err
	}
	if userID == "" {
		return nil
	}

	profile, err := s.api.Profile(ctx, res.AccessToken, userID)
	if err != nil {
		s.log.Error("failed to fetch profile", zap.String("user", userID), zap.Error(err))
	} else if err := s.sessions.CacheProfile(ctx, sid, session.Profile{
		Height:         profile.Height,
		Weight:         profile.Weight,
		DietPreference: profile.DietPreference,
	}); err != nil {
		s.log.Error("failed to cache profile", zap.String("user", userID), zap.Error(err))
	}

	if err := s.api.Refresh(ctx, userID); err != nil {
		s.log.Error("failed to refresh recommendations after login", zap.String("user", userID), zap.Error(err))
	}
	return nil
}

// Signup validates the form and creates the account. Nothing is sent when
// validation fails.
func (s *Service) Signup(ctx context.Context, form SignupForm) (api.SignupResponse, error) {
	req, err := form.Validate()
	if err != nil {
		return api.SignupResponse{}, err
	}
	res, err := s.api.Signup(ctx, req)
	if err != nil {
		s.log.Info("signup rejected", zap.String("username", req.Username), zap.Error(err))
		return api.SignupResponse{}, err
	}
	return res, nil
}

// UpdateSettings pushes the profile change to the backend and refreshes the
// cached height and weight on success.
func (s *Service) UpdateSettings(ctx context.Context, sid string, form SettingsForm) (session.Session, error) {
	req, err := form.Validate()
	if err != nil {
		return session.Session{}, err
	}
	sess, err := s.identity(ctx, sid)
	if err != nil {
		return session.Session{}, err
	}
	if err := s.api.UpdateUser(ctx, sess.Token, sess.UserID, req); err != nil {
		s.log.Error("profile update failed", zap.String("user", sess.UserID), zap.Error(err))
		return session.Session{}, err
	}
	return s.sessions.Update(ctx, sid, func(x *session.Session) error {
		h, w := req.Height, req.Weight
		x.Height, x.Weight = &h, &w
		return nil
	})
}

func (s *Service) ChangePassword(ctx context.Context, sid string, form PasswordForm) error {
	req, err := form.Validate()
	if err != nil {
		return err
	}
	sess, err := s.identity(ctx, sid)
	if err != nil {
		return err
	}
	if err := s.api.ChangePassword(ctx, sess.Token, sess.UserID, req); err != nil {
		s.log.Error("password change failed", zap.String("user", sess.UserID), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) Logout(ctx context.Context, sid string) error {
	return s.sessions.Logout(ctx, sid)
}

func (s *Service) identity(ctx context.Context, sid string) (session.Session, error) {
	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return session.Session{}, err
	}
	if !sess.IsAuthenticated() || sess.UserID == "" {
		return session.Session{}, ErrNotAuthenticated
	}
	return sess, nil
}

// userIDFromToken reads the user id claim of a backend access token. The
// signature is not checked; the backend does that on every call.
func userIDFromToken(raw string) (string, bool) {
	tok, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	for _, key := range []string{"user_id", "sub"} {
		switch v := claims[key].(type) {
		case float64:
			return strconv.Itoa(int(v)), true
		case string:
			if v != "" {
				return v, true
			}
		}
	}
	return "", false
}
