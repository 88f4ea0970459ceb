package session

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

const (
	CookieName = "nutribuddy_session"

	localsToken = "session_token"
	localsID    = "session_id"
)

// ID returns the session id attached by Middleware.
func ID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsID).(string)
	return id
}

// Middleware attaches a session to every request. A valid cookie naming a
// known, unexpired session is reused; anything else starts a new session.
// Expired sessions named by the cookie are deleted.
func (s *Service) Middleware() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:  s.secret,
		ContextKey:  localsToken,
		TokenLookup: "cookie:" + CookieName,
		SuccessHandler: func(c *fiber.Ctx) error {
			id := sessionIDFromToken(c.Locals(localsToken))
			if id != "" {
				sess, err := s.repo.Get(c.UserContext(), id)
				if err == nil && !s.expired(sess) {
					c.Locals(localsID, id)
					return c.Next()
				}
				if err == nil {
					s.discard(c.UserContext(), id)
				}
			}
			return s.startSession(c)
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if id := s.expiredCookieID(c.Cookies(CookieName)); id != "" {
				s.discard(c.UserContext(), id)
			}
			return s.startSession(c)
		},
	})
}

// RequireAuth guards a route: unauthenticated sessions are sent to the login page.
func (s *Service) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.IsAuthenticated(c.UserContext(), ID(c)) {
			return c.Redirect("/", fiber.StatusFound)
		}
		return c.Next()
	}
}

func (s *Service) startSession(c *fiber.Ctx) error {
	sess, cookie, err := s.Start(c.UserContext())
	if err != nil {
		s.log.Error("failed to start session", zap.Error(err))
		return fiber.ErrInternalServerError
	}
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    cookie,
		Path:     "/",
		Expires:  sess.CreatedAt.Add(s.ttl),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Locals(localsID, sess.ID)
	return c.Next()
}

func sessionIDFromToken(v interface{}) string {
	tok, ok := v.(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	id, _ := claims[claimSessionID].(string)
	return id
}

// expiredCookieID returns the session id of a correctly signed cookie whose
// only problem is that it has expired.
func (s *Service) expiredCookieID(raw string) string {
	if raw == "" {
		return ""
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	var verr *jwt.ValidationError
	if err == nil || !errors.As(err, &verr) || verr.Errors != jwt.ValidationErrorExpired {
		return ""
	}
	return sessionIDFromToken(tok)
}
