package session

import (
	"math"
	"time"

	"github.com/wichananm65/nutribuddy-web/internal/recommendation"
)

// Session is one browser's locally cached identity and profile snapshot,
// plus the dashboard list it is currently looking at.
type Session struct {
	ID             string              `json:"id"`
	Token          string              `json:"token,omitempty"`
	UserID         string              `json:"user_id,omitempty"`
	Username       string              `json:"username,omitempty"`
	Height         *float64            `json:"userHeight,omitempty"`
	Weight         *float64            `json:"userWeight,omitempty"`
	DietPreference string              `json:"userDietPreference,omitempty"`
	Dashboard      recommendation.List `json:"dashboard"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// IsAuthenticated is true when a token is present. The token is not checked
// for expiry; the backend rejects stale tokens on the next request.
func (s Session) IsAuthenticated() bool {
	return s.Token != ""
}

// Login is what a successful sign-in writes into the session.
type Login struct {
	Token    string
	UserID   string
	Username string
}

// Profile is the cached part of the remote user profile.
type Profile struct {
	Height         *float64
	Weight         *float64
	DietPreference string
}

func (s *Session) clearIdentity() {
	s.Token = ""
	s.UserID = ""
	s.Dashboard.Reset()
}

// BMI is weight / (height/100)^2 from the cached profile, rounded to two
// decimals. It reports false when height or weight is unknown.
func (s Session) BMI() (float64, bool) {
	if s.Height == nil || s.Weight == nil || *s.Height <= 0 {
		return 0, false
	}
	return BMI(*s.Height, *s.Weight), true
}

// BMI computes the body mass index from centimetres and kilograms.
func BMI(heightCM, weightKG float64) float64 {
	m := heightCM / 100
	return math.Round(weightKG/(m*m)*100) / 100
}
