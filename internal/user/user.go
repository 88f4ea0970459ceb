package user

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/wichananm65/nutribuddy-web/internal/api"
)

const (
	minPasswordLength = 6

	minHeightCM = 50
	maxHeightCM = 250
	minWeightKG = 20
	maxWeightKG = 300
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// FieldErrors maps a form field name to the message shown next to it.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid fields: " + strings.Join(fields, ", ")
}

// AsFieldErrors extracts FieldErrors from err, if any.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

type LoginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

type SignupForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Email    string `form:"email"`
	Gender   string `form:"gender"`
	Diet     string `form:"diet"`
	Disease  string `form:"disease"`
	Height   string `form:"height"`
	Weight   string `form:"weight"`
}

// Validate checks the form and builds the backend request. Gender is sent as
// true for male and the diet flag as true for vegetarian.
func (f SignupForm) Validate() (api.SignupRequest, error) {
	errs := FieldErrors{}
	req := api.SignupRequest{
		Username: strings.TrimSpace(f.Username),
		Password: f.Password,
		Email:    strings.TrimSpace(f.Email),
		Disease:  strings.TrimSpace(f.Disease),
	}

	if req.Username == "" {
		errs["username"] = "Username is required."
	}
	if len(req.Password) < minPasswordLength {
		errs["password"] = fmt.Sprintf("Password must be at least %d characters.", minPasswordLength)
	}
	if !emailPattern.MatchString(req.Email) {
		errs["email"] = "Enter a valid email address."
	}
	switch strings.ToLower(f.Gender) {
	case "male":
		req.Gender = true
	case "female":
	default:
		errs["gender"] = "Select a gender."
	}
	switch strings.ToLower(f.Diet) {
	case "veg":
		req.VegNon = true
	case "non-veg":
	default:
		errs["diet"] = "Select a diet preference."
	}
	if req.Disease == "" {
		errs["disease"] = "Disease history is required."
	}
	req.Height = measure(errs, "height", f.Height, minHeightCM, maxHeightCM, "Height", "cm")
	req.Weight = measure(errs, "weight", f.Weight, minWeightKG, maxWeightKG, "Weight", "kg")

	if len(errs) > 0 {
		return api.SignupRequest{}, errs
	}
	return req, nil
}

type SettingsForm struct {
	Disease string `form:"disease"`
	Height  string `form:"height"`
	Weight  string `form:"weight"`
}

func (f SettingsForm) Validate() (api.UpdateUserRequest, error) {
	errs := FieldErrors{}
	req := api.UpdateUserRequest{Disease: strings.TrimSpace(f.Disease)}
	if req.Disease == "" {
		errs["disease"] = "Disease history is required."
	}
	req.Height = measure(errs, "height", f.Height, minHeightCM, maxHeightCM, "Height", "cm")
	req.Weight = measure(errs, "weight", f.Weight, minWeightKG, maxWeightKG, "Weight", "kg")
	if len(errs) > 0 {
		return api.UpdateUserRequest{}, errs
	}
	return req, nil
}

type PasswordForm struct {
	OldPassword string `form:"old_password"`
	NewPassword string `form:"new_password"`
	Confirm     string `form:"confirm_password"`
}

func (f PasswordForm) Validate() (api.ChangePasswordRequest, error) {
	errs := FieldErrors{}
	if f.OldPassword == "" {
		errs["old_password"] = "Current password is required."
	}
	if len(f.NewPassword) < minPasswordLength {
		errs["new_password"] = fmt.Sprintf("Password must be at least %d characters.", minPasswordLength)
	} else if f.NewPassword == f.OldPassword {
		errs["new_password"] = "New password must differ from the current one."
	}
	if f.Confirm != f.NewPassword {
		errs["confirm_password"] = "Passwords do not match."
	}
	if len(errs) > 0 {
		return api.ChangePasswordRequest{}, errs
	}
	return api.ChangePasswordRequest{OldPassword: f.OldPassword, NewPassword: f.NewPassword}, nil
}

func measure(errs FieldErrors, field, raw string, min, max float64, label, unit string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		errs[field] = label + " must be a number."
		return 0
	}
	if v < min || v > max {
		errs[field] = fmt.Sprintf("%s must be between %g and %g %s.", label, min, max, unit)
		return 0
	}
	return v
}
