package recommendation

import (
	"errors"
	"fmt"
)

// MinVisible is the number of meals the dashboard tries to keep on screen.
const MinVisible = 10

type Action string

const (
	ActionLike    Action = "like"
	ActionDislike Action = "dislike"
	ActionBuy     Action = "buy"
	ActionRate    Action = "rate"
)

var (
	ErrInvalidAction = errors.New("invalid action")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// ParseAction accepts one of like, dislike, buy or rate.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionLike, ActionDislike, ActionBuy, ActionRate:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// Meal is a meal recommendation as returned by the recommender API.
// The client only changes list membership and order, never these fields.
type Meal struct {
	ID         int    `json:"meal_id"`
	Name       string `json:"name"`
	Nutrient   string `json:"nutrient,omitempty"`
	Diet       string `json:"diet,omitempty"`
	Disease    string `json:"disease,omitempty"`
	Vegetarian bool   `json:"veg_non"`
	Reason     string `json:"reason,omitempty"`
}

type Exercise struct {
	Name              string  `json:"name"`
	Intensity         float64 `json:"intensity"`
	CaloriesBurned    float64 `json:"calories_burned"`
	DurationMinutes   float64 `json:"duration"`
	WeatherConditions string  `json:"weather_conditions,omitempty"`
	Gender            string  `json:"gender,omitempty"`
	Age               int     `json:"age,omitempty"`
	BMIRange          string  `json:"bmi_range,omitempty"`
}

// Interaction is the feedback payload posted to /api/v1/recommender/interact.
type Interaction struct {
	UserID int    `json:"user_id"`
	MealID int    `json:"meal_id"`
	Action Action `json:"action"`
	Rating *int   `json:"rating"`
}

func (in Interaction) Validate() error {
	if _, err := ParseAction(string(in.Action)); err != nil {
		return err
	}
	if in.Action == ActionRate && in.Rating == nil {
		return ErrInvalidRating
	}
	if in.Rating != nil && !ValidRating(*in.Rating) {
		return ErrInvalidRating
	}
	return nil
}

// Favors reports whether the interaction moves the meal to the front:
// like, buy, or a rating of 4 and above.
func (in Interaction) Favors() bool {
	switch in.Action {
	case ActionLike, ActionBuy:
		return true
	case ActionRate:
		return in.Rating != nil && *in.Rating >= 4
	}
	return false
}

func ValidRating(r int) bool {
	return r >= 1 && r <= 5
}
