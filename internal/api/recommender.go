package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/wichananm65/nutribuddy-web/internal/recommendation"
)

type mealsResponse struct {
	UserID          int                   `json:"user_id,omitempty"`
	Recommendations []recommendation.Meal `json:"recommendations"`
}

type exercisesResponse struct {
	Recommendations []recommendation.Exercise `json:"recommendations"`
}

type exerciseRequest struct {
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`
}

// Recommend fetches the user's current meal recommendations in backend order.
func (c *Client) Recommend(ctx context.Context, userID string) ([]recommendation.Meal, error) {
	var out mealsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/recommender/recommend/"+url.PathEscape(userID), "", nil, &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

func (c *Client) Exercises(ctx context.Context, userID string, height, weight float64) ([]recommendation.Exercise, error) {
	var out exercisesResponse
	path := "/api/v1/recommender/exercise/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodPost, path, "", exerciseRequest{Height: height, Weight: weight}, &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

func (c *Client) Interact(ctx context.Context, in recommendation.Interaction) error {
	return c.do(ctx, http.MethodPost, "/api/v1/recommender/interact", "", in, nil)
}

func (c *Client) Refresh(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/recommender/refresh-recommendations/"+url.PathEscape(userID), "", nil, nil)
}
