package dashboard

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/nutribuddy-web/internal/recommendation"
	"github.com/wichananm65/nutribuddy-web/internal/session"
	"github.com/wichananm65/nutribuddy-web/internal/web"
)

const defaultRating = 3

var notices = map[string]string{
	"interaction-failed": "Could not save your feedback. Please try again.",
	"backfill-failed":    "Could not load more recommendations.",
	"stale":              "Your recommendations changed while the request was running.",
	"refresh-failed":     "Could not refresh recommendations.",
	"refreshed":          "Recommendations refreshed.",
	"invalid":            "That action is not supported.",
	"no-user":            "User ID missing. Please log in again.",
}

type Handler struct {
	service *Service
}

// mealRow is a displayed meal together with the rating its slider shows.
type mealRow struct {
	recommendation.Meal
	Rating int
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App, guard fiber.Handler) {
	app.Get("/dashboard", guard, h.show)
	app.Post("/dashboard/refresh", guard, h.refresh)
	app.Post("/dashboard/meals/:id<int>/:action", guard, h.interact)
}

func (h *Handler) show(c *fiber.Ctx) error {
	opts := LoadOptions{
		Reload:    c.Query("reload") != "",
		Exercises: c.Query("exercises") != "",
	}
	data := web.Page("Dashboard", true)
	data["Actions"] = []recommendation.Action{
		recommendation.ActionLike,
		recommendation.ActionDislike,
		recommendation.ActionBuy,
	}
	data["Notice"] = notices[c.Query("notice")]

	view, err := h.service.Load(c.UserContext(), session.ID(c), opts)
	if errors.Is(err, ErrNoUser) {
		data["Notice"] = notices["no-user"]
		data["Meals"] = []mealRow{}
		return web.Render(c, fiber.StatusOK, "dashboard", data)
	}
	if err != nil {
		return err
	}

	rows := make([]mealRow, 0, len(view.Meals))
	for _, m := range view.Meals {
		r, ok := view.Pending[m.ID]
		if !ok {
			r = defaultRating
		}
		rows = append(rows, mealRow{Meal: m, Rating: r})
	}
	data["Username"] = view.Username
	data["Meals"] = rows
	data["Warnings"] = view.Warnings
	data["ShowExercises"] = view.ShowExercises
	data["Exercises"] = view.Exercises
	data["BMI"] = view.BMI
	data["HasBMI"] = view.HasBMI
	return web.Render(c, fiber.StatusOK, "dashboard", data)
}

func (h *Handler) interact(c *fiber.Ctx) error {
	mealID, _ := strconv.Atoi(c.Params("id"))

	var rating *int
	if raw := c.FormValue("rating"); raw != "" {
		r, err := strconv.Atoi(raw)
		if err != nil {
			return back(c, "invalid")
		}
		rating = &r
	}

	res, err := h.service.Interact(c.UserContext(), session.ID(c), mealID, c.Params("action"), rating)
	switch {
	case errors.Is(err, recommendation.ErrInvalidAction), errors.Is(err, recommendation.ErrInvalidRating):
		return back(c, "invalid")
	case errors.Is(err, ErrNoUser):
		return back(c, "no-user")
	case errors.Is(err, ErrInteraction):
		return back(c, "interaction-failed")
	case err != nil:
		return err
	case res.Stale:
		return back(c, "stale")
	case res.BackfillFailed:
		return back(c, "backfill-failed")
	}
	return back(c, "")
}

func (h *Handler) refresh(c *fiber.Ctx) error {
	err := h.service.Refresh(c.UserContext(), session.ID(c))
	switch {
	case errors.Is(err, ErrNoUser):
		return back(c, "no-user")
	case errors.Is(err, ErrRefresh):
		return back(c, "refresh-failed")
	case err != nil:
		return err
	}
	return back(c, "refreshed")
}

// back returns to the dashboard, keeping the exercise panel open if it was.
func back(c *fiber.Ctx, notice string) error {
	q := url.Values{}
	if notice != "" {
		q.Set("notice", notice)
	}
	if c.FormValue("exercises") != "" {
		q.Set("exercises", "1")
	}
	loc := "/dashboard"
	if len(q) > 0 {
		loc += "?" + q.Encode()
	}
	return c.Redirect(loc, fiber.StatusSeeOther)
}
