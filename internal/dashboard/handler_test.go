package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/nutribuddy-web/internal/recommendation"
	"github.com/wichananm65/nutribuddy-web/internal/session"
	"github.com/wichananm65/nutribuddy-web/internal/web"
)

type page struct {
	app      *fiber.App
	api      *fakeAPI
	sessions *session.Service
	sid      string
	cookie   string
}

func namedMeals(ids ...int) []recommendation.Meal {
	out := make([]recommendation.Meal, 0, len(ids))
	for _, id := range ids {
		out = append(out, recommendation.Meal{ID: id, Name: fmt.Sprintf("meal-%02d", id)})
	}
	return out
}

func newPage(t *testing.T, displayed ...int) *page {
	t.Helper()
	ctx := context.Background()
	sessions := session.NewService(session.NewInMemoryRepository(), []byte("test-secret"), time.Hour, nil)
	sess, cookie, err := sessions.Start(ctx)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if err := sessions.SaveLogin(ctx, sess.ID, session.Login{Token: "tok", UserID: "7", Username: "ann"}); err != nil {
		t.Fatalf("save login: %v", err)
	}
	if len(displayed) > 0 {
		_, err := sessions.Update(ctx, sess.ID, func(s *session.Session) error {
			s.Dashboard.Replace(namedMeals(displayed...))
			return nil
		})
		if err != nil {
			t.Fatalf("seed dashboard: %v", err)
		}
	}

	backend := &fakeAPI{}
	app := fiber.New(fiber.Config{Views: web.NewEngine()})
	app.Use(sessions.Middleware())
	NewHandler(NewService(backend, sessions, nil)).RegisterProtectedRoutes(app, sessions.RequireAuth())

	return &page{app: app, api: backend, sessions: sessions, sid: sess.ID, cookie: cookie}
}

func (p *page) do(t *testing.T, method, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: p.cookie})
	res, err := p.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	b, _ := io.ReadAll(res.Body)
	return res, string(b)
}

func (p *page) displayed(t *testing.T) []int {
	t.Helper()
	s, err := p.sessions.Get(context.Background(), p.sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return mealIDs(s.Dashboard.Meals)
}

func sameIDs(a, b []int) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func TestDashboardRequiresLogin(t *testing.T) {
	p := newPage(t)
	if err := p.sessions.Logout(context.Background(), p.sid); err != nil {
		t.Fatalf("logout: %v", err)
	}

	res, _ := p.do(t, http.MethodGet, "/dashboard", nil)
	if res.StatusCode != fiber.StatusFound || res.Header.Get("Location") != "/" {
		t.Fatalf("expected redirect to login, got %d %q", res.StatusCode, res.Header.Get("Location"))
	}
	res, _ = p.do(t, http.MethodPost, "/dashboard/meals/1/like", url.Values{})
	if res.StatusCode != fiber.StatusFound {
		t.Fatalf("expected redirect for interaction, got %d", res.StatusCode)
	}
	if len(p.api.interactions) != 0 {
		t.Fatalf("guarded interaction reached the backend")
	}
}

func TestDashboardRendersMealsInOrder(t *testing.T) {
	p := newPage(t)
	p.api.meals = namedMeals(3, 1, 2)

	res, body := p.do(t, http.MethodGet, "/dashboard", nil)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	i3, i1, i2 := strings.Index(body, "meal-03"), strings.Index(body, "meal-01"), strings.Index(body, "meal-02")
	if i3 < 0 || !(i3 < i1 && i1 < i2) {
		t.Fatalf("meals rendered out of order: %s", body)
	}
	if !strings.Contains(body, "Welcome, ann!") {
		t.Fatalf("username missing: %s", body)
	}
	if !strings.Contains(body, `action="/dashboard/meals/3/dislike"`) {
		t.Fatalf("action forms missing: %s", body)
	}
}

func TestDislikeRedirectsAndBackfills(t *testing.T) {
	p := newPage(t, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	p.api.meals = namedMeals(1, 11, 12)

	res, _ := p.do(t, http.MethodPost, "/dashboard/meals/3/dislike", url.Values{"exercises": {"1"}})
	if res.StatusCode != fiber.StatusSeeOther || res.Header.Get("Location") != "/dashboard?exercises=1" {
		t.Fatalf("unexpected redirect %d %q", res.StatusCode, res.Header.Get("Location"))
	}
	if got := p.displayed(t); !sameIDs(got, []int{1, 2, 4, 5, 6, 7, 8, 9, 10, 11}) {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestRateFromSliderPromotes(t *testing.T) {
	p := newPage(t, 1, 2, 3)

	p.do(t, http.MethodPost, "/dashboard/meals/3/rate", url.Values{"rating": {"5"}})
	if got := p.displayed(t); !sameIDs(got, []int{3, 1, 2}) {
		t.Fatalf("expected rated meal first, got %v", got)
	}
	if r := p.api.interactions[0].Rating; r == nil || *r != 5 {
		t.Fatalf("rating not sent")
	}
}

func TestFailedRateSubmitRendersSliderValue(t *testing.T) {
	p := newPage(t, 1, 2)
	p.api.interactErr = errors.New("boom")

	res, _ := p.do(t, http.MethodPost, "/dashboard/meals/2/rate", url.Values{"rating": {"5"}})
	if res.Header.Get("Location") != "/dashboard?notice=interaction-failed" {
		t.Fatalf("unexpected redirect %q", res.Header.Get("Location"))
	}
	_, body := p.do(t, http.MethodGet, "/dashboard", nil)
	if !strings.Contains(body, `value="5"`) {
		t.Fatalf("failed rating should stay on the slider: %s", body)
	}
	if got := p.displayed(t); !sameIDs(got, []int{1, 2}) {
		t.Fatalf("list should be unchanged, got %v", got)
	}
}

func TestRatingRouteIsNotExposed(t *testing.T) {
	p := newPage(t, 1)

	res, _ := p.do(t, http.MethodPost, "/dashboard/meals/1/rating", url.Values{"rating": {"4"}})
	if res.Header.Get("Location") != "/dashboard?notice=invalid" {
		t.Fatalf("rating is not an action, got %d %q", res.StatusCode, res.Header.Get("Location"))
	}
	if len(p.api.interactions) != 0 {
		t.Fatalf("unknown action reached the backend")
	}
}

func TestInteractionFailureShowsNotice(t *testing.T) {
	p := newPage(t, 1, 2)
	p.api.interactErr = errors.New("boom")

	res, _ := p.do(t, http.MethodPost, "/dashboard/meals/2/like", url.Values{})
	loc := res.Header.Get("Location")
	if loc != "/dashboard?notice=interaction-failed" {
		t.Fatalf("unexpected redirect %q", loc)
	}
	if got := p.displayed(t); !sameIDs(got, []int{1, 2}) {
		t.Fatalf("list should be unchanged, got %v", got)
	}

	_, body := p.do(t, http.MethodGet, loc, nil)
	if !strings.Contains(body, notices["interaction-failed"]) {
		t.Fatalf("notice not rendered: %s", body)
	}
}

func TestUnknownActionIsRejected(t *testing.T) {
	p := newPage(t, 1)

	res, _ := p.do(t, http.MethodPost, "/dashboard/meals/1/love", url.Values{})
	if res.Header.Get("Location") != "/dashboard?notice=invalid" {
		t.Fatalf("unexpected redirect %q", res.Header.Get("Location"))
	}
	if len(p.api.interactions) != 0 {
		t.Fatalf("invalid action reached the backend")
	}
}

func TestRefreshReplacesList(t *testing.T) {
	p := newPage(t, 1, 2)
	p.api.meals = namedMeals(8, 9)

	res, _ := p.do(t, http.MethodPost, "/dashboard/refresh", url.Values{})
	if res.Header.Get("Location") != "/dashboard?notice=refreshed" {
		t.Fatalf("unexpected redirect %q", res.Header.Get("Location"))
	}
	if got := p.displayed(t); !sameIDs(got, []int{8, 9}) {
		t.Fatalf("unexpected list %v", got)
	}
}
