package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/nutribuddy-web/internal/recommendation"
	"github.com/wichananm65/nutribuddy-web/internal/session"
)

type fakeAPI struct {
	mu           sync.Mutex
	meals        []recommendation.Meal
	exercises    []recommendation.Exercise
	recommendErr error
	exerciseErr  error
	interactErr  error
	refreshErr   error
	onInteract   func()
	interactions []recommendation.Interaction
	recommends   int
	refreshes    int
	calls        []string
}

func (f *fakeAPI) Recommend(ctx context.Context, userID string) ([]recommendation.Meal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recommends++
	f.calls = append(f.calls, "recommend")
	if f.recommendErr != nil {
		return nil, f.recommendErr
	}
	out := make([]recommendation.Meal, len(f.meals))
	copy(out, f.meals)
	return out, nil
}

func (f *fakeAPI) Exercises(ctx context.Context, userID string, height, weight float64) ([]recommendation.Exercise, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "exercises")
	return f.exercises, f.exerciseErr
}

func (f *fakeAPI) Interact(ctx context.Context, in recommendation.Interaction) error {
	f.mu.Lock()
	f.interactions = append(f.interactions, in)
	hook := f.onInteract
	err := f.interactErr
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeAPI) Refresh(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	f.calls = append(f.calls, "refresh")
	return f.refreshErr
}

func mealList(ids ...int) []recommendation.Meal {
	out := make([]recommendation.Meal, 0, len(ids))
	for _, id := range ids {
		out = append(out, recommendation.Meal{ID: id})
	}
	return out
}

func mealIDs(meals []recommendation.Meal) []int {
	out := make([]int, 0, len(meals))
	for _, m := range meals {
		out = append(out, m.ID)
	}
	return out
}

func setup(t *testing.T, displayed ...int) (*Service, *fakeAPI, *session.InMemoryRepository) {
	t.Helper()
	s := session.Session{ID: "sid", Token: "tok", UserID: "7", Username: "ann"}
	if len(displayed) > 0 {
		s.Dashboard.Replace(mealList(displayed...))
	}
	repo := session.NewInMemoryRepository(s)
	api := &fakeAPI{}
	return NewService(api, repo, nil), api, repo
}

func displayed(t *testing.T, repo *session.InMemoryRepository) []int {
	t.Helper()
	s, err := repo.Get(context.Background(), "sid")
	require.NoError(t, err)
	return mealIDs(s.Dashboard.Meals)
}

func TestLoadFetchesOnceAndDedupes(t *testing.T) {
	svc, api, _ := setup(t)
	api.meals = mealList(1, 2, 2, 3)

	view, err := svc.Load(context.Background(), "sid", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, mealIDs(view.Meals))
	assert.Equal(t, "ann", view.Username)

	_, err = svc.Load(context.Background(), "sid", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, api.recommends, "loaded list should not be refetched")

	_, err = svc.Load(context.Background(), "sid", LoadOptions{Reload: true})
	require.NoError(t, err)
	assert.Equal(t, 2, api.recommends)
}

func TestLoadWithExercises(t *testing.T) {
	svc, api, repo := setup(t, 1)
	h, w := 170.0, 65.0
	_, err := repo.Update(context.Background(), "sid", func(s *session.Session) error {
		s.Height, s.Weight = &h, &w
		return nil
	})
	require.NoError(t, err)
	api.exercises = []recommendation.Exercise{{Name: "Walking", DurationMinutes: 30}}

	view, err := svc.Load(context.Background(), "sid", LoadOptions{Exercises: true})
	require.NoError(t, err)
	require.Len(t, view.Exercises, 1)
	assert.Equal(t, "Walking", view.Exercises[0].Name)
	assert.True(t, view.HasBMI)
	assert.Empty(t, view.Warnings)
}

func TestLoadFailuresBecomeWarnings(t *testing.T) {
	svc, api, _ := setup(t)
	api.recommendErr = errors.New("backend down")

	view, err := svc.Load(context.Background(), "sid", LoadOptions{Exercises: true})
	require.NoError(t, err)
	assert.Empty(t, view.Meals)
	assert.Len(t, view.Warnings, 2)
}

func TestLoadWithoutUserID(t *testing.T) {
	repo := session.NewInMemoryRepository(session.Session{ID: "sid", Token: "tok"})
	svc := NewService(&fakeAPI{}, repo, nil)

	_, err := svc.Load(context.Background(), "sid", LoadOptions{})
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestLikePromotes(t *testing.T) {
	svc, api, repo := setup(t, 1, 2, 3)

	res, err := svc.Interact(context.Background(), "sid", 2, "like", nil)
	require.NoError(t, err)
	assert.True(t, res.Outcome.Promoted)
	assert.Equal(t, []int{2, 1, 3}, displayed(t, repo))
	require.Len(t, api.interactions, 1)
	assert.Equal(t, recommendation.Interaction{UserID: 7, MealID: 2, Action: recommendation.ActionLike}, api.interactions[0])
}

func TestDislikeBackfillsToTen(t *testing.T) {
	svc, api, repo := setup(t, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	api.meals = mealList(1, 2, 11, 12)

	res, err := svc.Interact(context.Background(), "sid", 3, "dislike", nil)
	require.NoError(t, err)
	assert.True(t, res.Outcome.Removed)
	assert.Equal(t, 1, res.Backfilled)
	assert.Equal(t, []int{1, 2, 4, 5, 6, 7, 8, 9, 10, 11}, displayed(t, repo))
}

func TestFailedInteractionLeavesListUnchanged(t *testing.T) {
	svc, api, repo := setup(t, 1, 2, 3)
	api.interactErr = errors.New("503")

	_, err := svc.Interact(context.Background(), "sid", 2, "dislike", nil)
	assert.ErrorIs(t, err, ErrInteraction)
	assert.Equal(t, []int{1, 2, 3}, displayed(t, repo))
	assert.Zero(t, api.recommends)
}

func TestFailedBackfillLeavesListShort(t *testing.T) {
	svc, api, repo := setup(t, 1, 2, 3)
	api.recommendErr = errors.New("timeout")

	res, err := svc.Interact(context.Background(), "sid", 2, "dislike", nil)
	require.NoError(t, err)
	assert.True(t, res.BackfillFailed)
	assert.Equal(t, []int{1, 3}, displayed(t, repo))
	assert.Equal(t, 1, api.recommends, "backfill is not retried")
}

func TestDislikeUnknownMealStillPostsButSkipsBackfill(t *testing.T) {
	svc, api, repo := setup(t, 1, 2)

	res, err := svc.Interact(context.Background(), "sid", 99, "dislike", nil)
	require.NoError(t, err)
	assert.False(t, res.Outcome.Removed)
	assert.Len(t, api.interactions, 1)
	assert.Zero(t, api.recommends)
	assert.Equal(t, []int{1, 2}, displayed(t, repo))
}

func TestRateUsesPendingRating(t *testing.T) {
	svc, api, repo := setup(t, 1, 2, 3)
	require.NoError(t, svc.SetRating(context.Background(), "sid", 3, 5))

	res, err := svc.Interact(context.Background(), "sid", 3, "rate", nil)
	require.NoError(t, err)
	assert.True(t, res.Outcome.Promoted)
	require.NotNil(t, api.interactions[0].Rating)
	assert.Equal(t, 5, *api.interactions[0].Rating)
	assert.Equal(t, []int{3, 1, 2}, displayed(t, repo))

	s, _ := repo.Get(context.Background(), "sid")
	_, pending := s.Dashboard.PendingRating(3)
	assert.False(t, pending)
}

func TestFailedRatingKeepsSliderValue(t *testing.T) {
	svc, api, repo := setup(t, 1, 2)
	api.interactErr = errors.New("boom")
	r := 2

	_, err := svc.Interact(context.Background(), "sid", 2, "rate", &r)
	assert.ErrorIs(t, err, ErrInteraction)
	s, _ := repo.Get(context.Background(), "sid")
	got, ok := s.Dashboard.PendingRating(2)
	assert.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestRateWithoutRatingIsRejected(t *testing.T) {
	svc, api, _ := setup(t, 1)

	_, err := svc.Interact(context.Background(), "sid", 1, "rate", nil)
	assert.ErrorIs(t, err, recommendation.ErrInvalidRating)
	assert.Empty(t, api.interactions)
}

func TestStaleInteractionIsDiscarded(t *testing.T) {
	svc, api, repo := setup(t, 1, 2, 3)
	api.onInteract = func() {
		_, _ = repo.Update(context.Background(), "sid", func(s *session.Session) error {
			s.Dashboard.Replace(mealList(20, 21))
			return nil
		})
	}

	res, err := svc.Interact(context.Background(), "sid", 2, "dislike", nil)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, []int{20, 21}, displayed(t, repo))
}

func TestRefreshRunsBeforeFetch(t *testing.T) {
	svc, api, repo := setup(t, 1, 2)
	api.meals = mealList(5, 6, 7)

	require.NoError(t, svc.Refresh(context.Background(), "sid"))
	assert.Equal(t, []string{"refresh", "recommend"}, api.calls)
	assert.Equal(t, []int{5, 6, 7}, displayed(t, repo))
}

func TestRefreshFailureKeepsList(t *testing.T) {
	svc, api, repo := setup(t, 1, 2)
	api.refreshErr = errors.New("nope")

	assert.ErrorIs(t, svc.Refresh(context.Background(), "sid"), ErrRefresh)
	assert.Equal(t, []int{1, 2}, displayed(t, repo))
	assert.Zero(t, api.recommends)
}

func TestLoadFetchFailuresAreIndependent(t *testing.T) {
	svc, api, repo := setup(t)
	h, w := 170.0, 65.0
	_, err := repo.Update(context.Background(), "sid", func(s *session.Session) error {
		s.Height, s.Weight = &h, &w
		return nil
	})
	require.NoError(t, err)

	api.meals = mealList(1, 2)
	api.exerciseErr = errors.New("exercise service down")
	view, err := svc.Load(context.Background(), "sid", LoadOptions{Exercises: true})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, mealIDs(view.Meals), "meals still load when exercises fail")
	assert.Equal(t, []string{"Could not load exercise recommendations."}, view.Warnings)

	api.recommendErr = errors.New("recommender down")
	view, err = svc.Load(context.Background(), "sid", LoadOptions{Reload: true, Exercises: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"Could not load exercise recommendations.",
		"Could not load meal recommendations.",
	}, view.Warnings)
	assert.Equal(t, []int{1, 2}, mealIDs(view.Meals), "failed reload keeps the displayed list")
}
