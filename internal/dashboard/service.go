package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wichananm65/nutribuddy-web/internal/recommendation"
	"github.com/wichananm65/nutribuddy-web/internal/session"
)

var (
	ErrNoUser      = errors.New("session has no user id")
	ErrStale       = errors.New("recommendation list changed while the request was in flight")
	ErrInteraction = errors.New("interaction was not recorded")
	ErrRefresh     = errors.New("recommendations could not be refreshed")

	errMealsFetch     = errors.New("meal recommendations unavailable")
	errExercisesFetch = errors.New("exercise recommendations unavailable")
)

// Recommender is the part of the backend API the dashboard needs.
type Recommender interface {
	Recommend(ctx context.Context, userID string) ([]recommendation.Meal, error)
	Exercises(ctx context.Context, userID string, height, weight float64) ([]recommendation.Exercise, error)
	Interact(ctx context.Context, in recommendation.Interaction) error
	Refresh(ctx context.Context, userID string) error
}

// Sessions reads and atomically updates a browser session.
type Sessions interface {
	Get(ctx context.Context, id string) (session.Session, error)
	Update(ctx context.Context, id string, fn func(*session.Session) error) (session.Session, error)
}

type Service struct {
	api      Recommender
	sessions Sessions
	log      *zap.Logger
}

func NewService(api Recommender, sessions Sessions, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{api: api, sessions: sessions, log: log}
}

type LoadOptions struct {
	Reload    bool
	Exercises bool
}

// View is what the dashboard page renders.
type View struct {
	Username      string
	Meals         []recommendation.Meal
	Pending       map[int]int
	ShowExercises bool
	Exercises     []recommendation.Exercise
	BMI           float64
	HasBMI        bool
	Warnings      []string
}

// Result reports what an interaction did to the displayed list.
type Result struct {
	Outcome        recommendation.Outcome
	Backfilled     int
	BackfillFailed bool
	Stale          bool
}

// Load returns the dashboard for the session. Recommendations are fetched when
// the list was never loaded or a reload is requested; exercise
// recommendations are fetched alongside when requested. Fetch failures become
// warnings on the view.
func (s *Service) Load(ctx context.Context, sid string, opts LoadOptions) (View, error) {
	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return View{}, err
	}
	if sess.UserID == "" {
		return View{}, ErrNoUser
	}

	view := View{Username: sess.Username, ShowExercises: opts.Exercises}
	view.BMI, view.HasBMI = sess.BMI()

	needMeals := opts.Reload || !sess.Dashboard.Loaded
	gen := sess.Dashboard.Generation

	var (
		g            errgroup.Group
		meals        []recommendation.Meal
		exercises    []recommendation.Exercise
		mealsOK      bool
		exercisesDue bool
		exercisesOK  bool
	)
	if needMeals {
		g.Go(func() error {
			var err error
			if meals, err = s.api.Recommend(ctx, sess.UserID); err != nil {
				return fmt.Errorf("%w: %v", errMealsFetch, err)
			}
			mealsOK = true
			return nil
		})
	}
	if opts.Exercises {
		if sess.Height == nil || sess.Weight == nil {
			view.Warnings = append(view.Warnings, "Add your height and weight in settings to see exercise recommendations.")
		} else {
			exercisesDue = true
			g.Go(func() error {
				var err error
				if exercises, err = s.api.Exercises(ctx, sess.UserID, *sess.Height, *sess.Weight); err != nil {
					return fmt.Errorf("%w: %v", errExercisesFetch, err)
				}
				exercisesOK = true
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		s.log.Error("dashboard fetch failed", zap.String("user", sess.UserID), zap.Error(err))
	}

	if exercisesDue && !exercisesOK {
		view.Warnings = append(view.Warnings, "Could not load exercise recommendations.")
	}
	view.Exercises = exercises

	if needMeals {
		if !mealsOK {
			view.Warnings = append(view.Warnings, "Could not load meal recommendations.")
		} else {
			updated, err := s.sessions.Update(ctx, sid, func(x *session.Session) error {
				if x.Dashboard.Generation != gen {
					return ErrStale
				}
				x.Dashboard.Replace(meals)
				return nil
			})
			switch {
			case err == nil:
				sess = updated
			case errors.Is(err, ErrStale):
				s.log.Info("discarding stale recommendation fetch", zap.String("session", sid))
				if sess, err = s.sessions.Get(ctx, sid); err != nil {
					return View{}, err
				}
			default:
				return View{}, err
			}
		}
	}

	view.Meals = sess.Dashboard.Meals
	view.Pending = sess.Dashboard.Pending
	return view, nil
}

// SetRating remembers a slider rating that has not been submitted yet.
func (s *Service) SetRating(ctx context.Context, sid string, mealID, rating int) error {
	_, err := s.sessions.Update(ctx, sid, func(x *session.Session) error {
		return x.Dashboard.SetPending(mealID, rating)
	})
	return err
}

// Interact sends feedback for a meal and, once the backend accepted it, merges
// it into the displayed list. A dislike is followed by a backfill fetch. A
// failed POST leaves the list untouched; a failed backfill leaves it short.
// Neither is retried.
func (s *Service) Interact(ctx context.Context, sid string, mealID int, action string, rating *int) (Result, error) {
	act, err := recommendation.ParseAction(action)
	if err != nil {
		return Result{}, err
	}
	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return Result{}, err
	}
	userID, err := strconv.Atoi(sess.UserID)
	if err != nil {
		return Result{}, ErrNoUser
	}

	in := recommendation.Interaction{UserID: userID, MealID: mealID, Action: act, Rating: rating}
	if act == recommendation.ActionRate && in.Rating == nil {
		if r, ok := sess.Dashboard.PendingRating(mealID); ok {
			in.Rating = &r
		}
	}
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	if act == recommendation.ActionRate {
		if err := s.SetRating(ctx, sid, mealID, *in.Rating); err != nil {
			return Result{}, err
		}
	}

	gen := sess.Dashboard.Generation
	if err := s.api.Interact(ctx, in); err != nil {
		s.log.Error("interaction failed",
			zap.Int("user", userID),
			zap.Int("meal", mealID),
			zap.String("action", string(act)),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("%w: %v", ErrInteraction, err)
	}

	var res Result
	_, err = s.sessions.Update(ctx, sid, func(x *session.Session) error {
		if x.Dashboard.Generation != gen {
			return ErrStale
		}
		res.Outcome = x.Dashboard.Apply(in)
		return nil
	})
	if errors.Is(err, ErrStale) {
		s.log.Info("discarding stale interaction response", zap.String("session", sid), zap.Int("meal", mealID))
		return Result{Stale: true}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if !res.Outcome.NeedsBackfill {
		return res, nil
	}

	candidates, err := s.api.Recommend(ctx, sess.UserID)
	if err != nil {
		s.log.Error("backfill fetch failed", zap.Int("user", userID), zap.Error(err))
		res.BackfillFailed = true
		return res, nil
	}
	_, err = s.sessions.Update(ctx, sid, func(x *session.Session) error {
		if x.Dashboard.Generation != gen {
			return ErrStale
		}
		res.Backfilled = x.Dashboard.Backfill(candidates)
		return nil
	})
	if errors.Is(err, ErrStale) {
		s.log.Info("discarding stale backfill", zap.String("session", sid))
		res.Stale = true
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}
	if res.Backfilled == 0 {
		s.log.Debug("backfill found no new candidates", zap.Int("user", userID))
	}
	return res, nil
}

// Refresh asks the backend to regenerate recommendations, then replaces the
// displayed list with the new set. The fetch only starts after the refresh
// has completed.
func (s *Service) Refresh(ctx context.Context, sid string) error {
	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return err
	}
	if sess.UserID == "" {
		return ErrNoUser
	}
	if err := s.api.Refresh(ctx, sess.UserID); err != nil {
		s.log.Error("refresh failed", zap.String("user", sess.UserID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrRefresh, err)
	}
	meals, err := s.api.Recommend(ctx, sess.UserID)
	if err != nil {
		s.log.Error("fetch after refresh failed", zap.String("user", sess.UserID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrRefresh, err)
	}
	_, err = s.sessions.Update(ctx, sid, func(x *session.Session) error {
		x.Dashboard.Replace(meals)
		return nil
	})
	return err
}
