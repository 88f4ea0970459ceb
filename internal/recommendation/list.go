package recommendation

// List is the dashboard's displayed recommendation list together with the
// ratings picked on a slider but not submitted yet.
//
// Meals are unique by ID. Generation changes every time the list is replaced
// wholesale, so work started against an older list can be recognised as stale.
type List struct {
	Meals      []Meal      `json:"meals"`
	Pending    map[int]int `json:"pending,omitempty"`
	Generation uint64      `json:"generation"`
	Loaded     bool        `json:"loaded"`
}

// Outcome describes what Apply did to the list.
type Outcome struct {
	Promoted      bool
	Removed       bool
	NeedsBackfill bool
}

// Replace swaps the list contents for meals, dropping duplicate IDs.
func (l *List) Replace(meals []Meal) {
	l.Meals = dedupe(meals)
	l.Pending = nil
	l.Generation++
	l.Loaded = true
}

func (l *List) Reset() {
	gen := l.Generation
	*l = List{Generation: gen + 1}
}

func (l *List) Len() int { return len(l.Meals) }

func (l *List) Index(mealID int) int {
	for i, m := range l.Meals {
		if m.ID == mealID {
			return i
		}
	}
	return -1
}

func (l *List) Contains(mealID int) bool { return l.Index(mealID) >= 0 }

// Promote moves the meal to index 0, keeping the relative order of the rest.
// It reports false when the meal is not in the list.
func (l *List) Promote(mealID int) bool {
	i := l.Index(mealID)
	if i < 0 {
		return false
	}
	m := l.Meals[i]
	copy(l.Meals[1:i+1], l.Meals[:i])
	l.Meals[0] = m
	return true
}

// Remove deletes exactly the meal with mealID. Unknown IDs are a no-op.
func (l *List) Remove(mealID int) (Meal, bool) {
	i := l.Index(mealID)
	if i < 0 {
		return Meal{}, false
	}
	m := l.Meals[i]
	l.Meals = append(l.Meals[:i], l.Meals[i+1:]...)
	delete(l.Pending, mealID)
	return m, true
}

// Backfill appends candidates not already shown, in the order given, until the
// list holds MinVisible meals or the candidates run out. It returns how many
// meals were appended.
func (l *List) Backfill(candidates []Meal) int {
	added := 0
	for _, c := range candidates {
		if len(l.Meals) >= MinVisible {
			break
		}
		if l.Contains(c.ID) {
			continue
		}
		l.Meals = append(l.Meals, c)
		added++
	}
	return added
}

// Deficit is the number of meals missing to reach MinVisible.
func (l *List) Deficit() int {
	if d := MinVisible - len(l.Meals); d > 0 {
		return d
	}
	return 0
}

func (l *List) SetPending(mealID, rating int) error {
	if !ValidRating(rating) {
		return ErrInvalidRating
	}
	if l.Pending == nil {
		l.Pending = make(map[int]int)
	}
	l.Pending[mealID] = rating
	return nil
}

func (l *List) PendingRating(mealID int) (int, bool) {
	r, ok := l.Pending[mealID]
	return r, ok
}

func (l *List) ClearPending(mealID int) {
	delete(l.Pending, mealID)
}

// Apply merges an interaction the backend already accepted into the list.
func (l *List) Apply(in Interaction) Outcome {
	var out Outcome
	if in.Favors() {
		out.Promoted = l.Promote(in.MealID)
	}
	switch in.Action {
	case ActionDislike:
		_, out.Removed = l.Remove(in.MealID)
		out.NeedsBackfill = out.Removed
	case ActionRate:
		l.ClearPending(in.MealID)
	}
	return out
}

func dedupe(meals []Meal) []Meal {
	seen := make(map[int]struct{}, len(meals))
	out := make([]Meal, 0, len(meals))
	for _, m := range meals {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}
