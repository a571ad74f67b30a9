package ranking

import (
	"sync"

	"github.com/pauljones0/wanderdeals/internal/models"
)

// Featured remembers the first ranked deal it is offered until Clear is called
// or the scope changes, so the highlighted deal does not jump around while
// users re-filter.
type Featured struct {
	mu    sync.Mutex
	deal  *models.Deal
	scope string
}

// Pick returns the memoized deal, memoizing ranked[0] if nothing is held yet.
// An empty ranking memoizes nothing.
func (f *Featured) Pick(ranked []models.Deal) (models.Deal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pickLocked(ranked)
}

// PickFor is Pick for rankings restricted to scope, such as a category. A
// pick memoized under another scope is dropped first.
func (f *Featured) PickFor(scope string, ranked []models.Deal) (models.Deal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if scope != f.scope {
		f.deal = nil
		f.scope = scope
	}
	return f.pickLocked(ranked)
}

func (f *Featured) pickLocked(ranked []models.Deal) (models.Deal, bool) {
	if f.deal == nil && len(ranked) > 0 {
		d := ranked[0]
		f.deal = &d
	}
	if f.deal == nil {
		return models.Deal{}, false
	}
	return *f.deal, true
}

func (f *Featured) Clear() {
	f.mu.Lock()
	f.deal = nil
	f.mu.Unlock()
}
