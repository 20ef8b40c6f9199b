package search

import (
	"slices"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"stratbench/internal/domain"
)

// candidate is one evaluated cell.
type candidate struct {
	idx    int
	window domain.Window
	ret    decimal.Decimal
}

// less orders by return, then by enumeration index.
func (c candidate) less(o candidate) bool {
	if cmp := c.ret.Cmp(o.ret); cmp != 0 {
		return cmp < 0
	}
	return c.idx < o.idx
}

// tracker is the single reduction point shared by search workers. Its result
// does not depend on the order in which cells are observed: the best is the
// highest return with the lowest index among equals, and the top list keeps
// the k greatest candidates under (return, index).
type tracker struct {
	mu      sync.Mutex
	k       int
	best    candidate
	hasBest bool
	top     []candidate
}

func newTracker(k int) *tracker {
	return &tracker{k: k, top: make([]candidate, 0, k+1)}
}

// observe records a cell and reports whether it became the running best.
func (t *tracker) observe(c candidate) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := sort.Search(len(t.top), func(j int) bool { return c.less(t.top[j]) })
	t.top = slices.Insert(t.top, pos, c)
	if len(t.top) > t.k {
		t.top = t.top[1:]
	}

	if !t.hasBest || c.ret.GreaterThan(t.best.ret) || (c.ret.Equal(t.best.ret) && c.idx < t.best.idx) {
		t.best = c
		t.hasBest = true
		return true
	}
	return false
}

func (t *tracker) snapshot() (candidate, []domain.RankedWindow) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ranked := make([]domain.RankedWindow, len(t.top))
	for i, c := range t.top {
		ranked[i] = domain.RankedWindow{Return: c.ret, Window: c.window}
	}
	return t.best, ranked
}
