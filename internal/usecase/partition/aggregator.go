package partition

import (
	"strconv"
	"sync"

	"github.com/yycdata/mlxsweep/internal/domain"
)

// Aggregator deduplicates records across every sub-query of a window by the
// source identity field. Merge is idempotent and safe for concurrent callers.
//
// Records without an identity cannot be deduplicated and are kept
// unconditionally under a synthetic key rather than dropped; Anonymous
// reports how many, so the condition is visible to operators.
type Aggregator struct {
	mu    sync.Mutex
	index map[string]int
	recs  []domain.Record
	anon  int
	dups  int
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{index: make(map[string]int)}
}

// Merge folds records in, skipping identities already present.
// Returns the number of records that were new.
func (a *Aggregator) Merge(recs []domain.Record) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	added := 0
	for _, r := range recs {
		key := r.ID()
		if key == "" {
			a.anon++
			key = "anon:" + strconv.Itoa(a.anon)
		} else if _, ok := a.index[key]; ok {
			a.dups++
			continue
		}
		a.index[key] = len(a.recs)
		a.recs = append(a.recs, r)
		added++
	}
	return added
}

// Size returns the current unique record count.
func (a *Aggregator) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.recs)
}

// Records returns the unique records in first-seen order.
func (a *Aggregator) Records() []domain.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Record, len(a.recs))
	copy(out, a.recs)
	return out
}

// Anonymous returns how many records arrived without an identity field.
func (a *Aggregator) Anonymous() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.anon
}

// Duplicates returns how many merges were rejected by dedup.
func (a *Aggregator) Duplicates() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dups
}
