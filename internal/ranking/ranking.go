// Package ranking filters and orders deal listings in memory.
//
// Every function here is pure: inputs are never mutated and malformed fields
// (unparsable discounts, missing dates or coordinates) degrade to the end of the
// ordering instead of failing.
package ranking

import (
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pauljones0/wanderdeals/internal/models"
	"github.com/pauljones0/wanderdeals/internal/util"
)

type SortKey string

const (
	SortTrending SortKey = "trending"
	SortDiscount SortKey = "discount"
	SortNewest   SortKey = "newest"
	SortExpiring SortKey = "expiring"
	SortDistance SortKey = "distance"
)

// CategoryAll matches every category.
const CategoryAll = "all"

type Options struct {
	SearchTerm   string
	Category     string
	SortKey      SortKey
	UserLocation *models.GeoPoint
}

// ParseSortKey maps a query value to a SortKey. Unknown values yield "" (no reordering).
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortTrending, SortDiscount, SortNewest, SortExpiring, SortDistance:
		return k
	}
	return ""
}

// FilterAndSort returns the deals matching opts, ordered by opts.SortKey.
// The returned slice is newly allocated; rows is left untouched.
func FilterAndSort(rows []models.Deal, opts Options) []models.Deal {
	term := strings.ToLower(opts.SearchTerm)
	out := make([]models.Deal, 0, len(rows))
	for _, d := range rows {
		if !matchesSearch(d, term) || !matchesCategory(d, opts.Category) {
			continue
		}
		out = append(out, d)
	}

	if opts.UserLocation != nil {
		for i := range out {
			if p := out[i].Location.Point; p != nil {
				km := Haversine(*opts.UserLocation, *p)
				out[i].Distance = &km
			}
		}
	}

	sortDeals(out, opts.SortKey)
	return out
}

func matchesSearch(d models.Deal, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(d.Title), term) ||
		strings.Contains(strings.ToLower(d.BusinessName), term) ||
		strings.Contains(strings.ToLower(d.Description), term)
}

func matchesCategory(d models.Deal, category string) bool {
	if category == "" || category == CategoryAll {
		return true
	}
	return d.Category == category
}

// sortKeyValue is a row's sort value; rows without one always sort last.
type sortKeyValue struct {
	ok  bool
	val float64
}

func sortDeals(deals []models.Deal, key SortKey) {
	var extract func(models.Deal) sortKeyValue
	descending := false

	switch key {
	case SortTrending:
		descending = true
		extract = func(d models.Deal) sortKeyValue {
			return sortKeyValue{ok: true, val: float64(d.TrendingScore())}
		}
	case SortDiscount:
		descending = true
		extract = func(d models.Deal) sortKeyValue {
			pct, ok := util.ParseLeadingNumber(d.Discount)
			return sortKeyValue{ok: ok, val: pct}
		}
	case SortNewest:
		descending = true
		extract = func(d models.Deal) sortKeyValue {
			ts, ok := CreationTime(d)
			return sortKeyValue{ok: ok, val: float64(ts)}
		}
	case SortExpiring:
		extract = func(d models.Deal) sortKeyValue {
			if d.ValidUntil == nil {
				return sortKeyValue{}
			}
			return sortKeyValue{ok: true, val: float64(d.ValidUntil.UnixMilli())}
		}
	case SortDistance:
		extract = func(d models.Deal) sortKeyValue {
			if d.Distance == nil {
				return sortKeyValue{}
			}
			return sortKeyValue{ok: true, val: *d.Distance}
		}
	default:
		return
	}

	keys := make([]sortKeyValue, len(deals))
	for i, d := range deals {
		keys[i] = extract(d)
	}

	sort.Stable(&keyedDeals{deals: deals, keys: keys, descending: descending})
}

// keyedDeals sorts deals and their precomputed keys together.
type keyedDeals struct {
	deals      []models.Deal
	keys       []sortKeyValue
	descending bool
}

func (k *keyedDeals) Len() int { return len(k.deals) }

func (k *keyedDeals) Swap(i, j int) {
	k.deals[i], k.deals[j] = k.deals[j], k.deals[i]
	k.keys[i], k.keys[j] = k.keys[j], k.keys[i]
}

func (k *keyedDeals) Less(i, j int) bool {
	a, b := k.keys[i], k.keys[j]
	if a.ok != b.ok {
		return a.ok
	}
	if !a.ok {
		return false
	}
	if k.descending {
		return a.val > b.val
	}
	return a.val < b.val
}

// CreationTime returns the deal's creation time in unix milliseconds.
//
// When CreatedAt is unset and the id is a MongoDB ObjectID, the second embedded
// in the id is used instead. This mirrors legacy records imported without a
// creation timestamp; it is a fallback, not a guarantee of creation order.
func CreationTime(d models.Deal) (int64, bool) {
	if !d.CreatedAt.IsZero() {
		return d.CreatedAt.UnixMilli(), true
	}
	oid, err := primitive.ObjectIDFromHex(d.ID)
	if err != nil {
		return 0, false
	}
	return oid.Timestamp().UnixMilli(), true
}
