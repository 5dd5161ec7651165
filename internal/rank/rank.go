package rank

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// DefaultPageSize is the page size used by the playlist and similar-artist views.
const DefaultPageSize = 24

// Item is anything the ranker can sort and filter.
// A false second return means the value is unknown.
type Item interface {
	FollowerCount() (int, bool)
	PopularityScore() (int, bool)
}

// Bounds holds optional inclusive filter limits. Nil means unbounded.
type Bounds struct {
	MinFollowers  *int `json:"min_followers,omitempty"`
	MaxFollowers  *int `json:"max_followers,omitempty"`
	MinPopularity *int `json:"min_popularity,omitempty"`
	MaxPopularity *int `json:"max_popularity,omitempty"`
}

func (b Bounds) hasFollowerBound() bool   { return b.MinFollowers != nil || b.MaxFollowers != nil }
func (b Bounds) hasPopularityBound() bool { return b.MinPopularity != nil || b.MaxPopularity != nil }

// Page is one slice of a ranked result set.
type Page[T Item] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
}

// ParseFollowers turns the follower strings shown by playlist services
// ("1,600", "5.2k", "2m", "N/A") into a count.
func ParseFollowers(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
	if s == "" || s == "n/a" {
		return 0, false
	}

	mult := 0.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult = 1_000
	case strings.HasSuffix(s, "m"):
		mult = 1_000_000
	}
	if mult > 0 {
		f, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-1]), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int(f * mult), true
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Keep reports whether item satisfies every bound that is set.
func Keep(item Item, b Bounds) bool {
	if b.hasFollowerBound() {
		n, ok := item.FollowerCount()
		if !ok || !within(n, b.MinFollowers, b.MaxFollowers) {
			return false
		}
	}
	if b.hasPopularityBound() {
		p, ok := item.PopularityScore()
		if !ok || !within(p, b.MinPopularity, b.MaxPopularity) {
			return false
		}
	}
	return true
}

func within(v int, lo, hi *int) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

// SortByFollowers sorts items in place, most followed first.
// Unknown counts sort as zero; ties keep their input order.
func SortByFollowers[T Item](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		return followersOrZero(items[i]) > followersOrZero(items[j])
	})
}

func followersOrZero(it Item) int {
	n, ok := it.FollowerCount()
	if !ok {
		return 0
	}
	return n
}

// Rank filters, sorts and paginates items. The input slice is not modified.
func Rank[T Item](items []T, b Bounds, page, pageSize int) Page[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}

	kept := make([]T, 0, len(items))
	for _, it := range items {
		if Keep(it, b) {
			kept = append(kept, it)
		}
	}
	SortByFollowers(kept)

	total := len(kept)
	out := Page[T]{
		Items:      []T{},
		TotalCount: total,
		TotalPages: TotalPages(total, pageSize),
		Page:       page,
		PageSize:   pageSize,
	}

	start := (page - 1) * pageSize
	if start >= total {
		return out
	}
	end := min(start+pageSize, total)
	out.Items = kept[start:end]
	return out
}

// TotalPages is ceil(total/pageSize).
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
