package search

import (
	"sort"
	"strings"
	"sync"
)

// Memory is the fallback searcher: a case-insensitive substring match
// over the latest record snapshot. Always available.
type Memory struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemory() *Memory {
	return &Memory{}
}

// Update replaces the record snapshot.
func (m *Memory) Update(records []Record) {
	m.mu.Lock()
	m.records = records
	m.mu.Unlock()
}

// Healthy always reports true; the in-memory snapshot cannot fail.
func (m *Memory) Healthy() bool { return true }

// Search scans the snapshot for substring matches, title matches
// ranked before body matches.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return []Result{}, 0, nil
	}

	m.mu.RLock()
	records := m.records
	m.mu.RUnlock()

	type scored struct {
		result Result
		rank   int
	}
	var hits []scored
	for _, r := range records {
		if q.FilterType != "" && q.FilterType != r.Type {
			continue
		}
		rank := -1
		switch {
		case strings.Contains(strings.ToLower(r.Title), needle):
			rank = 0
		case strings.Contains(strings.ToLower(r.Text), needle):
			rank = 1
		case strings.Contains(strings.ToLower(r.Category), needle):
			rank = 2
		}
		if rank < 0 {
			continue
		}
		hits = append(hits, scored{rank: rank, result: Result{
			Type:     r.Type,
			ID:       r.ID,
			Title:    r.Title,
			Snippet:  snippet(r.Text),
			Category: r.Category,
		}})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].rank < hits[j].rank })

	total := len(hits)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = h.result
	}
	return results, total, nil
}

func snippet(text string) string {
	const max = 160
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
