package search

import (
	"log"
	"sync"
)

// Service is the facade that tries Meilisearch first and falls back to
// the in-memory snapshot. meili may be nil when not configured.
type Service struct {
	meili  *Meili
	memory *Memory

	mu      sync.Mutex
	lastIDs map[string]bool
}

func NewService(meili *Meili, memory *Memory) *Service {
	return &Service{meili: meili, memory: memory, lastIDs: map[string]bool{}}
}

// Update reindexes after a document replacement, local or external.
// Meilisearch indexing is fire-and-forget; the in-memory snapshot is
// updated synchronously so fallback search never lags.
func (s *Service) Update(records []Record) {
	s.memory.Update(records)

	s.mu.Lock()
	ids := make(map[string]bool, len(records))
	for _, r := range records {
		ids[r.ID] = true
	}
	var removed []string
	for id := range s.lastIDs {
		if !ids[id] {
			removed = append(removed, id)
		}
	}
	s.lastIDs = ids
	s.mu.Unlock()

	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.Reindex(records, removed); err != nil {
			log.Printf("search: reindex: %v", err)
		}
	}()
}

// Search tries Meilisearch if healthy, otherwise the in-memory
// snapshot.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to snapshot: %v", err)
	}

	results, total, err := s.memory.Search(q)
	if err != nil {
		log.Printf("search: snapshot error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
