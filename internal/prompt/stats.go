package prompt

import (
	"fmt"
	"maps"
	"sync"
	"time"
)

// DefaultRecentRecords is how many full records Stats keeps for inspection.
const DefaultRecentRecords = 256

// Stats accumulates model invocations as running totals per answering model
// plus a bounded window of the most recent records, so a long-running server
// keeps constant memory. It is safe for concurrent use.
type Stats struct {
	mu          sync.Mutex
	limit       int
	recent      []Record // ring buffer once full
	next        int
	perModel    map[string]ModelUsage
	requestTime time.Duration
	cacheHits   int
}

// ModelUsage is the running total for one model.
type ModelUsage struct {
	Requests         int   `json:"requests"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// NewStats returns an empty accumulator keeping DefaultRecentRecords records.
func NewStats() *Stats {
	return NewStatsWithLimit(DefaultRecentRecords)
}

// NewStatsWithLimit keeps at most limit recent records. limit <= 0 uses
// DefaultRecentRecords.
func NewStatsWithLimit(limit int) *Stats {
	if limit <= 0 {
		limit = DefaultRecentRecords
	}
	return &Stats{limit: limit, perModel: make(map[string]ModelUsage)}
}

// Add records one backend invocation under the model that answered it.
func (s *Stats) Add(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	model := rec.AnsweredBy
	if model == "" {
		model = rec.Model
	}
	u := s.perModel[model]
	u.Requests++
	u.PromptTokens += rec.PromptTokens
	u.CompletionTokens += rec.CompletionTokens
	s.perModel[model] = u
	s.requestTime += rec.RequestTime

	if len(s.recent) < s.limit {
		s.recent = append(s.recent, rec)
		return
	}
	s.recent[s.next] = rec
	s.next = (s.next + 1) % s.limit
}

// AddCacheHit counts a prompt answered from the cache.
func (s *Stats) AddCacheHit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheHits++
}

// Records returns a copy of the retained records, oldest first.
func (s *Stats) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.recent))
	out = append(out, s.recent[s.next:]...)
	return append(out, s.recent[:s.next]...)
}

// Snapshot is a point-in-time summary of Stats.
type Snapshot struct {
	Requests         int                   `json:"requests"`
	CacheHits        int                   `json:"cache_hits"`
	PromptTokens     int64                 `json:"prompt_tokens"`
	CompletionTokens int64                 `json:"completion_tokens"`
	RequestTime      time.Duration         `json:"request_time"`
	PerModel         map[string]ModelUsage `json:"per_model"`
}

// TotalTokens returns prompt plus completion tokens.
func (s Snapshot) TotalTokens() int64 {
	return s.PromptTokens + s.CompletionTokens
}

// Snapshot returns the totals.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		CacheHits:   s.cacheHits,
		RequestTime: s.requestTime,
		PerModel:    maps.Clone(s.perModel),
	}
	for _, u := range s.perModel {
		snap.Requests += u.Requests
		snap.PromptTokens += u.PromptTokens
		snap.CompletionTokens += u.CompletionTokens
	}
	return snap
}

// Summary renders the snapshot for logs and CLI output.
func (s *Stats) Summary() string {
	snap := s.Snapshot()
	return fmt.Sprintf("%d queries to LLMs (%d tokens) in %.2f seconds total query time.",
		snap.Requests, snap.TotalTokens(), snap.RequestTime.Seconds())
}
