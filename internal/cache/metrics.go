package cache

import (
	"sync/atomic"
	"time"
)

type Tier int

const (
	TierL1 Tier = iota + 1
	TierL2
)

// CacheMetrics counts lookups per tier. Errors are backend failures and are
// counted apart from misses.
type CacheMetrics struct {
	l1Hits        atomic.Int64
	l2Hits        atomic.Int64
	misses        atomic.Int64
	errors        atomic.Int64
	invalidations atomic.Int64
	since         atomic.Int64
}

type MetricsSnapshot struct {
	L1Hits        int64     `json:"l1_hits"`
	L2Hits        int64     `json:"l2_hits"`
	Misses        int64     `json:"misses"`
	Errors        int64     `json:"errors"`
	Invalidations int64     `json:"invalidations"`
	Since         time.Time `json:"since"`
}

func (s MetricsSnapshot) Hits() int64 {
	return s.L1Hits + s.L2Hits
}

// HitRate is the percentage of lookups answered by either tier.
func (s MetricsSnapshot) HitRate() float64 {
	total := s.Hits() + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits()) / float64(total) * 100
}

func NewCacheMetrics() *CacheMetrics {
	m := &CacheMetrics{}
	m.since.Store(time.Now().Unix())
	return m
}

func (m *CacheMetrics) RecordHit(tier Tier) {
	if tier == TierL2 {
		m.l2Hits.Add(1)
		return
	}
	m.l1Hits.Add(1)
}

func (m *CacheMetrics) RecordMiss() { m.misses.Add(1) }
func (m *CacheMetrics) RecordError() { m.errors.Add(1) }
func (m *CacheMetrics) RecordInvalidation() { m.invalidations.Add(1) }

func (m *CacheMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		L1Hits:        m.l1Hits.Load(),
		L2Hits:        m.l2Hits.Load(),
		Misses:        m.misses.Load(),
		Errors:        m.errors.Load(),
		Invalidations: m.invalidations.Load(),
		Since:         time.Unix(m.since.Load(), 0),
	}
}

func (m *CacheMetrics) Reset() {
	m.l1Hits.Store(0)
	m.l2Hits.Store(0)
	m.misses.Store(0)
	m.errors.Store(0)
	m.invalidations.Store(0)
	m.since.Store(time.Now().Unix())
}
