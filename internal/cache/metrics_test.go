package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheMetrics_HitRate(t *testing.T) {
	m := NewCacheMetrics()
	assert.Zero(t, m.Snapshot().HitRate())

	m.RecordHit(TierL1)
	m.RecordHit(TierL2)
	m.RecordHit(TierL2)
	m.RecordMiss()
	m.RecordError()

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.Hits())
	assert.Equal(t, 75.0, s.HitRate())
	assert.Equal(t, int64(1), s.Errors)

	m.Reset()
	assert.Zero(t, m.Snapshot().Hits())
}
