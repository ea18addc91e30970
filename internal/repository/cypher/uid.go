package cypher

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Identities are int64 values laid out as
//
//	| 41 bits ms since uidEpoch | 10 bits node | 12 bits sequence |
//
// so they sort in creation order, fit every store's integer column and map
// onto integer and string identity fields alike.
const (
	uidEpoch    = 1704067200000 // 2024-01-01T00:00:00Z
	uidNodeBits = 10
	uidSeqBits  = 12
	uidSeqMask  = 1<<uidSeqBits - 1
)

// uidSource issues strictly increasing identities. The node bits are drawn
// once per source so processes sharing a store rarely collide.
type uidSource struct {
	mu   sync.Mutex
	now  func() time.Time
	node int64
	last int64 // ms of the last identity
	seq  int64
}

func newUIDSource(now func() time.Time) *uidSource {
	if now == nil {
		now = time.Now
	}
	return &uidSource{now: now, node: rand.Int64N(1 << uidNodeBits)}
}

func (s *uidSource) next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now().UnixMilli() - uidEpoch
	if ms < s.last {
		ms = s.last // clock stepped back
	}
	if ms == s.last {
		s.seq = (s.seq + 1) & uidSeqMask
		if s.seq == 0 {
			ms++ // sequence exhausted; borrow the next millisecond
		}
	} else {
		s.seq = 0
	}
	s.last = ms
	return ms<<(uidNodeBits+uidSeqBits) | s.node<<uidSeqBits | s.seq
}

var defaultUIDs = newUIDSource(nil)

// newUID returns a time-ordered identity so ordering by KeyUID follows
// insertion order.
func newUID() int64 { return defaultUIDs.next() }
