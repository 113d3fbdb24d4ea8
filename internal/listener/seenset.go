package listener

import "sync"

const defaultSeenCapacity = 4096

// seenSet is a bounded set of notification ids. When full, the oldest
// claimed id is evicted first, keeping memory flat over long runs while
// still covering everything the source's pending list can realistically
// hold. Claim-or-skip is a single atomic step so the poll cycle and the
// push-event path can never both win the same id.
type seenSet struct {
	mu       sync.Mutex
	capacity int
	ids      map[string]struct{}
	order    []string
	next     int
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = defaultSeenCapacity
	}
	return &seenSet{
		capacity: capacity,
		ids:      make(map[string]struct{}, capacity),
	}
}

// claim reports whether id was new, marking it seen when it was.
func (s *seenSet) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	if len(s.order) < s.capacity {
		s.order = append(s.order, id)
	} else {
		delete(s.ids, s.order[s.next])
		s.order[s.next] = id
	}
	s.ids[id] = struct{}{}
	s.next = (s.next + 1) % s.capacity
	return true
}

func (s *seenSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
