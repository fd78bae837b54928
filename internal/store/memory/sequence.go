package memory

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/relaymsg/messenger-store/internal/store"
)

// NextSequence increments the named counter and returns the new value.
// Counters are created implicitly on first use. The increment is a single
// atomic add per name; the map lock only guards counter creation, so
// concurrent callers on existing sequences never serialize on a global lock.
func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: sequence name required", store.ErrInvalidArgument)
	}

	s.seqMu.RLock()
	counter, ok := s.sequences[name]
	s.seqMu.RUnlock()

	if !ok {
		s.seqMu.Lock()
		counter, ok = s.sequences[name]
		if !ok {
			counter = &atomic.Int64{}
			s.sequences[name] = counter
		}
		s.seqMu.Unlock()
	}

	return counter.Add(1), nil
}
