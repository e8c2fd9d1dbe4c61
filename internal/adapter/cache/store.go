package cache

import (
	"fmt"
	"time"

	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
	"github.com/couchcryptid/xanthos-vis-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DatasetStore keeps decoded uploads under opaque ids so that later
// dashboard interactions do not re-parse the file.
type DatasetStore struct {
	lru     *LRU[string, *domain.Dataset]
	metrics *observability.Metrics
}

// NewDatasetStore creates a store holding at most size datasets for ttl.
func NewDatasetStore(size int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *DatasetStore {
	return &DatasetStore{
		lru:     NewLRU[string, *domain.Dataset](size, ttl, clock),
		metrics: metrics,
	}
}

// Put stores a dataset and returns its new id.
func (s *DatasetStore) Put(ds *domain.Dataset) string {
	id := uuid.NewString()
	s.lru.Put(id, ds)
	s.metrics.DatasetsCached.Set(float64(s.lru.Len()))
	return id
}

// Get returns the dataset stored under id. Unknown, evicted and expired ids
// wrap domain.ErrDatasetNotFound.
func (s *DatasetStore) Get(id string) (*domain.Dataset, error) {
	if _, err := uuid.Parse(id); err != nil {
		s.metrics.DatasetCache.WithLabelValues(Miss.String()).Inc()
		return nil, fmt.Errorf("dataset %q: %w", id, domain.ErrDatasetNotFound)
	}
	ds, res := s.lru.Lookup(id)
	s.metrics.DatasetCache.WithLabelValues(res.String()).Inc()
	if res != Hit {
		if res == Expired {
			s.metrics.DatasetsCached.Set(float64(s.lru.Len()))
		}
		return nil, fmt.Errorf("dataset %q: %w", id, domain.ErrDatasetNotFound)
	}
	return ds, nil
}

// Delete drops a dataset. It reports whether the id was present.
func (s *DatasetStore) Delete(id string) bool {
	ok := s.lru.Remove(id)
	s.metrics.DatasetsCached.Set(float64(s.lru.Len()))
	return ok
}
