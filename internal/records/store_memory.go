package records

import (
	"context"
	"sort"
	"sync"

	"medvault/internal/policy"
	"medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
)

// In-memory stores keep development and unit tests free of infrastructure.
// They intentionally favor clarity over performance.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.RecordID]domain.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.RecordID]domain.Record)}
}

func (s *InMemoryStore) Create(_ context.Context, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; ok {
		return sentinel.ErrConflict
	}
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.RecordID) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[id]; ok {
		return record.Clone(), nil
	}
	return domain.Record{}, sentinel.ErrNotFound
}

// UpdateIfStatus is the compare-and-set: the write happens only while the
// stored status still equals expected, under the store lock.
func (s *InMemoryStore) UpdateIfStatus(_ context.Context, updated domain.Record, expected domain.RecordStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[updated.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != expected {
		return sentinel.ErrConflict
	}
	s.records[updated.ID] = updated.Clone()
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter ListFilter) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Record
	for _, record := range s.records {
		if matchesFilter(record, filter) {
			out = append(out, record.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func matchesFilter(record domain.Record, filter ListFilter) bool {
	switch filter.Scope {
	case policy.ScopeAll:
		return true
	case policy.ScopeSubject:
		// Subjects only ever see their verified records.
		return record.SubjectID == filter.ActorID && record.Status == domain.RecordStatusVerified
	case policy.ScopeClinician:
		return record.ClinicianID == filter.ActorID
	case policy.ScopeEnteredBy:
		return record.EnteredBy == filter.ActorID
	default:
		return false
	}
}

type InMemoryCorrectionStore struct {
	mu       sync.RWMutex
	requests map[domain.CorrectionRequestID]domain.CorrectionRequest
}

func NewInMemoryCorrectionStore() *InMemoryCorrectionStore {
	return &InMemoryCorrectionStore{requests: make(map[domain.CorrectionRequestID]domain.CorrectionRequest)}
}

func (s *InMemoryCorrectionStore) Create(_ context.Context, request domain.CorrectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[request.ID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[request.ID] = request.Clone()
	return nil
}

func (s *InMemoryCorrectionStore) Get(_ context.Context, id domain.CorrectionRequestID) (domain.CorrectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if request, ok := s.requests[id]; ok {
		return request.Clone(), nil
	}
	return domain.CorrectionRequest{}, sentinel.ErrNotFound
}

func (s *InMemoryCorrectionStore) Update(_ context.Context, request domain.CorrectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[request.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.requests[request.ID] = request.Clone()
	return nil
}

func (s *InMemoryCorrectionStore) ListByRecord(_ context.Context, recordID domain.RecordID) ([]domain.CorrectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CorrectionRequest
	for _, request := range s.requests {
		if request.RecordID == recordID {
			out = append(out, request.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryCorrectionStore) CountPending(_ context.Context, recordID domain.RecordID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, request := range s.requests {
		if request.RecordID == recordID && request.Status == domain.CorrectionPending {
			count++
		}
	}
	return count, nil
}

// InMemoryTx serializes multi-store transitions with a coarse lock. It has
// no rollback, so transaction bodies must put the record compare-and-set
// before any other write: a body that loses the CAS returns without having
// mutated anything.
type InMemoryTx struct {
	mu sync.Mutex
}

func NewInMemoryTx() *InMemoryTx { return &InMemoryTx{} }

func (t *InMemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
