package storage

import (
	"context"
	"sync"
	"time"

	"resume-screener/internal/types"
)

// MemoryCandidateRepository 进程内候选人存储，未配置 MySQL 时使用
type MemoryCandidateRepository struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]*types.Candidate
	now    func() time.Time
}

// NewMemoryCandidateRepository 创建内存候选人存储
func NewMemoryCandidateRepository() *MemoryCandidateRepository {
	return &MemoryCandidateRepository{items: make(map[int64]*types.Candidate), now: time.Now}
}

func (m *MemoryCandidateRepository) Create(_ context.Context, c *types.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	m.items[c.ID] = cloneCandidate(c)
	return nil
}

func (m *MemoryCandidateRepository) List(_ context.Context) ([]*types.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Candidate, 0, len(m.items))
	for id := int64(1); id <= m.nextID; id++ {
		if c, ok := m.items[id]; ok {
			out = append(out, cloneCandidate(c))
		}
	}
	return out, nil
}

func (m *MemoryCandidateRepository) Get(_ context.Context, id int64) (*types.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCandidate(c), nil
}

func (m *MemoryCandidateRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryCandidateRepository) Clear(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.items))
	m.items = make(map[int64]*types.Candidate)
	return n, nil
}

func cloneCandidate(c *types.Candidate) *types.Candidate {
	cp := *c
	if c.Explanation != nil {
		exp := *c.Explanation
		exp.Strengths = append([]string(nil), c.Explanation.Strengths...)
		exp.Weaknesses = append([]string(nil), c.Explanation.Weaknesses...)
		cp.Explanation = &exp
	}
	return &cp
}

// MemoryFailureRepository 进程内失败行存储
type MemoryFailureRepository struct {
	mu     sync.RWMutex
	nextID int64
	items  []*types.FailedCandidate
}

func NewMemoryFailureRepository() *MemoryFailureRepository {
	return &MemoryFailureRepository{}
}

func (m *MemoryFailureRepository) Add(_ context.Context, f *types.FailedCandidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	f.ID = m.nextID
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	cp := *f
	m.items = append(m.items, &cp)
	return nil
}

func (m *MemoryFailureRepository) List(_ context.Context) ([]*types.FailedCandidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.FailedCandidate, len(m.items))
	for i, f := range m.items {
		cp := *f
		out[i] = &cp
	}
	return out, nil
}

func (m *MemoryFailureRepository) Clear(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.items))
	m.items = nil
	return n, nil
}

// MemoryJobStore 进程内JD存储，未配置 Redis 时使用
type MemoryJobStore struct {
	mu  sync.RWMutex
	job *types.JobPosting
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{}
}

func (m *MemoryJobStore) SetJob(_ context.Context, job *types.JobPosting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.job = &cp
	return nil
}

func (m *MemoryJobStore) GetJob(_ context.Context) (*types.JobPosting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.job == nil {
		return nil, ErrNotFound
	}
	cp := *m.job
	return &cp, nil
}

// MemoryDeduplicator 进程内MD5集合
type MemoryDeduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDeduplicator() *MemoryDeduplicator {
	return &MemoryDeduplicator{seen: make(map[string]struct{})}
}

func (m *MemoryDeduplicator) CheckAndAdd(_ context.Context, md5Hex string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[md5Hex]; ok {
		return true, nil
	}
	m.seen[md5Hex] = struct{}{}
	return false, nil
}

func (m *MemoryDeduplicator) Remove(_ context.Context, md5Hex string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, md5Hex)
	return nil
}

func (m *MemoryDeduplicator) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = make(map[string]struct{})
	return nil
}

var (
	_ CandidateRepository = (*MemoryCandidateRepository)(nil)
	_ FailureRepository   = (*MemoryFailureRepository)(nil)
	_ JobStore            = (*MemoryJobStore)(nil)
	_ Deduplicator        = (*MemoryDeduplicator)(nil)
)
