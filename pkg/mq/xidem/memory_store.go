package xidem

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore 进程内 RecordStore，用于测试与单机运行。
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*MessageRecord
}

// NewMemoryStore 创建空的内存台账。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*MessageRecord)}
}

func (s *MemoryStore) FindByMessageID(_ context.Context, id string) (*MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Insert(_ context.Context, rec *MessageRecord) (*MessageRecord, bool, error) {
	if rec == nil || rec.MessageID == "" {
		return nil, false, ErrEmptyMessageID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.MessageID]; ok {
		return existing.Clone(), false, nil
	}
	stored := rec.Clone()
	stored.Version = 1
	s.records[rec.MessageID] = stored
	return stored.Clone(), true, nil
}

func (s *MemoryStore) Save(_ context.Context, rec *MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[rec.MessageID]
	if !ok {
		return ErrRecordNotFound
	}
	if cur.Version != rec.Version {
		return ErrVersionConflict
	}
	rec.Version++
	s.records[rec.MessageID] = rec.Clone()
	return nil
}

func (s *MemoryStore) ExistsByBusinessKeyAndType(_ context.Context, businessKey, messageType string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.BusinessKey == businessKey && r.MessageType == messageType && r.Status == StatusSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) FindRetryable(_ context.Context, statuses []Status, maxRetry int, now time.Time, limit int) ([]*MessageRecord, error) {
	return s.find(limit, func(r *MessageRecord) bool {
		return r.Status.In(statuses...) && r.RetryCount < maxRetry && r.RetryDue(now)
	}), nil
}

func (s *MemoryStore) FindTimedOut(_ context.Context, statuses []Status, threshold time.Time, limit int) ([]*MessageRecord, error) {
	return s.find(limit, func(r *MessageRecord) bool {
		return r.Status.In(statuses...) && r.UpdatedTime.Before(threshold)
	}), nil
}

// find 按 UpdatedTime 升序返回匹配的记录副本，limit <= 0 不限。
func (s *MemoryStore) find(limit int, match func(*MessageRecord) bool) []*MessageRecord {
	s.mu.RLock()
	var out []*MessageRecord
	for _, r := range s.records {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *MessageRecord) int {
		if c := a.UpdatedTime.Compare(b.UpdatedTime); c != 0 {
			return c
		}
		return cmp.Compare(a.MessageID, b.MessageID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, t time.Time, statuses []Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.records {
		if r.Status.In(statuses...) && r.UpdatedTime.Before(t) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ArchiveOlderThan(_ context.Context, t time.Time, statuses []Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.records {
		if r.Status.In(statuses...) && r.UpdatedTime.Before(t) {
			r.Status = StatusArchived
			r.Version++
			n++
		}
	}
	return n, nil
}

// Len 记录数。
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ RecordStore = (*MemoryStore)(nil)
