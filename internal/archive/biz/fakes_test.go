package biz

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
)

type memFiles struct {
	mu    sync.Mutex
	files map[string]*File
}

func newMemFiles(files ...*File) *memFiles {
	m := &memFiles{files: map[string]*File{}}
	for _, f := range files {
		m.files[f.ID] = f
	}
	return m
}

func (m *memFiles) Create(_ context.Context, f *File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = f
	return nil
}

func (m *memFiles) GetByID(_ context.Context, id string) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, ErrFileNotFound
}

func (m *memFiles) GetByStorageKey(_ context.Context, key string) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files {
		if f.StorageKey == key {
			cp := *f
			return &cp, nil
		}
	}
	return nil, ErrFileNotFound
}

type memRetrievals struct {
	mu          sync.Mutex
	rows        map[string]*Retrieval
	transitions int
	failNext    error
}

func newMemRetrievals(rows ...*Retrieval) *memRetrievals {
	m := &memRetrievals{rows: map[string]*Retrieval{}}
	for _, r := range rows {
		m.rows[r.ID] = r
	}
	return m
}

func (m *memRetrievals) get(id string) *Retrieval {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.rows[id]
	return &cp
}

func (m *memRetrievals) Create(_ context.Context, r *Retrieval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.FileID == r.FileID && row.Status.IsActive() {
			return ErrRetrievalAlreadyActive
		}
	}
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

func (m *memRetrievals) GetByID(_ context.Context, id string) (*Retrieval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, ErrRetrievalNotFound
}

func (m *memRetrievals) FindActiveForFile(ctx context.Context, fileID string) (*Retrieval, error) {
	return m.FindLatestForFile(ctx, fileID, types.ActiveRetrievalStatuses...)
}

func (m *memRetrievals) FindLatestForFile(_ context.Context, fileID string, statuses ...types.RetrievalStatus) (*Retrieval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Retrieval
	for _, r := range m.rows {
		if r.FileID != fileID || !slices.Contains(statuses, r.Status) {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrRetrievalNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memRetrievals) Transition(_ context.Context, id string, from []types.RetrievalStatus, to types.RetrievalStatus, upd RetrievalUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return false, err
	}
	r, ok := m.rows[id]
	if !ok || !slices.Contains(from, r.Status) {
		return false, nil
	}
	m.transitions++
	r.Status = to
	if upd.InitiatedAt != nil {
		r.InitiatedAt = upd.InitiatedAt
	}
	if upd.ReadyAt != nil {
		r.ReadyAt = upd.ReadyAt
	}
	if upd.ExpiresAt != nil {
		r.ExpiresAt = upd.ExpiresAt
	}
	if upd.FailedAt != nil {
		r.FailedAt = upd.FailedAt
	}
	if upd.ErrorMessage != "" {
		r.ErrorMessage = upd.ErrorMessage
	}
	return true, nil
}

func (m *memRetrievals) ListByFile(_ context.Context, fileID string, _, _ int) ([]*Retrieval, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Retrieval
	for _, r := range m.rows {
		if r.FileID == fileID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (m *memRetrievals) ListByStatus(_ context.Context, status types.RetrievalStatus, before time.Time, limit int) ([]*Retrieval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Retrieval
	for _, r := range m.rows {
		if r.Status == status && r.UpdatedAt.Before(before) && len(out) < limit {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRetrievals) ListExpiredReady(_ context.Context, now time.Time, limit int) ([]*Retrieval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Retrieval
	for _, r := range m.rows {
		if r.Status == types.RetrievalStatusReady && r.ExpiresAt != nil && !r.ExpiresAt.After(now) && len(out) < limit {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeStore struct {
	restoreErr  error
	restored    []string
	status      *RestoreStatus
	presignedAt time.Duration
}

func (s *fakeStore) RequestRestore(_ context.Context, key string, _ types.RestoreTier, _ int) error {
	if s.restoreErr != nil {
		return s.restoreErr
	}
	s.restored = append(s.restored, key)
	return nil
}

func (s *fakeStore) RestoreStatus(context.Context, string) (*RestoreStatus, error) {
	if s.status == nil {
		return &RestoreStatus{}, nil
	}
	return s.status, nil
}

func (s *fakeStore) PresignDownload(_ context.Context, key string, expiry time.Duration) (string, error) {
	s.presignedAt = expiry
	return "https://archive.example.com/" + key + "?sig=1", nil
}
