package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gar-rock/resume-crunch/internal/models"
)

type memoryResumeRepository struct {
	mu      sync.RWMutex
	records map[string]*models.ResumeRecord
}

// NewMemoryResumeRepository returns a process-local store. Records handed out
// are copies; writers hold the lock only while mutate runs.
func NewMemoryResumeRepository() ResumeRepository {
	return &memoryResumeRepository{records: make(map[string]*models.ResumeRecord)}
}

func (m *memoryResumeRepository) Create(_ context.Context, record *models.ResumeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.records[record.Filename]; ok && existing.ProcessingStatus == models.StatusProcessing {
		return fmt.Errorf("%s: %w", record.Filename, ErrResumeProcessing)
	}

	m.records[record.Filename] = record.Clone()
	return nil
}

func (m *memoryResumeRepository) FindByFilename(_ context.Context, filename string) (*models.ResumeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[filename]
	if !ok {
		return nil, fmt.Errorf("%s: %w", filename, ErrResumeNotFound)
	}
	return rec.Clone(), nil
}

func (m *memoryResumeRepository) FindAll(_ context.Context) ([]models.ResumeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ResumeRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

func (m *memoryResumeRepository) FindByStatus(_ context.Context, status models.ProcessingStatus, limit int) ([]models.ResumeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.ResumeRecord
	for _, rec := range m.records {
		if rec.ProcessingStatus == status {
			out = append(out, *rec.Clone())
		}
	}
	sortByUploadTime(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryResumeRepository) Update(_ context.Context, filename string, mutate func(*models.ResumeRecord) error) (*models.ResumeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[filename]
	if !ok {
		return nil, fmt.Errorf("%s: %w", filename, ErrResumeNotFound)
	}

	next := rec.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	m.records[filename] = next
	return next.Clone(), nil
}

func (m *memoryResumeRepository) Delete(_ context.Context, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[filename]
	if !ok {
		return fmt.Errorf("%s: %w", filename, ErrResumeNotFound)
	}
	if rec.ProcessingStatus == models.StatusProcessing {
		return fmt.Errorf("%s: %w", filename, ErrResumeProcessing)
	}
	delete(m.records, filename)
	return nil
}

func sortByUploadTime(recs []models.ResumeRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].UploadTime.Equal(recs[j].UploadTime) {
			return recs[i].Filename < recs[j].Filename
		}
		return recs[i].UploadTime.Before(recs[j].UploadTime)
	})
}
