package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/baseline-cli/internal/model"
)

// Memory implements Store in process memory. It is safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	docs map[string]map[string][]byte
	runs map[string]model.Run
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]map[string][]byte),
		runs: make(map[string]model.Run),
	}
}

func (m *Memory) Migrate(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func (m *Memory) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.docs[bucket][key]
	if !ok {
		return nil, nil
	}
	return clone(v), nil
}

func (m *Memory) Put(_ context.Context, bucket, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(bucket, key, value)
	return nil
}

func (m *Memory) put(bucket, key string, value []byte) {
	b, ok := m.docs[bucket]
	if !ok {
		b = make(map[string][]byte)
		m.docs[bucket] = b
	}
	b[key] = clone(value)
}

func (m *Memory) Update(_ context.Context, bucket, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current []byte
	if v, ok := m.docs[bucket][key]; ok {
		current = clone(v)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next != nil {
		m.put(bucket, key, next)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[bucket], key)
	return nil
}

func (m *Memory) List(_ context.Context, bucket, prefix string) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Document
	for k, v := range m.docs[bucket] {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Document{Key: k, Value: clone(v)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) CreateRun(_ context.Context, inputs []string) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	run := model.Run{
		ID:        uuid.New().String(),
		Inputs:    inputs,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.runs[run.ID] = run
	return &run, nil
}

func (m *Memory) CompleteRun(_ context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return eris.Errorf("memory: run %s not found", runID)
	}
	run.Status = status
	run.Summary = summary
	run.UpdatedAt = time.Now().UTC()
	m.runs[runID] = run
	return nil
}

func (m *Memory) GetRun(_ context.Context, runID string) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, eris.Errorf("memory: get run %s: not found", runID)
	}
	return &run, nil
}

func (m *Memory) ListRuns(_ context.Context, filter RunFilter) ([]model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Run
	for _, r := range m.runs {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
