package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stemsi/exstem-session/internal/model"
)

type fakeBlocks struct {
	mu      sync.Mutex
	blocked map[string]model.BlockEntry
	err     error
}

func newFakeBlocks() *fakeBlocks {
	return &fakeBlocks{blocked: make(map[string]model.BlockEntry)}
}

func (f *fakeBlocks) IsBlocked(_ context.Context, code, deviceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blocked[code+"::"+deviceID]
	return ok, f.err
}

func (f *fakeBlocks) Add(_ context.Context, e model.BlockEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blocked[e.Code+"::"+e.DeviceID]; !ok {
		f.blocked[e.Code+"::"+e.DeviceID] = e
	}
	return nil
}

func (f *fakeBlocks) List(context.Context) ([]model.BlockEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.BlockEntry
	for _, e := range f.blocked {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeBlocks) Remove(_ context.Context, code, deviceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blocked[code+"::"+deviceID]
	delete(f.blocked, code+"::"+deviceID)
	return ok, nil
}

type fakeAttempts struct {
	mu   sync.Mutex
	last map[string]time.Time
	err  error
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{last: make(map[string]time.Time)}
}

func (f *fakeAttempts) Last(_ context.Context, code, deviceID string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return time.Time{}, false, f.err
	}
	t, ok := f.last[code+"::"+deviceID]
	return t, ok, nil
}

func (f *fakeAttempts) Mark(_ context.Context, code, deviceID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last[code+"::"+deviceID] = at
	return nil
}

func (f *fakeAttempts) Clear(_ context.Context, code, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.last, code+"::"+deviceID)
	return nil
}

type fakeCatalog map[string]*model.Test

func (f fakeCatalog) Lookup(code string) (*model.Test, bool) {
	t, ok := f[code]
	return t, ok
}

func (f fakeCatalog) Teachers() []model.Teacher {
	return []model.Teacher{{Name: "Prof. Ruiz", Tests: []string{"HISTORIA-01"}}}
}

type fakeProgress struct {
	mu     sync.Mutex
	snaps  map[string]model.Snapshot
	orders []model.OrderQueueItem
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{snaps: make(map[string]model.Snapshot)}
}

func (f *fakeProgress) Get(_ context.Context, deviceID, code string) (*model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snaps[deviceID+"::"+code]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeProgress) GetAudited(ctx context.Context, deviceID, code string) (*model.Snapshot, error) {
	return f.Get(ctx, deviceID, code)
}

func (f *fakeProgress) Save(_ context.Context, deviceID string, snap model.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[deviceID+"::"+snap.TestCode] = snap
	return nil
}

func (f *fakeProgress) Delete(_ context.Context, deviceID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snaps, deviceID+"::"+code)
	return nil
}

func (f *fakeProgress) QueueOrder(_ context.Context, item model.OrderQueueItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, item)
	return nil
}

// memStore wires the fakes into session.Persistence.
type memStore struct {
	progress *fakeProgress
	blocks   *fakeBlocks
	attempts *fakeAttempts
	results  map[string]*model.ResultRecord
	mu       sync.Mutex
}

func (m *memStore) SaveSnapshot(ctx context.Context, deviceID string, snap model.Snapshot) error {
	return m.progress.Save(ctx, deviceID, snap)
}

func (m *memStore) DeleteSnapshot(ctx context.Context, deviceID, code string) error {
	return m.progress.Delete(ctx, deviceID, code)
}

func (m *memStore) AppendCheatEvent(context.Context, string, model.CheatEvent) error { return nil }

func (m *memStore) AddBlock(ctx context.Context, e model.BlockEntry) error {
	return m.blocks.Add(ctx, e)
}

func (m *memStore) MarkAttempt(ctx context.Context, code, deviceID string, at time.Time) error {
	return m.attempts.Mark(ctx, code, deviceID, at)
}

func (m *memStore) SaveResult(_ context.Context, rec *model.ResultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[rec.ResultCode] = rec
	return nil
}

func (m *memStore) Get(_ context.Context, code string) (*model.ResultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.results[code]
	if !ok {
		return nil, errNotFound
	}
	return rec, nil
}

var errNotFound = errors.New("not found")

func historyTest() *model.Test {
	return &model.Test{
		Code:            "HISTORIA-01",
		Name:            "Historia",
		DurationMinutes: 20,
		Groups:          []string{"Tercero A"},
		Questions: []model.Question{
			{Title: "Año de la independencia", Type: model.QuestionTypeNumeric, Answer: []string{"1810"}},
			{Title: "Bolívar nació en Caracas", Type: model.QuestionTypeTF, Answer: []string{"1"}},
		},
	}
}
