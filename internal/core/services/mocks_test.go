package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/ragsync/internal/core/domain"
	"github.com/custodia-labs/ragsync/internal/core/ports/driven"
)

// --- Mock implementations shared by the service tests ---

// mockStateStore implements driven.StateStore in memory.
type mockStateStore struct {
	mu        sync.Mutex
	states    map[string]*domain.DocumentState
	saveErr   error
	getErr    error
	saveCalls int
	touched   map[string]time.Time
}

var _ driven.StateStore = (*mockStateStore)(nil)

func newMockStateStore() *mockStateStore {
	return &mockStateStore{
		states:  make(map[string]*domain.DocumentState),
		touched: make(map[string]time.Time),
	}
}

func (m *mockStateStore) Get(_ context.Context, documentID string) (*domain.DocumentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	state, ok := m.states[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *state
	return &copied, nil
}

func (m *mockStateStore) Save(_ context.Context, state *domain.DocumentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *state
	m.states[state.DocumentID] = &copied
	return nil
}

func (m *mockStateStore) TouchLastSeen(_ context.Context, documentID string, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched[documentID] = seenAt
	if state, ok := m.states[documentID]; ok {
		state.LastSeenAt = seenAt
	}
	return nil
}

func (m *mockStateStore) List(_ context.Context) ([]domain.DocumentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DocumentState
	for _, s := range m.states {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockStateStore) ResetPermanentFailures(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.states {
		if s.Status == domain.StatusPermanentlyFailed {
			s.Status = domain.StatusPending
			s.RetryCount = 0
			n++
		}
	}
	return n, nil
}

// put seeds a state row.
func (m *mockStateStore) put(state domain.DocumentState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := state
	m.states[state.DocumentID] = &copied
}

// get reads a state row without the error plumbing.
func (m *mockStateStore) get(documentID string) *domain.DocumentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[documentID]
	if !ok {
		return nil
	}
	copied := *state
	return &copied
}

// mockLockStore implements driven.LockStore.
type mockLockStore struct {
	mu         sync.Mutex
	held       *domain.RunLock
	acquireErr error
	released   int
}

var _ driven.LockStore = (*mockLockStore)(nil)

func (m *mockLockStore) Acquire(_ context.Context, key, owner string, ttl time.Duration) (*domain.RunLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	if m.held != nil {
		return nil, &domain.LockHeldError{
			Key:        key,
			Holder:     m.held.AcquiredBy,
			AcquiredAt: m.held.AcquiredAt,
			ExpiresAt:  m.held.ExpiresAt,
		}
	}
	now := time.Now().UTC()
	m.held = &domain.RunLock{Key: key, AcquiredBy: owner, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
	return m.held, nil
}

func (m *mockLockStore) Release(_ context.Context, _ *domain.RunLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held = nil
	m.released++
	return nil
}

func (m *mockLockStore) Extend(_ context.Context, lock *domain.RunLock, additional time.Duration) error {
	lock.ExpiresAt = lock.ExpiresAt.Add(additional)
	return nil
}

// mockContentSource implements driven.ContentSource.
type mockContentSource struct {
	files       []domain.Candidate
	urls        []string
	fetchErr    error
	content     map[string]string
	downloadErr error
}

var _ driven.ContentSource = (*mockContentSource)(nil)

func (m *mockContentSource) Fetch(_ context.Context, _ time.Time) ([]domain.Candidate, []string, error) {
	if m.fetchErr != nil {
		return nil, nil, m.fetchErr
	}
	return m.files, m.urls, nil
}

func (m *mockContentSource) Download(_ context.Context, candidate domain.Candidate) (string, error) {
	if m.downloadErr != nil {
		return "", m.downloadErr
	}
	text, ok := m.content[candidate.FileName]
	if !ok {
		return "", fmt.Errorf("no content for %s", candidate.FileName)
	}
	return text, nil
}

// mockScraper implements driven.Scraper.
type mockScraper struct {
	pages map[string]string
	errs  map[string]error
	calls int
}

var _ driven.Scraper = (*mockScraper)(nil)

func (m *mockScraper) Scrape(_ context.Context, url string) (string, error) {
	m.calls++
	if err, ok := m.errs[url]; ok {
		return "", err
	}
	return m.pages[url], nil
}

// mockChunker implements driven.Chunker, emitting one section per
// whitespace-separated word unless overridden.
type mockChunker struct {
	err      error
	sections func(documentID, text string) []domain.Section
}

var _ driven.Chunker = (*mockChunker)(nil)

func (m *mockChunker) Chunk(_ context.Context, documentID, text string) ([]domain.Section, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.sections != nil {
		return m.sections(documentID, text), nil
	}
	return []domain.Section{{
		SectionID:   documentID + "_s000",
		Text:        text,
		SectionHash: domain.HashTextHex(text),
	}}, nil
}

// mockVectorStore implements driven.VectorStore. failOn holds section
// texts whose Store calls must fail.
type mockVectorStore struct {
	mu       sync.Mutex
	stored   map[string]string // vector ID -> text
	deleted  []string
	failOn   map[string]bool
	next     int
	storeErr error
}

var _ driven.VectorStore = (*mockVectorStore)(nil)

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{
		stored: make(map[string]string),
		failOn: make(map[string]bool),
	}
}

func (m *mockVectorStore) Store(_ context.Context, _ string, text string, _ map[string]string) (driven.VectorRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return driven.VectorRef{}, m.storeErr
	}
	if m.failOn[text] {
		return driven.VectorRef{}, fmt.Errorf("simulated store failure")
	}
	m.next++
	id := fmt.Sprintf("vec-%d", m.next)
	m.stored[id] = text
	return driven.VectorRef{VectorID: id, Namespace: "test"}, nil
}

func (m *mockVectorStore) Delete(_ context.Context, vectorID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, vectorID)
	delete(m.stored, vectorID)
	return nil
}
