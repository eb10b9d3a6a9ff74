package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Kamin0/CBT-OnlineSystem/internal/models"
)

var errInjected = errors.New("injected store failure")

// memIndex 삽입 순서를 보존하는 인메모리 세션 인덱스
type memIndex struct {
	mu     sync.Mutex
	rows   []*models.SessionIndex
	failOn map[string]bool // "create", "update", "delete" 실패 주입
}

func newMemIndex() *memIndex {
	return &memIndex{failOn: map[string]bool{}}
}

func (m *memIndex) Create(_ context.Context, index *models.SessionIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn["create"] {
		return errInjected
	}

	row := *index
	m.rows = append(m.rows, &row)
	return nil
}

func (m *memIndex) ListOpen(_ context.Context) ([]models.SessionIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var open []models.SessionIndex
	for _, row := range m.rows {
		if !row.IsEmpty {
			open = append(open, *row)
		}
	}
	return open, nil
}

func (m *memIndex) FindEmpty(_ context.Context) (*models.SessionIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.IsEmpty {
			copied := *row
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memIndex) Update(_ context.Context, index *models.SessionIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn["update"] {
		return errInjected
	}

	for i, row := range m.rows {
		if row.ID == index.ID {
			copied := *index
			m.rows[i] = &copied
			return nil
		}
	}
	return nil
}

func (m *memIndex) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn["delete"] {
		return errInjected
	}

	for i, row := range m.rows {
		if row.ID == sessionID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memIndex) FilterExisting(_ context.Context, sessionIDs []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := map[string]bool{}
	for _, id := range sessionIDs {
		for _, row := range m.rows {
			if row.ID == id {
				existing[id] = true
			}
		}
	}
	return existing, nil
}

func (m *memIndex) get(sessionID string) *models.SessionIndex {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.ID == sessionID {
			copied := *row
			return &copied
		}
	}
	return nil
}

// memStore 인메모리 세션 페이로드 저장소 (항상 복사본 반환)
type memStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]models.Session{}}
}

func (m *memStore) Put(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *session
	copied.Players = append([]string(nil), session.Players...)
	m.sessions[session.ID] = copied
	return nil
}

func (m *memStore) Get(_ context.Context, sessionID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	copied := session
	copied.Players = append([]string(nil), session.Players...)
	return &copied, nil
}

func (m *memStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

func (m *memStore) SessionIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

// memIdentity 인메모리 Identity Provider
type memIdentity struct {
	mu     sync.Mutex
	byName map[string]models.Identity
	byID   map[string]models.Identity
}

func newMemIdentity() *memIdentity {
	return &memIdentity{
		byName: map[string]models.Identity{},
		byID:   map[string]models.Identity{},
	}
}

func (m *memIdentity) add(username string, identity models.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byName[username] = identity
	m.byID[identity.PlayerID] = identity
}

func (m *memIdentity) Resolve(_ context.Context, username string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.byName[username]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

func (m *memIdentity) LookupByID(_ context.Context, playerID string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.byID[playerID]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}
