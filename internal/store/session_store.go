package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Kamin0/CBT-OnlineSystem/internal/models"
)

const sessionKeyPrefix = "session:"

// SessionStore Redis 기반 세션 페이로드 저장소.
// 세션 내용의 source of truth이며, 존재 여부의 source of truth는
// Postgres 인덱스다 (고아 페이로드는 sweeper가 정리).
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Put 세션 페이로드 저장 (멱등: 같은 내용 재기록은 무해)
func (s *SessionStore) Put(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(session.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// Get 세션 페이로드 조회 (없으면 nil)
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session := &models.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return session, nil
}

// Delete 세션 페이로드 삭제 (키가 없어도 성공)
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SessionIDs 저장된 모든 세션 ID 조회 (sweep용, SCAN으로 순회)
func (s *SessionStore) SessionIDs(ctx context.Context) ([]string, error) {
	var ids []string

	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(sessionKeyPrefix):])
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	return ids, nil
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}
