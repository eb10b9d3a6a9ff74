package distributed

import (
	"context"
	"sync"
)

// LocalSessionLocker 단일 인스턴스 배포용 in-process 세션 락.
// 세션별 레퍼런스 카운트로 맵 엔트리를 정리한다.
type LocalSessionLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocalSessionLocker in-process 세션 락 생성
func NewLocalSessionLocker() *LocalSessionLocker {
	return &LocalSessionLocker{
		locks: make(map[string]*localLock),
	}
}

// LockSession 세션 락 획득 (호출자가 반환된 UnlockFunc로 해제)
func (l *LocalSessionLocker) LockSession(ctx context.Context, sessionID string) (UnlockFunc, error) {
	l.mu.Lock()
	entry, ok := l.locks[sessionID]
	if !ok {
		entry = &localLock{}
		l.locks[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func(context.Context) error {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()

		return nil
	}, nil
}
