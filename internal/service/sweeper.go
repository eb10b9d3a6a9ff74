package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// 생성 경로는 페이로드를 먼저 쓰고 인덱스 행을 나중에 커밋하므로,
// 이 시간보다 어린 페이로드는 커밋 전일 수 있어 고아로 판정하지 않는다
const sweepGracePeriod = 30 * time.Second

// Sweeper 고아 페이로드 정리 루프.
// 인덱스가 존재 여부의 source of truth이므로, 인덱스 행 없이 남은 Redis
// 페이로드(생성 실패 잔여물, 해체 중 부분 실패)를 주기적으로 삭제한다.
type Sweeper struct {
	index       IndexRepository
	store       PayloadStore
	logger      *zap.Logger
	interval    time.Duration
	gracePeriod time.Duration
	stopChan    chan struct{}
	wg          sync.WaitGroup
	running     bool
	mu          sync.Mutex
}

func NewSweeper(index IndexRepository, store PayloadStore, interval time.Duration) *Sweeper {
	logger, _ := zap.NewProduction()
	return &Sweeper{
		index:       index,
		store:       store,
		logger:      logger,
		interval:    interval,
		gracePeriod: sweepGracePeriod,
		stopChan:    make(chan struct{}),
	}
}

// Start 정리 루프 시작
func (s *Sweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting session sweeper", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.sweepLoop()
}

// Stop 정리 루프 중지
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("Session sweeper stopped")
}

func (s *Sweeper) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// 시작 시 한번 실행
	s.RunSweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunSweep(context.Background())
		case <-s.stopChan:
			return
		}
	}
}

// RunSweep 고아 페이로드 1회 정리, 삭제한 개수를 반환
func (s *Sweeper) RunSweep(ctx context.Context) int {
	ids, err := s.store.SessionIDs(ctx)
	if err != nil {
		s.logger.Error("Failed to scan session payloads", zap.Error(err))
		return 0
	}

	if len(ids) == 0 {
		return 0
	}

	existing, err := s.index.FilterExisting(ctx, ids)
	if err != nil {
		s.logger.Error("Failed to check session index", zap.Error(err))
		return 0
	}

	removed := 0
	for _, id := range ids {
		if existing[id] {
			continue
		}

		// 생성 중인 세션(페이로드는 있으나 인덱스 커밋 전)을 지우면
		// 영구적인 인덱스-페이로드 불일치가 생기므로 유예 기간을 둔다
		payload, err := s.store.Get(ctx, id)
		if err != nil {
			s.logger.Error("Failed to fetch payload age",
				zap.String("sessionId", id),
				zap.Error(err))
			continue
		}
		if payload == nil {
			continue
		}
		if time.Since(payload.CreatedAt) < s.gracePeriod {
			s.logger.Debug("Skipping recently created payload",
				zap.String("sessionId", id),
				zap.Time("createdAt", payload.CreatedAt))
			continue
		}

		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Error("Failed to delete orphaned payload",
				zap.String("sessionId", id),
				zap.Error(err))
			continue
		}

		s.logger.Info("Removed orphaned session payload", zap.String("sessionId", id))
		removed++
	}

	return removed
}
