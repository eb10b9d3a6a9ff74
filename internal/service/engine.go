package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kamin0/CBT-OnlineSystem/internal/models"
	"github.com/Kamin0/CBT-OnlineSystem/pkg/distributed"
)

// 세션 수명주기 이벤트 타입
const (
	EventSessionCreated = "session_created"
	EventSessionUpdated = "session_updated"
	EventSessionFilled  = "session_filled"
	EventSessionRemoved = "session_removed"
)

// IndexRepository 내구 세션 인덱스 (Postgres). 세션 존재 여부의 source of truth.
type IndexRepository interface {
	Create(ctx context.Context, index *models.SessionIndex) error
	ListOpen(ctx context.Context) ([]models.SessionIndex, error)
	FindEmpty(ctx context.Context) (*models.SessionIndex, error)
	Update(ctx context.Context, index *models.SessionIndex) error
	Delete(ctx context.Context, sessionID string) error
	FilterExisting(ctx context.Context, sessionIDs []string) (map[string]bool, error)
}

// PayloadStore 휘발성 세션 페이로드 저장소 (Redis). 세션 내용의 source of truth.
type PayloadStore interface {
	Put(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	Delete(ctx context.Context, sessionID string) error
	SessionIDs(ctx context.Context) ([]string, error)
}

// IdentityResolver Identity Provider 조회 (없으면 nil 반환)
type IdentityResolver interface {
	Resolve(ctx context.Context, username string) (*models.Identity, error)
	LookupByID(ctx context.Context, playerID string) (*models.Identity, error)
}

// EventPublisher 세션 수명주기 이벤트 발행 (fire-and-forget)
type EventPublisher interface {
	Publish(eventType string, payload interface{})
}

// Engine 세션 디렉터리 + 매치메이킹 엔진.
// 두 저장소의 쓰기 경로를 단독 소유한다.
type Engine struct {
	index    IndexRepository
	store    PayloadStore
	identity IdentityResolver
	locker   distributed.SessionLocker
	events   EventPublisher
	logger   *zap.Logger
}

func NewEngine(
	index IndexRepository,
	store PayloadStore,
	identity IdentityResolver,
	locker distributed.SessionLocker,
	events EventPublisher,
) *Engine {
	logger, _ := zap.NewProduction()
	return &Engine{
		index:    index,
		store:    store,
		identity: identity,
		locker:   locker,
		events:   events,
		logger:   logger,
	}
}

// CreateSession 새 세션 생성: 페이로드를 먼저 쓰고 인덱스 행을 커밋한다.
// 인덱스 쓰기가 실패하면 페이로드를 best-effort로 되돌린다 (남은 고아는
// sweeper가 정리).
func (e *Engine) CreateSession(ctx context.Context, serverAddress string) (*models.Session, error) {
	if serverAddress == "" {
		return nil, ErrInvalidInput
	}

	session := &models.Session{
		ID:            uuid.New().String(),
		ServerAddress: serverAddress,
		Players:       []string{},
		CreatedAt:     time.Now().UTC(),
	}

	if err := e.store.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to write session payload: %w", err)
	}

	index := &models.SessionIndex{
		ID:           session.ID,
		AverageSkill: 0.0,
		IsEmpty:      true,
	}

	if err := e.index.Create(ctx, index); err != nil {
		// 인덱스 없는 페이로드는 배치 불가능하므로 즉시 회수 시도
		if delErr := e.store.Delete(ctx, session.ID); delErr != nil {
			e.logger.Warn("Failed to roll back orphaned session payload",
				zap.String("sessionId", session.ID),
				zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to index session: %w", err)
	}

	e.logger.Info("Session created",
		zap.String("sessionId", session.ID),
		zap.String("serverAddress", session.ServerAddress))

	e.publish(EventSessionCreated, session)

	return session, nil
}

// RequestPlacement 스킬 거리 기반 세션 선택.
// 비어 있지 않은 세션 중 |requesterSkill − averageSkill| 최소인 행을 고르고
// (동률은 먼저 만난 행 우선), 없으면 빈 세션 하나를 선택한다.
// 열린 세션 수에 선형인 스캔이다.
func (e *Engine) RequestPlacement(ctx context.Context, username string) (*models.Placement, error) {
	identity, err := e.identity.Resolve(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve requester: %w", err)
	}
	if identity == nil {
		return nil, ErrUserNotFound
	}

	open, err := e.index.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}

	var sessionID string

	if len(open) > 0 {
		best := 0
		bestDistance := math.Abs(identity.SkillRating - open[0].AverageSkill)
		for i := 1; i < len(open); i++ {
			distance := math.Abs(identity.SkillRating - open[i].AverageSkill)
			if distance < bestDistance {
				best = i
				bestDistance = distance
			}
		}
		sessionID = open[best].ID

		e.logger.Debug("Matched open session",
			zap.String("username", username),
			zap.Float64("skill", identity.SkillRating),
			zap.String("sessionId", sessionID),
			zap.Float64("distance", bestDistance))
	} else {
		empty, err := e.index.FindEmpty(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to find empty session: %w", err)
		}
		if empty == nil {
			return nil, ErrNoSessionAvailable
		}
		sessionID = empty.ID
	}

	session, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session payload: %w", err)
	}
	if session == nil {
		// 인덱스 행은 있으나 페이로드가 없음: not-found로 처리
		e.logger.Warn("Session index/payload divergence",
			zap.String("sessionId", sessionID))
		return nil, ErrSessionNotFound
	}

	return &models.Placement{
		SessionID:     session.ID,
		ServerAddress: session.ServerAddress,
	}, nil
}

// Join 플레이어를 세션에 추가하고 집계를 재계산한다.
// 같은 세션에 대한 join은 세션 락으로 직렬화된다.
// 정원(MaxPlayers) 도달 시 두 저장소에서 모두 해체된다.
func (e *Engine) Join(ctx context.Context, sessionID, username string) (*models.JoinResult, error) {
	unlock, err := e.locker.LockSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	defer func() {
		if err := unlock(ctx); err != nil {
			e.logger.Warn("Failed to release session lock",
				zap.String("sessionId", sessionID),
				zap.Error(err))
		}
	}()

	session, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session payload: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	joiner, err := e.identity.Resolve(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve joiner: %w", err)
	}
	if joiner == nil {
		return nil, ErrUserNotFound
	}

	if session.IsFull() {
		// 정원 도달 세션은 동기 해체되므로 여기 도달하면 이미 상태가 어긋난 것
		return nil, ErrSessionNotFound
	}

	session.Players = append(session.Players, joiner.PlayerID)

	if session.IsFull() {
		if err := e.teardown(ctx, sessionID); err != nil {
			return nil, err
		}

		e.logger.Info("Session filled and torn down",
			zap.String("sessionId", sessionID),
			zap.Int("players", len(session.Players)))

		e.publish(EventSessionFilled, session)

		return &models.JoinResult{Session: session, Full: true}, nil
	}

	if err := e.store.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to write session payload: %w", err)
	}

	averageSkill, err := e.recomputeAverageSkill(ctx, session, joiner)
	if err != nil {
		return nil, err
	}

	tier := joiner.RankTier
	index := &models.SessionIndex{
		ID:              sessionID,
		AverageSkill:    averageSkill,
		AverageRankTier: &tier,
		IsEmpty:         false,
	}

	if err := e.index.Update(ctx, index); err != nil {
		return nil, fmt.Errorf("failed to update session index: %w", err)
	}

	e.logger.Info("Player joined session",
		zap.String("sessionId", sessionID),
		zap.String("playerId", joiner.PlayerID),
		zap.Int("players", len(session.Players)),
		zap.Float64("averageSkill", averageSkill))

	e.publish(EventSessionUpdated, index)

	return &models.JoinResult{Session: session, Full: false}, nil
}

// recomputeAverageSkill 점유자 전원의 현재 레이팅으로 산술 평균을 다시 구한다.
// 스냅샷이 아니라 라이브 레이팅을 반영하며, 점유자 1명이면 평균 계산 없이
// 해당 레이팅을 그대로 쓴다 (isEmpty가 뒤집히는 전환점).
func (e *Engine) recomputeAverageSkill(ctx context.Context, session *models.Session, joiner *models.Identity) (float64, error) {
	if len(session.Players) == 1 {
		return joiner.SkillRating, nil
	}

	var sum float64
	for _, playerID := range session.Players {
		occupant, err := e.identity.LookupByID(ctx, playerID)
		if err != nil {
			return 0, fmt.Errorf("failed to lookup occupant rating: %w", err)
		}
		if occupant == nil {
			return 0, fmt.Errorf("occupant %s: %w", playerID, ErrUserNotFound)
		}
		sum += occupant.SkillRating
	}

	return sum / float64(len(session.Players)), nil
}

// RemoveSession 세션을 두 저장소에서 제거한다.
// 인덱스 삭제는 delete-if-exists이며, 실패해도 페이로드 삭제는 시도한다.
func (e *Engine) RemoveSession(ctx context.Context, sessionID string) error {
	if err := e.teardown(ctx, sessionID); err != nil {
		return err
	}

	e.logger.Info("Session removed", zap.String("sessionId", sessionID))

	e.publish(EventSessionRemoved, map[string]string{"sessionId": sessionID})

	return nil
}

func (e *Engine) teardown(ctx context.Context, sessionID string) error {
	indexErr := e.index.Delete(ctx, sessionID)

	// 인덱스 삭제가 실패해도 페이로드 삭제는 시도한다
	storeErr := e.store.Delete(ctx, sessionID)

	if indexErr != nil {
		return fmt.Errorf("failed to delete session index: %w", indexErr)
	}
	if storeErr != nil {
		return fmt.Errorf("failed to delete session payload: %w", storeErr)
	}

	return nil
}

func (e *Engine) publish(eventType string, payload interface{}) {
	if e.events != nil {
		e.events.Publish(eventType, payload)
	}
}
