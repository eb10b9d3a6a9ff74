package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kamin0/CBT-OnlineSystem/internal/models"
	"github.com/Kamin0/CBT-OnlineSystem/pkg/distributed"
)

type engineFixture struct {
	engine   *Engine
	index    *memIndex
	store    *memStore
	identity *memIdentity
}

func newEngineFixture() *engineFixture {
	index := newMemIndex()
	store := newMemStore()
	identity := newMemIdentity()

	engine := NewEngine(index, store, identity, distributed.NewLocalSessionLocker(), nil)

	return &engineFixture{
		engine:   engine,
		index:    index,
		store:    store,
		identity: identity,
	}
}

// seedSession 인덱스 행과 페이로드를 직접 심는다
func (f *engineFixture) seedSession(t *testing.T, id, address string, players []string, averageSkill float64) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, &models.Session{
		ID:            id,
		ServerAddress: address,
		Players:       players,
	}))

	require.NoError(t, f.index.Create(ctx, &models.SessionIndex{
		ID:           id,
		AverageSkill: averageSkill,
		IsEmpty:      len(players) == 0,
	}))
}

func TestCreateSession(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	session, err := f.engine.CreateSession(ctx, "10.0.0.1:7777")
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, "10.0.0.1:7777", session.ServerAddress)
	assert.Empty(t, session.Players)

	stored, err := f.store.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	row := f.index.get(session.ID)
	require.NotNil(t, row)
	assert.True(t, row.IsEmpty)
	assert.Equal(t, 0.0, row.AverageSkill)
	assert.Nil(t, row.AverageRankTier)
}

func TestCreateSession_EmptyAddress(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.CreateSession(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateSession_IndexFailureRollsBackPayload(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	f.index.failOn["create"] = true

	_, err := f.engine.CreateSession(ctx, "10.0.0.1:7777")
	require.Error(t, err)

	// 인덱스 커밋에 실패한 세션은 페이로드도 남지 않아야 한다
	ids, err := f.store.SessionIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRequestPlacement_SelectsClosestSkill(t *testing.T) {
	f := newEngineFixture()
	f.identity.add("requester", models.Identity{PlayerID: "p-req", SkillRating: 48, RankTier: "gold"})

	f.seedSession(t, "sess-10", "10.0.0.1:7001", []string{"p-a"}, 10)
	f.seedSession(t, "sess-50", "10.0.0.2:7002", []string{"p-b"}, 50)
	f.seedSession(t, "sess-90", "10.0.0.3:7003", []string{"p-c"}, 90)

	placement, err := f.engine.RequestPlacement(context.Background(), "requester")
	require.NoError(t, err)
	assert.Equal(t, "sess-50", placement.SessionID)
	assert.Equal(t, "10.0.0.2:7002", placement.ServerAddress)
}

func TestRequestPlacement_TieBreaksOnFirstEncountered(t *testing.T) {
	f := newEngineFixture()
	f.identity.add("requester", models.Identity{PlayerID: "p-req", SkillRating: 50})

	// 40과 60은 같은 거리: 먼저 만난 행이 이겨야 한다
	f.seedSession(t, "sess-40", "10.0.0.1:7001", []string{"p-a"}, 40)
	f.seedSession(t, "sess-60", "10.0.0.2:7002", []string{"p-b"}, 60)

	placement, err := f.engine.RequestPlacement(context.Background(), "requester")
	require.NoError(t, err)
	assert.Equal(t, "sess-40", placement.SessionID)
}

func TestRequestPlacement_FallsBackToEmptySession(t *testing.T) {
	f := newEngineFixture()
	f.identity.add("requester", models.Identity{PlayerID: "p-req", SkillRating: 9999})

	f.seedSession(t, "sess-empty", "10.0.0.1:7001", nil, 0)

	// 레이팅과 무관하게 빈 세션이 선택된다
	placement, err := f.engine.RequestPlacement(context.Background(), "requester")
	require.NoError(t, err)
	assert.Equal(t, "sess-empty", placement.SessionID)
}

func TestRequestPlacement_NoSessionAvailable(t *testing.T) {
	f := newEngineFixture()
	f.identity.add("requester", models.Identity{PlayerID: "p-req", SkillRating: 50})

	_, err := f.engine.RequestPlacement(context.Background(), "requester")
	assert.ErrorIs(t, err, ErrNoSessionAvailable)
}

func TestRequestPlacement_UnknownUsername(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.RequestPlacement(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRequestPlacement_IndexWithoutPayload(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	f.identity.add("requester", models.Identity{PlayerID: "p-req", SkillRating: 50})

	// 인덱스 행만 있고 페이로드가 없는 어긋난 상태
	require.NoError(t, f.index.Create(ctx, &models.SessionIndex{ID: "sess-ghost", AverageSkill: 50, IsEmpty: false}))

	_, err := f.engine.RequestPlacement(ctx, "requester")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestJoin_FirstOccupantFlipsEmpty(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	f.identity.add("alice", models.Identity{PlayerID: "p-alice", SkillRating: 20, RankTier: "silver"})
	f.seedSession(t, "sess-1", "10.0.0.1:7001", nil, 0)

	result, err := f.engine.Join(ctx, "sess-1", "alice")
	require.NoError(t, err)
	assert.False(t, result.Full)
	assert.Equal(t, []string{"p-alice"}, result.Session.Players)

	row := f.index.get("sess-1")
	require.NotNil(t, row)
	assert.False(t, row.IsEmpty)
	assert.Equal(t, 20.0, row.AverageSkill)
	require.NotNil(t, row.AverageRankTier)
	assert.Equal(t, "silver", *row.AverageRankTier)
}

func TestJoin_RecomputesAverage(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	f.identity.add("alice", models.Identity{PlayerID: "p-alice", SkillRating: 20, RankTier: "silver"})
	f.identity.add("bob", models.Identity{PlayerID: "p-bob", SkillRating: 40, RankTier: "gold"})

	f.seedSession(t, "sess-1", "10.0.0.1:7001", nil, 0)

	_, err := f.engine.Join(ctx, "sess-1", "alice")
	require.NoError(t, err)

	result, err := f.engine.Join(ctx, "sess-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"p-alice", "p-bob"}, result.Session.Players)

	row := f.index.get("sess-1")
	require.NotNil(t, row)
	assert.Equal(t, 30.0, row.AverageSkill)
	require.NotNil(t, row.AverageRankTier)
	assert.Equal(t, "gold", *row.AverageRankTier) // 마지막 참가자의 티어
	assert.False(t, row.IsEmpty)
}

func TestJoin_AverageReflectsLiveRatings(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	f.identity.add("alice", models.Identity{PlayerID: "p-alice", SkillRating: 20})
	f.seedSession(t, "sess-1", "10.0.0.1:7001", nil, 0)

	_, err := f.engine.Join(ctx, "sess-1", "alice")
	require.NoError(t, err)

	// alice의 레이팅이 외부에서 갱신된 뒤 bob이 참가하면
	// 평균은 스냅샷(20)이 아닌 현재 레이팅(60)으로 계산되어야 한다
	f.identity.add("alice", models.Identity{PlayerID: "p-alice", SkillRating: 60})
	f.identity.add("bob", models.Identity{PlayerID: "p-bob", SkillRating: 40})

	_, err = f.engine.Join(ctx, "sess-1", "bob")
	require.NoError(t, err)

	row := f.index.get("sess-1")
	require.NotNil(t, row)
	assert.Equal(t, 50.0, row.AverageSkill)
}

func TestJoin_UnknownSession(t *testing.T) {
	f := newEngineFixture()
	f.identity.add("alice", models.Identity{PlayerID: "p-alice", SkillRating: 20})

	_, err := f.engine.Join(context.Background(), "missing", "alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestJoin_UnknownUsername(t *testing.T) {
	f := newEngineFixture()
	f.seedSession(t, "sess-1", "10.0.0.1:7001", nil, 0)

	_, err := f.engine.Join(context.Background(), "sess-1", "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestJoin_FullSessionTearsDown(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	players := make([]string, 0, models.MaxPlayers-1)
	for i := 0; i < models.MaxPlayers-1; i++ {
		players = append(players, fmt.Sprintf("p-%d", i))
	}
	f.seedSession(t, "sess-1", "10.0.0.1:7001", players, 30)

	f.identity.add("last", models.Identity{PlayerID: "p-last", SkillRating: 30})

	result, err := f.engine.Join(ctx, "sess-1", "last")
	require.NoError(t, err)
	assert.True(t, result.Full)
	assert.Len(t, result.Session.Players, models.MaxPlayers)

	// 두 저장소 모두에서 제거되어야 한다
	stored, err := f.store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Nil(t, f.index.get("sess-1"))

	// 정원 도달 세션은 이후 배치 결과에 나타나지 않는다
	f.identity.add("requester", models.Identity{PlayerID: "p-req", SkillRating: 30})
	_, err = f.engine.RequestPlacement(ctx, "requester")
	assert.ErrorIs(t, err, ErrNoSessionAvailable)
}

func TestJoin_ConcurrentJoinsKeepBothPlayers(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	f.identity.add("alice", models.Identity{PlayerID: "p-alice", SkillRating: 20})
	f.identity.add("bob", models.Identity{PlayerID: "p-bob", SkillRating: 40})
	f.seedSession(t, "sess-1", "10.0.0.1:7001", nil, 0)

	var wg sync.WaitGroup
	for _, username := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			_, err := f.engine.Join(ctx, "sess-1", u)
			assert.NoError(t, err)
		}(username)
	}
	wg.Wait()

	session, err := f.store.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Len(t, session.Players, 2)
	assert.Contains(t, session.Players, "p-alice")
	assert.Contains(t, session.Players, "p-bob")

	row := f.index.get("sess-1")
	require.NotNil(t, row)
	assert.Equal(t, 30.0, row.AverageSkill)
	assert.False(t, row.IsEmpty)
}

func TestRemoveSession(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	f.seedSession(t, "sess-1", "10.0.0.1:7001", []string{"p-a"}, 25)

	require.NoError(t, f.engine.RemoveSession(ctx, "sess-1"))

	stored, err := f.store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Nil(t, f.index.get("sess-1"))
}

func TestRemoveSession_NonexistentIsDeterministic(t *testing.T) {
	f := newEngineFixture()

	// delete-if-exists: 없는 세션 제거는 조용히 성공한다
	assert.NoError(t, f.engine.RemoveSession(context.Background(), "missing"))
}

func TestRemoveSession_IndexFailureStillDeletesPayload(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	f.seedSession(t, "sess-1", "10.0.0.1:7001", []string{"p-a"}, 25)
	f.index.failOn["delete"] = true

	err := f.engine.RemoveSession(ctx, "sess-1")
	require.Error(t, err)

	// 인덱스 삭제가 실패해도 페이로드 삭제는 시도된다
	stored, err := f.store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestEndToEnd_CreatePlaceJoin(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	f.identity.add("alice", models.Identity{PlayerID: "p-alice", SkillRating: 35, RankTier: "gold"})

	session, err := f.engine.CreateSession(ctx, "10.0.0.1:7000")
	require.NoError(t, err)

	placement, err := f.engine.RequestPlacement(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, session.ID, placement.SessionID)
	assert.Equal(t, "10.0.0.1:7000", placement.ServerAddress)

	result, err := f.engine.Join(ctx, placement.SessionID, "alice")
	require.NoError(t, err)
	assert.False(t, result.Full)
	assert.Len(t, result.Session.Players, 1)

	row := f.index.get(session.ID)
	require.NotNil(t, row)
	assert.False(t, row.IsEmpty)
	assert.Equal(t, 35.0, row.AverageSkill)
}
