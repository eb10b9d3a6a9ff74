package models

import "time"

// MaxPlayers 세션 정원. 도달 시 세션은 두 저장소에서 모두 제거된다.
const MaxPlayers = 6

// Session Redis에 저장되는 세션 페이로드 (session:{id} 키).
// 세션 내용(접속 주소, 로스터)의 source of truth.
type Session struct {
	ID            string    `json:"sessionId"`
	ServerAddress string    `json:"serverAddress"`
	Players       []string  `json:"players"`
	CreatedAt     time.Time `json:"createdAt"`
}

// IsFull 정원 도달 여부
func (s *Session) IsFull() bool {
	return len(s.Players) >= MaxPlayers
}

// SessionIndex Postgres session_index 테이블의 행.
// 어떤 세션이 존재하는지와 매칭 메타데이터의 source of truth.
type SessionIndex struct {
	ID              string  `json:"sessionId" db:"id"`
	AverageSkill    float64 `json:"averageSkill" db:"average_skill"`
	AverageRankTier *string `json:"averageRankTier,omitempty" db:"average_rank_tier"`
	IsEmpty         bool    `json:"isEmpty" db:"is_empty"`
}

// Placement 배치 결과 (저장되지 않음)
type Placement struct {
	SessionID     string `json:"sessionId"`
	ServerAddress string `json:"serverAddress"`
}

// JoinResult join 결과. Full이면 세션이 정원에 도달해 해체되었음을 뜻한다.
type JoinResult struct {
	Session *Session `json:"session"`
	Full    bool     `json:"full"`
}

type CreateSessionRequest struct {
	ServerAddress string `json:"serverAddress" binding:"required"`
}

type JoinSessionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Username  string `json:"username" binding:"required"`
}
