package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Kamin0/CBT-OnlineSystem/internal/models"
	"github.com/Kamin0/CBT-OnlineSystem/pkg/database"
)

type SessionIndexRepository struct {
	db *database.DB
}

func NewSessionIndexRepository(db *database.DB) *SessionIndexRepository {
	return &SessionIndexRepository{db: db}
}

// Create 세션 인덱스 행 생성 (생성 직후 배치 요청에 노출됨)
func (r *SessionIndexRepository) Create(ctx context.Context, index *models.SessionIndex) error {
	query := `
		INSERT INTO session_index (id, average_skill, average_rank_tier, is_empty)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, index.ID, index.AverageSkill, index.AverageRankTier, index.IsEmpty)
	if err != nil {
		return fmt.Errorf("failed to create session index: %w", err)
	}
	return nil
}

// ListOpen 비어 있지 않은 세션 행 조회.
// 정원에 도달한 세션은 join 시 동기적으로 삭제되므로, 비어 있지 않은 행은
// 항상 참가 가능하다. created_at 순서가 동률 시 first-match 선택을 안정화한다.
func (r *SessionIndexRepository) ListOpen(ctx context.Context) ([]models.SessionIndex, error) {
	query := `
		SELECT id, average_skill, average_rank_tier, is_empty
		FROM session_index
		WHERE is_empty = FALSE
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}
	defer rows.Close()

	var indexes []models.SessionIndex
	for rows.Next() {
		var index models.SessionIndex
		if err := rows.Scan(&index.ID, &index.AverageSkill, &index.AverageRankTier, &index.IsEmpty); err != nil {
			return nil, fmt.Errorf("failed to scan session index: %w", err)
		}
		indexes = append(indexes, index)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session indexes: %w", err)
	}

	return indexes, nil
}

// FindEmpty 첫 입장을 기다리는 빈 세션 하나 조회 (없으면 nil)
func (r *SessionIndexRepository) FindEmpty(ctx context.Context) (*models.SessionIndex, error) {
	query := `
		SELECT id, average_skill, average_rank_tier, is_empty
		FROM session_index
		WHERE is_empty = TRUE
		ORDER BY created_at ASC
		LIMIT 1
	`

	index := &models.SessionIndex{}
	err := r.db.QueryRowContext(ctx, query).Scan(&index.ID, &index.AverageSkill, &index.AverageRankTier, &index.IsEmpty)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find empty session: %w", err)
	}

	return index, nil
}

// Update 집계 메타데이터 갱신 (average_skill, average_rank_tier, is_empty를 한 번에)
func (r *SessionIndexRepository) Update(ctx context.Context, index *models.SessionIndex) error {
	query := `
		UPDATE session_index
		SET average_skill = $2, average_rank_tier = $3, is_empty = $4
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, index.ID, index.AverageSkill, index.AverageRankTier, index.IsEmpty)
	if err != nil {
		return fmt.Errorf("failed to update session index: %w", err)
	}
	return nil
}

// Delete 세션 인덱스 행 삭제 (delete-if-exists, 행이 없어도 성공)
func (r *SessionIndexRepository) Delete(ctx context.Context, sessionID string) error {
	query := `
		DELETE FROM session_index
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session index: %w", err)
	}
	return nil
}

// FilterExisting 주어진 ID 중 인덱스 행이 존재하는 것만 반환 (고아 페이로드 sweep용)
func (r *SessionIndexRepository) FilterExisting(ctx context.Context, sessionIDs []string) (map[string]bool, error) {
	if len(sessionIDs) == 0 {
		return map[string]bool{}, nil
	}

	query := `
		SELECT id
		FROM session_index
		WHERE id = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(sessionIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to filter existing sessions: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool, len(sessionIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		existing[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session ids: %w", err)
	}

	return existing, nil
}
