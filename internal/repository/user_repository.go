package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kamin0/CBT-OnlineSystem/internal/models"
	"github.com/Kamin0/CBT-OnlineSystem/pkg/database"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 새 사용자 생성
func (r *UserRepository) Create(ctx context.Context, username, email, passwordHash, roleID string) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, role_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, email, skill_rating, rank_tier, role_id, created_at
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username, email, passwordHash, roleID).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.SkillRating,
		&user.RankTier,
		&user.RoleID,
		&user.CreatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// FindByUsername 사용자 조회 (역할 이름 포함, 로그인용)
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT u.id, u.username, u.email, u.password_hash, u.skill_rating, u.rank_tier, u.role_id, r.name, u.created_at
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.username = $1
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.SkillRating,
		&user.RankTier,
		&user.RoleID,
		&user.RoleName,
		&user.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil // 사용자 없음
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// FindRoleIDByName 역할 이름으로 역할 ID 조회 (없으면 빈 문자열)
func (r *UserRepository) FindRoleIDByName(ctx context.Context, name string) (string, error) {
	query := `
		SELECT id
		FROM roles
		WHERE name = $1
	`

	var id string
	err := r.db.QueryRowContext(ctx, query, name).Scan(&id)

	if err == sql.ErrNoRows {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("failed to find role: %w", err)
	}

	return id, nil
}

// Resolve Identity Provider 조회: username → {playerId, skillRating, rankTier}
func (r *UserRepository) Resolve(ctx context.Context, username string) (*models.Identity, error) {
	query := `
		SELECT id, skill_rating, rank_tier
		FROM users
		WHERE username = $1
	`

	identity := &models.Identity{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(&identity.PlayerID, &identity.SkillRating, &identity.RankTier)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	return identity, nil
}

// LookupByID 플레이어 ID로 현재 레이팅 조회 (평균 재계산은 로스터의
// 각 점유자에 대해 이 조회를 수행하므로 라이브 레이팅을 반영한다)
func (r *UserRepository) LookupByID(ctx context.Context, playerID string) (*models.Identity, error) {
	query := `
		SELECT id, skill_rating, rank_tier
		FROM users
		WHERE id = $1
	`

	identity := &models.Identity{}
	err := r.db.QueryRowContext(ctx, query, playerID).Scan(&identity.PlayerID, &identity.SkillRating, &identity.RankTier)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to lookup identity: %w", err)
	}

	return identity, nil
}
