package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // JSON에서 숨김
	SkillRating  float64   `json:"skillRating" db:"skill_rating"`
	RankTier     string    `json:"rankTier" db:"rank_tier"`
	RoleID       string    `json:"-" db:"role_id"`
	RoleName     string    `json:"role" db:"-"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Identity Identity Provider가 반환하는 값: 안정적인 플레이어 ID와
// 외부에서 관리되는 현재 스킬 레이팅/랭크 티어.
type Identity struct {
	PlayerID    string  `json:"playerId"`
	SkillRating float64 `json:"skillRating"`
	RankTier    string  `json:"rankTier"`
}

// HashPassword 비밀번호 해싱
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword 비밀번호 검증
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
