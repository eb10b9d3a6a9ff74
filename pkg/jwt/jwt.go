package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// 토큰에 내장되는 역할 스코프
const (
	RoleServer   = "server"
	RoleClient   = "client"
	RoleWildcard = "*" // 모든 작업 허용
)

// Decision 토큰 검증 3단계 결과
type Decision int

const (
	// Authorized 유효한 토큰 + 요구 역할 일치
	Authorized Decision = iota
	// Unauthenticated 토큰 없음, 해독 불가 또는 만료
	Unauthenticated
	// Forbidden 유효한 토큰이지만 역할 불일치
	Forbidden
)

type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secretKey string
	duration  time.Duration
}

// NewJWTManager JWT 매니저 생성
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: secretKey,
		duration:  duration,
	}
}

// Generate 역할 스코프가 포함된 JWT 토큰 생성
func (m *JWTManager) Generate(userID, username, role string) (string, error) {
	claims := Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secretKey))
}

// Verify 토큰 검증 및 Claims 추출
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			// 알고리즘 확인
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return []byte(m.secretKey), nil
		},
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Authorize 토큰을 검증하고 요구 역할과 비교한다.
// Authorized / Unauthenticated / Forbidden 세 가지 결과만 반환하며,
// Authorized일 때만 Claims가 non-nil이다.
// 와일드카드는 양방향: 와일드카드 토큰은 모든 작업을 통과하고,
// 와일드카드를 요구하는 작업은 모든 유효 토큰을 받는다.
func (m *JWTManager) Authorize(tokenString, requiredRole string) (Decision, *Claims) {
	if tokenString == "" {
		return Unauthenticated, nil
	}

	claims, err := m.Verify(tokenString)
	if err != nil {
		return Unauthenticated, nil
	}

	if claims.Role == requiredRole || claims.Role == RoleWildcard || requiredRole == RoleWildcard {
		return Authorized, claims
	}

	return Forbidden, nil
}
