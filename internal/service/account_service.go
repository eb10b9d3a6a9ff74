package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Kamin0/CBT-OnlineSystem/internal/models"
	"github.com/Kamin0/CBT-OnlineSystem/internal/repository"
	jwtutil "github.com/Kamin0/CBT-OnlineSystem/pkg/jwt"
)

// AccountService 계정 등록/로그인. 로그인은 역할 스코프 토큰을 발급한다
// (Token Authority의 발급 측; 엔진은 검증 측만 소비한다).
type AccountService struct {
	userRepo   *repository.UserRepository
	jwtManager *jwtutil.JWTManager
}

func NewAccountService(userRepo *repository.UserRepository, jwtManager *jwtutil.JWTManager) *AccountService {
	return &AccountService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// Register 새 계정 생성 (역할 이름을 roles 테이블에서 해석)
func (s *AccountService) Register(ctx context.Context, username, email, password, roleName string) (*models.User, error) {
	roleID, err := s.userRepo.FindRoleIDByName(ctx, roleName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role: %w", err)
	}
	if roleID == "" {
		return nil, ErrInvalidRole
	}

	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, username, email, passwordHash, roleID)
	if err != nil {
		// unique 제약 위반은 중복 가입
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user.RoleName = roleName

	return user, nil
}

// Login 자격 증명 검증 후 역할 스코프 JWT 발급
func (s *AccountService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return "", nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.CheckPassword(password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.jwtManager.Generate(user.ID, user.Username, user.RoleName)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return token, user, nil
}
