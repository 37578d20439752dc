package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"civicwatch/internal/auth"
	"civicwatch/internal/cache"
	"civicwatch/internal/errors"
	"civicwatch/internal/model"
	"civicwatch/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// ErrInvalidCredentials is returned when email or password is incorrect.
var ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", errors.ErrUnauthenticated)

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	AdminLogin(ctx context.Context, email, password string) (*model.Admin, string, error)
	Verify(ctx context.Context, token string) (auth.Identity, error)
	CurrentUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	CurrentAdmin(ctx context.Context, id uuid.UUID) (*model.Admin, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name string) (*model.User, error)
}

type authService struct {
	userRepo   repository.UserRepository
	adminRepo  repository.AdminRepository
	jwtService *auth.JWTService
	cache      *cache.Client
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	userRepo repository.UserRepository,
	adminRepo repository.AdminRepository,
	jwtService *auth.JWTService,
	cache *cache.Client,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		adminRepo:  adminRepo,
		jwtService: jwtService,
		cache:      cache,
	}
}

func (s *authService) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id.String())
}

// NormalizeEmail trims and lower-cases an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user with a hashed password and issues a token.
func (s *authService) Register(ctx context.Context, email, password, name string) (*model.User, string, error) {
	email = NormalizeEmail(email)
	if len(password) > auth.MaxPasswordBytes {
		return nil, "", errors.NewValidationError("password", fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes))
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, "", fmt.Errorf("email already registered: %w", errors.ErrConflict)
	}
	if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", fmt.Errorf("check user existence: %w", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hashed,
		Role:         model.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", fmt.Errorf("email already registered: %w", errors.ErrConflict)
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

// Login authenticates a user and issues a token.
func (s *authService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

// AdminLogin authenticates an administrator and issues an admin token.
func (s *authService) AdminLogin(ctx context.Context, email, password string) (*model.Admin, string, error) {
	admin, err := s.adminRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("find admin: %w", err)
	}
	if !auth.CheckPassword(admin.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwtService.GenerateToken(admin.ID, admin.Email, model.RoleAdmin)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return admin, token, nil
}

// Verify resolves a bearer token to the identity it was issued for.
func (s *authService) Verify(ctx context.Context, token string) (auth.Identity, error) {
	identity, err := s.jwtService.Verify(token)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%v: %w", err, errors.ErrUnauthenticated)
	}
	return identity, nil
}

// CurrentUser loads a user, served from cache when possible.
func (s *authService) CurrentUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			// The token outlived its user.
			return nil, fmt.Errorf("user no longer exists: %w", errors.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, userCacheTTL)
	}
	return user, nil
}

// CurrentAdmin loads the administrator behind an admin token.
func (s *authService) CurrentAdmin(ctx context.Context, id uuid.UUID) (*model.Admin, error) {
	admin, err := s.adminRepo.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("admin no longer exists: %w", errors.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("find admin: %w", err)
	}
	return admin, nil
}

// UpdateProfile renames a user and drops the cached copy.
func (s *authService) UpdateProfile(ctx context.Context, id uuid.UUID, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewValidationError("name", "is required")
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user: %w", errors.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	user.Name = name
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return user, nil
}
