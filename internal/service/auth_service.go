package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"agri_inspection/internal/domain"
	"agri_inspection/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	userRepo           repository.UserRepository
	jwtSecret          string
	jwtExpirationHours time.Duration
	revoked            *revocationList
	log                *zap.Logger
	now                func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtExpHours time.Duration, log *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:           userRepo,
		jwtSecret:          jwtSecret,
		jwtExpirationHours: jwtExpHours,
		revoked:            newRevocationList(),
		log:                log,
		now:                time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, dto domain.LoginUserDTO) (*domain.AuthResponseDTO, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(dto.Username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("AuthService.Login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(dto.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	now := s.now()
	claims := jwt.MapClaims{
		"sub":       strconv.Itoa(user.ID),
		"exp":       now.Add(s.jwtExpirationHours).Unix(),
		"iat":       now.Unix(),
		"jti":       uuid.NewString(),
		"role":      string(user.Role),
		"username":  user.Username,
		"superuser": user.IsSuperuser,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("AuthService.Login (signing token): %w", err)
	}

	s.log.Info("user logged in", zap.Int("user_id", user.ID), zap.String("username", user.Username))
	return &domain.AuthResponseDTO{Token: tokenString, User: user.Profile()}, nil
}

// ValidateToken checks signature, expiry and revocation and returns the caller.
func (s *AuthService) ValidateToken(tokenString string) (*domain.Principal, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: malformed token", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: token expired", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, fmt.Errorf("%w: token not valid yet", ErrTokenInvalid)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	sub, okSub := claims["sub"].(string)
	role, okRole := claims["role"].(string)
	username, okUsername := claims["username"].(string)
	jti, okJTI := claims["jti"].(string)
	superuser, _ := claims["superuser"].(bool)
	if !okSub || !okRole || !okUsername || !okJTI {
		return nil, fmt.Errorf("%w: missing claims", ErrTokenInvalid)
	}
	userID, err := strconv.Atoi(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}
	if s.revoked.contains(jti) {
		return nil, fmt.Errorf("%w: token revoked", ErrTokenInvalid)
	}

	p := &domain.Principal{
		UserID:      userID,
		Username:    username,
		Role:        domain.UserRole(role),
		IsSuperuser: superuser,
		TokenID:     jti,
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}
	return p, nil
}

// Logout revokes the caller's token until it would have expired anyway.
func (s *AuthService) Logout(p *domain.Principal) {
	s.revoked.add(p.TokenID, p.ExpiresAt, s.now())
	s.log.Info("user logged out", zap.Int("user_id", p.UserID))
}

func (s *AuthService) Profile(ctx context.Context, p *domain.Principal) (*domain.UserProfile, error) {
	user, err := s.userRepo.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("AuthService.Profile: %w", err)
	}
	profile := user.Profile()
	return &profile, nil
}

// CreateUser is restricted to superusers. Role defaults to normal_user.
func (s *AuthService) CreateUser(ctx context.Context, actor *domain.Principal, dto domain.CreateUserDTO) (*domain.User, error) {
	if !actor.IsSuperuser {
		return nil, ErrForbidden
	}
	role := dto.Role
	if role == "" {
		role = domain.RoleNormalUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: 未知角色 %q", ErrInvalidInput, role)
	}
	return s.createUser(ctx, strings.TrimSpace(dto.Username), dto.Password, role, dto.Phone, dto.IsSuperuser)
}

func (s *AuthService) createUser(ctx context.Context, username, password string, role domain.UserRole, phone string, superuser bool) (*domain.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("AuthService.createUser (hashing password): %w", err)
	}
	user := &domain.User{
		Username:    username,
		Password:    string(hashedPassword),
		Role:        role,
		IsSuperuser: superuser,
		IsActive:    true,
		Phone:       phone,
	}
	created, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("AuthService.createUser: %w", err)
	}
	created.Password = ""
	return created, nil
}

func (s *AuthService) ListUsers(ctx context.Context, actor *domain.Principal) ([]domain.UserProfile, error) {
	if !actor.IsSuperuser {
		return nil, ErrForbidden
	}
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("AuthService.ListUsers: %w", err)
	}
	profiles := make([]domain.UserProfile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Profile())
	}
	return profiles, nil
}

// EnsureSuperuser creates the bootstrap administrator if it does not exist yet.
func (s *AuthService) EnsureSuperuser(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	_, err := s.userRepo.FindByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("AuthService.EnsureSuperuser: %w", err)
	}
	if _, err := s.createUser(ctx, username, password, domain.RoleOCRUser, "", true); err != nil {
		if errors.Is(err, ErrUserAlreadyExists) {
			return nil
		}
		return err
	}
	s.log.Info("bootstrap superuser created", zap.String("username", username))
	return nil
}

// revocationList remembers logged-out token ids until they expire.
type revocationList struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func newRevocationList() *revocationList {
	return &revocationList{tokens: make(map[string]time.Time)}
}

func (r *revocationList) add(jti string, expiresAt, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, exp := range r.tokens {
		if !exp.After(now) {
			delete(r.tokens, id)
		}
	}
	if jti != "" && expiresAt.After(now) {
		r.tokens[jti] = expiresAt
	}
}

func (r *revocationList) contains(jti string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tokens[jti]
	return ok
}

func (r *revocationList) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
