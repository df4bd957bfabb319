package service

import (
	"context"
	"testing"
	"time"

	"agri_inspection/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func seedUser(t *testing.T, repo *fakeUserRepo, username, password string, role domain.UserRole, superuser, active bool) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := repo.Create(context.Background(), &domain.User{
		Username: username, Password: string(hash), Role: role, IsSuperuser: superuser, IsActive: active,
	})
	require.NoError(t, err)
	return u
}

func TestAuthService_LoginAndValidate(t *testing.T) {
	repo := newFakeUserRepo()
	u := seedUser(t, repo, "inspector", "pw", domain.RoleOCRUser, false, true)
	svc := NewAuthService(repo, "secret", time.Hour, testLogger)

	resp, err := svc.Login(context.Background(), domain.LoginUserDTO{Username: " inspector ", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, resp.User.CanUseOCR)
	assert.Equal(t, "OCR用户", resp.User.RoleDisplay)

	p, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, domain.RoleOCRUser, p.Role)
	assert.False(t, p.IsSuperuser)
	assert.NotEmpty(t, p.TokenID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), p.ExpiresAt, 5*time.Second)
}

func TestAuthService_LoginFailures(t *testing.T) {
	repo := newFakeUserRepo()
	seedUser(t, repo, "active", "pw", domain.RoleNormalUser, false, true)
	seedUser(t, repo, "disabled", "pw", domain.RoleNormalUser, false, false)
	svc := NewAuthService(repo, "secret", time.Hour, testLogger)

	tests := []struct {
		name     string
		dto      domain.LoginUserDTO
		expected error
	}{
		{"unknown user", domain.LoginUserDTO{Username: "ghost", Password: "pw"}, ErrInvalidCredentials},
		{"wrong password", domain.LoginUserDTO{Username: "active", Password: "nope"}, ErrInvalidCredentials},
		{"inactive", domain.LoginUserDTO{Username: "disabled", Password: "pw"}, ErrUserInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.dto)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestAuthService_ValidateTokenRejects(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo(), "secret", time.Hour, testLogger)

	sign := func(secret string, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := jwt.MapClaims{"sub": "1", "role": "ocr_user", "username": "a", "jti": "x", "exp": time.Now().Add(time.Hour).Unix()}

	expired := jwt.MapClaims{}
	for k, v := range valid {
		expired[k] = v
	}
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	noJTI := jwt.MapClaims{"sub": "1", "role": "ocr_user", "username": "a", "exp": time.Now().Add(time.Hour).Unix()}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong key", sign("other", valid)},
		{"expired", sign("secret", expired)},
		{"missing jti", sign("secret", noJTI)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}

	_, err := svc.ValidateToken(sign("secret", valid))
	assert.NoError(t, err)
}

func TestAuthService_Logout(t *testing.T) {
	repo := newFakeUserRepo()
	seedUser(t, repo, "u", "pw", domain.RoleOCRUser, false, true)
	svc := NewAuthService(repo, "secret", time.Hour, testLogger)

	resp, err := svc.Login(context.Background(), domain.LoginUserDTO{Username: "u", Password: "pw"})
	require.NoError(t, err)
	p, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)

	svc.Logout(p)

	_, err = svc.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRevocationList_DropsExpired(t *testing.T) {
	l := newRevocationList()
	now := time.Now()
	l.add("old", now.Add(time.Minute), now)
	l.add("new", now.Add(2*time.Hour), now.Add(time.Hour))

	assert.False(t, l.contains("old"))
	assert.True(t, l.contains("new"))
	assert.Equal(t, 1, l.len())
}

func TestAuthService_CreateAndListUsers(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, "secret", time.Hour, testLogger)
	admin := &domain.Principal{UserID: 99, IsSuperuser: true}
	plain := &domain.Principal{UserID: 1, Role: domain.RoleOCRUser}

	_, err := svc.CreateUser(context.Background(), plain, domain.CreateUserDTO{Username: "x", Password: "pw"})
	assert.ErrorIs(t, err, ErrForbidden)

	created, err := svc.CreateUser(context.Background(), admin, domain.CreateUserDTO{Username: "inspector", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleNormalUser, created.Role)
	assert.Empty(t, created.Password)
	assert.True(t, created.IsActive)

	_, err = svc.CreateUser(context.Background(), admin, domain.CreateUserDTO{Username: "inspector", Password: "pw"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	_, err = svc.CreateUser(context.Background(), admin, domain.CreateUserDTO{Username: "y", Password: "pw", Role: "root"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	profiles, err := svc.ListUsers(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "inspector", profiles[0].Username)

	_, err = svc.ListUsers(context.Background(), plain)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthService_EnsureSuperuser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, "secret", time.Hour, testLogger)

	require.NoError(t, svc.EnsureSuperuser(context.Background(), "admin", "pw"))
	require.NoError(t, svc.EnsureSuperuser(context.Background(), "admin", "other"))
	require.NoError(t, svc.EnsureSuperuser(context.Background(), "", ""))

	users, _ := repo.FindAll(context.Background())
	require.Len(t, users, 1)
	assert.True(t, users[0].IsSuperuser)

	resp, err := svc.Login(context.Background(), domain.LoginUserDTO{Username: "admin", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, resp.User.IsSuperuser)
}

func TestAuthService_Profile(t *testing.T) {
	repo := newFakeUserRepo()
	u := seedUser(t, repo, "u", "pw", domain.RoleNormalUser, false, true)
	svc := NewAuthService(repo, "secret", time.Hour, testLogger)

	profile, err := svc.Profile(context.Background(), &domain.Principal{UserID: u.ID})
	require.NoError(t, err)
	assert.False(t, profile.CanUseOCR)
	assert.Equal(t, "普通用户", profile.RoleDisplay)
}
