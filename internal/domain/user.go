package domain

import "time"

type UserRole string

const (
	RoleOCRUser    UserRole = "ocr_user"
	RoleNormalUser UserRole = "normal_user"
)

func (r UserRole) Valid() bool {
	return r == RoleOCRUser || r == RoleNormalUser
}

// Display returns the label shown in the admin UI.
func (r UserRole) Display() string {
	switch r {
	case RoleOCRUser:
		return "OCR用户"
	case RoleNormalUser:
		return "普通用户"
	}
	return string(r)
}

type User struct {
	ID          int       `json:"id"`
	Username    string    `json:"username"`
	Password    string    `json:"-"` // bcrypt hash, never serialized
	Role        UserRole  `json:"role"`
	IsSuperuser bool      `json:"is_superuser"`
	IsActive    bool      `json:"is_active"`
	Phone       string    `json:"phone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CanUseOCR reports whether the user may call any recognition endpoint.
func (u *User) CanUseOCR() bool {
	return u.IsSuperuser || u.Role == RoleOCRUser
}

// UserProfile is the public view returned by the auth endpoints.
type UserProfile struct {
	ID          int      `json:"id"`
	Username    string   `json:"username"`
	Role        UserRole `json:"role"`
	RoleDisplay string   `json:"role_display"`
	CanUseOCR   bool     `json:"can_use_ocr"`
	IsSuperuser bool     `json:"is_superuser"`
	Phone       string   `json:"phone"`
}

func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:          u.ID,
		Username:    u.Username,
		Role:        u.Role,
		RoleDisplay: u.Role.Display(),
		CanUseOCR:   u.CanUseOCR(),
		IsSuperuser: u.IsSuperuser,
		Phone:       u.Phone,
	}
}

type CreateUserDTO struct {
	Username    string   `json:"username" binding:"required,min=3,max=150"`
	Password    string   `json:"password" binding:"required,min=1,max=128"`
	Role        UserRole `json:"role,omitempty"`
	Phone       string   `json:"phone,omitempty" binding:"max=20"`
	IsSuperuser bool     `json:"is_superuser,omitempty"`
}

type LoginUserDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponseDTO struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

// Principal is the authenticated caller extracted from a validated token.
type Principal struct {
	UserID      int
	Username    string
	Role        UserRole
	IsSuperuser bool
	TokenID     string
	ExpiresAt   time.Time
}

func (p *Principal) CanUseOCR() bool {
	return p.IsSuperuser || p.Role == RoleOCRUser
}
