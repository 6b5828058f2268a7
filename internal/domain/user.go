package domain

import "time"

const (
	RoleStudent    = "student"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

const (
	VerificationNotRequired = "not_required"
	VerificationPending     = "pending"
	VerificationApproved    = "approved"
)

type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	Role               string     `json:"role"`
	AvatarURL          string     `json:"avatar_url,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	VerificationStatus string     `json:"verification_status"`
	PasswordHash       string     `json:"-"`
	OtpCodeHash        string     `json:"-"`
	OtpExpiresAt       *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
}

// UserIdentity es el snapshot publico de un usuario que se denormaliza
// en respuestas de mensajeria. Nunca se persiste junto al mensaje.
type UserIdentity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func (u User) Identity() UserIdentity {
	return UserIdentity{
		ID:        u.ID,
		Name:      u.Name,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
	}
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}
