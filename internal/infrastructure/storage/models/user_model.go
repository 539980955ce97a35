package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserModel is the built-in auth collaborator's account record. Trimmed
// from the teacher's RBAC UserModel: no roles, sessions, or audit trail,
// since this service's only authorization decision is notebook ownership.
type UserModel struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           string     `bun:"id,pk" json:"id"`
	Email        string     `bun:"email,notnull,unique" json:"email"`
	Username     string     `bun:"username,notnull,unique" json:"username"`
	PasswordHash string     `bun:"password_hash,notnull" json:"-"`
	IsActive     bool       `bun:"is_active,notnull,default:true" json:"is_active"`
	IsAdmin      bool       `bun:"is_admin,notnull,default:false" json:"is_admin"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
	LastLoginAt  *time.Time `bun:"last_login_at" json:"last_login_at,omitempty"`
}

func (u *UserModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (u *UserModel) BeforeUpdate(ctx interface{}) error {
	u.UpdatedAt = time.Now()
	return nil
}
