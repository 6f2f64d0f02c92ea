package users

import (
	"errors"
	"time"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleCustomer }

var (
	ErrNotFound      = errors.New("user not found")
	ErrRoleUnchanged = errors.New("role unchanged")
	ErrInvalidRole   = errors.New("invalid role value")
	ErrEmailRequired = errors.New("email is required")
)

type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	PhotoURL  string     `json:"photoUrl,omitempty"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}
